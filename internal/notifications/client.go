// Package notifications pushes operator alerts to an ntfy topic.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"journal_backend/internal/retry"

	"github.com/rs/zerolog/log"
)

const (
	circuitThreshold = 5
	circuitCooldown  = 30 * time.Second
)

type Config struct {
	BaseURL  string
	Topic    string
	Priority string
	Enabled  bool
	Retry    retry.Config
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	topic      string
	priority   string
	enabled    bool
	retry      retry.Config
	now        func() time.Time

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	circuitOpen bool
	totalSent   int64
	totalFailed int64
}

// Message is one push. Title and Tags map onto ntfy's headers.
type Message struct {
	Title string
	Body  string
	Tags  []string
}

type NotificationError struct {
	Type       string
	StatusCode int
	Underlying error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed [%s]: %v", e.Type, e.Underlying)
}

func (e *NotificationError) IsRetryable() bool {
	switch e.Type {
	case "network", "server", "rate_limit":
		return true
	case "auth", "client", "circuit_open":
		return false
	default:
		return e.StatusCode >= 500
	}
}

func NewClient(cfg Config) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		topic:    cfg.Topic,
		priority: cfg.Priority,
		enabled:  cfg.Enabled,
		retry:    cfg.Retry,
		now:      time.Now,
	}
	c.retry.Permanent = func(err error) bool {
		var notifErr *NotificationError
		return errors.As(err, &notifErr) && !notifErr.IsRetryable()
	}
	return c
}

func (c *Client) Enabled() bool { return c.enabled }

// Send publishes msg, retrying transient failures. Repeated failures open a
// circuit that skips sends until the cooldown passes.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.enabled {
		log.Debug().Msg("Notifications disabled, skipping")
		return nil
	}
	if c.isCircuitOpen() {
		log.Warn().Msg("Circuit breaker open, skipping notification")
		return &NotificationError{Type: "circuit_open", Underlying: errors.New("circuit breaker is open")}
	}

	_, err := retry.WithRetry(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.post(ctx, msg)
	})
	if err != nil {
		c.recordFailure()
		return err
	}
	c.recordSuccess()
	return nil
}

// SendAsync publishes msg in the background. The send outlives ctx's
// cancellation but keeps its values.
func (c *Client) SendAsync(ctx context.Context, msg Message) {
	if !c.enabled {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := c.Send(ctx, msg); err != nil {
			log.Warn().Err(err).Str("title", msg.Title).Msg("Async notification failed")
		}
	}()
}

// NotifyWindowFull reports that the results column has no free row left.
func (c *Client) NotifyWindowFull(ctx context.Context, window string) {
	c.SendAsync(ctx, Message{
		Title: "Trade journal full",
		Body:  fmt.Sprintf("No empty row left in %s. Reset the journal to keep recording results.", window),
		Tags:  []string{"warning"},
	})
}

// NotifyPartialWrite reports a composite write where some cells failed.
func (c *Client) NotifyPartialWrite(ctx context.Context, operation string, updated, failed []string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s wrote %d cell(s) and failed on %d.\n", operation, len(updated), len(failed))
	if len(updated) > 0 {
		fmt.Fprintf(&sb, "Updated: %s\n", strings.Join(updated, ", "))
	}
	fmt.Fprintf(&sb, "Failed: %s", strings.Join(failed, ", "))

	c.SendAsync(ctx, Message{
		Title: "Trade journal write incomplete",
		Body:  sb.String(),
		Tags:  []string{"rotating_light"},
	})
}

func (c *Client) post(ctx context.Context, msg Message) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, c.topic)
	log.Debug().Str("url", url).Str("title", msg.Title).Msg("Sending notification")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(msg.Body))
	if err != nil {
		return &NotificationError{Type: "client", Underlying: err}
	}
	req.Header.Set("Content-Type", "text/plain")
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}
	if c.priority != "" {
		req.Header.Set("Priority", c.priority)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NotificationError{Type: "network", Underlying: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &NotificationError{
			Type:       categorizeHTTPError(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Underlying: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	}

	log.Debug().Int("status_code", resp.StatusCode).Msg("Notification sent successfully")
	return nil
}

func (c *Client) isCircuitOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.circuitOpen {
		return false
	}
	// half-open: let the next send through
	if c.now().Sub(c.lastFailure) > circuitCooldown {
		c.circuitOpen = false
		c.failures = 0
		log.Info().Msg("Circuit breaker moving to half-open state")
	}
	return c.circuitOpen
}

func (c *Client) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalSent++
	c.failures = 0
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalFailed++
	c.failures++
	c.lastFailure = c.now()
	if c.failures >= circuitThreshold && !c.circuitOpen {
		c.circuitOpen = true
		log.Warn().Int("failures", c.failures).Msg("Circuit breaker opened due to consecutive failures")
	}
}

func categorizeHTTPError(statusCode int) string {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return "auth"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limit"
	case statusCode >= 400 && statusCode < 500:
		return "client"
	case statusCode >= 500:
		return "server"
	default:
		return "unknown"
	}
}

// Stats returns how many sends succeeded and failed.
func (c *Client) Stats() (sent, failed int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalSent, c.totalFailed
}
