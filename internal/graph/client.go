// Package graph talks to an Excel workbook stored in OneDrive or SharePoint
// through the Microsoft Graph REST API.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"journal_backend/internal/failure"
	"journal_backend/internal/retry"

	"github.com/rs/zerolog/log"
)

const maxErrorBody = 4 << 10

// TokenSource hands out bearer tokens for Graph.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Config struct {
	BaseURL   string
	UserID    string
	Worksheet string

	// FilePath is the workbook's path relative to the drive root.
	FilePath string
	// SiteHost and SitePath, when both set, select the SharePoint site's
	// default drive instead of the user's OneDrive.
	SiteHost string
	SitePath string

	// FileIDTTL of zero keeps a resolved file id for the process lifetime.
	FileIDTTL time.Duration
	Resolve   retry.Config
}

func (c Config) usesSite() bool {
	return c.SiteHost != "" && c.SitePath != ""
}

// StatusError is a Graph response with an unexpected status code.
type StatusError struct {
	Op     string
	Status int
	Body   string

	kind error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.kind == nil {
		return failure.ErrRemote
	}
	return e.kind
}

// Client is a workbook.Backend for one worksheet of one Graph-hosted file.
type Client struct {
	cfg        Config
	tokens     TokenSource
	httpClient *http.Client
	now        func() time.Time
	locator    *Locator
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithClock replaces time.Now for file-id expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(cfg Config, tokens TokenSource, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: &http.Client{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.locator = newLocator(c)
	return c
}

func (c *Client) Name() string { return "graph" }

// Locator exposes the file-id cache, mainly for status checks.
func (c *Client) Locator() *Locator { return c.locator }

type rangeResponse struct {
	Values [][]any `json:"values"`
}

func (c *Client) ReadRange(ctx context.Context, address string) ([][]any, error) {
	rangeURL, err := c.rangeURL(ctx, address)
	if err != nil {
		return nil, err
	}
	var resp rangeResponse
	if err := c.do(ctx, "read "+address, http.MethodGet, rangeURL, nil, exactlyOK, &resp, nil); err != nil {
		return nil, err
	}
	log.Debug().Str("range", address).Int("rows", len(resp.Values)).Msg("Range read")
	return resp.Values, nil
}

func (c *Client) WriteRange(ctx context.Context, address string, values [][]any) error {
	rangeURL, err := c.rangeURL(ctx, address)
	if err != nil {
		return err
	}
	return c.do(ctx, "update "+address, http.MethodPatch, rangeURL, rangeResponse{Values: values}, exactlyOK, nil, nil)
}

func (c *Client) ClearRange(ctx context.Context, address string) error {
	rangeURL, err := c.rangeURL(ctx, address)
	if err != nil {
		return err
	}
	return c.do(ctx, "clear "+address, http.MethodPost, rangeURL+"/clear", nil, anySuccess, nil, nil)
}

// Identity is the drive owner the workbook is resolved for: the user id, or
// the site for SharePoint workbooks. It is empty when neither is configured.
func (c *Client) Identity() string {
	if c.cfg.usesSite() {
		return c.cfg.SiteHost + ":" + c.cfg.SitePath
	}
	return c.cfg.UserID
}

// Locate resolves the workbook's file id, using the cache when it is fresh.
func (c *Client) Locate(ctx context.Context) error {
	_, err := c.locator.Resolve(ctx)
	return err
}

// rangeURL fetches a token and the file handle before any range request is
// built, so missing settings fail without touching the network.
func (c *Client) rangeURL(ctx context.Context, address string) (string, error) {
	if c.cfg.Worksheet == "" {
		return "", fmt.Errorf("EXCEL_WORKSHEET_NAME: %w", failure.ErrConfig)
	}
	if _, err := c.tokens.Token(ctx); err != nil {
		return "", err
	}
	handle, err := c.locator.Resolve(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s/workbook/worksheets/%s/range(address='%s')",
		c.cfg.BaseURL, handle.ItemPath, url.PathEscape(c.cfg.Worksheet), address), nil
}

func exactlyOK(status int) bool { return status == http.StatusOK }

func anySuccess(status int) bool { return status >= 200 && status < 300 }

// do sends one authorized request. A non-nil out receives the decoded JSON
// body. Failures wrap kind, or failure.ErrRemote when kind is nil.
func (c *Client) do(ctx context.Context, op, method, target string, body any, accept func(int) bool, out any, kind error) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if kind == nil {
		kind = failure.ErrRemote
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, kind, err)
	}
	defer resp.Body.Close()

	if !accept(resp.StatusCode) {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{Op: op, Status: resp.StatusCode, Body: string(raw), kind: kind}
		log.Error().
			Str("op", op).
			Int("status", resp.StatusCode).
			Str("body", statusErr.Body).
			Msg("Graph request rejected")
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %v: %w", op, err, kind)
	}
	return nil
}
