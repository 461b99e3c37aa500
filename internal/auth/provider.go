// Package auth obtains and caches bearer tokens for the workbook API using
// the OAuth2 client-credentials grant.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"journal_backend/internal/failure"
	"journal_backend/internal/telemetry"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMargin   = 5 * time.Minute
	DefaultLifetime = 3600 * time.Second

	// exchangeTimeout bounds a refresh shared by concurrent callers.
	exchangeTimeout = 30 * time.Second
)

type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scope        string
	// Margin is how long before expiry a cached token stops being handed out.
	Margin time.Duration
}

// Provider hands out access tokens, refreshing them transparently once the
// cached one is within Margin of expiry. Concurrent refreshes collapse into
// one exchange.
type Provider struct {
	cfg        Config
	exchange   clientcredentials.Config
	httpClient *http.Client
	metrics    telemetry.Collector
	now        func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

type Option func(*Provider)

// WithHTTPClient sets the client used for the token exchange.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.httpClient = client }
}

func WithCollector(c telemetry.Collector) Option {
	return func(p *Provider) { p.metrics = c }
}

// WithClock replaces time.Now; tests use it to move across the expiry margin.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func NewProvider(cfg Config, opts ...Option) *Provider {
	if cfg.Margin <= 0 {
		cfg.Margin = DefaultMargin
	}
	p := &Provider{
		cfg: cfg,
		exchange: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       []string{cfg.Scope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: &http.Client{Timeout: 15 * time.Second},
		metrics:    telemetry.Noop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns a bearer token valid for at least the configured margin.
func (p *Provider) Token(ctx context.Context) (string, error) {
	if token, ok := p.cached(); ok {
		return token, nil
	}

	ch := p.group.DoChan("token", func() (any, error) {
		if token, ok := p.cached(); ok {
			return token, nil
		}
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), exchangeTimeout)
		defer cancel()
		return p.refresh(shared)
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("access token: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (p *Provider) cached() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.token == "" {
		return "", false
	}
	if !p.expiresAt.After(p.now().Add(p.cfg.Margin)) {
		return "", false
	}
	return p.token, true
}

func (p *Provider) refresh(ctx context.Context) (string, error) {
	if err := p.checkConfig(); err != nil {
		log.Error().Err(err).Msg("Cannot request access token")
		return "", err
	}

	log.Debug().Str("token_url", p.cfg.TokenURL).Msg("Requesting access token")
	issuedAt := p.now()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.exchange.Token(ctx)
	if err != nil {
		err = p.describe(err)
		p.metrics.IncTokenExchange(err)
		return "", err
	}
	if tok.AccessToken == "" {
		err := fmt.Errorf("token response without access_token: %w", failure.ErrAuth)
		p.metrics.IncTokenExchange(err)
		log.Error().Err(err).Msg("Failed to obtain access token")
		return "", err
	}

	expiresAt := issuedAt.Add(DefaultLifetime)
	if !tok.Expiry.IsZero() {
		expiresAt = issuedAt.Add(tok.Expiry.Sub(time.Now()).Round(time.Second))
	}

	p.mu.Lock()
	p.token = tok.AccessToken
	p.expiresAt = expiresAt
	p.mu.Unlock()

	p.metrics.IncTokenExchange(nil)
	log.Debug().Time("expires_at", expiresAt).Msg("Access token cached")
	return tok.AccessToken, nil
}

// describe logs the provider's error code and description and classifies err.
func (p *Provider) describe(err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		status := 0
		if rErr.Response != nil {
			status = rErr.Response.StatusCode
		}
		log.Error().
			Str("error", rErr.ErrorCode).
			Str("error_description", rErr.ErrorDescription).
			Int("status", status).
			Msg("Failed to obtain access token")
		code := rErr.ErrorCode
		if code == "" {
			code = http.StatusText(status)
		}
		return fmt.Errorf("token exchange rejected (%s): %w", code, failure.ErrAuth)
	}
	log.Error().Err(err).Msg("Failed to obtain access token")
	return fmt.Errorf("token exchange: %v: %w", err, failure.ErrAuth)
}

func (p *Provider) checkConfig() error {
	switch {
	case p.cfg.TenantID == "":
		return fmt.Errorf("TENANT_ID: %w", failure.ErrConfig)
	case p.cfg.ClientID == "":
		return fmt.Errorf("CLIENT_ID: %w", failure.ErrConfig)
	case p.cfg.ClientSecret == "":
		return fmt.Errorf("CLIENT_SECRET: %w", failure.ErrConfig)
	}
	return nil
}

// ExpiresAt reports the cached token's expiry; zero when nothing is cached.
func (p *Provider) ExpiresAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.expiresAt
}
