package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
)

const (
	// Tokens are refreshed this long before Zoho expires them.
	expirySafetyMargin = 300 * time.Second
	defaultExpiresIn   = 3600 * time.Second
)

type TokenOption func(*TokenManager)

func WithTokenHTTPClient(client *http.Client) TokenOption {
	return func(m *TokenManager) {
		if client != nil {
			m.httpClient = client
		}
	}
}

func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithTokenLogger(logger zerolog.Logger) TokenOption {
	return func(m *TokenManager) { m.logger = logger }
}

// TokenManager owns the Zoho access token. Callers share one instance; the
// mutex makes concurrent callers wait for a single refresh.
type TokenManager struct {
	conf         *oauth2.Config
	refreshToken string
	httpClient   *http.Client
	now          func() time.Time
	logger       zerolog.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewTokenManager(cfg Config, opts ...TokenOption) (*TokenManager, error) {
	cfg = cfg.withDefaults()
	clientID := strings.TrimSpace(cfg.ClientID)
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	refreshToken := strings.TrimSpace(cfg.RefreshToken)
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("%w: zoho client id, client secret and refresh token are required", contractx.ErrConfig)
	}

	m := &TokenManager{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  strings.TrimRight(strings.TrimSpace(cfg.AccountsURL), "/") + "/oauth/v2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		refreshToken: refreshToken,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		now:          time.Now,
		logger:       log.Logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Token returns a valid access token, refreshing it first when it is
// missing or due.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accessToken != "" && m.now().Before(m.expiresAt) {
		return m.accessToken, nil
	}
	if err := m.refreshLocked(ctx); err != nil {
		return "", err
	}
	return m.accessToken, nil
}

// Refresh forces a refresh-token grant.
func (m *TokenManager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked(ctx)
}

// Header is the Authorization header value for the current token.
func (m *TokenManager) Header(ctx context.Context) (string, error) {
	tok, err := m.Token(ctx)
	if err != nil {
		return "", err
	}
	return "Zoho-oauthtoken " + tok, nil
}

// Authorize satisfies transport.Authorizer.
func (m *TokenManager) Authorize(ctx context.Context, req *http.Request) error {
	h, err := m.Header(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", h)
	return nil
}

func (m *TokenManager) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiresAt
}

func (m *TokenManager) refreshLocked(ctx context.Context) error {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	tok, err := m.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: m.refreshToken}).Token()
	if err != nil {
		m.logger.Error().Err(err).Msg("zoho token refresh failed")
		return fmt.Errorf("%w: zoho token refresh: %v", contractx.ErrAuth, err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("%w: zoho token refresh returned no access token", contractx.ErrAuth)
	}

	expiresIn := expiresInOf(tok)
	m.accessToken = tok.AccessToken
	m.expiresAt = m.now().Add(expiresIn - expirySafetyMargin)

	m.logger.Debug().Dur("expires_in", expiresIn).Time("refresh_at", m.expiresAt).Msg("zoho token refreshed")
	return nil
}

// expiresInOf reads the raw expires_in of the token response so expiry
// follows the injected clock rather than oauth2's.
func expiresInOf(tok *oauth2.Token) time.Duration {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	case json.Number:
		if n, err := v.Int64(); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	case int:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	case int64:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return defaultExpiresIn
}
