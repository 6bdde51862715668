package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
)

const (
	defaultTimeout       = 10 * time.Second
	maxResponseSizeBytes = 4 << 20
	maxLoggedBodyBytes   = 512
)

// StatusError is a non-2xx answer from a CRM API.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: http status=%d body=%s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Unwrap exposes ErrRemote, plus ErrAuth for 401 and 403 answers.
func (e *StatusError) Unwrap() []error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return []error{contractx.ErrRemote, contractx.ErrAuth}
	}
	return []error{contractx.ErrRemote}
}

// IsStatus reports whether err carries an HTTP answer with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Authorizer decorates an outgoing request with credentials.
type Authorizer func(ctx context.Context, req *http.Request) error

// Bearer authorizes with a static bearer token.
func Bearer(token string) Authorizer {
	return func(_ context.Context, req *http.Request) error {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	}
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithAuthorizer(auth Authorizer) Option {
	return func(c *Client) {
		if auth != nil {
			c.authorize = auth
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client issues JSON requests against one REST base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authorize  Authorizer
	logger     zerolog.Logger
}

func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: base url is required", contractx.ErrConfig)
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("%w: invalid base url: %v", contractx.ErrConfig, err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		authorize:  func(context.Context, *http.Request) error { return nil },
		logger:     log.Logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

// Do sends body as JSON and returns the raw response body of a 2xx answer.
// Transport failures wrap contract.ErrNetwork; other statuses return a
// *StatusError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	start := time.Now()
	logger := c.logger.With().Str("request_id", requestID).Str("method", method).Str("path", path).Logger()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("crm request failed")
		return nil, fmt.Errorf("%w: %s %s: %v", contractx.ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s response: %v", contractx.ErrNetwork, method, path, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		logger.Error().
			Int("status", resp.StatusCode).
			Str("body", truncate(string(raw), maxLoggedBodyBytes)).
			Dur("elapsed", time.Since(start)).
			Msg("crm api error")
		return nil, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	logger.Debug().Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("crm request")
	return raw, nil
}

// JSON is Do followed by decoding into out. An empty body leaves out untouched.
func (c *Client) JSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	raw, err := c.Do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s %s response: %v", contractx.ErrRemote, method, path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
