/**
 * @description
 * This package provides the single point of outbound communication with the
 * Solana crypto gateway API. Every call goes through Client.do, which applies the
 * two cross-cutting behaviours of the dashboard: the stored API key is attached
 * as a bearer token (except on the login endpoint) and a 401 from any endpoint
 * clears the stored key and raises the unauthorized callback.
 *
 * @dependencies
 * - github.com/google/uuid: Request correlation ids.
 * - github.com/rs/zerolog: Structured logging.
 */
package gatewayclient

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
)

// DefaultBaseURL is the production gateway origin used when no override is configured.
const DefaultBaseURL = "https://crypto-merchant-api.globpay.ai"

// Well-known paths with special handling.
const (
	LoginPath   = "/api/merchants/login"
	ProfilePath = "/api/dashboard/profile"
)

// ErrNoToken is returned by a TokenStore when no bearer token is stored.
var ErrNoToken = errors.New("no bearer token stored")

// TokenStore is the durable storage for the merchant API key.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// UnauthorizedHandler is invoked after a 401 response, once the stored token
// has been cleared. It is never invoked for the login endpoint.
type UnauthorizedHandler func(ctx context.Context, path string)

// RequestObserver receives one observation per completed request. Status is 0
// when the request failed before a response arrived.
type RequestObserver interface {
	ObserveRequest(method, path string, status int, elapsed time.Duration)
}

// Client is a client for the crypto gateway REST API.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenStore
	onUnauthorized UnauthorizedHandler
	observer       RequestObserver
	logger         zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets a per-request timeout on the underlying *http.Client. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithUnauthorizedHandler registers the callback raised on 401 responses.
func WithUnauthorizedHandler(h UnauthorizedHandler) Option {
	return func(c *Client) {
		c.onUnauthorized = h
	}
}

// WithObserver registers a RequestObserver, typically the metrics collector.
func WithObserver(o RequestObserver) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// ResolveBaseURL returns the override when set, otherwise DefaultBaseURL.
func ResolveBaseURL(override string) string {
	if trimmed := strings.TrimSpace(override); trimmed != "" {
		return strings.TrimRight(trimmed, "/")
	}
	return DefaultBaseURL
}

// NewClient creates a new gateway client. An empty baseURL resolves to DefaultBaseURL.
func NewClient(baseURL string, tokens TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL:    ResolveBaseURL(baseURL),
		httpClient: &http.Client{},
		tokens:     tokens,
		logger:     log.Logger.With().Str("component", "gateway_client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the resolved gateway origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetUnauthorizedHandler replaces the 401 callback after construction, for
// wiring that needs the client to exist first.
func (c *Client) SetUnauthorizedHandler(h UnauthorizedHandler) {
	c.onUnauthorized = h
}

func isLoginPath(path string) bool {
	return strings.Contains(path, LoginPath)
}

// do executes one request. in is JSON-encoded when non-nil; out receives the
// decoded JSON body when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	c.authorize(ctx, req, path)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, path, 0, started)
		return fmt.Errorf("gateway request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.observe(method, path, resp.StatusCode, started)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized(ctx, path)
	}
	if resp.StatusCode >= 400 {
		apiErr := newAPIError(resp.StatusCode, path, raw)
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("error", apiErr.Message).
			Msg("gateway returned error status")
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request, path string) {
	if c.tokens == nil || isLoginPath(path) {
		return
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			c.logger.Warn().Err(err).Str("path", path).Msg("token store read failed; sending request without bearer")
		}
		return
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) handleUnauthorized(ctx context.Context, path string) {
	if c.tokens != nil {
		if err := c.tokens.ClearToken(ctx); err != nil {
			c.logger.Error().Err(err).Msg("failed to clear stored token after 401")
		}
	}
	if isLoginPath(path) {
		return
	}
	c.logger.Info().Str("path", path).Msg("gateway rejected credentials; session cleared")
	if c.onUnauthorized != nil {
		c.onUnauthorized(ctx, path)
	}
}

func (c *Client) observe(method, path string, status int, started time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, path, status, time.Since(started))
	}
}
