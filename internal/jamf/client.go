// Package jamf is the client for the Jamf-Pro-style device-management
// backend: bearer-token lifecycle, saved-search retrieval, and
// managed-software-update plan submission.
package jamf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/patchpilot/patchpilot/internal/resilience"
)

// ClientConfig holds configuration for the backend client.
type ClientConfig struct {
	// BaseURL is the backend URL without trailing slash (required).
	BaseURL string

	// ClientID and ClientSecret are the API client credentials.
	ClientID     string
	ClientSecret string

	// HTTPClient is the HTTP client to use (optional). If nil, uses a
	// breaker-guarded client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client talks to the device-management backend. It holds the current
// bearer token; token refresh is always caller-triggered and synchronous,
// there is no background renewal.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *resilience.Client
	logger       zerolog.Logger

	mu    sync.Mutex
	token string
}

// NewClient creates a backend client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig("jamf"))
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   httpClient,
		logger:       cfg.Logger,
	}
}

// Token returns the current bearer token, empty if none was acquired.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// AcquireToken performs the client-credentials exchange and stores the
// resulting bearer token. It never retries; retry policy belongs to the
// caller.
func (c *Client) AcquireToken(ctx context.Context) error {
	const op = "acquire token"

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return &AuthError{Kind: ConnectionFailed, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &AuthError{Kind: ConnectionFailed, Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return &AuthError{Kind: Unauthorized, Op: op}
	case http.StatusTooManyRequests:
		return &AuthError{Kind: RateLimited, Op: op}
	default:
		return &AuthError{Kind: ConnectionFailed, Op: op,
			Err: &StatusError{Op: op, StatusCode: resp.StatusCode}}
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return &AuthError{Kind: ConnectionFailed, Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if body.AccessToken == "" {
		return &AuthError{Kind: ConnectionFailed, Op: op, Err: fmt.Errorf("response without access_token")}
	}

	c.setToken(body.AccessToken)

	// Expiry is logged for operators only; the probe call remains the
	// sole authority on token validity.
	if exp, ok := tokenExpiry(body.AccessToken); ok {
		c.logger.Info().Time("expires_at", exp).Msg("bearer token acquired")
	} else {
		c.logger.Info().Msg("bearer token acquired")
	}

	return nil
}

// ValidateToken probes the backend with the current token and reports
// whether it is still accepted. Only a 200 counts.
func (c *Client) ValidateToken(ctx context.Context) bool {
	req, err := c.authedRequest(ctx, http.MethodGet, "/api/v1/auth", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// InvalidateToken asks the backend to revoke the current token and drops
// it locally. Revocation is best-effort: the token's lifetime ends here
// whether or not the backend acknowledges.
func (c *Client) InvalidateToken(ctx context.Context) {
	defer c.setToken("")

	req, err := c.authedRequest(ctx, http.MethodPost, "/api/v1/auth/invalidate-token", nil)
	if err != nil {
		c.logger.Warn().Err(err).Msg("token invalidation skipped")
		return
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("token invalidation failed")
		return
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("token invalidation rejected")
		return
	}
	c.logger.Debug().Msg("bearer token invalidated")
}

// authedRequest builds a request carrying the current bearer token.
func (c *Client) authedRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token())
	return req, nil
}

// tokenExpiry extracts the exp claim without verifying the signature.
// Backends that issue opaque tokens simply get no expiry in the logs.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
