package resilience

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the circuit breaker refuses a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClientConfig holds configuration for the breaker-guarded HTTP client.
type ClientConfig struct {
	// Name identifies this client for breaker naming.
	Name string

	// Timeout is the per-request timeout. Default: 15 seconds.
	Timeout time.Duration

	// Breaker is the circuit breaker configuration. If nil, uses
	// DefaultBreakerConfig.
	Breaker *BreakerConfig

	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
}

// DefaultClientConfig returns sensible defaults for the client.
func DefaultClientConfig(name string) ClientConfig {
	bc := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:    name,
		Timeout: 15 * time.Second,
		Breaker: &bc,
	}
}

// Client wraps http.Client with a circuit breaker. Every response,
// including 4xx and 5xx, is returned to the caller unchanged; only
// transport-level failures count against the breaker. Callers own all
// retry decisions.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
}

// NewClient creates a breaker-guarded HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	bc := cfg.Breaker
	if bc == nil {
		def := DefaultBreakerConfig(cfg.Name)
		bc = &def
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		breaker: newBreaker[*http.Response](*bc),
	}
}

// Do executes the request through the circuit breaker. Returns
// ErrCircuitOpen without touching the network when the breaker is open.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.httpClient.Do(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return resp, nil
}

// BreakerState returns the current breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}
