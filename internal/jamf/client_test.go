package jamf_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchpilot/patchpilot/internal/jamf"
	"github.com/patchpilot/patchpilot/internal/jamf/jamftest"
)

func newClient(baseURL string) *jamf.Client {
	return jamf.NewClient(jamf.ClientConfig{
		BaseURL:      baseURL,
		ClientID:     "api-client",
		ClientSecret: "api-secret",
		Logger:       zerolog.Nop(),
	})
}

func TestClient_AcquireToken(t *testing.T) {
	server := jamftest.NewServer(jamftest.ServerConfig{
		ClientID:     "api-client",
		ClientSecret: "api-secret",
	})
	defer server.Close()

	client := newClient(server.URL)

	require.NoError(t, client.AcquireToken(context.Background()))
	assert.Equal(t, jamftest.Token, client.Token())
	assert.Equal(t, 1, server.TokensIssued())
}

func TestClient_AcquireToken_BadCredentials(t *testing.T) {
	server := jamftest.NewServer(jamftest.ServerConfig{
		ClientID:     "api-client",
		ClientSecret: "api-secret",
	})
	defer server.Close()

	client := jamf.NewClient(jamf.ClientConfig{
		BaseURL:      server.URL,
		ClientID:     "api-client",
		ClientSecret: "wrong",
		Logger:       zerolog.Nop(),
	})

	err := client.AcquireToken(context.Background())
	assert.True(t, jamf.IsAuthKind(err, jamf.Unauthorized))
	assert.Empty(t, client.Token())
}

func TestClient_AcquireToken_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   jamf.AuthErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, jamf.RateLimited},
		{"server error", http.StatusInternalServerError, jamf.ConnectionFailed},
		{"bad gateway", http.StatusBadGateway, jamf.ConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			err := newClient(server.URL).AcquireToken(context.Background())
			assert.True(t, jamf.IsAuthKind(err, tt.kind), "got %v", err)
		})
	}
}

func TestClient_AcquireToken_NoRetries(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	err := newClient(server.URL).AcquireToken(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestClient_AcquireToken_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	err := newClient(server.URL).AcquireToken(context.Background())
	assert.True(t, jamf.IsAuthKind(err, jamf.ConnectionFailed))
}

func TestClient_ValidateToken(t *testing.T) {
	server := jamftest.NewServer(jamftest.ServerConfig{})
	defer server.Close()

	client := newClient(server.URL)

	assert.False(t, client.ValidateToken(context.Background()), "no token acquired yet")

	require.NoError(t, client.AcquireToken(context.Background()))
	assert.True(t, client.ValidateToken(context.Background()))

	server.RevokeToken()
	assert.False(t, client.ValidateToken(context.Background()), "revoked token must fail the probe")
}

func TestClient_InvalidateToken(t *testing.T) {
	server := jamftest.NewServer(jamftest.ServerConfig{})
	defer server.Close()

	client := newClient(server.URL)
	require.NoError(t, client.AcquireToken(context.Background()))

	client.InvalidateToken(context.Background())
	assert.Empty(t, client.Token(), "token ends locally regardless of server response")
	assert.False(t, client.ValidateToken(context.Background()))
}

func TestClient_InvalidateToken_ServerDownIsNotFatal(t *testing.T) {
	server := jamftest.NewServer(jamftest.ServerConfig{})
	client := newClient(server.URL)
	require.NoError(t, client.AcquireToken(context.Background()))
	server.Close()

	// Must not panic or error out; the token still ends locally.
	client.InvalidateToken(context.Background())
	assert.Empty(t, client.Token())
}
