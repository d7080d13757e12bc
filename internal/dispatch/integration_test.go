package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchpilot/patchpilot/internal/dispatch"
	"github.com/patchpilot/patchpilot/internal/jamf"
	"github.com/patchpilot/patchpilot/internal/jamf/jamftest"
	"github.com/patchpilot/patchpilot/internal/resilience"
)

// Covers the dispatcher against a real HTTP backend: scripted 429s are
// absorbed by backoff, the token is probed once before the batch, and
// a revoked token is recovered through the 401 path.
func TestDispatcher_EndToEnd(t *testing.T) {
	server := jamftest.NewServer(jamftest.ServerConfig{})
	defer server.Close()

	client := jamf.NewClient(jamf.ClientConfig{
		BaseURL: server.URL,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, client.AcquireToken(context.Background()))

	server.ScriptPlanStatuses("2", 429, 429)

	sleeper := &fakeSleeper{}
	dispatcher := dispatch.NewDispatcher(dispatch.DispatcherConfig{
		Backend: client,
		Retry:   resilience.Policy{MaxAttempts: 3, Interval: 30 * time.Second, Sleeper: sleeper},
		Sleeper: sleeper,
		Logger:  zerolog.Nop(),
	})

	outcome := dispatcher.Dispatch(context.Background(), []int{1, 2, 3}, time.Now().Add(time.Hour))

	assert.Equal(t, 3, outcome.Succeeded)
	assert.Equal(t, 0, outcome.Failed)
	assert.Equal(t, 1, server.Probes(), "one pre-batch token probe")
	assert.Len(t, server.Plans(), 5, "three devices plus two rate-limited retries")
}

func TestDispatcher_EndToEnd_TokenRecovery(t *testing.T) {
	server := jamftest.NewServer(jamftest.ServerConfig{})
	defer server.Close()

	client := jamf.NewClient(jamf.ClientConfig{
		BaseURL: server.URL,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, client.AcquireToken(context.Background()))
	server.RevokeToken()

	sleeper := &fakeSleeper{}
	dispatcher := dispatch.NewDispatcher(dispatch.DispatcherConfig{
		Backend: client,
		Retry:   resilience.Policy{MaxAttempts: 3, Interval: 30 * time.Second, Sleeper: sleeper},
		Sleeper: sleeper,
		Logger:  zerolog.Nop(),
	})

	outcome := dispatcher.Dispatch(context.Background(), []int{1}, time.Now().Add(time.Hour))

	assert.Equal(t, 1, outcome.Succeeded, "pre-batch refresh must recover the revoked token")
	assert.Equal(t, 2, server.TokensIssued())
}
