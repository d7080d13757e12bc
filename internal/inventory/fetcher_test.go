package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchpilot/patchpilot/internal/cache"
	"github.com/patchpilot/patchpilot/internal/inventory"
	"github.com/patchpilot/patchpilot/internal/jamf"
)

type fakeClient struct {
	payload []byte
	err     error
	calls   int
}

func (f *fakeClient) FetchSearch(context.Context, string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func newFetcher(t *testing.T, client inventory.Client, now *time.Time) (*inventory.Fetcher, *cache.Store) {
	t.Helper()
	store, err := cache.NewStore(cache.StoreConfig{
		Dir:      t.TempDir(),
		TTL:      300 * time.Second,
		Validate: inventory.ValidatePayload,
		Now:      func() time.Time { return *now },
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	return inventory.NewFetcher(inventory.FetcherConfig{
		Client: client,
		Cache:  store,
		Logger: zerolog.Nop(),
	}), store
}

func TestFetcher_LiveFetchPopulatesCache(t *testing.T) {
	client := &fakeClient{payload: []byte(searchPayload)}
	now := time.Now()
	fetcher, store := newFetcher(t, client, &now)

	search, err := fetcher.Fetch(context.Background(), "113")
	require.NoError(t, err)
	assert.Len(t, search.Devices, 2)
	assert.Equal(t, 1, client.calls)

	cached, err := store.Get("113")
	require.NoError(t, err)
	assert.Equal(t, []byte(searchPayload), cached)
}

func TestFetcher_SecondFetchWithinTTLSkipsNetwork(t *testing.T) {
	client := &fakeClient{payload: []byte(searchPayload)}
	now := time.Now()
	fetcher, _ := newFetcher(t, client, &now)

	first, err := fetcher.Fetch(context.Background(), "113")
	require.NoError(t, err)

	now = now.Add(120 * time.Second)

	second, err := fetcher.Fetch(context.Background(), "113")
	require.NoError(t, err)

	assert.Equal(t, 1, client.calls, "second fetch must not hit the network")
	assert.Equal(t, first, second)
}

func TestFetcher_ExpiredCacheFetchesLive(t *testing.T) {
	client := &fakeClient{payload: []byte(searchPayload)}
	now := time.Now()
	fetcher, _ := newFetcher(t, client, &now)

	_, err := fetcher.Fetch(context.Background(), "113")
	require.NoError(t, err)

	now = now.Add(301 * time.Second)

	_, err = fetcher.Fetch(context.Background(), "113")
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
}

func TestFetcher_InvalidSchemaIsNotCached(t *testing.T) {
	client := &fakeClient{payload: []byte(`{"error":"backend changed"}`)}
	now := time.Now()
	fetcher, store := newFetcher(t, client, &now)

	_, err := fetcher.Fetch(context.Background(), "113")
	assert.True(t, inventory.IsFetchKind(err, inventory.InvalidSchema))

	_, cacheErr := store.Get("113")
	assert.ErrorIs(t, cacheErr, cache.ErrMiss, "invalid payload must not be cached")
}

func TestFetcher_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want inventory.FetchErrorKind
	}{
		{"unauthorized", &jamf.AuthError{Kind: jamf.Unauthorized, Op: "fetch"}, inventory.Unauthorized},
		{"rate limited", &jamf.AuthError{Kind: jamf.RateLimited, Op: "fetch"}, inventory.RateLimited},
		{"connection failed", &jamf.AuthError{Kind: jamf.ConnectionFailed, Op: "fetch"}, inventory.ConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Now()
			fetcher, _ := newFetcher(t, &fakeClient{err: tt.err}, &now)

			_, err := fetcher.Fetch(context.Background(), "113")
			assert.True(t, inventory.IsFetchKind(err, tt.want), "got %v", err)
		})
	}
}
