package cache_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchpilot/patchpilot/internal/cache"
)

func newStore(t *testing.T, now *time.Time, validate cache.Validator) *cache.Store {
	t.Helper()
	store, err := cache.NewStore(cache.StoreConfig{
		Dir:      t.TempDir(),
		TTL:      300 * time.Second,
		Validate: validate,
		Now:      func() time.Time { return *now },
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	return store
}

func TestStore_PutThenGet(t *testing.T) {
	now := time.Now()
	store := newStore(t, &now, nil)

	payload := []byte(`{"computers":[{"id":1}]}`)
	require.NoError(t, store.Put("113", payload))

	got, err := store.Get("113")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestStore_GetMissingKey(t *testing.T) {
	now := time.Now()
	store := newStore(t, &now, nil)

	_, err := store.Get("113")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestStore_ExpiredEntryIsMissAndDeleted(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	store, err := cache.NewStore(cache.StoreConfig{
		Dir:    dir,
		TTL:    300 * time.Second,
		Now:    func() time.Time { return now },
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, store.Put("113", []byte(`{}`)))

	// Simulate 300+ seconds passing without sleeping.
	now = now.Add(301 * time.Second)

	_, err = store.Get("113")
	assert.ErrorIs(t, err, cache.ErrMiss)

	_, statErr := os.Stat(filepath.Join(dir, "113.json"))
	assert.True(t, os.IsNotExist(statErr), "expired entry should be deleted")
}

func TestStore_EntryJustInsideTTLIsHit(t *testing.T) {
	now := time.Now()
	store := newStore(t, &now, nil)

	require.NoError(t, store.Put("113", []byte(`{}`)))
	now = now.Add(299 * time.Second)

	_, err := store.Get("113")
	assert.NoError(t, err)
}

func TestStore_InvalidPayloadIsMissAndDeleted(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	rejectAll := func([]byte) error { return errors.New("missing device list") }

	store, err := cache.NewStore(cache.StoreConfig{
		Dir:      dir,
		TTL:      300 * time.Second,
		Validate: rejectAll,
		Now:      func() time.Time { return now },
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, store.Put("113", []byte(`{"unexpected":true}`)))

	_, err = store.Get("113")
	assert.ErrorIs(t, err, cache.ErrMiss)

	_, statErr := os.Stat(filepath.Join(dir, "113.json"))
	assert.True(t, os.IsNotExist(statErr), "invalid entry should be deleted")
}

func TestStore_PutOverwrites(t *testing.T) {
	now := time.Now()
	store := newStore(t, &now, nil)

	require.NoError(t, store.Put("113", []byte(`{"v":1}`)))
	require.NoError(t, store.Put("113", []byte(`{"v":2}`)))

	got, err := store.Get("113")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":2}`), got)
}

func TestNewStore_RequiresDir(t *testing.T) {
	_, err := cache.NewStore(cache.StoreConfig{})
	assert.Error(t, err)
}
