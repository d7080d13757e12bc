// Package cache provides a time-bounded on-disk cache for search payloads.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// ErrMiss is returned by Get when no fresh, valid entry exists for a key.
var ErrMiss = errors.New("cache miss")

// Validator checks that a raw payload still has the shape callers expect.
// A stored entry that fails validation is treated as a miss and removed.
type Validator func(payload []byte) error

// StoreConfig holds configuration for the cache store.
type StoreConfig struct {
	// Dir is the directory holding one file per key (required).
	Dir string

	// TTL is the freshness window, measured against the file mtime.
	// Default: 5 minutes.
	TTL time.Duration

	// Validate is applied to stored payloads on read. If nil, any
	// payload is accepted.
	Validate Validator

	// Now returns the current time. Defaults to time.Now; injectable
	// for TTL tests.
	Now func() time.Time

	// Logger for store operations.
	Logger zerolog.Logger
}

// Store caches raw search payloads on disk, keyed by search id.
// The file mtime is the freshness timestamp.
type Store struct {
	dir      string
	ttl      time.Duration
	validate Validator
	now      func() time.Time
	logger   zerolog.Logger
}

// NewStore creates a cache store, creating the directory if needed.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache: Dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		dir:      cfg.Dir,
		ttl:      ttl,
		validate: cfg.Validate,
		now:      now,
		logger:   cfg.Logger,
	}, nil
}

// Get returns the cached payload for key. A hit requires the entry to be
// younger than the TTL and to pass the validator; anything else is
// ErrMiss, and a file that exists but fails either check is deleted so a
// corrupt or format-drifted entry cannot outlive its next read.
func (s *Store) Get(key string) ([]byte, error) {
	path := s.path(key)

	info, err := os.Stat(path)
	if err != nil {
		return nil, ErrMiss
	}

	if s.now().Sub(info.ModTime()) >= s.ttl {
		s.evict(path, "expired")
		return nil, ErrMiss
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		s.evict(path, "unreadable")
		return nil, ErrMiss
	}

	if s.validate != nil {
		if err := s.validate(payload); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("cached payload failed validation")
			s.evict(path, "invalid")
			return nil, ErrMiss
		}
	}

	return payload, nil
}

// Put overwrites the entry for key with payload, stamped now. Callers
// are expected to have validated the payload already; Put does not
// re-validate.
func (s *Store) Put(key string, payload []byte) error {
	if err := os.WriteFile(s.path(key), payload, 0o600); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Store) evict(path, reason string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("path", path).Msg("failed to evict cache entry")
		return
	}
	s.logger.Debug().Str("path", path).Str("reason", reason).Msg("evicted cache entry")
}
