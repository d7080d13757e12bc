package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/patchpilot/patchpilot/internal/cache"
	"github.com/patchpilot/patchpilot/internal/jamf"
)

// FetchErrorKind classifies fetch failures.
type FetchErrorKind int

const (
	// InvalidSchema means the live payload failed schema validation.
	InvalidSchema FetchErrorKind = iota

	// Unauthorized means the backend rejected the bearer token.
	Unauthorized

	// RateLimited means the backend asked us to slow down.
	RateLimited

	// ConnectionFailed covers transport errors and unexpected statuses.
	ConnectionFailed
)

func (k FetchErrorKind) String() string {
	switch k {
	case InvalidSchema:
		return "invalid schema"
	case Unauthorized:
		return "unauthorized"
	case RateLimited:
		return "rate limited"
	default:
		return "connection failed"
	}
}

// FetchError is returned by Fetcher.Fetch.
type FetchError struct {
	Kind FetchErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching inventory: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("fetching inventory: %s", e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchKind reports whether err is a FetchError of the given kind.
func IsFetchKind(err error, kind FetchErrorKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}

// Client is the slice of the backend client the fetcher needs.
type Client interface {
	FetchSearch(ctx context.Context, searchID string) ([]byte, error)
}

// FetcherConfig holds configuration for the fetcher.
type FetcherConfig struct {
	// Client performs live search fetches (required).
	Client Client

	// Cache short-circuits live fetches (required). Construct it with
	// ValidatePayload as validator so cached entries pass the same
	// schema check as live ones.
	Cache *cache.Store

	// Logger for fetch operations.
	Logger zerolog.Logger
}

// Fetcher retrieves a saved search's device list, consulting the cache
// first. A successful Fetch never returns a payload that failed schema
// validation.
type Fetcher struct {
	client Client
	cache  *cache.Store
	logger zerolog.Logger
}

// NewFetcher creates an inventory fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	return &Fetcher{
		client: cfg.Client,
		cache:  cfg.Cache,
		logger: cfg.Logger,
	}
}

// Fetch returns the device list of the given saved search.
func (f *Fetcher) Fetch(ctx context.Context, searchID string) (*Search, error) {
	if payload, err := f.cache.Get(searchID); err == nil {
		search, parseErr := ParsePayload(payload)
		if parseErr == nil {
			f.logger.Debug().Str("search_id", searchID).Int("devices", len(search.Devices)).
				Msg("inventory served from cache")
			return search, nil
		}
		// The validator passed but the parse did not; fall through to a
		// live fetch.
		f.logger.Warn().Err(parseErr).Str("search_id", searchID).Msg("cached payload unparseable")
	}

	payload, err := f.client.FetchSearch(ctx, searchID)
	if err != nil {
		return nil, &FetchError{Kind: classify(err), Err: err}
	}

	if err := ValidatePayload(payload); err != nil {
		return nil, &FetchError{Kind: InvalidSchema, Err: err}
	}

	if err := f.cache.Put(searchID, payload); err != nil {
		// A dead cache only costs extra backend calls.
		f.logger.Warn().Err(err).Str("search_id", searchID).Msg("failed to cache payload")
	}

	search, err := ParsePayload(payload)
	if err != nil {
		return nil, &FetchError{Kind: InvalidSchema, Err: err}
	}

	f.logger.Info().Str("search_id", searchID).Int("devices", len(search.Devices)).
		Msg("inventory fetched")
	return search, nil
}

func classify(err error) FetchErrorKind {
	var ae *jamf.AuthError
	if errors.As(err, &ae) {
		switch ae.Kind {
		case jamf.Unauthorized:
			return Unauthorized
		case jamf.RateLimited:
			return RateLimited
		}
	}
	return ConnectionFailed
}
