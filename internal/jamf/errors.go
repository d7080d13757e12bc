package jamf

import (
	"errors"
	"fmt"
)

// AuthErrorKind classifies token acquisition and authenticated-call failures.
type AuthErrorKind int

const (
	// Unauthorized means the backend rejected the credentials or token (401).
	Unauthorized AuthErrorKind = iota

	// RateLimited means the backend asked us to slow down (429).
	RateLimited

	// ConnectionFailed covers transport errors and unexpected statuses.
	ConnectionFailed
)

func (k AuthErrorKind) String() string {
	switch k {
	case Unauthorized:
		return "unauthorized"
	case RateLimited:
		return "rate limited"
	default:
		return "connection failed"
	}
}

// AuthError is returned by token operations and authenticated calls.
type AuthError struct {
	Kind AuthErrorKind
	Op   string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthKind reports whether err is an AuthError of the given kind.
func IsAuthKind(err error, kind AuthErrorKind) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == kind
}

// StatusError is returned when the backend answers with a status the
// caller did not ask for and no more specific classification applies.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
}
