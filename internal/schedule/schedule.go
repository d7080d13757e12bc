// Package schedule parses and validates user-supplied schedule times.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// InputLayout is what the user types; seconds are appended before the
// value is sent to the backend.
const InputLayout = "2006-01-02 15:04"

// planLayout is the backend's local-time timestamp format.
const planLayout = "2006-01-02T15:04:05"

// Parse errors. The caller re-prompts on any of them; malformed input is
// never coerced into a guess.
var (
	ErrMalformed   = errors.New("schedule time must be YYYY-MM-DD HH:MM")
	ErrInvalidDate = errors.New("schedule time is not a real calendar date")
	ErrNotInFuture = errors.New("schedule time must be in the future")
)

// Parse interprets input as a local schedule time with second precision
// (seconds fixed to :00) and requires it to lie in the future of now.
func Parse(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if len(input) != len(InputLayout) {
		return time.Time{}, ErrMalformed
	}

	t, err := time.ParseInLocation(InputLayout, input, time.Local)
	if err != nil {
		// time.Parse rejects both bad shapes and impossible dates
		// (Feb 30); tell them apart so the prompt can say which. A
		// ParseError carries a Message only for range failures.
		var pe *time.ParseError
		if errors.As(err, &pe) && pe.Message != "" {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, input)
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformed, input)
	}

	if !t.After(now) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrNotInFuture, input)
	}
	return t, nil
}

// Format renders t the way the plans API expects it.
func Format(t time.Time) string {
	return t.Format(planLayout)
}
