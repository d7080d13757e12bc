package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Sleeper blocks for the given duration, honoring context cancellation.
// Injected so retry behavior can be tested without real sleeps.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ClockSleeper sleeps on the wall clock.
type ClockSleeper struct{}

// Sleep blocks for d or until ctx is cancelled, whichever comes first.
func (ClockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ErrRetriesExhausted is returned by Attempts.Backoff once the
// operation's retry budget is spent.
var ErrRetriesExhausted = errors.New("retry budget exhausted")

// Policy is a fixed-interval retry budget: a maximum number of attempts
// with a constant delay between them. The backend's rate limiting is
// fixed-window, so a constant interval fits it better than exponential
// growth would.
type Policy struct {
	// MaxAttempts is the total attempt budget per operation, first
	// attempt included. Default: 3.
	MaxAttempts int

	// Interval is the delay before each retry. Default: 30 seconds.
	Interval time.Duration

	// Sleeper performs the delays. Default: ClockSleeper.
	Sleeper Sleeper
}

// DefaultPolicy returns the standard per-device retry budget.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Interval:    30 * time.Second,
		Sleeper:     ClockSleeper{},
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 3
	}
	return p.MaxAttempts
}

func (p Policy) interval() time.Duration {
	if p.Interval <= 0 {
		return 30 * time.Second
	}
	return p.Interval
}

func (p Policy) sleeper() Sleeper {
	if p.Sleeper == nil {
		return ClockSleeper{}
	}
	return p.Sleeper
}

// Begin opens one operation's retry budget. The remaining-retry state
// lives in the backoff chain, so budgets of concurrent or successive
// operations never interfere.
func (p Policy) Begin() *Attempts {
	return &Attempts{
		bo:      backoff.WithMaxRetries(backoff.NewConstantBackOff(p.interval()), uint64(p.attempts()-1)),
		sleeper: p.sleeper(),
	}
}

// Attempts tracks one operation's remaining retries. Each Backoff or
// Again call spends one retry.
type Attempts struct {
	bo      backoff.BackOff
	sleeper Sleeper
}

// Backoff spends one retry and blocks for its interval. Returns
// ErrRetriesExhausted when the budget is gone, or the context's error
// when the wait is cancelled.
func (a *Attempts) Backoff(ctx context.Context) error {
	d := a.bo.NextBackOff()
	if d == backoff.Stop {
		return ErrRetriesExhausted
	}
	return a.sleeper.Sleep(ctx, d)
}

// Again spends one retry without blocking, for retries that should run
// immediately. Reports whether the budget had one left.
func (a *Attempts) Again() bool {
	return a.bo.NextBackOff() != backoff.Stop
}
