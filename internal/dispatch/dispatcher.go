// Package dispatch submits scheduled software-update plans to a batch
// of devices, one at a time, with bounded per-device retries.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/patchpilot/patchpilot/internal/jamf"
	"github.com/patchpilot/patchpilot/internal/resilience"
)

const tracerName = "github.com/patchpilot/patchpilot/internal/dispatch"

// Status is the per-device dispatch state. Terminal states are
// StatusSucceeded and StatusFailed; Dispatch never returns a device in
// any other state.
type Status int

const (
	StatusPending Status = iota
	StatusAttempting
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAttempting:
		return "attempting"
	case StatusSucceeded:
		return "succeeded"
	default:
		return "failed"
	}
}

// Backend is the slice of the backend client the dispatcher needs.
type Backend interface {
	CreateUpdatePlan(ctx context.Context, deviceID int, when time.Time) error
	ValidateToken(ctx context.Context) bool
	AcquireToken(ctx context.Context) error
}

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	// Backend submits plans and manages the token (required).
	Backend Backend

	// Retry is the per-device retry budget. Zero value means 3 attempts
	// with a 30-second interval.
	Retry resilience.Policy

	// Pacing is the delay inserted between devices, not after the last.
	// It keeps the sustained request rate below the backend's limit
	// instead of only reacting to 429s. Default: 5 seconds.
	Pacing time.Duration

	// Sleeper performs the pacing delays; also used by Retry when it
	// has none of its own. Default: ClockSleeper.
	Sleeper resilience.Sleeper

	// Logger for dispatch operations.
	Logger zerolog.Logger
}

// DeviceResult is the terminal outcome for one device.
type DeviceResult struct {
	DeviceID int
	Status   Status
	Attempts int

	// Err holds the last error for failed devices.
	Err error
}

// Outcome is the accounting of one dispatch run. Succeeded+Failed ==
// Total always holds on return.
type Outcome struct {
	Succeeded int
	Failed    int
	Total     int
	Results   []DeviceResult
}

// Dispatcher submits one update plan per device, sequentially.
type Dispatcher struct {
	backend Backend
	retry   resilience.Policy
	pacing  time.Duration
	sleeper resilience.Sleeper
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	sleeper := cfg.Sleeper
	if sleeper == nil {
		sleeper = resilience.ClockSleeper{}
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 3
	}
	if retry.Interval == 0 {
		retry.Interval = 30 * time.Second
	}
	if retry.Sleeper == nil {
		retry.Sleeper = sleeper
	}

	pacing := cfg.Pacing
	if pacing == 0 {
		pacing = 5 * time.Second
	}

	return &Dispatcher{
		backend: cfg.Backend,
		retry:   retry,
		pacing:  pacing,
		sleeper: sleeper,
		logger:  cfg.Logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// Dispatch submits an update plan for every device id, in order, with
// the given schedule time. Per-device failures never abort the batch;
// they are counted and reported in the outcome. A cancelled context
// marks the remaining devices failed and returns with the accounting
// intact.
func (d *Dispatcher) Dispatch(ctx context.Context, deviceIDs []int, when time.Time) Outcome {
	ctx, span := d.tracer.Start(ctx, "dispatch.batch",
		trace.WithAttributes(
			attribute.Int("devices", len(deviceIDs)),
			attribute.String("schedule_time", when.Format("2006-01-02T15:04:05")),
		))
	defer span.End()

	outcome := Outcome{
		Total:   len(deviceIDs),
		Results: make([]DeviceResult, 0, len(deviceIDs)),
	}

	// One validate/refresh round-trip up front, so a token that is
	// already known-stale does not burn the first device's attempts.
	if !d.backend.ValidateToken(ctx) {
		d.logger.Info().Msg("token stale before batch, refreshing")
		if err := d.backend.AcquireToken(ctx); err != nil {
			d.logger.Warn().Err(err).Msg("pre-batch token refresh failed")
		}
	}

	for i, deviceID := range deviceIDs {
		if i > 0 {
			if err := d.sleeper.Sleep(ctx, d.pacing); err != nil {
				// Cancelled mid-batch: everything not yet attempted
				// fails, the accounting stays complete.
				for _, rest := range deviceIDs[i:] {
					outcome.Results = append(outcome.Results, DeviceResult{
						DeviceID: rest,
						Status:   StatusFailed,
						Err:      err,
					})
					outcome.Failed++
				}
				span.SetAttributes(attribute.Bool("cancelled", true))
				return outcome
			}
		}

		result := d.dispatchDevice(ctx, deviceID, when)
		if result.Status == StatusSucceeded {
			outcome.Succeeded++
		} else {
			outcome.Failed++
		}
		outcome.Results = append(outcome.Results, result)
	}

	span.SetAttributes(
		attribute.Int("succeeded", outcome.Succeeded),
		attribute.Int("failed", outcome.Failed),
	)
	d.logger.Info().
		Int("succeeded", outcome.Succeeded).
		Int("failed", outcome.Failed).
		Int("total", outcome.Total).
		Msg("dispatch finished")
	return outcome
}

// dispatchDevice runs the per-device attempt loop: up to the retry
// budget, with a fixed backoff on 429 and a token refresh on 401. Any
// other error is terminal on the first occurrence.
func (d *Dispatcher) dispatchDevice(ctx context.Context, deviceID int, when time.Time) DeviceResult {
	result := DeviceResult{DeviceID: deviceID, Status: StatusAttempting}
	log := d.logger.With().Int("device_id", deviceID).Logger()
	retries := d.retry.Begin()

	for {
		result.Attempts++

		err := d.backend.CreateUpdatePlan(ctx, deviceID, when)
		if err == nil {
			result.Status = StatusSucceeded
			log.Info().Int("attempts", result.Attempts).Msg("update plan scheduled")
			return result
		}
		result.Err = err

		switch {
		case jamf.IsAuthKind(err, jamf.RateLimited):
			log.Warn().Int("attempt", result.Attempts).Msg("rate limited")
			waitErr := retries.Backoff(ctx)
			if waitErr == nil {
				continue
			}
			if !errors.Is(waitErr, resilience.ErrRetriesExhausted) {
				// Cancelled mid-backoff; the 429 is stale, report why
				// the wait ended instead.
				result.Err = waitErr
			}

		case jamf.IsAuthKind(err, jamf.Unauthorized):
			if retries.Again() {
				log.Warn().Int("attempt", result.Attempts).Msg("token rejected, refreshing")
				if refreshErr := d.backend.AcquireToken(ctx); refreshErr != nil {
					log.Warn().Err(refreshErr).Msg("token refresh failed")
				}
				continue
			}

		default:
			// Non-auth, non-rate-limit: no retry would change the answer.
		}

		result.Status = StatusFailed
		log.Error().Err(result.Err).Int("attempts", result.Attempts).Msg("update plan failed")
		return result
	}
}

// ErrCancelled reports whether a device failed due to context
// cancellation rather than a backend response.
func ErrCancelled(r DeviceResult) bool {
	return r.Err != nil && (errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded))
}
