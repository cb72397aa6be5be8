// Package retry runs operations with a bounded number of attempts and a
// linear backoff between them.
package retry

import (
	"context"
	"time"

	"github.com/use-agent/pricewatch/models"
)

// Config controls retry behavior.
type Config struct {
	// Attempts is the total number of attempts including the first one.
	// Values below 1 are treated as 1.
	Attempts int

	// Backoff is the linear step: the wait after attempt n is n*Backoff.
	Backoff time.Duration

	// ShouldRetry overrides IsTransient.
	ShouldRetry func(err error) bool

	// OnRetry is called before each backoff wait with the attempt that
	// just failed (1-based).
	OnRetry func(attempt int, err error)
}

// Delay returns the wait after the given failed attempt (1-based).
func Delay(attempt int, step time.Duration) time.Duration {
	if attempt < 1 {
		return 0
	}
	return time.Duration(attempt) * step
}

// IsTransient reports whether err is a navigation-level failure worth
// another attempt.
func IsTransient(err error) bool {
	return models.IsCode(err, models.ErrCodeTimeout) ||
		models.IsCode(err, models.ErrCodeNavigation) ||
		models.IsCode(err, models.ErrCodeAPI)
}

// Do executes fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx ends. The last error is returned.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for operations that return a value.
func DoVal[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(err) || attempt == attempts {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		timer := time.NewTimer(Delay(attempt, cfg.Backoff))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}
