// Package backoff provides interval growth policies and retry helpers.
package backoff

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Outcome describes what triggered an interval recomputation.
type Outcome int

const (
	// Auto means a scheduled tick fired on its own.
	Auto Outcome = iota
	// Manual means the caller forced a refresh; the interval resets to base.
	Manual
)

// Policy computes the next wait interval from the previous one.
type Policy struct {
	Base       time.Duration // Starting interval
	Ceiling    time.Duration // Upper bound for growth
	Multiplier float64       // Growth factor per automatic tick
	Jitter     float64       // Random fraction (0-1) added/subtracted
}

// DefaultPolicy returns the poll policy used by the browser model:
// 10 second base growing up to 5 minutes.
func DefaultPolicy() Policy {
	return Policy{
		Base:       10 * time.Second,
		Ceiling:    5 * time.Minute,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

// Next returns the interval that follows prev for the given outcome.
// A Manual outcome always resets to the base interval. An Auto outcome
// grows the interval by the multiplier, bounded by the ceiling.
// Next is a pure function apart from jitter.
func (p Policy) Next(prev time.Duration, outcome Outcome) time.Duration {
	if outcome == Manual || prev <= 0 {
		return p.Base
	}

	next := time.Duration(float64(prev) * p.Multiplier)
	if p.Multiplier <= 1 {
		next = prev
	}
	if next > p.Ceiling {
		next = p.Ceiling
	}

	if p.Jitter > 0 {
		j := float64(next) * p.Jitter * (rand.Float64()*2 - 1)
		next += time.Duration(j)
		if next < p.Base {
			next = p.Base
		}
		if next > p.Ceiling {
			next = p.Ceiling
		}
	}

	return next
}

// retryableError marks an error as worth retrying.
type retryableError struct {
	err error
}

func (e retryableError) Error() string { return e.err.Error() }

func (e retryableError) Unwrap() error { return e.err }

// Retryable wraps err so Do will retry it. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retryableError{err: err}
}

// IsRetryable reports whether err was wrapped by Retryable.
func IsRetryable(err error) bool {
	var re retryableError
	return errors.As(err, &re)
}

// RetryConfig bounds a retry loop.
type RetryConfig struct {
	MaxAttempts int // 0 means a single attempt
	Policy      Policy
}

// DefaultRetryConfig returns the retry settings used by the HTTP clients.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Policy: Policy{
			Base:       100 * time.Millisecond,
			Ceiling:    10 * time.Second,
			Multiplier: 2.0,
			Jitter:     0.1,
		},
	}
}

// Do runs fn, retrying errors marked Retryable with growing waits.
// Non-retryable errors and context cancellation end the loop at once.
func Do(ctx context.Context, cfg RetryConfig, fn func() error) error {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	wait := time.Duration(0)

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == attempts {
			return lastErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait = cfg.Policy.Next(wait, Auto)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return lastErr
}

// DoWithResult runs fn with the same retry rules as Do and returns its value.
func DoWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		r, err := fn()
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}
