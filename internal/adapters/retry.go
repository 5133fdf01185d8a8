package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/canonica-labs/semgate/internal/errors"
)

// RetryConfig configures the bounded retry loop used for health-check
// probing. Adapter construction is not retried. It never governs query
// Execute — a connection failure there evicts the cached adapter and
// surfaces immediately rather than masking it behind a retry.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the retry defaults used when probing health.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryResult is the explicit record of a retry loop: every caller sees
// exactly how many attempts ran and what each one returned, rather than a
// single collapsed error.
type RetryResult struct {
	Attempts  int
	LastError error
	Errors    []error
	Success   bool
}

func (r RetryResult) String() string {
	if r.Success {
		if r.Attempts == 1 {
			return "succeeded on first attempt"
		}
		return fmt.Sprintf("succeeded after %d attempts", r.Attempts)
	}
	return fmt.Sprintf("failed after %d attempts: %v", r.Attempts, r.LastError)
}

// RetryableError wraps a failed RetryResult so a caller's errors.Is/As
// chain can still reach the last underlying error.
type RetryableError struct {
	Result RetryResult
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Result.Attempts, e.Result.LastError)
}

func (e *RetryableError) Unwrap() error { return e.Result.LastError }

// IsRetryable reports whether err is the kind of transient failure worth
// retrying: a connection error or a timeout. Auth, validation, and query
// errors are never retried — retrying those would just repeat a failure
// that a second attempt cannot fix.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return false
	}
	kind, ok := errors.KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case errors.KindConnectionError, errors.KindTimeout:
		return true
	default:
		return false
	}
}

// ExecuteWithRetry runs fn up to config.MaxAttempts times with exponential
// backoff, stopping as soon as fn succeeds, the context is done, or an
// error comes back that IsRetryable rejects. Used by status.Probe's health
// checks (the registry's construct-on-first-use path does not retry), where a
// source that isn't reachable yet (still booting, DNS not yet propagated)
// shouldn't fail a readiness check on the first attempt.
func ExecuteWithRetry(ctx context.Context, config RetryConfig, fn func() error) RetryResult {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}

	result := RetryResult{Errors: make([]error, 0, config.MaxAttempts)}
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			result.Errors = append(result.Errors, ctx.Err())
			return result
		}

		err := fn()
		if err == nil {
			result.Success = true
			return result
		}

		result.LastError = err
		result.Errors = append(result.Errors, err)

		if !IsRetryable(err) {
			return result
		}

		if attempt < config.MaxAttempts {
			select {
			case <-ctx.Done():
				result.LastError = ctx.Err()
				result.Errors = append(result.Errors, ctx.Err())
				return result
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * config.BackoffMultiplier)
				if delay > config.MaxDelay {
					delay = config.MaxDelay
				}
			}
		}
	}

	return result
}
