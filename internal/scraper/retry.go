package scraper

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy wraps a fallible operation with bounded retries and
// exponential backoff. Delays happen only between attempts: none before the
// first, none after the last.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy is the policy used throughout: 3 attempts with waits of
// 2s then 4s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
}

// Backoff returns the wait after a failed attempt (1-based):
// BaseDelay * 2^(attempt-1).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay * (1 << uint(attempt-1))
}

// Run invokes op up to MaxAttempts times. Attempts are independent; only the
// last error is reported. Context cancellation is honored between attempts.
func Run[T any](ctx context.Context, p RetryPolicy, logger *slog.Logger, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		wait := p.Backoff(attempt)
		if logger != nil {
			logger.Warn("attempt failed, backing off",
				"attempt", attempt,
				"max_attempts", attempts,
				"backoff_ms", wait.Milliseconds(),
				"error", err)
		}

		select {
		case <-ctx.Done():
			return zero, lastErr
		case <-time.After(wait):
		}
	}

	return zero, lastErr
}
