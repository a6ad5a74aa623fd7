package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// backoffUnit is the delay before the first retry.
var backoffUnit = time.Second

// IsRetryable checks if an error is worth retrying. Cancellation and
// deadline errors are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * backoffUnit
	if base > 30*backoffUnit {
		base = 30 * backoffUnit
	}
	if base <= 1 {
		return base
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// withRetry calls fn up to MaxRetries times, sleeping Backoff between
// retryable failures.
func withRetry(ctx context.Context, fn func() error, onRetry func(attempt int, err error)) error {
	var lastErr error
	for attempt := range MaxRetries {
		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) || attempt == MaxRetries-1 {
			break
		}
		if onRetry != nil {
			onRetry(attempt, lastErr)
		}
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
