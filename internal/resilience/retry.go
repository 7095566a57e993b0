package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Backoff returns the exponential backoff delay for a retry attempt.
// The base delay is doubled each attempt, capped at 30 seconds, then
// jittered by up to ±25%. A non-positive base delay yields no delay.
func Backoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	// Cap attempt to avoid overflow in the bit shift.
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	// The multiplication can still overflow for large base delays; treat
	// that the same as exceeding the cap.
	if backoff <= 0 || backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(backoff)/2)) - backoff/4
	return backoff + jitter
}

// Retry calls fn up to attempts times, sleeping an exponentially growing,
// jittered delay between tries. A nil retryable means every error is
// retryable; otherwise retries stop as soon as retryable returns false.
// Context cancellation aborts the sleep and returns ctx.Err().
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error, retryable func(error) bool) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := Backoff(baseDelay, attempt)
			slog.Debug("retrying after backoff",
				"attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
