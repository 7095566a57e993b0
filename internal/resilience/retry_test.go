package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff_ZeroForFirstAttempt(t *testing.T) {
	if got := Backoff(time.Second, 0); got != 0 {
		t.Fatalf("Backoff(1s, 0) = %v, want 0", got)
	}
	if got := Backoff(time.Second, -1); got != 0 {
		t.Fatalf("Backoff(1s, -1) = %v, want 0", got)
	}
}

func TestBackoff_NonPositiveBaseDelay(t *testing.T) {
	if got := Backoff(0, 3); got != 0 {
		t.Fatalf("Backoff(0, 3) = %v, want 0", got)
	}
	if got := Backoff(-time.Second, 3); got != 0 {
		t.Fatalf("Backoff(-1s, 3) = %v, want 0", got)
	}
}

func TestBackoff_OverflowingBaseDelayIsCapped(t *testing.T) {
	// 1h << 30 overflows int64; the result must fall back to the cap
	// instead of panicking on a negative jitter bound.
	got := Backoff(time.Hour, 30)
	if got <= 0 || got > 30*time.Second*5/4 {
		t.Fatalf("Backoff(1h, 30) = %v, want within (0, 37.5s]", got)
	}
}

func TestBackoff_GrowsExponentially(t *testing.T) {
	base := 100 * time.Millisecond
	// With ±25% jitter, attempt n is bounded by [0.75, 1.25] × 2^n × base.
	for attempt := 1; attempt <= 4; attempt++ {
		raw := base * time.Duration(1<<uint(attempt))
		got := Backoff(base, attempt)
		lo, hi := raw*3/4, raw*5/4
		if got < lo || got > hi {
			t.Fatalf("Backoff(attempt=%d) = %v, want within [%v, %v]", attempt, got, lo, hi)
		}
	}
}

func TestBackoff_CappedAt30Seconds(t *testing.T) {
	got := Backoff(time.Second, 20)
	if got > 30*time.Second*5/4 {
		t.Fatalf("Backoff = %v, want ≤ 37.5s (30s cap + jitter)", got)
	}
}

func TestRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("fn called %d times, want 1", calls)
	}
}

func TestRetry_EventualSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("fn called %d times, want 3", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("always fails")
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return sentinel
	}, nil)
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want wrapped sentinel", err)
	}
	if calls != 3 {
		t.Fatalf("fn called %d times, want 3", calls)
	}
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	fatal := errors.New("bad request")
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return fatal
	}, func(err error) bool { return !errors.Is(err, fatal) })
	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v, want fatal", err)
	}
	if calls != 1 {
		t.Fatalf("fn called %d times, want 1", calls)
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- Retry(ctx, 5, time.Hour, func() error {
			calls++
			return errors.New("transient")
		}, nil)
	}()

	// Let the first attempt run, then cancel during the long sleep.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Retry did not return after context cancellation")
	}
	if calls != 1 {
		t.Fatalf("fn called %d times, want 1", calls)
	}
}
