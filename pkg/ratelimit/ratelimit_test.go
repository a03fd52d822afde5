package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_NoBlockWhenZeroRPS(t *testing.T) {
	calls := 0
	limiter := NewLimiter(0, 50).WithSleep(func(ctx context.Context, d time.Duration) error {
		calls++
		return nil
	})

	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 0 {
		t.Errorf("limiter with 0 RPS should not sleep, slept %d times", calls)
	}
	if limiter.Interval() != 0 {
		t.Errorf("expected zero interval, got %v", limiter.Interval())
	}
}

func TestLimiter_WaitWithoutJitter(t *testing.T) {
	var slept time.Duration
	limiter := NewLimiter(2, 0).WithSleep(func(ctx context.Context, d time.Duration) error {
		slept = d
		return nil
	})

	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slept != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", slept)
	}
}

func TestLimiter_JitterBounds(t *testing.T) {
	limiter := NewLimiter(10, 20) // 100ms +/- 20ms

	for i := 0; i < 500; i++ {
		d := limiter.Next()
		if d < 80*time.Millisecond || d > 120*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", d)
		}
	}
}

func TestLimiter_RealWait(t *testing.T) {
	limiter := NewLimiter(20, 0) // 50ms

	start := time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if took := time.Since(start); took < 40*time.Millisecond {
		t.Errorf("expected to wait about 50ms, took %v", took)
	}
}

func TestLimiter_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(0.5, 0) // 2 second interval

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatalf("expected context canceled error")
	}
}

func TestSleep_ZeroDuration(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
