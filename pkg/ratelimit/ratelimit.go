package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SleepFunc suspends the caller for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc. It returns ctx.Err() if the context ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Limiter paces a single caller to a fixed request rate, perturbing each
// pause by a uniform random jitter. It is not meant to be shared between
// goroutines that expect independent pacing; one limiter serializes one
// request stream.
type Limiter struct {
	interval time.Duration
	jitter   float64 // fraction of interval, 0.0 to 1.0

	mu    sync.Mutex
	rng   *rand.Rand
	sleep SleepFunc
}

// NewLimiter creates a limiter for rps requests per second with a jitter of
// jitterPercent (0-100) of the interval in either direction.
// If rps is <= 0, the limiter does not block.
func NewLimiter(rps float64, jitterPercent float64) *Limiter {
	if jitterPercent < 0 {
		jitterPercent = 0
	} else if jitterPercent > 100 {
		jitterPercent = 100
	}

	l := &Limiter{
		jitter: jitterPercent / 100,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  Sleep,
	}
	if rps > 0 {
		l.interval = time.Duration(float64(time.Second) / rps)
	}
	return l
}

// WithSleep replaces the function used to suspend the caller. Tests use it to
// observe delays without waiting.
func (l *Limiter) WithSleep(fn SleepFunc) *Limiter {
	if fn != nil {
		l.sleep = fn
	}
	return l
}

// Interval returns the nominal pause between requests, zero when unlimited.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Next computes the next jittered delay without sleeping.
func (l *Limiter) Next() time.Duration {
	if l.interval <= 0 {
		return 0
	}
	if l.jitter == 0 {
		return l.interval
	}

	l.mu.Lock()
	factor := l.rng.Float64()*2 - 1.0 // -1.0 to 1.0
	l.mu.Unlock()

	delay := l.interval + time.Duration(float64(l.interval)*l.jitter*factor)
	if delay < 0 {
		return 0
	}
	return delay
}

// Wait blocks for roughly one interval, or until the context is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	delay := l.Next()
	if delay <= 0 {
		return nil
	}
	return l.sleep(ctx, delay)
}
