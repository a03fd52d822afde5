// Package backoff computes capped exponential retry delays and drives bounded
// retry loops over them.
package backoff

import (
	"context"
	"fmt"
	"time"

	"github.com/FranksOps/scout/pkg/ratelimit"
)

// Policy describes a doubling retry schedule.
type Policy struct {
	Base     time.Duration
	Max      time.Duration
	Attempts int
}

// FromSeconds builds a Policy from second-based configuration values.
func FromSeconds(base, max float64, attempts int) Policy {
	return Policy{
		Base:     time.Duration(base * float64(time.Second)),
		Max:      time.Duration(max * float64(time.Second)),
		Attempts: attempts,
	}
}

// Delays returns Attempts-1 waits: Base, then doubling, each capped at Max.
// The first attempt never waits, so there is one fewer delay than attempts.
func (p Policy) Delays() []time.Duration {
	n := p.Attempts - 1
	if n <= 0 {
		return nil
	}
	delays := make([]time.Duration, 0, n)
	cur := p.Base
	for i := 0; i < n; i++ {
		delays = append(delays, cur)
		cur *= 2
		if p.Max > 0 && cur > p.Max {
			cur = p.Max
		}
	}
	return delays
}

// ExhaustedError is returned by Do when every attempt failed with a
// retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do calls op until it succeeds, returns a non-retryable error, or the delay
// sequence runs out. attempt is 1-indexed. A nil sleep uses ratelimit.Sleep.
func (p Policy) Do(ctx context.Context, sleep ratelimit.SleepFunc, retryable func(error) bool, op func(attempt int) error) error {
	if sleep == nil {
		sleep = ratelimit.Sleep
	}
	delays := p.Delays()

	var lastErr error
	for attempt := 1; attempt <= len(delays)+1; attempt++ {
		lastErr = op(attempt)
		if lastErr == nil {
			return nil
		}
		if retryable == nil || !retryable(lastErr) {
			return lastErr
		}
		if attempt > len(delays) {
			break
		}
		if err := sleep(ctx, delays[attempt-1]); err != nil {
			return fmt.Errorf("backoff sleep: %w", err)
		}
	}
	return &ExhaustedError{Attempts: len(delays) + 1, Err: lastErr}
}
