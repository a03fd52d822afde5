package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/FranksOps/scout/internal/config"
	"github.com/FranksOps/scout/internal/fetch"
	"github.com/FranksOps/scout/internal/logging"
	"github.com/FranksOps/scout/internal/metrics"
	"github.com/FranksOps/scout/pkg/backoff"
	"github.com/FranksOps/scout/pkg/httpclient"
	"github.com/FranksOps/scout/pkg/ratelimit"
)

// Provider is a search backend that turns a keyword into result URLs.
// Implementations are GoogleCSE and DuckDuckGo.
type Provider interface {
	Name() string
	// CanContinue is false once the per-run quota is spent.
	CanContinue() bool
	// Query returns at most maxResults URLs. Failures are logged and yield
	// an empty slice.
	Query(ctx context.Context, keyword string, maxResults int) []string
	// QueriesMade never decreases.
	QueriesMade() int
}

// Options carries collaborators shared by every provider in a run.
type Options struct {
	Logger *slog.Logger
	// Sleep backs the rate limiter, crawl gate and backoff waits.
	Sleep ratelimit.SleepFunc
	// Getenv resolves credential variables. Defaults to os.Getenv.
	Getenv func(string) string
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Sleep == nil {
		o.Sleep = ratelimit.Sleep
	}
	if o.Getenv == nil {
		o.Getenv = os.Getenv
	}
	return o
}

// CredentialError reports provider credentials missing from the environment.
type CredentialError struct {
	Provider string
	Missing  []string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: missing credentials (%s)", e.Provider, strings.Join(e.Missing, ", "))
}

// TransientError is a failure worth retrying: timeouts, connection errors,
// 429, 503 and challenge pages.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("status %d", e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// TerminalError ends the current query without retry.
type TerminalError struct {
	Status int
	Err    error
}

func (e *TerminalError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("status %d", e.Status)
}

func (e *TerminalError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// classify maps a fetch outcome onto the retry taxonomy. A nil result means
// the response is usable.
func classify(resp *fetch.Response, err error) error {
	if err != nil {
		if httpclient.IsConnectionError(err) {
			return &TransientError{Err: err}
		}
		return &TerminalError{Err: err}
	}
	if resp.Challenge != "" {
		return &TransientError{Status: resp.StatusCode, Err: fmt.Errorf("%s challenge page", resp.Challenge)}
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return &TransientError{Status: resp.StatusCode}
	default:
		return &TerminalError{Status: resp.StatusCode}
	}
}

// errorCode is the value logged under error_code.
func errorCode(err error) any {
	var ex *backoff.ExhaustedError
	if errors.As(err, &ex) {
		err = ex.Err
	}
	var t *TransientError
	if errors.As(err, &t) && t.Status != 0 && t.Err == nil {
		return t.Status
	}
	var term *TerminalError
	if errors.As(err, &term) && term.Status != 0 && term.Err == nil {
		return term.Status
	}
	return logging.RedactErr(err)
}

// base holds the per-provider pacing and quota state.
type base struct {
	name    string
	limiter *ratelimit.Limiter
	policy  backoff.Policy
	quota   int
	sleep   ratelimit.SleepFunc
	logger  *slog.Logger

	mu      sync.Mutex
	queries int
}

func newBase(name string, cfg config.ProviderConfig, opts Options) *base {
	quota := cfg.DailyQuotaThreshold
	if quota < 0 {
		quota = config.Unlimited
	}
	return &base{
		name:    name,
		limiter: ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.JitterPercent).WithSleep(opts.Sleep),
		policy:  backoff.FromSeconds(cfg.BackoffBaseSeconds, cfg.BackoffMaxSeconds, cfg.RetryAttempts),
		quota:   quota,
		sleep:   opts.Sleep,
		logger:  opts.Logger.With("provider", name),
	}
}

func (b *base) Name() string { return b.name }

func (b *base) CanContinue() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries < b.quota
}

func (b *base) QueriesMade() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries
}

// charge spends one unit of quota. It returns false, without counting, when
// the quota is already spent.
func (b *base) charge() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.queries >= b.quota {
		return b.queries, false
	}
	b.queries++
	metrics.RecordQuery(b.name)
	return b.queries, true
}

// retry runs op under the provider's backoff policy.
func (b *base) retry(ctx context.Context, retryable func(error) bool, op func() error) error {
	return b.policy.Do(ctx, b.sleep, retryable, func(attempt int) error {
		if attempt > 1 {
			metrics.RecordRetry(b.name)
		}
		return op()
	})
}

func (b *base) delayUsed() float64 {
	return b.limiter.Interval().Seconds()
}
