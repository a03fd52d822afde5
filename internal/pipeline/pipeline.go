// Package pipeline drives a discovery run: every keyword through every
// enabled provider, with the results folded into one validated domain set.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/scout/internal/domain"
	"github.com/FranksOps/scout/internal/logging"
	"github.com/FranksOps/scout/internal/metrics"
	"github.com/FranksOps/scout/internal/provider"
	"github.com/FranksOps/scout/internal/report"
)

// OutputError means the domain list cannot be written to Path.
type OutputError struct {
	Path string
	Err  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output %s not writable: %v", e.Path, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

// EnsureWritable creates the parent directory of path and proves it accepts
// new files. Run it before spending any provider quota.
func EnsureWritable(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &OutputError{Path: path, Err: err}
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return &OutputError{Path: path, Err: fmt.Errorf("is a directory")}
	}
	probe, err := os.CreateTemp(dir, ".scout-probe-*")
	if err != nil {
		return &OutputError{Path: path, Err: err}
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}

// WriteDomains writes one domain per line.
func WriteDomains(path string, domains []string) error {
	var b strings.Builder
	for _, d := range domains {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return &OutputError{Path: path, Err: err}
	}
	return nil
}

// Options tunes a run.
type Options struct {
	Logger *slog.Logger
	// Parallel gives each provider its own goroutine. Requests of a single
	// provider stay serialized.
	Parallel bool
	// OutputPath receives the sorted domain list. Empty skips the write.
	OutputPath string
}

// Result is the outcome of a run.
type Result struct {
	Report  report.DiscoveryReport
	Domains []string
}

type run struct {
	logger     *slog.Logger
	maxResults int

	mu    sync.Mutex
	set   domain.Set
	usage map[string]report.Usage
}

// Run queries every provider for every keyword and returns the merged,
// sorted domain list with its report. Provider failures never stop the run;
// only cancellation or an output write error do.
func Run(ctx context.Context, keywords []string, providers []provider.Provider, maxResults int, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	started := time.Now()

	r := &run{
		logger:     logger,
		maxResults: maxResults,
		set:        make(domain.Set),
		usage:      make(map[string]report.Usage, len(providers)),
	}
	for _, p := range providers {
		r.usage[p.Name()] = report.Usage{QueriesMade: p.QueriesMade()}
	}

	if opts.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for _, p := range providers {
			g.Go(func() error {
				for _, kw := range keywords {
					if err := gctx.Err(); err != nil {
						return err
					}
					r.step(gctx, p, kw)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("discovery interrupted: %w", err)
		}
	} else {
		for _, kw := range keywords {
			for _, p := range providers {
				if err := ctx.Err(); err != nil {
					return nil, fmt.Errorf("discovery interrupted: %w", err)
				}
				r.step(ctx, p, kw)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discovery interrupted: %w", err)
	}

	domains := r.set.Sorted()
	if opts.OutputPath != "" {
		if err := WriteDomains(opts.OutputPath, domains); err != nil {
			return nil, err
		}
	}

	return &Result{
		Report:  report.Build(len(keywords), len(domains), r.usage, opts.OutputPath, started),
		Domains: domains,
	}, nil
}

// step runs one keyword through one provider.
func (r *run) step(ctx context.Context, p provider.Provider, keyword string) {
	if !p.CanContinue() {
		r.logger.Info("quota reached; skipping",
			"provider", p.Name(),
			"keyword", keyword,
			"collected_at", logging.CollectedAt(time.Now()))
		return
	}

	found := domain.Collect(p.Query(ctx, keyword, r.maxResults))
	metrics.RecordDomains(p.Name(), len(found))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.set.Merge(found)
	u := r.usage[p.Name()]
	u.QueriesMade = p.QueriesMade()
	u.Domains += len(found)
	r.usage[p.Name()] = u
}
