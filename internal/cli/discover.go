package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/scout/internal/config"
	"github.com/FranksOps/scout/internal/logging"
	"github.com/FranksOps/scout/internal/metrics"
	"github.com/FranksOps/scout/internal/pipeline"
	"github.com/FranksOps/scout/internal/provider"
	"github.com/FranksOps/scout/internal/report"
	"github.com/FranksOps/scout/internal/storage"
)

type discoverOptions struct {
	configPath   string
	outputPath   string
	provider     string
	maxResults   int
	dryRun       bool
	verbose      bool
	parallel     bool
	reportPath   string
	reportFormat string
	metricsPort  int
}

func newDiscoverCmd(e env) *cobra.Command {
	var o discoverOptions

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Query the configured providers and write the discovered domains.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.New(cmd.ErrOrStderr(), o.verbose)
			return runDiscover(cmd.Context(), cmd.OutOrStdout(), logger, e, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "path to the discovery config YAML")
	f.StringVar(&o.outputPath, "output", "", "path of the domains output file")
	f.StringVar(&o.provider, "provider", "all", "provider to use: google, duckduckgo or all")
	f.IntVar(&o.maxResults, "max-results", 100, "max results per keyword per provider")
	f.BoolVar(&o.dryRun, "dry-run", false, "validate config and credentials without running queries")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "enable debug logs")
	f.BoolVar(&o.parallel, "parallel", false, "run providers concurrently")
	f.StringVar(&o.reportPath, "report", "", "write the run report to this file")
	f.StringVar(&o.reportFormat, "report-format", "json", "report format: json, text or html")
	f.IntVar(&o.metricsPort, "metrics-port", 0, "expose Prometheus metrics on this port (0 disables)")

	return cmd
}

// providerNames maps the --provider flag onto config provider names.
func providerNames(flag string) ([]string, error) {
	switch flag {
	case "", "all":
		return config.ProviderOrder, nil
	case "google", config.GoogleCSE:
		return []string{config.GoogleCSE}, nil
	case config.DuckDuckGo:
		return []string{config.DuckDuckGo}, nil
	}
	return nil, fmt.Errorf("unknown provider %q (want google, duckduckgo or all)", flag)
}

func runDiscover(ctx context.Context, stdout io.Writer, logger *slog.Logger, e env, o discoverOptions) error {
	now := func() string { return logging.CollectedAt(time.Now()) }

	cfg, err := config.Load(o.configPath)
	if err != nil {
		logger.Error("config load failed", "error_code", logging.RedactErr(err), "collected_at", now())
		return err
	}

	names, err := providerNames(o.provider)
	if err != nil {
		return &ExitError{Code: ExitConfig, Err: err}
	}
	if o.maxResults < 1 {
		return &ExitError{Code: ExitConfig, Err: errors.New("--max-results must be at least 1")}
	}
	switch o.reportFormat {
	case "json", "text", "html":
	default:
		return &ExitError{Code: ExitConfig, Err: fmt.Errorf("unknown --report-format %q", o.reportFormat)}
	}

	selected := provider.Selected(cfg, names)
	if len(selected) == 0 {
		logger.Error("no providers enabled or selected", "collected_at", now())
		return &ExitError{Code: ExitNoProviders, Err: errors.New("no providers enabled or selected")}
	}

	if o.dryRun {
		return dryRun(cfg, selected, logger, e)
	}

	if o.outputPath == "" {
		return &ExitError{Code: ExitConfig, Err: errors.New("--output is required")}
	}
	if err := pipeline.EnsureWritable(o.outputPath); err != nil {
		logger.Error("output not writable", "error_code", logging.RedactErr(err), "collected_at", now())
		return err
	}
	if o.reportPath != "" {
		if err := pipeline.EnsureWritable(o.reportPath); err != nil {
			logger.Error("report not writable", "error_code", logging.RedactErr(err), "collected_at", now())
			return err
		}
	}

	if o.metricsPort > 0 {
		srv := metrics.Start(o.metricsPort, logger)
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				logger.Warn("metrics server shutdown failed", "err", err)
			}
		}()
	}

	providers, err := provider.Build(ctx, cfg, selected, provider.Options{
		Logger: logger,
		Getenv: e.getenv,
	})
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}

	res, err := pipeline.Run(ctx, cfg.Keywords, providers, o.maxResults, pipeline.Options{
		Logger:     logger,
		Parallel:   o.parallel,
		OutputPath: o.outputPath,
	})
	if err != nil {
		return err
	}
	report.Log(logger, res.Report)

	if o.reportPath != "" {
		if err := writeReport(o.reportPath, o.reportFormat, res.Report); err != nil {
			return err
		}
	}

	saveHistory(ctx, cfg, res, logger)

	fmt.Fprintf(stdout, "[discover] wrote %d domains to %s\n", len(res.Domains), o.outputPath)
	return nil
}

// dryRun checks every selected provider without issuing queries.
func dryRun(cfg config.Config, selected []string, logger *slog.Logger, e env) error {
	logger.Info("dry-run: validating providers", "collected_at", logging.CollectedAt(time.Now()))

	var unusable []string
	for _, name := range selected {
		if err := provider.Preflight(cfg, name, e.getenv); err != nil {
			logger.Error("provider unusable", "provider", name, "error_code", logging.RedactErr(err))
			unusable = append(unusable, name)
			continue
		}
		logger.Info("provider ready", "provider", name)
	}

	logger.Info("config valid", "keywords", len(cfg.Keywords), "providers", len(selected))
	if len(unusable) > 0 {
		return &ExitError{Code: ExitUnusable, Err: fmt.Errorf("providers unusable: %v", unusable)}
	}
	return nil
}

func writeReport(path, format string, r report.DiscoveryReport) error {
	f, err := os.Create(path)
	if err != nil {
		return &pipeline.OutputError{Path: path, Err: err}
	}
	if err := report.Write(f, format, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return &pipeline.OutputError{Path: path, Err: err}
	}
	return nil
}

// saveHistory records the run. The domain file is already written, so a
// failure here is only logged.
func saveHistory(ctx context.Context, cfg config.Config, res *pipeline.Result, logger *slog.Logger) {
	backend, err := openHistory(ctx, cfg.Storage)
	if err != nil {
		logger.Warn("run history unavailable", "backend", cfg.Storage.Backend, "error_code", logging.RedactErr(err))
		return
	}
	if backend == nil {
		return
	}
	defer backend.Close()

	rec := storage.FromReport(res.Report, cfg.Keywords, res.Domains)
	if err := backend.Save(ctx, rec); err != nil {
		logger.Warn("run history save failed", "backend", cfg.Storage.Backend, "run_id", rec.ID, "error_code", logging.RedactErr(err))
		return
	}
	logger.Debug("run history saved", "backend", cfg.Storage.Backend, "run_id", rec.ID)
}
