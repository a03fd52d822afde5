package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/scout/internal/config"
	"github.com/FranksOps/scout/internal/domain"
	"github.com/FranksOps/scout/internal/logging"
	"github.com/FranksOps/scout/internal/storage"
	"github.com/FranksOps/scout/internal/storage/csvbackend"
	"github.com/FranksOps/scout/internal/storage/jsonbackend"
	"github.com/FranksOps/scout/internal/storage/postgres"
	"github.com/FranksOps/scout/internal/storage/sqlite"
)

var errNoHistory = errors.New("no run history configured: set storage.backend")

// openHistory returns the configured backend, or nil when history is off.
func openHistory(ctx context.Context, sc config.StorageConfig) (storage.Backend, error) {
	switch sc.Backend {
	case "", "none":
		return nil, nil
	case "json":
		return jsonbackend.New(sc.DSN)
	case "csv":
		return csvbackend.New(sc.DSN)
	case "sqlite":
		return sqlite.New(sc.DSN)
	case "postgres":
		return postgres.New(ctx, sc.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", sc.Backend)
	}
}

type historyOptions struct {
	configPath string
	domain     string
	since      time.Duration
	limit      int
	offset     int
	format     string
}

func newHistoryCmd(_ env) *cobra.Command {
	var o historyOptions

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous discovery runs from the configured history backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "path to the discovery config YAML")
	f.StringVar(&o.domain, "domain", "", "only runs that discovered this domain")
	f.DurationVar(&o.since, "since", 0, "only runs collected within this window (e.g. 72h)")
	f.IntVar(&o.limit, "limit", 20, "maximum runs to list (0 for all)")
	f.IntVar(&o.offset, "offset", 0, "runs to skip, newest first")
	f.StringVar(&o.format, "format", "text", "output format: text or json")

	return cmd
}

func runHistory(ctx context.Context, w io.Writer, o historyOptions) error {
	if o.format != "text" && o.format != "json" {
		return &ExitError{Code: ExitConfig, Err: fmt.Errorf("unknown --format %q", o.format)}
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	backend, err := openHistory(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if backend == nil {
		return errNoHistory
	}
	defer backend.Close()

	filter := storage.Filter{Limit: o.limit, Offset: o.offset}
	if o.domain != "" {
		filter.Domain = domain.Normalize(o.domain)
	}
	if o.since > 0 {
		since := time.Now().Add(-o.since)
		filter.Since = &since
	}

	runs, err := backend.Query(ctx, filter)
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}

	if o.format == "json" {
		enc := json.NewEncoder(w)
		for _, r := range runs {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("encode run: %w", err)
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tCOLLECTED AT\tKEYWORDS\tDOMAINS\tOUTPUT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			r.ID, logging.CollectedAt(r.CollectedAt), len(r.Keywords), r.UniqueDomains, r.OutputPath)
	}
	return tw.Flush()
}
