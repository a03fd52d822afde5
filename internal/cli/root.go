// Package cli wires the scout commands together with cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FranksOps/scout/internal/config"
	"github.com/FranksOps/scout/internal/logging"
	"github.com/FranksOps/scout/internal/pipeline"
)

// Exit codes returned by scout.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitNoProviders = 3
	ExitOutput      = 4
	ExitUnusable    = 5
)

// ExitError carries a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps err onto a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}
	var outErr *pipeline.OutputError
	if errors.As(err, &outErr) {
		return ExitOutput
	}
	return ExitFailure
}

// env lets tests resolve credentials without touching the process environment.
type env struct {
	getenv func(string) string
}

// NewRootCmd builds the scout command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(env{getenv: os.Getenv})
}

func newRootCmd(e env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scout",
		Short: "Keyword driven domain discovery for lead generation audits.",
		Long: `scout queries search providers for a list of keywords and writes the
deduplicated, validated set of domains they return. Each provider is rate
limited, retried with exponential backoff and capped by a per-run quota.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newDiscoverCmd(e))
	cmd.AddCommand(newHistoryCmd(e))

	return cmd
}

// Execute runs scout with os.Args and returns the exit code. SIGINT and
// SIGTERM cancel the run.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", logging.Redact(err.Error()))
		return ExitCode(err)
	}
	return ExitOK
}
