package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"
	"github.com/zoobzio/capitan"

	"github.com/roach88/dirtycheck/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dirtycheck CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dirtycheck",
		Short: "dirtycheck - pull-based change detection",
		Long: `Run, validate and inspect change-detection scenarios.

A scenario builds a tree of nodes, registers watches with scripted
listener effects, runs digests and asserts on what fired.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// newLogger builds the command logger. Debug output is enabled by --verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

var (
	signalLogger atomic.Pointer[slog.Logger]
	hookOnce     sync.Once
)

// logDigestSignals routes the engine's digest signals to logger. Signals
// are global, so the hooks are installed once and follow the most recent
// logger.
func logDigestSignals(logger *slog.Logger) {
	signalLogger.Store(logger)
	hookOnce.Do(func() {
		capitan.Hook(engine.DigestAborted, func(_ context.Context, e *capitan.Event) {
			runID, _ := engine.KeyRunID.From(e)
			iterations, _ := engine.KeyIterations.From(e)
			signalLogger.Load().Warn("digest aborted", "run_id", runID, "iterations", iterations)
		})
		capitan.Hook(engine.ListenerFailed, func(_ context.Context, e *capitan.Event) {
			watch, _ := engine.KeyWatch.From(e)
			node, _ := engine.KeyNode.From(e)
			msg, _ := engine.KeyError.From(e)
			signalLogger.Load().Debug("listener failed", "watch", watch, "node", node, "error", msg)
		})
	})
}
