package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dirtycheck/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - show a single run
	Watch    string // optional - filter firings to one watch
}

// RunTrace is one recorded digest with its firings and failures.
type RunTrace struct {
	Run      store.Run               `json:"run"`
	Firings  []store.Firing          `json:"firings"`
	Failures []store.ListenerFailure `json:"failures"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Runs  []RunTrace `json:"runs"`
	Stats TraceStats `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Runs     int `json:"runs"`
	Aborted  int `json:"aborted"`
	Firings  int `json:"firings"`
	Failures int `json:"failures"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded digests",
		Long: `Show digests recorded by "dirtycheck run --db".

For each run the output lists the listener firings in sequence order,
with the old and new values each listener saw, and the listener
failures the digest recovered from.

Examples:
  dirtycheck trace --db ./trace.db
  dirtycheck trace --db ./trace.db --run change_chain-1
  dirtycheck trace --db ./trace.db --watch name --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runTrace(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show only this run")
	cmd.Flags().StringVar(&opts.Watch, "watch", "", "show only firings of this watch")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	// store.Open would create a missing database.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var runs []store.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, store.ErrNotFound) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []store.Run{run}
	} else {
		runs, err = st.ReadRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
	}

	result := TraceResult{Runs: make([]RunTrace, 0, len(runs))}
	for _, run := range runs {
		firings, err := st.ReadFirings(ctx, store.FiringFilter{RunIDs: []string{run.RunID}, Watch: opts.Watch})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read firings", err)
		}
		failures, err := st.ReadListenerFailures(ctx, run.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read listener failures", err)
		}
		if firings == nil {
			firings = []store.Firing{}
		}
		if failures == nil {
			failures = []store.ListenerFailure{}
		}

		result.Runs = append(result.Runs, RunTrace{Run: run, Firings: firings, Failures: failures})
		result.Stats.Runs++
		result.Stats.Firings += len(firings)
		result.Stats.Failures += len(failures)
		if run.Outcome == "aborted" {
			result.Stats.Aborted++
		}
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}
	return outputTraceText(cmd.OutOrStdout(), result)
}

func outputTraceText(w io.Writer, result TraceResult) error {
	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	for _, rt := range result.Runs {
		run := rt.Run
		outcome := run.Outcome
		if outcome == "" {
			outcome = "unfinished"
		}
		fmt.Fprintf(w, "Run %s (root %s): %s after %d iteration(s), %d fired, %s\n",
			run.RunID, run.Root, outcome, run.Iterations, run.Fired, run.Duration)
		if run.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", run.Error)
		}
		for _, f := range rt.Firings {
			first := ""
			if f.FirstRun {
				first = " (first run)"
			}
			fmt.Fprintf(w, "  [%d] iteration %d: %s@%s %s -> %s%s\n",
				f.Seq, f.Iteration, f.Watch, f.Node, f.Old, f.New, first)
		}
		for _, lf := range rt.Failures {
			fmt.Fprintf(w, "  ! iteration %d: %s@%s %s: %s\n",
				lf.Iteration, lf.Watch, lf.Node, lf.Code, lf.Message)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d runs (%d aborted), %d firings, %d listener failures\n",
		result.Stats.Runs, result.Stats.Aborted, result.Stats.Firings, result.Stats.Failures)
	return nil
}
