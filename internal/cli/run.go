package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/dirtycheck/internal/harness"
	"github.com/roach88/dirtycheck/internal/store"
)

// settleDelay batches the burst of events an editor save produces.
const settleDelay = 100 * time.Millisecond

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string // record traces here
	Watch    bool   // re-run scenarios when their files change
	Golden   string // directory of golden trace files
	Update   bool   // regenerate golden files
	Filter   string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	File    string   `json:"file"`
	Name    string   `json:"name,omitempty"`
	Pass    bool     `json:"pass"`
	Digests int      `json:"digests"`
	Fired   int      `json:"fired"`
	Golden  string   `json:"golden,omitempty"` // "match", "mismatch", "missing" or "updated"
	Errors  []string `json:"errors,omitempty"`
}

// RunResult holds the overall run result.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario|dir>...",
		Short: "Run scenarios through the digest engine",
		Long: `Run YAML or CUE scenarios through the digest engine and check
their assertions.

Directories are searched recursively for .yaml, .yml and .cue files.
With --db every digest is recorded to a SQLite trace database that
"dirtycheck trace" can read. With --golden the canonical trace of each
scenario is compared against <dir>/<name>.golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  dirtycheck run ./scenarios
  dirtycheck run ./scenarios --filter "change_*" --db trace.db
  dirtycheck run ./scenarios --golden ./scenarios/golden --update
  dirtycheck run ./scenarios --watch`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runScenarios(ctx, opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record traces to this SQLite database")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "re-run scenarios when their files change")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files (requires --golden)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

// runner executes scenario files with shared settings.
type runner struct {
	opts   *RunOptions
	store  *store.Store
	logger *slog.Logger
}

func runScenarios(ctx context.Context, opts *RunOptions, args []string, cmd *cobra.Command) error {
	if opts.Update && opts.Golden == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}

	files, err := FindScenarioFiles(args, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	if len(files) == 0 {
		return NewExitError(ExitCommandError, "no scenario files found")
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	if opts.Verbose {
		logDigestSignals(logger)
	}

	r := &runner{opts: opts, logger: logger}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		r.store = st
	}

	if opts.Watch {
		return r.watch(ctx, cmd, files)
	}
	return r.report(cmd, r.runAll(files))
}

func (r *runner) runAll(files []string) RunResult {
	result := RunResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		res := r.runOne(file)
		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return result
}

// runOne loads and executes one scenario file.
func (r *runner) runOne(file string) ScenarioResult {
	out := ScenarioResult{File: file}

	sc, err := LoadScenario(file)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return out
	}
	out.Name = sc.Name

	var hopts []harness.Option
	if r.store != nil {
		hopts = append(hopts, harness.WithStore(r.store))
	}
	if r.opts.Verbose {
		hopts = append(hopts, harness.WithLogger(r.logger))
	}

	start := time.Now()
	result, err := harness.Run(sc, hopts...)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return out
	}
	r.logger.Debug("scenario finished", "scenario", sc.Name, "pass", result.Pass, "elapsed", time.Since(start))

	out.Pass = result.Pass
	out.Errors = result.Errors
	out.Digests = len(result.RunIDs())
	out.Fired = len(result.Events(harness.EventFired))

	if r.opts.Golden != "" {
		r.checkGolden(sc.Name, result, &out)
	}
	return out
}

// checkGolden compares (or rewrites) the scenario's golden trace. A
// scenario without a golden file is judged by its assertions alone.
func (r *runner) checkGolden(name string, result *harness.Result, out *ScenarioResult) {
	fail := func(msg string) {
		out.Pass = false
		out.Errors = append(out.Errors, msg)
	}

	current, err := harness.Snapshot(name, result)
	if err != nil {
		fail(fmt.Sprintf("failed to render trace: %v", err))
		return
	}
	goldenPath := filepath.Join(r.opts.Golden, name+".golden")

	if r.opts.Update {
		if err := os.MkdirAll(r.opts.Golden, 0o755); err != nil {
			fail(fmt.Sprintf("failed to create golden directory: %v", err))
			return
		}
		if err := os.WriteFile(goldenPath, current, 0o644); err != nil {
			fail(fmt.Sprintf("failed to write golden file: %v", err))
			return
		}
		out.Golden = "updated"
		return
	}

	expected, err := os.ReadFile(goldenPath)
	switch {
	case os.IsNotExist(err):
		out.Golden = "missing"
	case err != nil:
		fail(fmt.Sprintf("failed to read golden file: %v", err))
	case !bytes.Equal(expected, current):
		out.Golden = "mismatch"
		fail("trace does not match golden file (run with --update to regenerate)")
	default:
		out.Golden = "match"
	}
}

// report writes result in the configured format. Failed scenarios turn
// into an ExitFailure error.
func (r *runner) report(cmd *cobra.Command, result RunResult) error {
	formatter := &OutputFormatter{
		Format:    r.opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   r.opts.Verbose,
	}

	var failure error
	if result.Failed > 0 {
		failure = NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	if r.opts.Format == "json" {
		var err error
		if failure != nil {
			err = formatter.Failure(result, ErrCodeScenarioFail, failure.Error())
		} else {
			err = formatter.Success(result)
		}
		if err != nil {
			return err
		}
		return failure
	}

	w := cmd.OutOrStdout()
	for _, s := range result.Scenarios {
		name := s.Name
		if name == "" {
			name = s.File
		}
		mark := "✓"
		if !s.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s (%d digests, %d fired)", mark, name, s.Digests, s.Fired)
		if s.Golden == "updated" {
			fmt.Fprint(w, " (golden updated)")
		}
		fmt.Fprintln(w)
		for _, e := range s.Errors {
			fmt.Fprintln(w, indent(e, "  "))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	return failure
}

// watch runs files once, then again whenever one of them is written, until
// ctx is cancelled or the process is interrupted.
func (r *runner) watch(ctx context.Context, cmd *cobra.Command, files []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create file watcher", err)
	}
	defer watcher.Close()

	// Directories are watched rather than files so that editors which
	// replace a file on save keep being observed.
	watched := make(map[string]bool, len(files))
	dirs := map[string]bool{}
	for _, f := range files {
		watched[f] = true
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to watch %s", dir), err)
		}
		dirs[dir] = true
	}

	_ = r.report(cmd, r.runAll(files))
	notice(cmd.ErrOrStderr(), "Watching %d scenario file(s) for changes. Press Ctrl-C to stop.", len(files))

	pending := map[string]bool{}
	var settled <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("watch stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path := filepath.Clean(event.Name)
			if !watched[path] {
				continue
			}
			r.logger.Debug("scenario changed", "path", path, "op", event.Op.String())
			pending[path] = true
			if settled == nil {
				settled = time.After(settleDelay)
			}

		case <-settled:
			settled = nil
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			notice(cmd.ErrOrStderr(), "Re-running %s", strings.Join(changed, ", "))
			_ = r.report(cmd, r.runAll(changed))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("file watcher error", "error", err)
		}
	}
}

func notice(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}

// indent prefixes every line of s.
func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}
