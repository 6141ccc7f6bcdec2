package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const runColumns = `run_id, seq, root, ttl, started_at, outcome, iterations, fired, failures, duration_ns, error`

// ReadRuns returns every recorded run ordered by seq.
//
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq ASC, run_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns a single run. Returns an error wrapping ErrNotFound if the
// run does not exist.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE run_id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return run, err
}

// ReadFirings returns firings matching filter ordered by seq.
func (s *Store) ReadFirings(ctx context.Context, filter FiringFilter) ([]Firing, error) {
	where, args := filter.clause()
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, iteration, node, watch, new_value, old_value, first_run
		FROM firings`+where+`
		ORDER BY seq ASC, run_id COLLATE BINARY ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	firings := []Firing{}
	for rows.Next() {
		var f Firing
		var first int
		if err := rows.Scan(&f.RunID, &f.Seq, &f.Iteration, &f.Node, &f.Watch, &f.New, &f.Old, &first); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		f.FirstRun = first != 0
		firings = append(firings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return firings, nil
}

// CountFirings returns the number of firings matching filter.
func (s *Store) CountFirings(ctx context.Context, filter FiringFilter) (int, error) {
	where, args := filter.clause()
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM firings`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count firings: %w", err)
	}
	return n, nil
}

// ReadListenerFailures returns failures for the given runs in the order they
// were recorded. No run IDs means all runs.
func (s *Store) ReadListenerFailures(ctx context.Context, runIDs ...string) ([]ListenerFailure, error) {
	where, args := FiringFilter{RunIDs: runIDs}.clause()
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, code, iteration, node, watch, message, panicked
		FROM listener_errors`+where+`
		ORDER BY id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query listener failures: %w", err)
	}
	defer rows.Close()

	failures := []ListenerFailure{}
	for rows.Next() {
		var lf ListenerFailure
		var panicked int
		if err := rows.Scan(&lf.RunID, &lf.Code, &lf.Iteration, &lf.Node, &lf.Watch, &lf.Message, &panicked); err != nil {
			return nil, fmt.Errorf("scan listener failure: %w", err)
		}
		lf.Panicked = panicked != 0
		failures = append(failures, lf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listener failures: %w", err)
	}
	return failures, nil
}

// clause renders the filter as a WHERE clause with positional args.
func (f FiringFilter) clause() (string, []any) {
	var conds []string
	var args []any

	if len(f.RunIDs) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(f.RunIDs)), ", ")
		conds = append(conds, "run_id IN ("+marks+")")
		for _, id := range f.RunIDs {
			args = append(args, id)
		}
	}
	if f.Watch != "" {
		conds = append(conds, "watch = ?")
		args = append(args, f.Watch)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "\n\t\tWHERE " + strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var started string
	var outcome, errText sql.NullString
	var durationNS int64

	err := sc.Scan(
		&run.RunID,
		&run.Seq,
		&run.Root,
		&run.TTL,
		&started,
		&outcome,
		&run.Iterations,
		&run.Fired,
		&run.Failures,
		&durationNS,
		&errText,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.StartedAt, err = parseTime(started)
	if err != nil {
		return Run{}, err
	}
	run.Outcome = outcome.String
	run.Error = errText.String
	run.Duration = time.Duration(durationNS)
	return run, nil
}
