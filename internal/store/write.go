package store

import (
	"context"
	"fmt"
)

// BeginRun records the start of a digest. An existing run with the same ID is
// replaced together with its firings and failures.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, run.RunID); err != nil {
		return fmt.Errorf("begin run: clear previous: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, seq, root, ttl, started_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		run.RunID,
		run.Seq,
		run.Root,
		run.TTL,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("begin run: commit: %w", err)
	}
	return nil
}

// WriteFiring inserts a firing record.
// Uses ON CONFLICT DO NOTHING for idempotency - a duplicate (run_id, seq)
// is silently ignored. The run must already exist.
func (s *Store) WriteFiring(ctx context.Context, f Firing) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO firings
		(run_id, seq, iteration, node, watch, new_value, old_value, first_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		f.RunID,
		f.Seq,
		f.Iteration,
		f.Node,
		f.Watch,
		f.New,
		f.Old,
		boolToInt(f.FirstRun),
	)
	if err != nil {
		return fmt.Errorf("write firing: %w", err)
	}
	return nil
}

// WriteListenerFailure inserts a failure record. The run must already exist.
func (s *Store) WriteListenerFailure(ctx context.Context, lf ListenerFailure) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listener_errors
		(run_id, code, iteration, node, watch, message, panicked)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		lf.RunID,
		lf.Code,
		lf.Iteration,
		lf.Node,
		lf.Watch,
		lf.Message,
		boolToInt(lf.Panicked),
	)
	if err != nil {
		return fmt.Errorf("write listener failure: %w", err)
	}
	return nil
}

// FinishRun records how a digest ended.
// Returns ErrNotFound if BeginRun was never called for run.RunID.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	var errText any
	if run.Error != "" {
		errText = run.Error
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET outcome = ?, iterations = ?, fired = ?, failures = ?, duration_ns = ?, error = ?
		WHERE run_id = ?
	`,
		run.Outcome,
		run.Iterations,
		run.Fired,
		run.Failures,
		int64(run.Duration),
		errText,
		run.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %q: %w", run.RunID, ErrNotFound)
	}
	return nil
}
