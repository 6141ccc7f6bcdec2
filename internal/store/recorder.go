package store

import (
	"context"
	"sync"

	"github.com/roach88/dirtycheck/engine"
)

// Recorder writes digest events to a Store. It implements engine.Recorder.
//
// engine.Recorder methods cannot fail, so the first write error is kept and
// reported by Err. Later events are still attempted.
type Recorder struct {
	st *Store

	mu  sync.Mutex
	err error
}

var _ engine.Recorder = (*Recorder)(nil)

// Recorder returns an engine.Recorder backed by s.
func (s *Store) Recorder() *Recorder {
	return &Recorder{st: s}
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) keep(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

func (r *Recorder) RunStarted(ctx context.Context, run engine.RunInfo) {
	r.keep(r.st.BeginRun(ctx, Run{
		RunID:     run.RunID,
		Seq:       run.Seq,
		Root:      run.Root,
		TTL:       run.TTL,
		StartedAt: run.StartedAt,
	}))
}

func (r *Recorder) Fired(ctx context.Context, f engine.Firing) {
	r.keep(r.st.WriteFiring(ctx, Firing{
		RunID:     f.RunID,
		Seq:       f.Seq,
		Iteration: f.Iteration,
		Node:      f.Node,
		Watch:     f.Watch,
		New:       renderValue(f.New),
		Old:       renderValue(f.Old),
		FirstRun:  f.FirstRun,
	}))
}

func (r *Recorder) ListenerFailed(ctx context.Context, le *engine.ListenerError) {
	msg := ""
	if le.Cause != nil {
		msg = le.Cause.Error()
	}
	r.keep(r.st.WriteListenerFailure(ctx, ListenerFailure{
		RunID:     le.RunID,
		Code:      string(le.Code),
		Iteration: le.Iteration,
		Node:      le.Node,
		Watch:     le.Watch,
		Message:   msg,
		Panicked:  le.Panicked,
	}))
}

func (r *Recorder) RunFinished(ctx context.Context, sum engine.RunSummary) {
	run := Run{
		RunID:      sum.RunID,
		Outcome:    sum.Outcome,
		Iterations: sum.Iterations,
		Fired:      sum.Fired,
		Failures:   sum.Failures,
		Duration:   sum.Duration,
	}
	if sum.Err != nil {
		run.Error = sum.Err.Error()
	}
	r.keep(r.st.FinishRun(ctx, run))
}
