package engine

import (
	"context"
	"time"

	"github.com/roach88/dirtycheck/value"
)

// Recorder observes digest runs.
//
// Calls happen synchronously on the digest goroutine. Values passed in a
// Firing are live references owned by the host; a Recorder that keeps them
// must render or copy them before returning.
type Recorder interface {
	RunStarted(ctx context.Context, run RunInfo)
	Fired(ctx context.Context, f Firing)
	ListenerFailed(ctx context.Context, le *ListenerError)
	RunFinished(ctx context.Context, sum RunSummary)
}

// RunInfo describes a digest that is starting.
type RunInfo struct {
	RunID     string
	Seq       int64
	Root      string
	TTL       int
	StartedAt time.Time
}

// Firing describes one listener invocation.
type Firing struct {
	RunID     string
	Seq       int64
	Iteration int
	Node      string
	Watch     string
	New       value.Value
	Old       value.Value
	FirstRun  bool
}

// RunSummary describes how a digest ended.
type RunSummary struct {
	RunID      string
	Seq        int64
	Outcome    string
	Iterations int
	Fired      int
	Failures   int
	Duration   time.Duration
	Err        error
}

// NopRecorder ignores everything.
type NopRecorder struct{}

func (NopRecorder) RunStarted(context.Context, RunInfo) {}

func (NopRecorder) Fired(context.Context, Firing) {}

func (NopRecorder) ListenerFailed(context.Context, *ListenerError) {}

func (NopRecorder) RunFinished(context.Context, RunSummary) {}

// Recorders fans out to every non-nil recorder in order.
func Recorders(rs ...Recorder) Recorder {
	out := make(multiRecorder, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multiRecorder []Recorder

func (m multiRecorder) RunStarted(ctx context.Context, run RunInfo) {
	for _, r := range m {
		r.RunStarted(ctx, run)
	}
}

func (m multiRecorder) Fired(ctx context.Context, f Firing) {
	for _, r := range m {
		r.Fired(ctx, f)
	}
}

func (m multiRecorder) ListenerFailed(ctx context.Context, le *ListenerError) {
	for _, r := range m {
		r.ListenerFailed(ctx, le)
	}
}

func (m multiRecorder) RunFinished(ctx context.Context, sum RunSummary) {
	for _, r := range m {
		r.RunFinished(ctx, sum)
	}
}
