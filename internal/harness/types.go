package harness

import (
	"context"

	"github.com/roach88/dirtycheck/engine"
	"github.com/roach88/dirtycheck/value"
)

// Trace event types.
const (
	EventDigestStarted  = "digest_started"
	EventFired          = "fired"
	EventListenerFailed = "listener_failed"
	EventDigestFinished = "digest_finished"
	EventDigestRejected = "digest_rejected"
)

// TraceEvent is one entry of a scenario trace. Which fields are set depends
// on Type. New and Old are canonical JSON renderings taken when the
// listener fired.
type TraceEvent struct {
	Type       string `json:"type"`
	Seq        int64  `json:"seq,omitempty"`
	RunID      string `json:"run_id,omitempty"`
	Root       string `json:"root,omitempty"`
	Iteration  int    `json:"iteration,omitempty"`
	Node       string `json:"node,omitempty"`
	Watch      string `json:"watch,omitempty"`
	New        string `json:"new,omitempty"`
	Old        string `json:"old,omitempty"`
	FirstRun   bool   `json:"first_run,omitempty"`
	Code       string `json:"code,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	Iterations int    `json:"iterations,omitempty"`
	Fired      int    `json:"fired,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step and assertion succeeded.
	Pass bool `json:"pass"`

	// Trace contains digest events in the order they happened.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events returns the trace events of the given type.
func (r *Result) Events(typ string) []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// RunIDs returns the IDs of every digest that started, in order.
func (r *Result) RunIDs() []string {
	var ids []string
	for _, ev := range r.Events(EventDigestStarted) {
		ids = append(ids, ev.RunID)
	}
	return ids
}

// traceRecorder appends engine events to a Result. It implements
// engine.Recorder.
type traceRecorder struct {
	result *Result
}

var _ engine.Recorder = (*traceRecorder)(nil)

func (tr *traceRecorder) RunStarted(_ context.Context, run engine.RunInfo) {
	tr.result.Trace = append(tr.result.Trace, TraceEvent{
		Type:  EventDigestStarted,
		Seq:   run.Seq,
		RunID: run.RunID,
		Root:  run.Root,
	})
}

func (tr *traceRecorder) Fired(_ context.Context, f engine.Firing) {
	tr.result.Trace = append(tr.result.Trace, TraceEvent{
		Type:      EventFired,
		Seq:       f.Seq,
		RunID:     f.RunID,
		Iteration: f.Iteration,
		Node:      f.Node,
		Watch:     f.Watch,
		New:       value.MarshalCanonicalString(f.New),
		Old:       value.MarshalCanonicalString(f.Old),
		FirstRun:  f.FirstRun,
	})
}

func (tr *traceRecorder) ListenerFailed(_ context.Context, le *engine.ListenerError) {
	ev := TraceEvent{
		Type:      EventListenerFailed,
		RunID:     le.RunID,
		Iteration: le.Iteration,
		Node:      le.Node,
		Watch:     le.Watch,
		Code:      string(le.Code),
	}
	if le.Cause != nil {
		ev.Error = le.Cause.Error()
	}
	tr.result.Trace = append(tr.result.Trace, ev)
}

func (tr *traceRecorder) RunFinished(_ context.Context, sum engine.RunSummary) {
	ev := TraceEvent{
		Type:       EventDigestFinished,
		Seq:        sum.Seq,
		RunID:      sum.RunID,
		Outcome:    sum.Outcome,
		Iterations: sum.Iterations,
		Fired:      sum.Fired,
	}
	if sum.Err != nil {
		ev.Error = sum.Err.Error()
	}
	tr.result.Trace = append(tr.result.Trace, ev)
}
