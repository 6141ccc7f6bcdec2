package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/roach88/dirtycheck/value"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRunIDGenerator(NewFixedGenerator("run-1", "run-2", "run-3", "run-4", "run-5", "run-6")),
	}
	return New(append(base, opts...)...)
}

// call is one recorded listener invocation.
type call struct {
	name string
	newV value.Value
	oldV value.Value
	node Node
}

// calls collects listener invocations in order.
type calls struct {
	list []call
}

func (c *calls) listener(name string) Listener {
	return func(newV, oldV value.Value, node Node) error {
		c.list = append(c.list, call{name: name, newV: newV, oldV: oldV, node: node})
		return nil
	}
}

func (c *calls) names() []string {
	out := make([]string, len(c.list))
	for i, it := range c.list {
		out[i] = it.name
	}
	return out
}

func (c *calls) count(name string) int {
	n := 0
	for _, it := range c.list {
		if it.name == name {
			n++
		}
	}
	return n
}

// captureRecorder keeps everything it observes.
type captureRecorder struct {
	mu       sync.Mutex
	started  []RunInfo
	fired    []Firing
	failed   []*ListenerError
	finished []RunSummary
}

func (r *captureRecorder) RunStarted(_ context.Context, run RunInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, run)
}

func (r *captureRecorder) Fired(_ context.Context, f Firing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, f)
}

func (r *captureRecorder) ListenerFailed(_ context.Context, le *ListenerError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, le)
}

func (r *captureRecorder) RunFinished(_ context.Context, sum RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, sum)
}
