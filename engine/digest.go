package engine

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/zoobzio/capitan"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/dirtycheck/value"
)

// Digest settles the tree rooted at root. See DigestContext.
func (e *Engine) Digest(root Node) error {
	return e.DigestContext(context.Background(), root)
}

// DigestContext runs walks over the tree rooted at root until a walk finds
// no change.
//
// ctx carries tracing and signal context only; a digest is not cancellable
// once started.
//
// Returns nil for a nil root. Returns an ErrCodeDigestInProgress
// RuntimeError if a digest is already running on e, and an
// ErrCodeTTLExceeded RuntimeError if the tree is still dirty after the
// iteration budget. Listener failures never surface here.
func (e *Engine) DigestContext(ctx context.Context, root Node) error {
	if isNilNode(root) {
		return nil
	}
	if err := e.beginPhase(); err != nil {
		e.metrics.Digests.WithLabelValues(OutcomeRejected).Inc()
		e.logger.Debug("digest rejected", slog.String("root", NodeName(root)))
		return err
	}
	defer e.clearPhase()

	r := &run{
		engine: e,
		runID:  e.runIDs.Generate(),
		start:  e.clock.Now(),
	}
	ctx, r.span = e.startDigestSpan(ctx, r.runID, root)
	r.ctx = ctx

	rootName := NodeName(root)
	e.recorder.RunStarted(ctx, RunInfo{
		RunID:     r.runID,
		Seq:       e.seq.Next(),
		Root:      rootName,
		TTL:       e.ttl,
		StartedAt: r.start,
	})
	capitan.Emit(ctx, DigestStarted,
		KeyRunID.Field(r.runID),
		KeyRoot.Field(rootName),
	)
	e.logger.Debug("digest started",
		slog.String("run_id", r.runID),
		slog.String("root", rootName),
	)

	e.lastDirty = nil
	budget := NewIterationBudget(e.ttl)

	var err error
	for {
		r.iteration++
		if !r.walk(root) {
			break
		}
		if err = budget.Spend(r.runID); err != nil {
			break
		}
	}

	r.finish(err)
	return err
}

// Digest settles root on the default engine. See Engine.Digest.
func Digest(root Node) error {
	return Default().Digest(root)
}

// run is the state of one digest.
type run struct {
	engine *Engine
	ctx    context.Context
	span   trace.Span

	runID     string
	start     time.Time
	iteration int
	fired     int
	failures  int
}

// walk visits every node under root in pre-order and checks its watchers.
// Each node is visited at most once per walk, so shared and cyclic
// children lists still terminate. Reports whether any watcher was dirty.
func (r *run) walk(root Node) bool {
	e := r.engine
	dirty := false

	visited := map[Node]struct{}{}
	stack := []Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if comparableNode(node) {
			if _, seen := visited[node]; seen {
				continue
			}
			visited[node] = struct{}{}
		}

		list := e.tree.watchers(node)
		for idx := 0; idx < list.Len(); {
			w := list.At(idx)
			changed, stop := r.check(w, node)
			if stop {
				return false
			}
			if changed {
				dirty = true
			}
			// Advance only if w is still in place; if it removed itself,
			// the next watcher has moved into idx.
			if list.At(idx) == w {
				idx++
			}
		}

		// Children are read after the node's listeners ran, so children
		// added by a listener are visited in the same walk.
		children := e.tree.children(node)
		for i := len(children) - 1; i >= 0; i-- {
			if !isNilNode(children[i]) {
				stack = append(stack, children[i])
			}
		}
	}
	return dirty
}

// check evaluates one watcher.
//
// changed is set when the watcher was dirty and its listener ran. stop is set
// when w is the last watcher found dirty and is now clean: everything after
// it was clean in the previous walk, so the rest of this walk is skipped.
func (r *run) check(w *Watcher, node Node) (changed, stop bool) {
	e := r.engine

	cur, ok := r.read(w, node)
	last := w.last
	if ok && !value.Same(cur, last) && !r.equivalent(w, cur, last) {
		e.lastDirty = w
		w.last = r.snapshot(w, cur)

		old := last
		first := last == unset
		if first {
			old = cur
		}
		r.fire(w, node, cur, old, first)
		return true, false
	}
	if w == e.lastDirty {
		return false, true
	}
	return false, false
}

func (r *run) equivalent(w *Watcher, cur, last value.Value) bool {
	if w.eq {
		return value.Equals(cur, last)
	}
	return value.IsNaN(cur) && value.IsNaN(last)
}

// snapshot is the value stored as last. Equality watches keep a deep copy so
// in-place mutation of cur is visible next time; if the copy fails the
// reference is kept.
func (r *run) snapshot(w *Watcher, cur value.Value) value.Value {
	if !w.eq {
		return cur
	}
	cp, err := value.Copy(cur, nil, 0)
	if err != nil {
		r.engine.logger.Warn("deep watch snapshot failed, keeping reference",
			slog.String("run_id", r.runID),
			slog.String("watch", w.Label()),
			slog.String("error", err.Error()),
		)
		return cur
	}
	return cp
}

// read evaluates the watcher's getter, recovering a panic as a reported
// ErrCodeWatchFailed failure. ok is false when the getter panicked.
func (r *run) read(w *Watcher, node Node) (v value.Value, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(&ListenerError{
				Code:      ErrCodeWatchFailed,
				RunID:     r.runID,
				Watch:     w.Label(),
				Node:      NodeName(node),
				Iteration: r.iteration,
				Cause:     panicError(rec),
				Panicked:  true,
			}, "getter")
			v, ok = nil, false
		}
	}()
	return w.get(), true
}

// fire records and invokes the listener.
func (r *run) fire(w *Watcher, node Node, cur, old value.Value, first bool) {
	e := r.engine
	r.fired++
	e.metrics.ListenerCalls.Inc()

	e.recorder.Fired(r.ctx, Firing{
		RunID:     r.runID,
		Seq:       e.seq.Next(),
		Iteration: r.iteration,
		Node:      NodeName(node),
		Watch:     w.Label(),
		New:       cur,
		Old:       old,
		FirstRun:  first,
	})

	panicked, err := invoke(w.listener, cur, old, node)
	if err == nil {
		return
	}
	kind := "error"
	if panicked {
		kind = "panic"
	}
	r.fail(&ListenerError{
		Code:      ErrCodeListenerFailed,
		RunID:     r.runID,
		Watch:     w.Label(),
		Node:      NodeName(node),
		Iteration: r.iteration,
		Cause:     err,
		Panicked:  panicked,
	}, kind)
}

func invoke(l Listener, cur, old value.Value, node Node) (panicked bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			panicked, err = true, panicError(rec)
		}
	}()
	return false, l(cur, old, node)
}

// fail reports a recovered failure everywhere it is observed.
func (r *run) fail(le *ListenerError, kind string) {
	e := r.engine
	r.failures++
	e.metrics.ListenerErrors.WithLabelValues(kind).Inc()

	e.logger.Error("listener failed",
		slog.String("run_id", le.RunID),
		slog.String("code", string(le.Code)),
		slog.String("watch", le.Watch),
		slog.String("node", le.Node),
		slog.Int("iteration", le.Iteration),
		slog.Bool("panicked", le.Panicked),
		slog.String("error", le.Cause.Error()),
	)
	listenerFailedEvent(r.span, le)
	capitan.Emit(r.ctx, ListenerFailed,
		KeyRunID.Field(le.RunID),
		KeyWatch.Field(le.Watch),
		KeyNode.Field(le.Node),
		KeyError.Field(le.Cause.Error()),
	)
	e.recorder.ListenerFailed(r.ctx, le)
	if e.onError != nil {
		e.onError(r.ctx, le)
	}
}

// finish reports the outcome of the run.
func (r *run) finish(err error) {
	e := r.engine
	elapsed := e.clock.Since(r.start)

	outcome := OutcomeSettled
	if err != nil {
		outcome = OutcomeAborted
	}
	e.metrics.Digests.WithLabelValues(outcome).Inc()
	e.metrics.Iterations.Observe(float64(r.iteration))
	e.metrics.Duration.Observe(elapsed.Seconds())

	e.recorder.RunFinished(r.ctx, RunSummary{
		RunID:      r.runID,
		Seq:        e.seq.Next(),
		Outcome:    outcome,
		Iterations: r.iteration,
		Fired:      r.fired,
		Failures:   r.failures,
		Duration:   elapsed,
		Err:        err,
	})

	if err != nil {
		e.logger.Error("digest aborted",
			slog.String("run_id", r.runID),
			slog.Int("iterations", r.iteration),
			slog.Int("fired", r.fired),
			slog.String("error", err.Error()),
		)
		capitan.Emit(r.ctx, DigestAborted,
			KeyRunID.Field(r.runID),
			KeyIterations.Field(r.iteration),
			KeyError.Field(err.Error()),
		)
	} else {
		e.logger.Debug("digest settled",
			slog.String("run_id", r.runID),
			slog.Int("iterations", r.iteration),
			slog.Int("fired", r.fired),
			slog.Duration("duration", elapsed),
		)
		capitan.Emit(r.ctx, DigestSettled,
			KeyRunID.Field(r.runID),
			KeyIterations.Field(r.iteration),
			KeyFired.Field(r.fired),
			KeyDuration.Field(elapsed),
		)
	}

	endDigestSpan(r.span, r.iteration, r.fired, err)
}

// comparableNode reports whether n can be a map key. Nodes of
// non-comparable types are visited without deduplication.
func comparableNode(n Node) bool {
	return reflect.TypeOf(n).Comparable()
}

// isNilNode reports nil and typed-nil pointer nodes.
func isNilNode(n Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
		return v.IsNil()
	}
	return false
}
