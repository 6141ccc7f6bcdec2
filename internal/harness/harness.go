package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/zoobzio/clockz"

	"github.com/roach88/dirtycheck/engine"
	"github.com/roach88/dirtycheck/internal/scenario"
	"github.com/roach88/dirtycheck/internal/store"
	"github.com/roach88/dirtycheck/internal/testutil"
	"github.com/roach88/dirtycheck/value"
)

// Option configures a Run.
type Option func(*options)

type options struct {
	store      *store.Store
	logger     *slog.Logger
	engineOpts []engine.Option
}

// WithStore records the trace into st instead of a throwaway in-memory
// store. The caller keeps ownership of st.
func WithStore(st *store.Store) Option {
	return func(o *options) {
		o.store = st
	}
}

// WithLogger sets the engine logger. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithEngineOptions appends engine options, applied after the harness's own.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, opts...)
	}
}

// Harness is the state of one scenario execution.
type Harness struct {
	scenario *scenario.Scenario
	engine   *engine.Engine
	store    *store.Store
	clock    *testutil.DeterministicClock
	logger   *slog.Logger
	result   *Result

	root       *engine.Scope
	scopes     map[string]*engine.Scope
	watchIndex map[string]int
	deregs     map[string]engine.Deregister
}

// Run executes a scenario and returns the result.
//
// The returned error covers setup problems (store, tree construction,
// recording). Step and assertion failures are reported in the Result.
func Run(sc *scenario.Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	st := o.store
	if st == nil {
		var err error
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	h := &Harness{
		scenario:   sc,
		store:      st,
		clock:      testutil.NewDeterministicClock(),
		logger:     o.logger,
		result:     NewResult(),
		scopes:     map[string]*engine.Scope{},
		watchIndex: map[string]int{},
		deregs:     map[string]engine.Deregister{},
	}

	rec := st.Recorder()
	engineOpts := []engine.Option{
		engine.WithLogger(o.logger),
		engine.WithRecorder(engine.Recorders(&traceRecorder{result: h.result}, rec)),
		engine.WithRunIDGenerator(testutil.NewSequentialRunIDs(sc.Name)),
		engine.WithSequencer(h.clock),
		engine.WithClock(clockz.NewFakeClock()),
	}
	if sc.TTL != nil {
		engineOpts = append(engineOpts, engine.WithTTL(*sc.TTL))
	}
	h.engine = engine.New(append(engineOpts, o.engineOpts...)...)

	root, err := h.build(sc.Tree, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tree: %w", err)
	}
	h.root = root

	for i, w := range sc.Watches {
		h.watchIndex[w.ID] = i
	}
	for _, w := range sc.Watches {
		if w.Deferred {
			continue
		}
		if err := h.register(w); err != nil {
			return nil, fmt.Errorf("failed to register watch %q: %w", w.ID, err)
		}
	}

	for i, step := range sc.Steps {
		path := fmt.Sprintf("steps[%d]", i)
		if err := h.apply(path, step); err != nil {
			h.result.AddError(fmt.Sprintf("%s: %v", path, err))
		}
		h.logger.Debug("step completed", "step", i, "kind", step.Kind())
	}

	if err := rec.Err(); err != nil {
		return nil, fmt.Errorf("failed to record trace: %w", err)
	}

	actx := &AssertionContext{
		Ctx:    context.Background(),
		Store:  st,
		Scopes: h.scopes,
	}
	for _, msg := range EvaluateAssertions(h.result, sc.Assertions, actx) {
		h.result.AddError(msg)
	}

	return h.result, nil
}

// build creates the scope for n (under parent, if any) and its subtree.
func (h *Harness) build(n scenario.Node, parent *engine.Scope) (*engine.Scope, error) {
	if _, dup := h.scopes[n.Name]; dup {
		return nil, fmt.Errorf("node %q already exists", n.Name)
	}

	data, err := value.FromGo(n.Data)
	if err != nil {
		return nil, fmt.Errorf("node %q data: %w", n.Name, err)
	}
	obj, ok := data.(*value.Object)
	if !ok {
		return nil, fmt.Errorf("node %q data must be a plain mapping", n.Name)
	}

	var s *engine.Scope
	if parent == nil {
		s = engine.NewScope(n.Name)
	} else {
		s = parent.NewChild(n.Name)
	}
	for _, k := range obj.Keys() {
		s.Data.Set(k, obj.Get(k))
	}
	h.scopes[n.Name] = s

	for _, c := range n.Children {
		if _, err := h.build(c, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (h *Harness) scope(name string) (*engine.Scope, error) {
	s, ok := h.scopes[name]
	if !ok {
		return nil, fmt.Errorf("node %q does not exist", name)
	}
	return s, nil
}

// register adds w to its node's watcher list through the path its mode
// selects.
func (h *Harness) register(w scenario.Watch) error {
	if _, ok := h.deregs[w.ID]; ok {
		return fmt.Errorf("watch %q is already registered", w.ID)
	}
	owner, err := h.scope(w.Node)
	if err != nil {
		return err
	}
	holder, err := h.scope(w.HolderNode())
	if err != nil {
		return err
	}

	l := h.listener(w)
	label := engine.WithLabel(w.ID)

	var d engine.Deregister
	switch w.EffectiveMode() {
	case scenario.ModePlain:
		d = h.engine.WatchWith(owner.Watchers(), holder.Data, w.Key, l, nil, w.Deep, label)
	case scenario.ModeCollection:
		d = h.engine.WatchCollection(owner.Watchers(), holder.Data, w.Key, l, label)
	default:
		d = h.engine.Watch(owner.Watchers(), holder.Data, w.Key, l, w.Deep, label)
	}
	h.deregs[w.ID] = d
	return nil
}

// listener runs w's effects in order. The first failing effect's error is
// returned to the engine as the listener error.
func (h *Harness) listener(w scenario.Watch) engine.Listener {
	idx := h.watchIndex[w.ID]
	return func(value.Value, value.Value, engine.Node) error {
		for j, eff := range w.Effects {
			if err := h.apply(fmt.Sprintf("watches[%d].effects[%d]", idx, j), eff); err != nil {
				return err
			}
		}
		return nil
	}
}

// apply performs one action, from a step or a listener effect.
func (h *Harness) apply(path string, a scenario.Action) error {
	switch a.Kind() {
	case scenario.ActionSet:
		s, v, err := h.assignment(a.Set)
		if err != nil {
			return err
		}
		s.Data.Set(a.Set.Key, v)

	case scenario.ActionPush:
		s, v, err := h.assignment(a.Push)
		if err != nil {
			return err
		}
		arr, ok := s.Data.Get(a.Push.Key).(*value.Array)
		if !ok {
			return fmt.Errorf("push: %s.%s is not an array", a.Push.Node, a.Push.Key)
		}
		arr.Push(v)

	case scenario.ActionDelete:
		s, err := h.scope(a.Delete.Node)
		if err != nil {
			return err
		}
		s.Data.Delete(a.Delete.Key)

	case scenario.ActionIncrement:
		s, err := h.scope(a.Increment.Node)
		if err != nil {
			return err
		}
		cur := s.Data.Get(a.Increment.Key)
		var n value.Number
		switch x := cur.(type) {
		case value.Number:
			n = x
		case value.Undefined:
		default:
			return fmt.Errorf("increment: %s.%s is %s, not a number",
				a.Increment.Node, a.Increment.Key, value.MarshalCanonicalString(cur))
		}
		s.Data.Set(a.Increment.Key, n+1)

	case scenario.ActionCopy:
		from, err := h.scope(a.Copy.From.Node)
		if err != nil {
			return err
		}
		to, err := h.scope(a.Copy.To.Node)
		if err != nil {
			return err
		}
		cp, err := value.Copy(from.Data.Get(a.Copy.From.Key), nil, 0)
		if err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		to.Data.Set(a.Copy.To.Key, cp)

	case scenario.ActionRegister:
		return h.register(h.scenario.Watches[h.watchIndex[a.Register]])

	case scenario.ActionDeregister:
		d, ok := h.deregs[a.Deregister]
		if !ok {
			return fmt.Errorf("deregister: watch %q is not registered", a.Deregister)
		}
		d()
		delete(h.deregs, a.Deregister)

	case scenario.ActionAddChild:
		parent, err := h.scope(a.AddChild.Parent)
		if err != nil {
			return err
		}
		if _, err := h.build(a.AddChild.Node, parent); err != nil {
			return fmt.Errorf("add_child: %w", err)
		}

	case scenario.ActionRemoveChild:
		s, err := h.scope(a.RemoveChild)
		if err != nil {
			return err
		}
		if s.Parent() == nil {
			return fmt.Errorf("remove_child: %q has no parent", a.RemoveChild)
		}
		s.Parent().RemoveChild(s)

	case scenario.ActionDigest:
		return h.digest(path, a.Digest)

	case scenario.ActionFail:
		return errors.New(a.Fail)

	case scenario.ActionPanic:
		panic(a.Panic)

	default:
		return fmt.Errorf("no single action given")
	}
	return nil
}

func (h *Harness) assignment(as *scenario.Assign) (*engine.Scope, value.Value, error) {
	s, err := h.scope(as.Node)
	if err != nil {
		return nil, nil, err
	}
	v, err := value.FromGo(as.Value)
	if err != nil {
		return nil, nil, fmt.Errorf("%s.%s: %w", as.Node, as.Key, err)
	}
	return s, v, nil
}

// digest runs a digest step. An error the step expects is consumed. An
// unexpected error is returned: from a step it fails the scenario, from an
// effect it becomes the listener's error.
func (h *Harness) digest(path string, d *scenario.Digest) error {
	root := h.root
	if d.Root != "" {
		s, err := h.scope(d.Root)
		if err != nil {
			return err
		}
		root = s
	}

	err := h.engine.Digest(root)
	code := errorCode(err)
	if code == string(engine.ErrCodeDigestInProgress) {
		h.result.Trace = append(h.result.Trace, TraceEvent{
			Type: EventDigestRejected,
			Root: root.Name,
			Code: code,
		})
	}

	switch {
	case d.ExpectError == "" && err != nil:
		return fmt.Errorf("digest failed: %w", err)
	case d.ExpectError != "" && err == nil:
		h.result.AddError(fmt.Sprintf("%s: expected digest error %s, digest settled", path, d.ExpectError))
	case d.ExpectError != "" && code != d.ExpectError:
		h.result.AddError(fmt.Sprintf("%s: expected digest error %s, got %v", path, d.ExpectError, err))
	}
	return nil
}

func errorCode(err error) string {
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return ""
}
