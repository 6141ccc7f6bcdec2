package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/dirtycheck/value"
)

func TestMetrics_DigestOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	e := newTestEngine(t, WithMetrics(m))

	root := NewScope("root")
	root.Data.Set("x", value.Number(0))
	root.Watch(e, "x", func(value.Value, value.Value, Node) error {
		return errors.New("nope")
	}, false)

	root.Data.Set("x", value.Number(1))
	require.NoError(t, e.Digest(root))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Digests.WithLabelValues(OutcomeSettled)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ListenerCalls))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ListenerErrors.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Watchers))

	count, err := testutil.GatherAndCount(reg, "dirtycheck_digest_iterations")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_RejectedAndAborted(t *testing.T) {
	m := NewMetrics(nil)
	e := newTestEngine(t, WithMetrics(m), WithTTL(0))

	root := NewScope("root")
	root.Data.Set("x", value.Number(0))
	root.Watch(e, "x", func(value.Value, value.Value, Node) error {
		_ = e.Digest(root)
		return nil
	}, false)

	root.Data.Set("x", value.Number(1))
	assert.True(t, IsTTLExceeded(e.Digest(root)))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Digests.WithLabelValues(OutcomeAborted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Digests.WithLabelValues(OutcomeRejected)))
}

func TestTracing_DigestSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	e := newTestEngine(t, WithTracerProvider(tp))
	root := NewScope("root")
	root.Data.Set("x", value.Number(0))
	root.Watch(e, "x", func(value.Value, value.Value, Node) error {
		panic("listener exploded")
	}, false, WithLabel("explodes"))

	root.Data.Set("x", value.Number(1))
	require.NoError(t, e.Digest(root))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "engine.Digest", span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)

	attrs := map[string]any{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "run-1", attrs["dirtycheck.run_id"])
	assert.Equal(t, "root", attrs["dirtycheck.root"])
	assert.Equal(t, int64(2), attrs["dirtycheck.iterations"])
	assert.Equal(t, int64(1), attrs["dirtycheck.fired"])

	require.Len(t, span.Events(), 1)
	assert.Equal(t, "listener.failed", span.Events()[0].Name)
}

func TestTracing_AbortSetsErrorStatus(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	e := newTestEngine(t, WithTracerProvider(tp), WithTTL(0))
	root := NewScope("root")
	root.Watch(e, "x", nil, false)

	require.Error(t, e.Digest(root))
	require.Len(t, sr.Ended(), 1)
	assert.Equal(t, codes.Error, sr.Ended()[0].Status().Code)
}

func TestRecorder_SequenceAndSummary(t *testing.T) {
	rec := &captureRecorder{}
	seq := NewLogicalClockAt(100)
	e := newTestEngine(t, WithRecorder(rec), WithSequencer(seq))

	root := NewScope("root")
	child := root.NewChild("child")
	root.Data.Set("a", value.Number(1))
	child.Data.Set("b", value.Number(1))
	root.Watch(e, "a", nil, false)
	child.Watch(e, "b", nil, false)

	root.Data.Set("a", value.Number(2))
	child.Data.Set("b", value.Number(2))
	require.NoError(t, e.Digest(root))

	require.Len(t, rec.started, 1)
	assert.Equal(t, "run-1", rec.started[0].RunID)
	assert.Equal(t, "root", rec.started[0].Root)
	assert.Equal(t, DefaultTTL, rec.started[0].TTL)
	assert.Equal(t, int64(101), rec.started[0].Seq)

	require.Len(t, rec.fired, 2)
	assert.Equal(t, int64(102), rec.fired[0].Seq)
	assert.Equal(t, "root", rec.fired[0].Node)
	assert.Equal(t, "a", rec.fired[0].Watch)
	assert.Equal(t, value.Number(2), rec.fired[0].New)
	assert.Equal(t, value.Number(1), rec.fired[0].Old)
	assert.False(t, rec.fired[0].FirstRun)
	assert.Equal(t, int64(103), rec.fired[1].Seq)
	assert.Equal(t, "child", rec.fired[1].Node)

	require.Len(t, rec.finished, 1)
	assert.Equal(t, int64(104), rec.finished[0].Seq)
	assert.Equal(t, 2, rec.finished[0].Fired)
	assert.NoError(t, rec.finished[0].Err)
	assert.Equal(t, int64(104), seq.Current())
}

func TestRecorders_FanOut(t *testing.T) {
	a, b := &captureRecorder{}, &captureRecorder{}
	e := newTestEngine(t, WithRecorder(Recorders(a, nil, b)))

	root := NewScope("root")
	root.Watch(e, "x", nil, false)
	require.NoError(t, e.Digest(root))

	assert.Len(t, a.fired, 1)
	assert.Len(t, b.fired, 1)
	assert.Len(t, b.finished, 1)
}

func TestClock_DurationUsesInjectedClock(t *testing.T) {
	clock := clockz.NewFakeClock()
	rec := &captureRecorder{}
	e := newTestEngine(t, WithClock(clock), WithRecorder(rec))

	root := NewScope("root")
	root.Data.Set("x", value.Number(0))
	root.Watch(e, "x", func(value.Value, value.Value, Node) error {
		clock.Advance(250 * time.Millisecond)
		return nil
	}, false)

	root.Data.Set("x", value.Number(1))
	require.NoError(t, e.Digest(root))

	require.Len(t, rec.finished, 1)
	assert.Equal(t, 250*time.Millisecond, rec.finished[0].Duration)
	assert.True(t, clock.Now().Add(-250*time.Millisecond).Equal(rec.started[0].StartedAt))
}

func TestIterationBudget(t *testing.T) {
	b := NewIterationBudget(2)
	assert.NoError(t, b.Spend("r"))
	assert.NoError(t, b.Spend("r"))
	err := b.Spend("r")
	require.Error(t, err)
	assert.True(t, IsTTLExceeded(err))
	assert.Equal(t, 3, b.Current())
	assert.Equal(t, 2, b.Max())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestLogicalClock(t *testing.T) {
	c := NewLogicalClock()
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "digest", PhaseDigest.String())
	assert.Equal(t, "unknown", Phase(9).String())
}

func TestNodeName(t *testing.T) {
	assert.Equal(t, "<nil>", NodeName(nil))
	assert.Equal(t, "s", NodeName(NewScope("s")))
	assert.Equal(t, "int", NodeName(3))
}
