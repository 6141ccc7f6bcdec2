package engine

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTTL is the number of extra dirty walks a digest may perform before
// it gives up. A digest whose 11th walk is still dirty aborts.
const DefaultTTL = 10

// RunIDGenerator generates identifiers for digest runs.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type RunIDGenerator interface {
	Generate() string
}

// Sequencer stamps recorded events with a strictly increasing number.
// Implemented by LogicalClock and testutil.DeterministicClock.
type Sequencer interface {
	Next() int64
}

// Engine runs digests over node trees and owns the watch registry state.
//
// INVARIANTS:
//   - at most one digest in flight (phase guard)
//   - lastDirty is reset on every registration, deregistration and digest start
//   - watcher.last is only written by the digest loop
type Engine struct {
	phase     atomic.Int32
	lastDirty *Watcher

	tree tree
	ttl  int

	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	recorder Recorder
	runIDs   RunIDGenerator
	seq      Sequencer
	clock    clockz.Clock
	onError  func(context.Context, *ListenerError)
}

// Option configures an Engine.
type Option func(*Engine)

// WithTTL sets the iteration budget.
//
// Default: 10 (DefaultTTL). Values below zero are treated as zero, which
// aborts on the first dirty walk.
func WithTTL(ttl int) Option {
	return func(e *Engine) {
		if ttl < 0 {
			ttl = 0
		}
		e.ttl = ttl
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the Prometheus collectors. See NewMetrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider used for digest
// spans. Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithRecorder attaches a Recorder that observes every run and firing.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithRunIDGenerator sets the generator for digest run IDs.
// Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.runIDs = g
		}
	}
}

// WithSequencer sets the sequence source for recorded events.
// Default: a fresh LogicalClock.
func WithSequencer(s Sequencer) Option {
	return func(e *Engine) {
		if s != nil {
			e.seq = s
		}
	}
}

// WithClock sets the wall clock used to measure digest duration.
// Default: clockz.RealClock. Ordering never depends on it.
func WithClock(c clockz.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithErrorHandler registers a callback for listener and getter failures.
// It runs synchronously inside the digest, after logging.
func WithErrorHandler(fn func(context.Context, *ListenerError)) Option {
	return func(e *Engine) {
		e.onError = fn
	}
}

// WithTree applies tree accessors at construction time. See SetConfig.
func WithTree(cfg *Config) Option {
	return func(e *Engine) {
		e.SetConfig(cfg)
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		tree:     defaultTree(),
		ttl:      DefaultTTL,
		logger:   slog.Default(),
		metrics:  NewMetrics(nil),
		tracer:   otel.Tracer(tracerName),
		recorder: NopRecorder{},
		runIDs:   UUIDv7Generator{},
		seq:      NewLogicalClock(),
		clock:    clockz.RealClock,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TTL returns the iteration budget.
func (e *Engine) TTL() int {
	return e.ttl
}

var defaultEngine atomic.Pointer[Engine]

func init() {
	defaultEngine.Store(New())
}

// Default returns the process-wide engine used by the package-level helpers.
func Default() *Engine {
	return defaultEngine.Load()
}

// SetDefault replaces the process-wide engine.
func SetDefault(e *Engine) {
	if e != nil {
		defaultEngine.Store(e)
	}
}
