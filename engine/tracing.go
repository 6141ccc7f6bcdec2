package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/roach88/dirtycheck/engine"

// startDigestSpan opens the span covering one digest run.
func (e *Engine) startDigestSpan(ctx context.Context, runID string, root Node) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "engine.Digest",
		trace.WithAttributes(
			attribute.String("dirtycheck.run_id", runID),
			attribute.String("dirtycheck.root", NodeName(root)),
			attribute.Int("dirtycheck.ttl", e.ttl),
		),
	)
}

// endDigestSpan records the outcome on span and ends it.
func endDigestSpan(span trace.Span, iterations, fired int, err error) {
	span.SetAttributes(
		attribute.Int("dirtycheck.iterations", iterations),
		attribute.Int("dirtycheck.fired", fired),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// listenerFailedEvent adds a span event for a recovered failure.
func listenerFailedEvent(span trace.Span, le *ListenerError) {
	span.AddEvent("listener.failed", trace.WithAttributes(
		attribute.String("dirtycheck.code", string(le.Code)),
		attribute.String("dirtycheck.watch", le.Watch),
		attribute.String("dirtycheck.node", le.Node),
		attribute.Int("dirtycheck.iteration", le.Iteration),
		attribute.Bool("dirtycheck.panicked", le.Panicked),
		attribute.String("error", le.Cause.Error()),
	))
}
