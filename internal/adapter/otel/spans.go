package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "reverb"

// StartRecordSpan starts a span for persisting one event.
func StartRecordSpan(ctx context.Context, sessionID string, eventType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "record",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("event.type", eventType),
		),
	)
}

// StartReplaySpan starts a span for a session replay.
func StartReplaySpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "replay",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
		),
	)
}

// StartWhatIfSpan starts a span for a what-if cost comparison.
func StartWhatIfSpan(ctx context.Context, sessionID, provider, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "whatif",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("override.provider", provider),
			attribute.String("override.model", model),
		),
	)
}
