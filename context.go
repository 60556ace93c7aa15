package eventsourcing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/propagation"
)

type ctxKey string

// Define constants for context keys
const (
	streamIDKey       ctxKey = "streamID"
	eventIDKey        ctxKey = "eventID"
	streamPositionKey ctxKey = "streamPosition"
	logPositionKey    ctxKey = "logPosition"
	occurredAtKey     ctxKey = "occurredAt"
	propagationKey    ctxKey = "propagation"
)

// WithEnvelope adds the metadata of the envelope to the context
func WithEnvelope(ctx context.Context, env Envelope) context.Context {
	ctx = context.WithValue(ctx, streamIDKey, env.Metadata.StreamID)
	ctx = context.WithValue(ctx, eventIDKey, env.Metadata.EventID)
	ctx = context.WithValue(ctx, streamPositionKey, env.Metadata.StreamPosition)
	ctx = context.WithValue(ctx, logPositionKey, env.Metadata.LogPosition)
	ctx = context.WithValue(ctx, occurredAtKey, env.Metadata.OccurredAt)
	ctx = context.WithValue(ctx, propagationKey, env.Metadata.PropagationContext)
	return ctx
}

// StreamIDFromContext returns the StreamID or "" if not present
func StreamIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(streamIDKey).(string); ok {
		return s
	}
	return ""
}

// EventIDFromContext returns the EventID or "" if not present
func EventIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(eventIDKey).(string); ok {
		return id
	}
	return ""
}

// StreamPositionFromContext returns the StreamPosition or 0 if not present
func StreamPositionFromContext(ctx context.Context) uint64 {
	if v, ok := ctx.Value(streamPositionKey).(uint64); ok {
		return v
	}
	return 0
}

// LogPositionFromContext returns the LogPosition or 0 if not present
func LogPositionFromContext(ctx context.Context) uint64 {
	if v, ok := ctx.Value(logPositionKey).(uint64); ok {
		return v
	}
	return 0
}

// OccurredAtFromContext returns OccurredAt or zero time if not present
func OccurredAtFromContext(ctx context.Context) time.Time {
	if t, ok := ctx.Value(occurredAtKey).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// PropagationContextFromContext returns the recorded trace headers or nil
func PropagationContextFromContext(ctx context.Context) propagation.MapCarrier {
	if c, ok := ctx.Value(propagationKey).(propagation.MapCarrier); ok {
		return c
	}
	return nil
}
