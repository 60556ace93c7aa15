package eventsourcing

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/propagation"
)

func TestContextGetters(t *testing.T) {
	occurredAt := time.Now()
	carrier := propagation.MapCarrier{"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}

	env := NewEnvelope(&event{}, EventMetadata{
		EventID:            "evt-1",
		StreamID:           "stream-123",
		StreamPosition:     7,
		LogPosition:        42,
		OccurredAt:         occurredAt,
		PropagationContext: carrier,
	})

	ctxWithEnv := WithEnvelope(t.Context(), env)
	emptyCtx := t.Context()

	tests := []struct {
		name string
		ctx  context.Context
		fn   func(context.Context) any
		want any
	}{
		{
			name: "StreamIDFromContext with value",
			ctx:  ctxWithEnv,
			fn:   func(ctx context.Context) any { return StreamIDFromContext(ctx) },
			want: "stream-123",
		},
		{
			name: "StreamIDFromContext without value",
			ctx:  emptyCtx,
			fn:   func(ctx context.Context) any { return StreamIDFromContext(ctx) },
			want: "",
		},
		{
			name: "EventIDFromContext with value",
			ctx:  ctxWithEnv,
			fn:   func(ctx context.Context) any { return EventIDFromContext(ctx) },
			want: "evt-1",
		},
		{
			name: "EventIDFromContext without value",
			ctx:  emptyCtx,
			fn:   func(ctx context.Context) any { return EventIDFromContext(ctx) },
			want: "",
		},
		{
			name: "StreamPositionFromContext with value",
			ctx:  ctxWithEnv,
			fn:   func(ctx context.Context) any { return StreamPositionFromContext(ctx) },
			want: uint64(7),
		},
		{
			name: "StreamPositionFromContext without value",
			ctx:  emptyCtx,
			fn:   func(ctx context.Context) any { return StreamPositionFromContext(ctx) },
			want: uint64(0),
		},
		{
			name: "LogPositionFromContext with value",
			ctx:  ctxWithEnv,
			fn:   func(ctx context.Context) any { return LogPositionFromContext(ctx) },
			want: uint64(42),
		},
		{
			name: "LogPositionFromContext without value",
			ctx:  emptyCtx,
			fn:   func(ctx context.Context) any { return LogPositionFromContext(ctx) },
			want: uint64(0),
		},
		{
			name: "OccurredAtFromContext with value",
			ctx:  ctxWithEnv,
			fn:   func(ctx context.Context) any { return OccurredAtFromContext(ctx) },
			want: occurredAt,
		},
		{
			name: "OccurredAtFromContext without value",
			ctx:  emptyCtx,
			fn:   func(ctx context.Context) any { return OccurredAtFromContext(ctx) },
			want: time.Time{},
		},
		{
			name: "PropagationContextFromContext with value",
			ctx:  ctxWithEnv,
			fn:   func(ctx context.Context) any { return PropagationContextFromContext(ctx) },
			want: carrier,
		},
		{
			name: "PropagationContextFromContext without value",
			ctx:  emptyCtx,
			fn:   func(ctx context.Context) any { return PropagationContextFromContext(ctx) },
			want: propagation.MapCarrier(nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn(tt.ctx)
			switch want := tt.want.(type) {
			case time.Time:
				if !got.(time.Time).Equal(want) {
					t.Errorf("%s = %v, want %v", tt.name, got, want)
				}
			case propagation.MapCarrier:
				gotMap := got.(propagation.MapCarrier)
				if len(gotMap) != len(want) {
					t.Errorf("%s = %v, want %v", tt.name, got, want)
				}
				for k, v := range want {
					if gotMap[k] != v {
						t.Errorf("%s = %v, want %v", tt.name, got, want)
					}
				}
			default:
				if got != want {
					t.Errorf("%s = %v, want %v", tt.name, got, want)
				}
			}
		})
	}
}
