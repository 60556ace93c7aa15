package otel

import (
	"context"
	"slices"

	eventsourcing "github.com/terraskye/eventsourcing-core"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var _ eventsourcing.EventBus = (*TelemetryEventBus)(nil)

// TelemetryEventBus wraps an EventBus with a producer span per publish and a
// count of published events.
//
// The span is started before the wrapped bus runs, so the spans of the
// handlers become its children.
type TelemetryEventBus struct {
	next    eventsourcing.EventBus
	types   *eventsourcing.EventTypeMapper
	tracer  trace.Tracer
	metrics *instruments
	cfg     *config
}

// WithEventBusTelemetry wraps next.
//
// Example Usage:
//
//	bus := otel.WithEventBusTelemetry(eventsourcing.NewInMemoryEventBus(), types)
//	err := bus.Publish(ctx, envelope)
func WithEventBusTelemetry(next eventsourcing.EventBus, types *eventsourcing.EventTypeMapper, options ...Option) *TelemetryEventBus {
	cfg := newConfig(options)
	return &TelemetryEventBus{
		next:    next,
		types:   types,
		tracer:  cfg.tracer(),
		metrics: cfg.instruments(),
		cfg:     cfg,
	}
}

func (t *TelemetryEventBus) Publish(ctx context.Context, envelope eventsourcing.Envelope) error {
	eventType := t.types.NameOf(envelope.Event)

	ctx, span := t.tracer.Start(ctx, "EventBus.Publish "+eventType,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(t.cfg.Attributes...),
		trace.WithAttributes(
			AttrEventType.String(eventType),
			AttrEventID.String(envelope.Metadata.EventID),
			AttrStreamID.String(envelope.Metadata.StreamID),
			AttrEventStreamPos.Int64(int64(envelope.Metadata.StreamPosition)),
			AttrEventGlobalPos.Int64(int64(envelope.Metadata.LogPosition)),
		),
	)
	defer span.End()

	t.metrics.eventBusPublished.Add(ctx, 1,
		metric.WithAttributes(append(slices.Clone(t.cfg.Attributes), AttrEventType.String(eventType))...),
	)

	if err := t.next.Publish(ctx, envelope); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (t *TelemetryEventBus) PublishBatch(ctx context.Context, envelopes []eventsourcing.Envelope) error {
	for _, envelope := range envelopes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.Publish(ctx, envelope); err != nil {
			return err
		}
	}
	return nil
}
