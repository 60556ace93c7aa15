package otel

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"time"

	eventsourcing "github.com/terraskye/eventsourcing-core"
	"go.opentelemetry.io/otel/metric"
)

type telemetryEventHandler struct {
	next    eventsourcing.EventHandler
	types   *eventsourcing.EventTypeMapper
	metrics *instruments
	cfg     *config
}

// WithEventTelemetry records how often and how long next handles events.
//
// The event bus already traces every handler call, so this decorator only
// adds metrics: handled events, failures and handler duration, keyed by the
// logical event name from types. Skipped events are not counted as failures.
func WithEventTelemetry(next eventsourcing.EventHandler, types *eventsourcing.EventTypeMapper, options ...Option) eventsourcing.EventHandler {
	cfg := newConfig(options)
	return &telemetryEventHandler{
		next:    next,
		types:   types,
		metrics: cfg.instruments(),
		cfg:     cfg,
	}
}

func (h *telemetryEventHandler) EventType() reflect.Type {
	return h.next.EventType()
}

func (h *telemetryEventHandler) Handle(ctx context.Context, envelope eventsourcing.Envelope) error {
	attrs := metric.WithAttributes(append(slices.Clone(h.cfg.Attributes),
		AttrEventType.String(h.types.ToName(h.next.EventType())),
	)...)

	startTime := time.Now()
	err := h.next.Handle(ctx, envelope)
	h.metrics.eventBusDuration.Record(ctx, float64(time.Since(startTime).Microseconds())/1000, attrs)

	var skipped *eventsourcing.ErrSkippedEvent
	switch {
	case err == nil:
		h.metrics.eventBusHandled.Add(ctx, 1, attrs)
	case errors.As(err, &skipped):
	default:
		h.metrics.eventBusErrors.Add(ctx, 1, attrs)
	}
	return err
}
