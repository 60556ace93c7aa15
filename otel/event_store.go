package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	eventsourcing "github.com/terraskye/eventsourcing-core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var _ eventsourcing.EventStore = (*TelemetryStore)(nil)

// TelemetryStore decorates an EventStore with spans and metrics.
//
// Save records the current trace context on every envelope that has none, so
// handlers of the stored events can continue the trace.
type TelemetryStore struct {
	next    eventsourcing.EventStore
	tracer  trace.Tracer
	metrics *instruments
	attrs   []attribute.KeyValue
}

// WithEventStoreTelemetry wraps next.
//
// Example Usage:
//
//	store := otel.WithEventStoreTelemetry(memory.NewMemoryStore(), otel.WithTracerProvider(tp))
func WithEventStoreTelemetry(next eventsourcing.EventStore, options ...Option) *TelemetryStore {
	cfg := newConfig(options)
	return &TelemetryStore{
		next:    next,
		tracer:  cfg.tracer(),
		metrics: cfg.instruments(),
		attrs:   cfg.Attributes,
	}
}

func (t *TelemetryStore) Save(ctx context.Context, events []eventsourcing.Envelope, revision eventsourcing.StreamState) (eventsourcing.AppendResult, error) {
	var streamID string
	if len(events) > 0 {
		streamID = events[0].Metadata.StreamID
	}

	ctx, span := t.tracer.Start(ctx, "EventStore.Save",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.attrs...),
		trace.WithAttributes(
			AttrOperation.String("save"),
			AttrStreamID.String(streamID),
			AttrExpectedRev.String(stateString(revision)),
			AttrEventCount.Int(len(events)),
		),
	)
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) > 0 {
		events = slices.Clone(events)
		for i := range events {
			if len(events[i].Metadata.PropagationContext) == 0 {
				events[i].Metadata.PropagationContext = carrier
			}
		}
	}

	attrs := metric.WithAttributes(append(slices.Clone(t.attrs), AttrOperation.String("save"))...)

	start := time.Now()
	result, err := t.next.Save(ctx, events, revision)
	t.metrics.eventStoreDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
	t.metrics.eventStoreSaves.Add(ctx, 1, attrs)

	if err != nil {
		t.metrics.eventStoreErrors.Add(ctx, 1, attrs)
		if errors.Is(err, eventsourcing.ErrConcurrencyConflict) {
			t.metrics.concurrencyConflicts.Add(ctx, 1, metric.WithAttributes(t.attrs...))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	t.metrics.eventsAppended.Add(ctx, int64(len(events)), metric.WithAttributes(t.attrs...))
	span.SetAttributes(AttrStreamVersion.Int64(int64(result.NextExpectedVersion)))
	return result, nil
}

func (t *TelemetryStore) LoadStream(ctx context.Context, id string) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	iter, err := t.next.LoadStream(ctx, id)
	return t.traceLoad(ctx, "EventStore.LoadStream", iter, err, AttrStreamID.String(id))
}

func (t *TelemetryStore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	iter, err := t.next.LoadStreamFrom(ctx, id, version)
	return t.traceLoad(ctx, "EventStore.LoadStreamFrom", iter, err,
		AttrStreamID.String(id),
		AttrEventStreamPos.Int64(int64(version)),
	)
}

func (t *TelemetryStore) LoadFromAll(ctx context.Context, version uint64) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	iter, err := t.next.LoadFromAll(ctx, version)
	return t.traceLoad(ctx, "EventStore.LoadFromAll", iter, err, AttrEventGlobalPos.Int64(int64(version)))
}

// traceLoad wraps iter in a span that starts with the first Next and ends
// when the iteration does.
func (t *TelemetryStore) traceLoad(
	ctx context.Context,
	name string,
	iter *eventsourcing.Iterator[eventsourcing.Envelope],
	err error,
	attrs ...attribute.KeyValue,
) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	opAttrs := metric.WithAttributes(append(slices.Clone(t.attrs), AttrOperation.String("load"))...)
	t.metrics.eventStoreLoads.Add(ctx, 1, opAttrs)

	if err != nil {
		if !errors.Is(err, eventsourcing.ErrStreamNotFound) {
			t.metrics.eventStoreErrors.Add(ctx, 1, opAttrs)
		}
		return iter, err
	}

	var (
		started   bool
		startedAt time.Time
		span      trace.Span
		count     int64
	)

	return eventsourcing.NewIteratorFunc(func(ctx context.Context) (eventsourcing.Envelope, error) {
		if !started {
			started = true
			startedAt = time.Now()
			ctx, span = t.tracer.Start(ctx, name,
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(t.attrs...),
				trace.WithAttributes(attrs...),
			)
		}

		if !iter.Next(ctx) {
			span.SetAttributes(AttrEventCount.Int64(count))
			t.metrics.eventStoreDuration.Record(ctx, float64(time.Since(startedAt).Microseconds())/1000, opAttrs)

			err := iter.Err()
			if err == nil {
				span.End()
				return eventsourcing.Envelope{}, io.EOF
			}

			if !errors.Is(err, eventsourcing.ErrStreamNotFound) {
				t.metrics.eventStoreErrors.Add(ctx, 1, opAttrs)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
			return eventsourcing.Envelope{}, err
		}

		count++
		t.metrics.eventsLoaded.Add(ctx, 1, metric.WithAttributes(t.attrs...))
		return iter.Value(), nil
	}), nil
}

func (t *TelemetryStore) Close() error {
	return t.next.Close()
}

func stateString(state eventsourcing.StreamState) string {
	if state == nil {
		return "any"
	}
	return fmt.Sprint(state)
}
