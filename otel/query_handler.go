package otel

import (
	"context"
	"slices"
	"time"

	eventsourcing "github.com/terraskye/eventsourcing-core"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WithQueryTelemetry wraps a QueryHandler with OpenTelemetry tracing and metrics.
//
// For each query it starts a span named "query.handle {Query}", keeps the
// in-flight gauge up while the handler runs, records the duration and
// counts the query as handled or failed.
//
// Example Usage:
//
//	handler := WithQueryTelemetry(myQueryHandler)
//	result, err := handler.HandleQuery(ctx, myQuery)
func WithQueryTelemetry[T eventsourcing.Query, R any](next eventsourcing.QueryHandler[T, R], options ...Option) eventsourcing.QueryHandler[T, R] {
	cfg := newConfig(options)
	var zeroT T
	var zeroR R

	return &telemetryQueryHandler[T, R]{
		next:       next,
		queryType:  eventsourcing.TypeName(zeroT),
		resultType: eventsourcing.TypeName(zeroR),
		tracer:     cfg.tracer(),
		metrics:    cfg.instruments(),
		cfg:        cfg,
	}
}

type telemetryQueryHandler[T eventsourcing.Query, R any] struct {
	next       eventsourcing.QueryHandler[T, R]
	queryType  string
	resultType string
	tracer     trace.Tracer
	metrics    *instruments
	cfg        *config
}

func (h *telemetryQueryHandler[T, R]) HandleQuery(ctx context.Context, qry T) (R, error) {
	ctx, span := h.tracer.Start(ctx, "query.handle "+h.queryType,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(h.cfg.Attributes...),
		trace.WithAttributes(
			AttrQueryType.String(h.queryType),
			AttrResultType.String(h.resultType),
		),
	)
	defer span.End()

	attrs := metric.WithAttributes(append(slices.Clone(h.cfg.Attributes), AttrQueryType.String(h.queryType))...)

	h.metrics.queriesInFlight.Add(ctx, 1, attrs)
	defer h.metrics.queriesInFlight.Add(ctx, -1, attrs)

	startTime := time.Now()
	result, err := h.next.HandleQuery(ctx, qry)
	h.metrics.queriesDuration.Record(ctx, float64(time.Since(startTime).Microseconds())/1000, attrs)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		h.metrics.queriesFailed.Add(ctx, 1, attrs)
		return result, err
	}

	span.SetStatus(codes.Ok, "")
	h.metrics.queriesHandled.Add(ctx, 1, attrs)
	return result, nil
}
