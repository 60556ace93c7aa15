package eventsourcing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ActivityScope runs a unit of work inside a tracing span.
//
// A failing unit of work marks the span as errored; the error is returned
// unchanged.
type ActivityScope interface {
	Run(ctx context.Context, name string, fn func(ctx context.Context) error, opts ...ActivityOption) error
}

type ActivityOption func(*activityConfig)

type activityConfig struct {
	attributes []attribute.KeyValue
	kind       trace.SpanKind
	parent     propagation.MapCarrier
}

// WithActivityAttributes tags the span.
func WithActivityAttributes(attrs ...attribute.KeyValue) ActivityOption {
	return func(c *activityConfig) {
		c.attributes = append(c.attributes, attrs...)
	}
}

func WithActivityKind(kind trace.SpanKind) ActivityOption {
	return func(c *activityConfig) {
		c.kind = kind
	}
}

// WithParentContext makes the span a child of the trace recorded in carrier.
// An empty carrier keeps the span context of ctx as parent.
func WithParentContext(carrier propagation.MapCarrier) ActivityOption {
	return func(c *activityConfig) {
		c.parent = carrier
	}
}

type otelActivityScope struct {
	tracer trace.Tracer
}

// NewActivityScope creates an ActivityScope backed by tp.
func NewActivityScope(tp trace.TracerProvider) ActivityScope {
	return &otelActivityScope{
		tracer: tp.Tracer(instrumentationName),
	}
}

func defaultActivityScope() ActivityScope {
	return NewActivityScope(otel.GetTracerProvider())
}

func (s *otelActivityScope) Run(ctx context.Context, name string, fn func(ctx context.Context) error, opts ...ActivityOption) error {
	cfg := activityConfig{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(cfg.parent) > 0 {
		ctx = otel.GetTextMapPropagator().Extract(ctx, cfg.parent)
	}

	ctx, span := s.tracer.Start(ctx, name,
		trace.WithSpanKind(cfg.kind),
		trace.WithAttributes(cfg.attributes...),
	)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
