package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// config holds the options shared by all telemetry decorators.
type config struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Attributes holds the default attributes for each span and measurement.
	Attributes []attribute.KeyValue
}

// Option configures a telemetry decorator.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (o optionFunc) apply(c *config) {
	o(c)
}

func newConfig(opts []Option) *config {
	c := &config{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, o := range opts {
		o.apply(c)
	}
	return c
}

func (c *config) tracer() trace.Tracer {
	return c.tracerProvider.Tracer(instrumentationName)
}

func (c *config) instruments() *instruments {
	i, err := newInstruments(c.meterProvider.Meter(instrumentationName))
	if err != nil {
		otel.Handle(err)
	}
	return i
}

// WithTracerProvider uses tp instead of the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return optionFunc(func(c *config) {
		c.tracerProvider = tp
	})
}

// WithMeterProvider uses mp instead of the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return optionFunc(func(c *config) {
		c.meterProvider = mp
	})
}

// WithAttributes sets the default attributes for the spans and measurements.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return optionFunc(func(c *config) {
		c.Attributes = attrs
	})
}
