package eventsourcing

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
)

// Option configures the event, command and query buses.
type Option func(*busConfig)

type busConfig struct {
	retry         RetryPolicy
	activity      ActivityScope
	logger        *slog.Logger
	types         *EventTypeMapper
	meterProvider metric.MeterProvider
}

func newBusConfig(opts []Option) busConfig {
	cfg := busConfig{
		retry:  NoRetry(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.activity == nil {
		cfg.activity = defaultActivityScope()
	}
	if cfg.types == nil {
		cfg.types = NewEventTypeMapper()
	}
	return cfg
}

// WithRetryPolicy sets the policy every handler invocation runs under.
// The default runs each handler once.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *busConfig) {
		c.retry = policy
	}
}

// WithActivityScope sets the tracing scope. The default uses the global
// OpenTelemetry tracer provider.
func WithActivityScope(scope ActivityScope) Option {
	return func(c *busConfig) {
		c.activity = scope
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *busConfig) {
		c.logger = logger
	}
}

// WithTypeMapper sets the mapper used to resolve logical event names.
func WithTypeMapper(types *EventTypeMapper) Option {
	return func(c *busConfig) {
		c.types = types
	}
}

// WithMeterProvider sets where command metrics are recorded. The default is
// the global OpenTelemetry meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *busConfig) {
		c.meterProvider = mp
	}
}
