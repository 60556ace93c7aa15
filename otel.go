package eventsourcing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/terraskye/eventsourcing-core"
)

var (
	AttrEventType      = attribute.Key("eventsourcing.event.type")
	AttrEventID        = attribute.Key("eventsourcing.event.id")
	AttrStreamID       = attribute.Key("eventsourcing.stream.id")
	AttrStreamPosition = attribute.Key("eventsourcing.stream.position")
	AttrCommandType    = attribute.Key("eventsourcing.command.type")
	AttrQueryType      = attribute.Key("eventsourcing.query.type")
	AttrHandler        = attribute.Key("eventsourcing.handler")
)

// CommandHandlerMetrics records the in-flight count, total count and
// duration of command handling, keyed by command type.
type CommandHandlerMetrics struct {
	handled  metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

// NewCommandHandlerMetrics creates the command instruments on mp.
func NewCommandHandlerMetrics(mp metric.MeterProvider) (*CommandHandlerMetrics, error) {
	meter := mp.Meter(instrumentationName)

	handled, err := meter.Int64Counter(
		"eventsourcing.commands.handled",
		metric.WithDescription("Total number of commands sent to command handlers"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"eventsourcing.commands.duration",
		metric.WithDescription("Command handling duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		"eventsourcing.commands.in_flight",
		metric.WithDescription("Number of commands currently being handled"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, err
	}

	return &CommandHandlerMetrics{
		handled:  handled,
		duration: duration,
		inFlight: inFlight,
	}, nil
}

func defaultCommandHandlerMetrics() *CommandHandlerMetrics {
	m, err := NewCommandHandlerMetrics(otel.GetMeterProvider())
	if err != nil {
		otel.Handle(err)
		return nil
	}
	return m
}

// Start marks the beginning of one handling attempt. The returned function
// must be called exactly once, typically deferred, when the attempt ends.
func (m *CommandHandlerMetrics) Start(ctx context.Context, commandType string) (end func()) {
	if m == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(AttrCommandType.String(commandType))
	m.inFlight.Add(ctx, 1, attrs)
	m.handled.Add(ctx, 1, attrs)
	started := time.Now()

	return func() {
		m.inFlight.Add(ctx, -1, attrs)
		m.duration.Record(ctx, float64(time.Since(started).Microseconds())/1000, attrs)
	}
}
