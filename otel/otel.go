package otel

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/terraskye/eventsourcing-core/otel"
)

// Semantic attribute keys following OpenTelemetry conventions
const (
	AttrCommandType = attribute.Key("eventsourcing.command.type")

	AttrStreamID      = attribute.Key("eventsourcing.stream.id")
	AttrStreamVersion = attribute.Key("eventsourcing.stream.version")

	AttrEventType      = attribute.Key("eventsourcing.event.type")
	AttrEventID        = attribute.Key("eventsourcing.event.id")
	AttrEventCount     = attribute.Key("eventsourcing.events.count")
	AttrEventGlobalPos = attribute.Key("eventsourcing.event.global_position")
	AttrEventStreamPos = attribute.Key("eventsourcing.event.stream_position")

	AttrQueryType  = attribute.Key("eventsourcing.query.type")
	AttrResultType = attribute.Key("eventsourcing.query.result_type")

	AttrOperation    = attribute.Key("eventsourcing.operation")
	AttrExpectedRev  = attribute.Key("eventsourcing.revision.expected")
	AttrConflictType = attribute.Key("eventsourcing.conflict.type")
)

var durationBuckets = metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000)

// instruments are the metrics recorded by the decorators of this package.
type instruments struct {
	commandsFailed       metric.Int64Counter
	concurrencyConflicts metric.Int64Counter

	eventsAppended metric.Int64Counter
	eventsLoaded   metric.Int64Counter

	eventBusPublished metric.Int64Counter
	eventBusHandled   metric.Int64Counter
	eventBusErrors    metric.Int64Counter
	eventBusDuration  metric.Float64Histogram

	queriesHandled  metric.Int64Counter
	queriesFailed   metric.Int64Counter
	queriesInFlight metric.Int64UpDownCounter
	queriesDuration metric.Float64Histogram

	eventStoreSaves    metric.Int64Counter
	eventStoreLoads    metric.Int64Counter
	eventStoreErrors   metric.Int64Counter
	eventStoreDuration metric.Float64Histogram
}

// newInstruments creates every instrument on meter. Registration errors are
// returned joined.
func newInstruments(meter metric.Meter) (*instruments, error) {
	var errs []error
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return c
	}
	histogram := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("ms"), durationBuckets)
		errs = append(errs, err)
		return h
	}

	queriesInFlight, err := meter.Int64UpDownCounter(
		"eventsourcing.queries.in_flight",
		metric.WithDescription("Number of queries currently being processed"),
		metric.WithUnit("{query}"),
	)
	errs = append(errs, err)

	i := &instruments{
		commandsFailed:       counter("eventsourcing.commands.failed", "Number of failed commands", "{command}"),
		concurrencyConflicts: counter("eventsourcing.concurrency.conflicts", "Number of concurrency conflicts", "{conflict}"),

		eventsAppended: counter("eventsourcing.events.appended", "Number of events appended to streams", "{event}"),
		eventsLoaded:   counter("eventsourcing.events.loaded", "Number of events loaded from streams", "{event}"),

		eventBusPublished: counter("eventsourcing.eventbus.published", "Number of events published to event bus", "{event}"),
		eventBusHandled:   counter("eventsourcing.eventbus.handled", "Number of events handled by subscribers", "{event}"),
		eventBusErrors:    counter("eventsourcing.eventbus.errors", "Number of event bus handler errors", "{error}"),
		eventBusDuration:  histogram("eventsourcing.eventbus.duration", "Event handler duration"),

		queriesHandled:  counter("eventsourcing.queries.handled", "Total number of queries handled", "{query}"),
		queriesFailed:   counter("eventsourcing.queries.failed", "Number of failed queries", "{query}"),
		queriesInFlight: queriesInFlight,
		queriesDuration: histogram("eventsourcing.queries.duration", "Query handling duration"),

		eventStoreSaves:    counter("eventsourcing.eventstore.saves", "Number of save operations", "{operation}"),
		eventStoreLoads:    counter("eventsourcing.eventstore.loads", "Number of load operations", "{operation}"),
		eventStoreErrors:   counter("eventsourcing.eventstore.errors", "Number of event store errors", "{error}"),
		eventStoreDuration: histogram("eventsourcing.eventstore.duration", "Event store operation duration"),
	}
	return i, errors.Join(errs...)
}
