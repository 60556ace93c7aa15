package eventsourcing

import (
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
)

var now = time.Now

// Event is a domain event describing a change that has happened to an aggregate.
// Events are plain values; their logical name is resolved through an EventTypeMapper.
type Event any

// ExternalEvent marks events that must also leave the process once they have
// been delivered internally.
type ExternalEvent interface {
	ExternalEvent()
}

// EventMetadata is the delivery information attached to a single event occurrence.
//
// Positions are assigned by the event store and are never computed here.
type EventMetadata struct {
	EventID        string
	StreamID       string
	StreamPosition uint64
	LogPosition    uint64
	OccurredAt     time.Time

	// PropagationContext carries the W3C trace headers of the producer. It is
	// nil when the event was recorded without an active trace.
	PropagationContext propagation.MapCarrier
}

// Envelope wraps exactly one event occurrence together with its metadata.
// Envelopes are passed by value and must not be mutated after construction.
type Envelope struct {
	Event    Event
	Metadata EventMetadata
}

// NewEnvelope wraps an event with the given metadata.
func NewEnvelope(event Event, metadata EventMetadata) Envelope {
	return Envelope{Event: event, Metadata: metadata}
}

// EnvelopeFrom wraps an event with a freshly generated id and zero positions.
func EnvelopeFrom(event Event) Envelope {
	return Envelope{
		Event: event,
		Metadata: EventMetadata{
			EventID:    uuid.NewString(),
			OccurredAt: now(),
		},
	}
}

// EventEnvelope is the typed view of an Envelope handed to envelope-level handlers.
type EventEnvelope[T any] struct {
	Data     T
	Metadata EventMetadata
}

// AsEventEnvelope returns the typed view of env when its payload is a T.
func AsEventEnvelope[T any](env Envelope) (EventEnvelope[T], bool) {
	data, ok := env.Event.(T)
	if !ok {
		return EventEnvelope[T]{}, false
	}
	return EventEnvelope[T]{Data: data, Metadata: env.Metadata}, true
}
