package fixtures

import (
	"time"

	"github.com/google/uuid"
	es "github.com/terraskye/eventsourcing-core"
)

// EnvelopeOption is a functional option for configuring an Envelope.
type EnvelopeOption func(*es.Envelope)

// NewEnvelope creates an Envelope with the given event and options.
func NewEnvelope(event es.Event, opts ...EnvelopeOption) es.Envelope {
	env := es.NewEnvelope(event, es.EventMetadata{
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
	})

	for _, opt := range opts {
		opt(&env)
	}

	return env
}

func WithEventID(id string) EnvelopeOption {
	return func(e *es.Envelope) {
		e.Metadata.EventID = id
	}
}

func WithStreamID(id string) EnvelopeOption {
	return func(e *es.Envelope) {
		e.Metadata.StreamID = id
	}
}

func WithStreamPosition(p uint64) EnvelopeOption {
	return func(e *es.Envelope) {
		e.Metadata.StreamPosition = p
	}
}

func WithLogPosition(p uint64) EnvelopeOption {
	return func(e *es.Envelope) {
		e.Metadata.LogPosition = p
	}
}

// WithPropagation sets the recorded trace headers.
func WithPropagation(carrier map[string]string) EnvelopeOption {
	return func(e *es.Envelope) {
		e.Metadata.PropagationContext = carrier
	}
}

// EnvelopesFromEvents wraps events of one stream with sequential positions.
func EnvelopesFromEvents(streamID string, events ...es.Event) []es.Envelope {
	envelopes := make([]es.Envelope, len(events))
	for i, event := range events {
		envelopes[i] = NewEnvelope(event,
			WithStreamID(streamID),
			WithStreamPosition(uint64(i)),
			WithLogPosition(uint64(i)),
		)
	}
	return envelopes
}
