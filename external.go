package eventsourcing

import (
	"context"
)

// ExternalEventProducer forwards events to consumers outside the process.
type ExternalEventProducer interface {
	Publish(ctx context.Context, envelope Envelope) error
}

// NopExternalEventProducer drops every event.
type NopExternalEventProducer struct{}

func (NopExternalEventProducer) Publish(context.Context, Envelope) error { return nil }

type externalProducerBus struct {
	next     EventBus
	producer ExternalEventProducer
}

// EventBusWithExternalProducer decorates bus so that events implementing
// ExternalEvent are also handed to producer.
//
// Internal delivery always completes before external forwarding starts. If
// internal delivery fails nothing is forwarded; if forwarding fails the
// internal handlers are not rolled back.
func EventBusWithExternalProducer(bus EventBus, producer ExternalEventProducer) EventBus {
	return &externalProducerBus{next: bus, producer: producer}
}

func (b *externalProducerBus) Publish(ctx context.Context, envelope Envelope) error {
	if err := b.next.Publish(ctx, envelope); err != nil {
		return err
	}
	if _, ok := envelope.Event.(ExternalEvent); !ok {
		return nil
	}
	return b.producer.Publish(ctx, envelope)
}

func (b *externalProducerBus) PublishBatch(ctx context.Context, envelopes []Envelope) error {
	for _, envelope := range envelopes {
		if err := b.Publish(ctx, envelope); err != nil {
			return err
		}
	}
	return nil
}
