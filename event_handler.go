package eventsourcing

import (
	"context"
	"reflect"
)

// EventHandler reacts to events of a single concrete type.
//
// Handlers are looked up by the runtime type of the published payload, so
// EventType must return exactly that type (for example CartOpened or
// *CartOpened, whichever the producer publishes).
type EventHandler interface {
	EventType() reflect.Type
	Handle(ctx context.Context, envelope Envelope) error
}

// typedEventHandler receives the bare payload.
type typedEventHandler[T any] func(ctx context.Context, ev T) error

func (h typedEventHandler[T]) EventType() reflect.Type {
	return reflect.TypeFor[T]()
}

func (h typedEventHandler[T]) Handle(ctx context.Context, envelope Envelope) error {
	ev, ok := envelope.Event.(T)
	if !ok {
		return &ErrSkippedEvent{Event: envelope.Event}
	}
	return h(ctx, ev)
}

// OnEvent creates a payload-level EventHandler for events of type T.
//
// Parameters:
//   - fn: called with the payload of every envelope whose event is a T.
//
// Returns:
//   - EventHandler: a handler keyed by T, ready to be subscribed to a bus.
//
// Behavior Details:
//   - When handed an envelope of another type, Handle returns ErrSkippedEvent
//     without calling fn.
//   - Errors returned by fn are propagated unchanged.
//
// Example Usage:
//
//	bus.Subscribe("cart-projection",
//	    OnEvent(func(ctx context.Context, ev CartOpened) error {
//	        return view.Insert(ctx, ev.CartID)
//	    }),
//	)
func OnEvent[T any](fn func(ctx context.Context, ev T) error) EventHandler {
	return typedEventHandler[T](fn)
}

// envelopeEventHandler receives the payload together with its metadata.
type envelopeEventHandler[T any] func(ctx context.Context, ev EventEnvelope[T]) error

func (h envelopeEventHandler[T]) EventType() reflect.Type {
	return reflect.TypeFor[T]()
}

func (h envelopeEventHandler[T]) Handle(ctx context.Context, envelope Envelope) error {
	ev, ok := AsEventEnvelope[T](envelope)
	if !ok {
		return &ErrSkippedEvent{Event: envelope.Event}
	}
	return h(ctx, ev)
}

// OnEnvelope creates an envelope-level EventHandler for events of type T.
// The handler sees the event metadata (id, positions, trace context) as well
// as the payload.
func OnEnvelope[T any](fn func(ctx context.Context, ev EventEnvelope[T]) error) EventHandler {
	return envelopeEventHandler[T](fn)
}
