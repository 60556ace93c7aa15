package eventsourcing

import (
	"reflect"
)

// HydrateHandler applies one event type to an aggregate state.
type HydrateHandler interface {
	EventType() reflect.Type
	Apply(event Event)
}

type genericHydrateHandler[T any] struct {
	apply func(event T)
}

// On creates a HydrateHandler for events of type T.
func On[T any](apply func(event T)) HydrateHandler {
	return genericHydrateHandler[T]{apply: apply}
}

func (h genericHydrateHandler[T]) EventType() reflect.Type {
	return reflect.TypeFor[T]()
}

func (h genericHydrateHandler[T]) Apply(e Event) {
	h.apply(e.(T))
}

// Hydrate builds an Apply function that routes events by their runtime type.
// Events without a handler are ignored, so new event types can be added to a
// stream without breaking older aggregates.
//
// Example Usage:
//
//	func (c *Cart) Apply(event eventsourcing.Event) {
//		c.apply(event)
//	}
//
//	c.apply = eventsourcing.Hydrate(
//		eventsourcing.On(func(e CartOpened) { c.Status = CartOpen }),
//		eventsourcing.On(func(e ProductAdded) { c.Items++ }),
//	)
func Hydrate(handlers ...HydrateHandler) func(event Event) {
	routes := make(map[reflect.Type]HydrateHandler, len(handlers))
	for _, handler := range handlers {
		routes[handler.EventType()] = handler
	}

	return func(event Event) {
		if event == nil {
			return
		}
		if handler, ok := routes[reflect.TypeOf(event)]; ok {
			handler.Apply(event)
		}
	}
}
