package eventsourcing

import (
	"context"
)

// ForwardCommand subscribes bus to messages of type C arriving on an event
// bus. Each one is passed to TrySend, so a message without a registered
// command handler is dropped silently.
//
// Example:
//
//	events.Subscribe("outbox", ForwardCommand[ShipCart](commands))
func ForwardCommand[C any](bus CommandBus) EventHandler {
	return OnEvent(func(ctx context.Context, cmd C) error {
		_, err := bus.TrySend(ctx, cmd)
		return err
	})
}
