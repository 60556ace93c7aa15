package eventsourcing

import "context"

// Command expresses the intent to change the state of the system. Commands
// are routed by their concrete runtime type.
type Command any

// CommandHandler implements the business logic of one command type.
//
// Handlers should treat the command as immutable and return every failure as
// an error. A handler that panics is reported as a failed command.
//
// Example Usage:
//
//	func HandleOpenCart(ctx context.Context, cmd OpenCart) error {
//	    cart := NewCart(cmd.CartID, cmd.ClientID)
//	    _, err := carts.Add(ctx, cmd.CartID, cart)
//	    return err
//	}
type CommandHandler[C any] func(ctx context.Context, command C) error
