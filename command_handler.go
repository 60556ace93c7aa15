package eventsourcing

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
)

// StreamNamer produces the stream name for a given command, with access to context.
type StreamNamer func(ctx context.Context, cmd Command) string

// DefaultStreamNamer uses the AggregateID of commands that expose one.
//
// Example usage:
//
//	namer := WithStreamNamer(func(ctx context.Context, cmd Command) string {
//	    return StreamIDFor[Cart](streams, cmd.(OpenCart).CartID, "")
//	})
func DefaultStreamNamer(ctx context.Context, cmd Command) string {
	if c, ok := cmd.(interface{ AggregateID() string }); ok {
		return c.AggregateID()
	}
	return ""
}

// CommandHandlerOption customizes a handler built by NewCommandHandler.
type CommandHandlerOption func(configuration *handlerOptions)

// handlerOptions defines configuration for a CommandHandler.
//
// Fields:
//   - Revision: the concurrency check applied when saving. Nil means the
//     stream must still hold exactly the events the decision was based on.
//   - RetryStrategy: how often to reload and decide again after a
//     concurrency conflict. Defaults to no retries.
//   - StreamNamer: resolves the stream of a command.
type handlerOptions struct {
	Revision      StreamState
	RetryStrategy func() backoff.BackOff
	StreamNamer   StreamNamer
}

// WithRevision overrides the concurrency check used when saving, e.g. Any{}
// to append without checking.
func WithRevision(rev StreamState) CommandHandlerOption {
	return func(cfg *handlerOptions) { cfg.Revision = rev }
}

// WithRetryStrategy makes the handler reload the stream and decide again when
// the save hits a concurrency conflict. newBackOff is called once per command.
//
// Usage:
//
//	handler := NewCommandHandler(store, carts, WithRetryStrategy(func() backoff.BackOff {
//	    return backoff.WithMaxRetries(backoff.NewConstantBackOff(10*time.Millisecond), 3)
//	}))
func WithRetryStrategy(newBackOff func() backoff.BackOff) CommandHandlerOption {
	return func(cfg *handlerOptions) { cfg.RetryStrategy = newBackOff }
}

func WithStreamNamer(namer StreamNamer) CommandHandlerOption {
	return func(h *handlerOptions) {
		h.StreamNamer = namer
	}
}

// NewCommandHandler returns a CommandHandler driven by a Decider.
//
// It provides a reusable pattern for handling commands in an event-sourced system
// by performing the following steps:
//  1. Load the event history of the command's stream.
//  2. Evolve the state from InitialState through the history.
//  3. Decide which new events the command causes.
//  4. Append the events, expecting the stream to still hold the loaded history.
//
// Behavior Details:
//   - A missing stream starts from InitialState.
//   - Stored events that are not an E are skipped.
//   - If Decide returns no events nothing is saved.
//   - A Decide error is returned wrapped with ErrBusinessRuleViolation and is
//     never retried.
//   - A conflicting save returns a StreamRevisionConflictError, unless a retry
//     strategy is configured, in which case the new events are loaded and
//     the command is decided again.
//
// Example Usage:
//
//	handler := NewCommandHandler(store, carts)
//	Register(bus, "CartHandler", handler)
func NewCommandHandler[S, C, E any](
	store EventStore,
	decider Decider[S, C, E],
	opts ...CommandHandlerOption,
) CommandHandler[C] {
	cfg := &handlerOptions{
		RetryStrategy: func() backoff.BackOff { return &backoff.StopBackOff{} },
		StreamNamer:   DefaultStreamNamer,
	}
	for _, o := range opts {
		o(cfg)
	}

	return func(ctx context.Context, command C) error {
		stream := cfg.StreamNamer(ctx, command)
		if stream == "" {
			return fmt.Errorf("handle command %T: no stream name", command)
		}

		state := decider.InitialState()
		var revision uint64

		return backoff.Retry(func() error {
			// --- Load history ---
			iter, err := store.LoadStreamFrom(ctx, stream, revision)
			if err != nil && !errors.Is(err, ErrStreamNotFound) {
				return backoff.Permanent(fmt.Errorf("handle command %T (stream %q): load failed: %w", command, stream, err))
			}

			// --- Evolve state ---
			if iter != nil {
				for iter.Next(ctx) {
					revision++
					if event, ok := iter.Value().Event.(E); ok {
						state = decider.Evolve(state, event)
					}
				}
				if err := iter.Err(); err != nil && !errors.Is(err, ErrStreamNotFound) {
					return backoff.Permanent(fmt.Errorf("handle command %T (stream %q): iter failed: %w", command, stream, err))
				}
			}

			// --- Decide events ---
			events, err := decider.Decide(command, state)
			if err != nil {
				return backoff.Permanent(fmt.Errorf("handle command %T (stream %q): %w: %w", command, stream, ErrBusinessRuleViolation, err))
			}
			if len(events) == 0 {
				return nil
			}

			carrier := currentPropagationContext(ctx)
			envelopes := make([]Envelope, len(events))
			for i, event := range events {
				envelopes[i] = EnvelopeFrom(event)
				envelopes[i].Metadata.StreamID = stream
				envelopes[i].Metadata.PropagationContext = carrier
			}

			// --- Persist events ---
			expected := cfg.Revision
			if expected == nil {
				expected = Revision(revision)
			}

			if _, err := store.Save(ctx, envelopes, expected); err != nil {
				if errors.Is(err, ErrConcurrencyConflict) {
					return err
				}
				return backoff.Permanent(fmt.Errorf("handle command %T (stream %q): failed to save events: %w", command, stream, err))
			}
			return nil
		}, backoff.WithContext(cfg.RetryStrategy(), ctx))
	}
}
