package eventsourcing

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// EventBus delivers envelopes to the handlers subscribed for their payload type.
type EventBus interface {
	// Publish returns once every handler for the envelope has run, or with
	// the first handler error.
	Publish(ctx context.Context, envelope Envelope) error

	// PublishBatch publishes envelopes one after the other and stops at the
	// first failure.
	PublishBatch(ctx context.Context, envelopes []Envelope) error
}

type subscription struct {
	name    string
	handler EventHandler
}

// InMemoryEventBus dispatches envelopes synchronously within the calling goroutine.
//
// Behavior Details:
//   - Handlers are resolved by the runtime type of the payload. Payload-level
//     and envelope-level handlers for the same type share one ordered list.
//   - Handlers run sequentially in subscription order. Each one runs in its
//     own span named "{subscriber}/{event name}" inside its own retry
//     execution.
//   - A handler that still fails after its retries aborts the remaining
//     handlers of that publish call. Completed handlers are not undone.
//   - Cancellation of ctx is checked before every handler.
//
// Example Usage:
//
//	bus := NewInMemoryEventBus(
//	    WithTypeMapper(types),
//	    WithRetryPolicy(NewExponentialRetryPolicy(3, 100*time.Millisecond, time.Second, 2)),
//	)
//	bus.Subscribe("cart-projection",
//	    OnEvent(projection.OnCartOpened),
//	    OnEnvelope(projection.OnProductAdded),
//	)
//	err := bus.Publish(ctx, EnvelopeFrom(CartOpened{CartID: "42"}))
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]subscription
	config   busConfig
}

func NewInMemoryEventBus(opts ...Option) *InMemoryEventBus {
	return &InMemoryEventBus{
		handlers: make(map[reflect.Type][]subscription),
		config:   newBusConfig(opts),
	}
}

// Subscribe registers handlers under a subscriber name. Subscribing is
// expected at startup but is safe while publishing.
func (b *InMemoryEventBus) Subscribe(name string, handlers ...EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, h := range handlers {
		t := h.EventType()
		b.handlers[t] = append(b.handlers[t], subscription{name: name, handler: h})
	}
}

func (b *InMemoryEventBus) Publish(ctx context.Context, envelope Envelope) error {
	if envelope.Event == nil {
		return nil
	}

	b.mu.RLock()
	subs := slices.Clone(b.handlers[reflect.TypeOf(envelope.Event)])
	b.mu.RUnlock()

	if len(subs) == 0 {
		return nil
	}

	eventName := b.config.types.NameOf(envelope.Event)
	ctx = WithEnvelope(ctx, envelope)

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := b.config.activity.Run(ctx, sub.name+"/"+eventName, func(ctx context.Context) error {
			return b.config.retry.Execute(ctx, func(ctx context.Context) error {
				return sub.handler.Handle(ctx, envelope)
			})
		},
			WithActivityAttributes(
				AttrEventType.String(eventName),
				AttrHandler.String(sub.name),
				AttrEventID.String(envelope.Metadata.EventID),
			),
		)
		if err != nil {
			return fmt.Errorf("handler %s failed for event %s: %w", sub.name, eventName, err)
		}
	}

	return nil
}

func (b *InMemoryEventBus) PublishBatch(ctx context.Context, envelopes []Envelope) error {
	return publishBatch(ctx, b, b.config, envelopes)
}

// publishBatch publishes every envelope in its own consumer span, parented
// on the trace context recorded with the event.
func publishBatch(ctx context.Context, bus EventBus, cfg busConfig, envelopes []Envelope) error {
	for _, envelope := range envelopes {
		if err := ctx.Err(); err != nil {
			return err
		}
		eventName := cfg.types.NameOf(envelope.Event)

		err := cfg.activity.Run(ctx, "EventBus/PublishBatch", func(ctx context.Context) error {
			return bus.Publish(ctx, envelope)
		},
			WithActivityKind(trace.SpanKindConsumer),
			WithParentContext(envelope.Metadata.PropagationContext),
			WithActivityAttributes(
				AttrEventType.String(eventName),
				AttrStreamID.String(envelope.Metadata.StreamID),
				AttrStreamPosition.Int64(int64(envelope.Metadata.StreamPosition)),
			),
		)
		if err != nil {
			cfg.logger.ErrorContext(ctx, "error consuming event",
				slog.String("event_type", eventName),
				slog.String("event_id", envelope.Metadata.EventID),
				slog.String("stream_id", envelope.Metadata.StreamID),
				slog.Any("error", err),
			)
			return err
		}
	}
	return nil
}
