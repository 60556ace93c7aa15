package eventsourcing

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type registeredCommandHandler struct {
	name   string
	handle func(ctx context.Context, cmd Command) error
}

// CommandBus dispatches a command to the single handler of its type.
type CommandBus interface {
	// TrySend reports false without error when no handler is registered.
	TrySend(ctx context.Context, cmd Command) (bool, error)

	// Send fails with an *UnhandledCommandError when no handler is registered.
	Send(ctx context.Context, cmd Command) error
}

// InMemoryCommandBus is a synchronous, type-safe command dispatcher.
//
// Every handled attempt runs inside a consumer span named
// "{handler}/{command}" and is measured by CommandHandlerMetrics: the
// in-flight count goes up before the handler runs and down afterwards, the
// total count is incremented and the duration is recorded, whether the
// handler succeeds, fails or panics. Attempts are repeated according to the
// configured RetryPolicy.
type InMemoryCommandBus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type]registeredCommandHandler
	config   busConfig
	metrics  *CommandHandlerMetrics
}

// NewInMemoryCommandBus creates a command bus.
//
// Example:
//
//	bus := NewInMemoryCommandBus(WithRetryPolicy(policy))
//	Register(bus, "OpenCartHandler", HandleOpenCart)
//	err := bus.Send(ctx, OpenCart{CartID: "42"})
func NewInMemoryCommandBus(opts ...Option) *InMemoryCommandBus {
	cfg := newBusConfig(opts)

	var metrics *CommandHandlerMetrics
	if cfg.meterProvider != nil {
		m, err := NewCommandHandlerMetrics(cfg.meterProvider)
		if err != nil {
			otel.Handle(err)
		}
		metrics = m
	} else {
		metrics = defaultCommandHandlerMetrics()
	}

	return &InMemoryCommandBus{
		handlers: make(map[reflect.Type]registeredCommandHandler),
		config:   cfg,
		metrics:  metrics,
	}
}

// Register adds the handler for command type C to the bus.
//
// Parameters:
//   - b: the bus to register on
//   - name: the handler name used in span names and logs
//   - handler: the typed handler for C
//
// Notes:
//   - Panics if a handler is already registered for C; a command type has
//     exactly one handler.
//
// Example:
//
//	Register(bus, "OpenCartHandler", HandleOpenCart)
func Register[C any](b *InMemoryCommandBus, name string, handler CommandHandler[C]) {
	t := reflect.TypeFor[C]()

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[t]; exists {
		panic(fmt.Errorf("handler already registered for command type %s: %w", t, ErrDuplicateHandler))
	}

	b.handlers[t] = registeredCommandHandler{
		name: name,
		handle: func(ctx context.Context, cmd Command) error {
			c, ok := cmd.(C)
			if !ok {
				return fmt.Errorf("expected command type %s but got %T", t, cmd)
			}
			return handler(ctx, c)
		},
	}
}

func (b *InMemoryCommandBus) TrySend(ctx context.Context, cmd Command) (bool, error) {
	if cmd == nil {
		return false, nil
	}

	b.mu.RLock()
	h, ok := b.handlers[reflect.TypeOf(cmd)]
	b.mu.RUnlock()

	if !ok {
		return false, nil
	}

	commandName := TypeName(cmd)

	err := b.config.retry.Execute(ctx, func(ctx context.Context) error {
		end := b.metrics.Start(ctx, commandName)
		defer end()

		return b.config.activity.Run(ctx, h.name+"/"+commandName, func(ctx context.Context) error {
			return safeHandle(ctx, h, cmd)
		},
			WithActivityKind(trace.SpanKindConsumer),
			WithActivityAttributes(
				AttrCommandType.String(commandName),
				AttrHandler.String(h.name),
			),
		)
	})
	if err != nil {
		b.config.logger.DebugContext(ctx, "command failed",
			"command_type", commandName,
			"handler", h.name,
			"error", err,
		)
	}

	return true, err
}

func (b *InMemoryCommandBus) Send(ctx context.Context, cmd Command) error {
	handled, err := b.TrySend(ctx, cmd)
	if err != nil {
		return err
	}
	if !handled {
		return &UnhandledCommandError{CommandType: TypeName(cmd)}
	}
	return nil
}

func safeHandle(ctx context.Context, h registeredCommandHandler, cmd Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler %s: %v", h.name, r)
		}
	}()
	return h.handle(ctx, cmd)
}
