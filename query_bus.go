package eventsourcing

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

type queryKey struct {
	query  reflect.Type
	result reflect.Type
}

type registeredQueryHandler struct {
	name   string
	handle any
}

// QueryBus acts as a central registry for query handlers, keyed by their
// query and result types.
//
// Every query runs inside a span named "{handler}/{query}" and under the
// configured RetryPolicy.
//
// Example Usage:
//
//	bus := NewQueryBus(WithRetryPolicy(policy))
//	RegisterQueryHandler(bus, NewQueryHandlerFunc(func(ctx context.Context, q MyQuery) (*MyResult, error) {
//	    return &MyResult{Value: 42}, nil
//	}))
//	result, err := ExecuteQuery[MyQuery, *MyResult](ctx, bus, MyQuery{ID: "42"})
type QueryBus struct {
	mu       sync.RWMutex
	handlers map[queryKey]registeredQueryHandler
	config   busConfig
}

func NewQueryBus(opts ...Option) *QueryBus {
	return &QueryBus{
		handlers: make(map[queryKey]registeredQueryHandler),
		config:   newBusConfig(opts),
	}
}

// HandlerOption configures a registered query handler.
type HandlerOption func(*handlerSettings)

type handlerSettings struct {
	name string
}

// WithHandlerName names the handler in spans. The default is the query type
// name followed by "Handler".
func WithHandlerName(name string) HandlerOption {
	return func(s *handlerSettings) {
		s.name = name
	}
}

// RegisterQueryHandler registers a QueryHandler for a specific query and
// result type on the provided QueryBus.
//
// Behavior Details:
//   - Panics if a handler is already registered for the same query and
//     result types.
func RegisterQueryHandler[T any, R any](bus *QueryBus, handler QueryHandler[T, R], opts ...HandlerOption) {
	key := queryKey{query: reflect.TypeFor[T](), result: reflect.TypeFor[R]()}

	settings := &handlerSettings{name: simpleName(key.query) + "Handler"}
	for _, opt := range opts {
		opt(settings)
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()

	if _, exists := bus.handlers[key]; exists {
		panic(fmt.Errorf("handler already registered for query %s -> %s: %w", key.query, key.result, ErrDuplicateHandler))
	}
	bus.handlers[key] = registeredQueryHandler{name: settings.name, handle: handler}
}

// ExecuteQuery runs qry through the handler registered for T and R.
//
// Returns an error wrapping ErrHandlerNotFound when no handler is registered.
func ExecuteQuery[T any, R any](ctx context.Context, bus *QueryBus, qry T) (R, error) {
	var zero R
	key := queryKey{query: reflect.TypeFor[T](), result: reflect.TypeFor[R]()}

	bus.mu.RLock()
	h, ok := bus.handlers[key]
	bus.mu.RUnlock()

	if !ok {
		return zero, fmt.Errorf("no handler registered for query %s -> %s: %w", key.query, key.result, ErrHandlerNotFound)
	}

	handler, ok := h.handle.(QueryHandler[T, R])
	if !ok {
		return zero, fmt.Errorf("handler type mismatch for query %s -> %s", key.query, key.result)
	}

	queryName := simpleName(key.query)

	var result R
	err := bus.config.activity.Run(ctx, h.name+"/"+queryName, func(ctx context.Context) error {
		return bus.config.retry.Execute(ctx, func(ctx context.Context) error {
			r, err := handler.HandleQuery(ctx, qry)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	},
		WithActivityAttributes(
			AttrQueryType.String(queryName),
			AttrHandler.String(h.name),
		),
	)
	if err != nil {
		return zero, err
	}
	return result, nil
}
