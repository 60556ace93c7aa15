package eventsourcing

import (
	"context"
)

// GenericQueryGateway provides a typed QueryHandler view of a QueryBus, so
// the bus can be handed to code that expects a single handler.
//
// Example Usage:
//
//	gateway := NewQueryGateway[MyQuery, *MyResult](bus)
//	result, err := gateway.HandleQuery(ctx, MyQuery{ID: "42"})
type GenericQueryGateway[T any, R any] struct {
	bus *QueryBus
}

func NewQueryGateway[T any, R any](bus *QueryBus) GenericQueryGateway[T, R] {
	return GenericQueryGateway[T, R]{bus: bus}
}

// HandleQuery executes the registered handler for a given query.
func (g GenericQueryGateway[T, R]) HandleQuery(ctx context.Context, qry T) (R, error) {
	return ExecuteQuery[T, R](ctx, g.bus, qry)
}
