package eventsourcing

import (
	"context"
)

// Query asks the system for data without changing it. Queries are routed by
// their concrete type together with the requested result type.
type Query any

// QueryHandler represents a handler for a specific query type T and
// produces a result of type R.
//
// Example Usage:
//
//	type MyQuery struct { ID string }
//	type MyResult struct { Value int }
//
//	handler := NewQueryHandlerFunc(func(ctx context.Context, q MyQuery) (*MyResult, error) {
//	    return &MyResult{Value: 123}, nil
//	})
//
//	var _ QueryHandler[MyQuery, *MyResult] = handler
type QueryHandler[T any, R any] interface {
	HandleQuery(ctx context.Context, qry T) (R, error)
}

type queryHandlerFunc[T any, R any] func(ctx context.Context, qry T) (R, error)

func (f queryHandlerFunc[T, R]) HandleQuery(ctx context.Context, qry T) (R, error) {
	return f(ctx, qry)
}

// NewQueryHandlerFunc creates a QueryHandler from a function.
func NewQueryHandlerFunc[T any, R any](fn func(ctx context.Context, qry T) (R, error)) QueryHandler[T, R] {
	return queryHandlerFunc[T, R](fn)
}
