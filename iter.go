package eventsourcing

import (
	"context"
	"errors"
	"io"
)

// Iterator is a pull-based cursor over the results of a store read.
//
// The producing function returns io.EOF once exhausted; io.EOF ends iteration
// without being reported by Err. Any other error ends iteration and is kept.
// After the first terminal result the producer is never called again.
type Iterator[T any] struct {
	next    func(ctx context.Context) (T, error)
	current T
	err     error
	done    bool
}

// NewIteratorFunc wraps a producer function into an Iterator.
func NewIteratorFunc[T any](next func(ctx context.Context) (T, error)) *Iterator[T] {
	return &Iterator[T]{next: next}
}

// NewSliceIterator iterates over an in-memory slice.
func NewSliceIterator[T any](items []T) *Iterator[T] {
	i := 0
	return NewIteratorFunc(func(ctx context.Context) (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if i >= len(items) {
			return zero, io.EOF
		}
		v := items[i]
		i++
		return v, nil
	})
}

// Next advances the iterator. It returns false once the producer is
// exhausted or has failed.
func (it *Iterator[T]) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	v, err := it.next(ctx)
	if err != nil {
		var zero T
		it.current = zero
		it.done = true
		if !errors.Is(err, io.EOF) {
			it.err = err
		}
		return false
	}
	it.current = v
	return true
}

// Value returns the element produced by the last successful Next.
func (it *Iterator[T]) Value() T {
	return it.current
}

// Err returns the error that ended iteration, if any.
func (it *Iterator[T]) Err() error {
	return it.err
}

// All drains the iterator into a slice.
func (it *Iterator[T]) All(ctx context.Context) ([]T, error) {
	var results []T
	for it.Next(ctx) {
		results = append(results, it.Value())
	}
	return results, it.Err()
}
