package eventsourcing

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

type ReplayOption func(*replayOptions)

type replayOptions struct {
	fromVersion uint64
	tenantID    string
}

// WithFromVersion starts the replay at the given zero-based stream position.
// The resulting aggregate reports fromVersion plus the number of events read.
func WithFromVersion(version uint64) ReplayOption {
	return func(o *replayOptions) {
		o.fromVersion = version
	}
}

// WithReplayTenant reads the stream of the aggregate within a tenant.
func WithReplayTenant(tenantID string) ReplayOption {
	return func(o *replayOptions) {
		o.tenantID = tenantID
	}
}

// Fold applies every envelope produced by events to agg, strictly in the
// order the iterator yields them. Each applied event increments the version.
//
// Fold stops at the first iterator error or when ctx is canceled, and
// returns the number of events applied so far.
func Fold(ctx context.Context, agg Aggregate, events *Iterator[Envelope]) (int, error) {
	applied := 0
	for events.Next(ctx) {
		applyStored(agg, events.Value().Event)
		applied++
		if err := ctx.Err(); err != nil {
			return applied, err
		}
	}
	return applied, events.Err()
}

// AggregateStream rebuilds the aggregate with the given id from its stream.
//
// Parameters:
//   - store: the event store to read from.
//   - streams: resolves the stream id of T.
//   - id: the aggregate identifier.
//   - newT: returns a blank aggregate. It must not raise events.
//
// Returns:
//   - the rebuilt aggregate and true when the stream exists.
//   - the zero T and false when the stream has never been written.
//   - an error for any read failure.
//
// Example Usage:
//
//	cart, found, err := AggregateStream(ctx, store, streams, "42", func() *Cart { return &Cart{} })
func AggregateStream[T Aggregate](
	ctx context.Context,
	store EventStore,
	streams *StreamNameMapper,
	id string,
	newT func() T,
	opts ...ReplayOption,
) (T, bool, error) {
	var zero T

	o := replayOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	streamID := streams.ToStreamID(reflect.TypeFor[T](), id, o.tenantID)

	var (
		events *Iterator[Envelope]
		err    error
	)
	if o.fromVersion > 0 {
		events, err = store.LoadStreamFrom(ctx, streamID, o.fromVersion)
	} else {
		events, err = store.LoadStream(ctx, streamID)
	}
	if errors.Is(err, ErrStreamNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("failed to load stream %s: %w", streamID, err)
	}

	agg := newT()
	base := agg.aggregateBase()
	if base.id == "" {
		base.id = id
	}
	base.version = o.fromVersion

	applied, err := Fold(ctx, agg, events)
	if errors.Is(err, ErrStreamNotFound) && applied == 0 {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("failed to replay stream %s: %w", streamID, err)
	}

	return agg, true, nil
}

// GetAggregate is like AggregateStream but reports a missing stream as an
// *AggregateNotFoundError naming the aggregate type and id.
func GetAggregate[T Aggregate](
	ctx context.Context,
	store EventStore,
	streams *StreamNameMapper,
	id string,
	newT func() T,
	opts ...ReplayOption,
) (T, error) {
	agg, found, err := AggregateStream(ctx, store, streams, id, newT, opts...)
	if err != nil {
		return agg, err
	}
	if !found {
		return agg, &AggregateNotFoundError{
			TypeName: simpleName(reflect.TypeFor[T]()),
			ID:       id,
		}
	}
	return agg, nil
}
