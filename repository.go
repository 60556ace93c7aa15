package eventsourcing

import (
	"context"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type RepositoryOption func(*repositoryConfig)

type repositoryConfig struct {
	tenantID string
}

// WithTenant scopes every stream of the repository to a tenant.
func WithTenant(tenantID string) RepositoryOption {
	return func(c *repositoryConfig) {
		c.tenantID = tenantID
	}
}

// Repository loads and stores aggregates of type T through an EventStore,
// using optimistic concurrency on every write.
type Repository[T Aggregate] struct {
	store   EventStore
	streams *StreamNameMapper
	newT    func() T
	config  repositoryConfig
}

func NewRepository[T Aggregate](store EventStore, streams *StreamNameMapper, newT func() T, opts ...RepositoryOption) *Repository[T] {
	r := &Repository[T]{
		store:   store,
		streams: streams,
		newT:    newT,
	}
	for _, opt := range opts {
		opt(&r.config)
	}
	return r
}

// Find returns the aggregate, or false when its stream does not exist.
func (r *Repository[T]) Find(ctx context.Context, id string) (T, bool, error) {
	return AggregateStream(ctx, r.store, r.streams, id, r.newT, WithReplayTenant(r.config.tenantID))
}

// Get returns the aggregate or an *AggregateNotFoundError.
func (r *Repository[T]) Get(ctx context.Context, id string) (T, error) {
	return GetAggregate(ctx, r.store, r.streams, id, r.newT, WithReplayTenant(r.config.tenantID))
}

// Add stores the pending events of a new aggregate. It fails with
// ErrStreamExists when the stream was already written and with
// ErrInvalidEventBatch when the aggregate has nothing to store.
func (r *Repository[T]) Add(ctx context.Context, id string, agg T) (uint64, error) {
	streamID := r.streamID(id)
	envelopes := r.dequeue(ctx, streamID, agg)
	if len(envelopes) == 0 {
		return 0, fmt.Errorf("failed to add %s: no pending events: %w", streamID, ErrInvalidEventBatch)
	}

	result, err := r.store.Save(ctx, envelopes, NoStream{})
	if err != nil {
		return 0, fmt.Errorf("failed to add %s: %w", streamID, err)
	}
	recordNextResourceVersion(ctx, result.NextExpectedVersion)
	return result.NextExpectedVersion, nil
}

// Update stores the pending events of an existing aggregate.
//
// The expected version is taken from expected, then from an expected
// resource version in ctx (see WithExpectedResourceVersion), and finally
// defaults to the aggregate version minus the number of pending events,
// i.e. the version the aggregate was loaded at. A mismatch with the stored
// stream is reported as a StreamRevisionConflictError and is never retried
// here. The resulting version is recorded in a NextResourceVersion attached
// to ctx.
func (r *Repository[T]) Update(ctx context.Context, id string, agg T, expected *uint64) (uint64, error) {
	streamID := r.streamID(id)
	envelopes := r.dequeue(ctx, streamID, agg)

	revision := ExpectedVersion(agg, len(envelopes))
	if v, ok := ExpectedResourceVersion(ctx); ok {
		revision = v
	}
	if expected != nil {
		revision = *expected
	}
	if len(envelopes) == 0 {
		recordNextResourceVersion(ctx, revision)
		return revision, nil
	}

	result, err := r.store.Save(ctx, envelopes, Revision(revision))
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", streamID, err)
	}
	recordNextResourceVersion(ctx, result.NextExpectedVersion)
	return result.NextExpectedVersion, nil
}

// Delete stores the pending events that mark the aggregate as removed.
func (r *Repository[T]) Delete(ctx context.Context, id string, agg T, expected *uint64) (uint64, error) {
	return r.Update(ctx, id, agg, expected)
}

// GetAndUpdate loads the aggregate, runs action on it and stores the events it raised.
func (r *Repository[T]) GetAndUpdate(ctx context.Context, id string, action func(T) error, expected *uint64) (uint64, error) {
	agg, err := r.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := action(agg); err != nil {
		return 0, err
	}
	return r.Update(ctx, id, agg, expected)
}

func (r *Repository[T]) streamID(id string) string {
	return r.streams.ToStreamID(reflect.TypeFor[T](), id, r.config.tenantID)
}

func (r *Repository[T]) dequeue(ctx context.Context, streamID string, agg T) []Envelope {
	events := agg.DequeueUncommittedEvents()
	carrier := currentPropagationContext(ctx)

	envelopes := make([]Envelope, 0, len(events))
	for _, event := range events {
		env := EnvelopeFrom(event)
		env.Metadata.StreamID = streamID
		env.Metadata.PropagationContext = carrier
		envelopes = append(envelopes, env)
	}
	return envelopes
}

// currentPropagationContext captures the trace context of ctx, or nil when
// there is nothing to propagate.
func currentPropagationContext(ctx context.Context) propagation.MapCarrier {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) == 0 {
		return nil
	}
	return carrier
}
