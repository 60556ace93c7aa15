package eventsourcing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	es "github.com/terraskye/eventsourcing-core"
	"github.com/terraskye/eventsourcing-core/eventstore/memory"
	"github.com/terraskye/eventsourcing-core/fixtures"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func newCartRepository(store es.EventStore, opts ...es.RepositoryOption) *es.Repository[*fixtures.Cart] {
	return es.NewRepository(store, es.NewStreamNameMapper(), fixtures.BlankCart, opts...)
}

func TestRepository_AddGetUpdate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStore()
	carts := newCartRepository(store)

	cart := fixtures.NewCart("cart-1", "client-1")
	require.NoError(t, cart.AddProduct("p-1", 2))

	version, err := carts.Add(ctx, "cart-1", cart)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	assert.Zero(t, cart.PendingEvents())

	loaded, err := carts.Get(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Items)
	assert.Equal(t, uint64(2), loaded.AggregateVersion())

	require.NoError(t, loaded.Confirm())
	version, err = carts.Update(ctx, "cart-1", loaded, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), version)

	iter, err := store.LoadStream(ctx, "fixtures_Cart-cart-1")
	require.NoError(t, err)
	events, err := iter.All(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestRepository_AddTwiceFails(t *testing.T) {
	ctx := context.Background()
	carts := newCartRepository(memory.NewMemoryStore())

	_, err := carts.Add(ctx, "cart-1", fixtures.NewCart("cart-1", "a"))
	require.NoError(t, err)

	_, err = carts.Add(ctx, "cart-1", fixtures.NewCart("cart-1", "b"))
	assert.ErrorIs(t, err, es.ErrStreamExists)
}

func TestRepository_AddWithoutEventsFails(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStore()
	carts := newCartRepository(store)
	_, err := carts.Add(ctx, "cart-1", fixtures.NewCart("cart-1", "a"))
	require.NoError(t, err)

	cart := fixtures.NewCart("cart-1", "b")
	cart.DequeueUncommittedEvents()
	version, err := carts.Add(ctx, "cart-1", cart)

	assert.ErrorIs(t, err, es.ErrInvalidEventBatch)
	assert.Zero(t, version)
}

func TestRepository_StaleUpdateConflicts(t *testing.T) {
	ctx := context.Background()
	carts := newCartRepository(memory.NewMemoryStore())
	_, err := carts.Add(ctx, "cart-1", fixtures.NewCart("cart-1", "client-1"))
	require.NoError(t, err)

	first, err := carts.Get(ctx, "cart-1")
	require.NoError(t, err)
	second, err := carts.Get(ctx, "cart-1")
	require.NoError(t, err)

	require.NoError(t, first.AddProduct("p-1", 1))
	_, err = carts.Update(ctx, "cart-1", first, nil)
	require.NoError(t, err)

	require.NoError(t, second.Confirm())
	_, err = carts.Update(ctx, "cart-1", second, nil)
	assert.ErrorIs(t, err, es.ErrConcurrencyConflict)
}

func TestRepository_ExplicitExpectedVersion(t *testing.T) {
	ctx := context.Background()
	store := fixtures.NewStoreSpy()
	carts := newCartRepository(store)

	cart := fixtures.NewCart("cart-1", "client-1")
	cart.DequeueUncommittedEvents()
	require.NoError(t, cart.Confirm())

	expected := uint64(7)
	_, err := carts.Update(ctx, "cart-1", cart, &expected)
	require.NoError(t, err)
	assert.Equal(t, es.Revision(7), store.LastSaveRevision)
}

func TestRepository_UpdateWithoutChangesDoesNotSave(t *testing.T) {
	store := fixtures.NewStoreSpy()
	carts := newCartRepository(store)
	cart := fixtures.NewCart("cart-1", "client-1")
	cart.DequeueUncommittedEvents()

	version, err := carts.Update(context.Background(), "cart-1", cart, nil)

	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)
	assert.Zero(t, store.SaveCalls)
}

func TestRepository_GetAndUpdate(t *testing.T) {
	ctx := context.Background()
	carts := newCartRepository(memory.NewMemoryStore(), es.WithTenant("acme"))
	_, err := carts.Add(ctx, "cart-1", fixtures.NewCart("cart-1", "client-1"))
	require.NoError(t, err)

	version, err := carts.GetAndUpdate(ctx, "cart-1", func(c *fixtures.Cart) error {
		return c.AddProduct("p-1", 1)
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)

	_, err = carts.GetAndUpdate(ctx, "missing", func(c *fixtures.Cart) error { return nil }, nil)
	assert.ErrorIs(t, err, es.ErrStreamNotFound)
}

func TestRepository_Find(t *testing.T) {
	carts := newCartRepository(memory.NewMemoryStore())

	cart, found, err := carts.Find(context.Background(), "cart-1")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, cart)
}

func TestRepository_RecordsTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator()) })

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "add cart")
	defer span.End()

	store := fixtures.NewStoreSpy()
	_, err := newCartRepository(store).Add(ctx, "cart-1", fixtures.NewCart("cart-1", "client-1"))
	require.NoError(t, err)

	carrier := store.LastSaveEvents[0].Metadata.PropagationContext
	assert.Contains(t, carrier.Get("traceparent"), span.SpanContext().TraceID().String())
}

func TestRepository_ExpectedResourceVersionFromContext(t *testing.T) {
	store := fixtures.NewStoreSpy()
	carts := newCartRepository(store)
	cart := fixtures.NewCart("cart-1", "client-1")
	cart.DequeueUncommittedEvents()
	require.NoError(t, cart.Confirm())

	ctx := es.WithExpectedResourceVersion(context.Background(), "4")
	_, err := carts.Update(ctx, "cart-1", cart, nil)

	require.NoError(t, err)
	assert.Equal(t, es.Revision(4), store.LastSaveRevision)
}

func TestRepository_ExplicitVersionWinsOverContext(t *testing.T) {
	store := fixtures.NewStoreSpy()
	carts := newCartRepository(store)
	cart := fixtures.NewCart("cart-1", "client-1")
	cart.DequeueUncommittedEvents()
	require.NoError(t, cart.Confirm())

	expected := uint64(9)
	ctx := es.WithExpectedResourceVersion(context.Background(), "4")
	_, err := carts.Update(ctx, "cart-1", cart, &expected)

	require.NoError(t, err)
	assert.Equal(t, es.Revision(9), store.LastSaveRevision)
}

func TestRepository_RecordsNextResourceVersion(t *testing.T) {
	carts := newCartRepository(memory.NewMemoryStore())

	ctx, next := es.WithNextResourceVersion(context.Background())
	_, err := carts.Add(ctx, "cart-1", fixtures.NewCart("cart-1", "client-1"))
	require.NoError(t, err)
	assert.Equal(t, "1", next.Value())

	ctx = es.WithExpectedResourceVersion(ctx, next.Value())
	_, err = carts.GetAndUpdate(ctx, "cart-1", func(c *fixtures.Cart) error {
		return c.AddProduct("p-1", 1)
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "2", next.Value())
	assert.Equal(t, `W/"2"`, es.FormatETag(2))

	stale := es.WithExpectedResourceVersion(context.Background(), "1")
	_, err = carts.GetAndUpdate(stale, "cart-1", func(c *fixtures.Cart) error {
		return c.Confirm()
	}, nil)
	assert.ErrorIs(t, err, es.ErrConcurrencyConflict)
}
