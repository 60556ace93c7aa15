package eventsourcing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	es "github.com/terraskye/eventsourcing-core"
	"github.com/terraskye/eventsourcing-core/fixtures"
)

func TestEnqueue_AppliesAndQueues(t *testing.T) {
	cart := fixtures.NewCart("cart-1", "client-1")
	require.NoError(t, cart.AddProduct("p-1", 2))

	assert.Equal(t, "cart-1", cart.AggregateID())
	assert.Equal(t, fixtures.CartOpen, cart.Status)
	assert.Equal(t, 2, cart.Items)
	assert.Equal(t, uint64(2), cart.AggregateVersion())
	assert.Equal(t, 2, cart.PendingEvents())
}

func TestDequeueUncommittedEvents(t *testing.T) {
	cart := fixtures.NewCart("cart-1", "client-1")
	require.NoError(t, cart.AddProduct("p-1", 1))
	require.NoError(t, cart.Confirm())

	events := cart.DequeueUncommittedEvents()

	assert.Equal(t, []es.Event{
		fixtures.CartOpened{CartID: "cart-1", ClientID: "client-1"},
		fixtures.ProductAdded{CartID: "cart-1", ProductID: "p-1", Quantity: 1},
		fixtures.CartConfirmed{CartID: "cart-1"},
	}, events)
	assert.Empty(t, cart.DequeueUncommittedEvents())
	assert.Equal(t, uint64(3), cart.AggregateVersion(), "dequeue must not change the version")
}

func TestExpectedVersion(t *testing.T) {
	cart := fixtures.NewCart("cart-1", "client-1")
	for range 4 {
		require.NoError(t, cart.AddProduct("p", 1))
	}

	assert.Equal(t, uint64(5), cart.AggregateVersion())
	assert.Equal(t, uint64(3), es.ExpectedVersion(cart, 2))
	assert.Equal(t, uint64(0), es.ExpectedVersion(cart, 5))
	assert.Equal(t, uint64(0), es.ExpectedVersion(cart, 9))
}

func TestDomainRuleLeavesQueueUntouched(t *testing.T) {
	cart := fixtures.NewCart("cart-1", "client-1")
	require.NoError(t, cart.Confirm())
	cart.DequeueUncommittedEvents()

	err := cart.AddProduct("p-1", 1)

	assert.ErrorIs(t, err, fixtures.ErrCartClosed)
	assert.Zero(t, cart.PendingEvents())
	assert.Equal(t, uint64(2), cart.AggregateVersion())
}

func TestHydrate(t *testing.T) {
	var opened string
	items := 0
	apply := es.Hydrate(
		es.On(func(e fixtures.CartOpened) { opened = e.CartID }),
		es.On(func(e fixtures.ProductAdded) { items += e.Quantity }),
	)

	apply(fixtures.CartOpened{CartID: "cart-1"})
	apply(fixtures.NewProductAdded().WithQuantity(2).Build())
	apply(fixtures.UnknownEvent{Note: "ignored"})
	apply(nil)

	assert.Equal(t, "cart-1", opened)
	assert.Equal(t, 2, items)
}
