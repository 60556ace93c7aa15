package eventsourcing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	es "github.com/terraskye/eventsourcing-core"
	"github.com/terraskye/eventsourcing-core/fixtures"
)

func TestForwardCommand(t *testing.T) {
	commands := es.NewInMemoryCommandBus()
	var shipped []string
	es.Register(commands, "ShipCartHandler", func(ctx context.Context, cmd fixtures.ShipCart) error {
		shipped = append(shipped, cmd.CartID)
		return nil
	})

	events := es.NewInMemoryEventBus()
	events.Subscribe("outbox", es.ForwardCommand[fixtures.ShipCart](commands))

	require.NoError(t, events.Publish(context.Background(), fixtures.NewEnvelope(fixtures.ShipCart{CartID: "cart-1"})))
	assert.Equal(t, []string{"cart-1"}, shipped)
}

func TestForwardCommand_WithoutHandlerIsDropped(t *testing.T) {
	events := es.NewInMemoryEventBus()
	events.Subscribe("outbox", es.ForwardCommand[fixtures.ShipCart](es.NewInMemoryCommandBus()))

	assert.NoError(t, events.Publish(context.Background(), fixtures.NewEnvelope(fixtures.ShipCart{CartID: "cart-1"})))
}

func TestForwardCommand_ReturnsHandlerError(t *testing.T) {
	boom := errors.New("carrier down")
	commands := es.NewInMemoryCommandBus()
	es.Register(commands, "ShipCartHandler", func(ctx context.Context, cmd fixtures.ShipCart) error { return boom })

	events := es.NewInMemoryEventBus()
	events.Subscribe("outbox", es.ForwardCommand[fixtures.ShipCart](commands))

	assert.ErrorIs(t, events.Publish(context.Background(), fixtures.NewEnvelope(fixtures.ShipCart{CartID: "cart-1"})), boom)
}
