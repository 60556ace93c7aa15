package nats_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	es "github.com/terraskye/eventsourcing-core"
	"github.com/terraskye/eventsourcing-core/external/nats"
	"github.com/terraskye/eventsourcing-core/fixtures"
)

type publisherSpy struct {
	mu   sync.Mutex
	msgs []*natsgo.Msg
	err  error
}

func (p *publisherSpy) PublishMsg(m *natsgo.Msg) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, m)
	return nil
}

func newProducer(t *testing.T, pub nats.Publisher) *nats.Producer {
	t.Helper()
	types := es.NewEventTypeMapper()
	es.MapEventType[fixtures.CartShipped](types, "cart-shipped")

	p, err := nats.NewProducer(nats.ProducerConfig{Publisher: pub, Types: types, SubjectPrefix: "shop"})
	require.NoError(t, err)
	return p
}

func TestProducer_Publish(t *testing.T) {
	pub := &publisherSpy{}
	producer := newProducer(t, pub)

	occurredAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	env := fixtures.NewEnvelope(fixtures.CartShipped{CartID: "cart-1"},
		fixtures.WithEventID("6f1c1f4e-9a51-4a43-8d38-2d1c0f0b3a10"),
		fixtures.WithStreamID("fixtures_Cart-cart-1"),
		fixtures.WithPropagation(map[string]string{"traceparent": "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"}),
	)
	env.Metadata.OccurredAt = occurredAt

	require.NoError(t, producer.Publish(context.Background(), env))

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, "shop.cart-shipped", msg.Subject)
	assert.Equal(t, "6f1c1f4e-9a51-4a43-8d38-2d1c0f0b3a10", msg.Header.Get(natsgo.MsgIdHdr))
	assert.Equal(t, "cart-shipped", msg.Header.Get(nats.HeaderEventType))
	assert.Equal(t, "fixtures_Cart-cart-1", msg.Header.Get(nats.HeaderStreamID))
	assert.Equal(t, "2024-03-01T10:00:00Z", msg.Header.Get(nats.HeaderOccurredAt))
	assert.Equal(t, "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01", msg.Header.Get("traceparent"))

	var body fixtures.CartShipped
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, fixtures.CartShipped{CartID: "cart-1"}, body)
}

func TestProducer_PublishError(t *testing.T) {
	boom := errors.New("connection closed")
	producer := newProducer(t, &publisherSpy{err: boom})

	err := producer.Publish(context.Background(), fixtures.NewEnvelope(fixtures.CartShipped{CartID: "cart-1"}))

	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "shop.cart-shipped")
}

func TestProducer_CancelledContext(t *testing.T) {
	pub := &publisherSpy{}
	producer := newProducer(t, pub)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := producer.Publish(ctx, fixtures.NewEnvelope(fixtures.CartShipped{CartID: "cart-1"}))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pub.msgs)
}

func TestProducer_OnlyExternalEventsAreForwarded(t *testing.T) {
	pub := &publisherSpy{}
	bus := es.EventBusWithExternalProducer(es.NewInMemoryEventBus(), newProducer(t, pub))
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, fixtures.NewEnvelope(fixtures.CartConfirmed{CartID: "cart-1"})))
	require.NoError(t, bus.Publish(ctx, fixtures.NewEnvelope(fixtures.CartShipped{CartID: "cart-1"})))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "shop.cart-shipped", pub.msgs[0].Subject)
}

func TestNewProducer_RequiresPublisher(t *testing.T) {
	_, err := nats.NewProducer(nats.ProducerConfig{})
	assert.Error(t, err)
}
