package eventsourcing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	es "github.com/terraskye/eventsourcing-core"
	"github.com/terraskye/eventsourcing-core/fixtures"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func cartSummaries(carts map[string]fixtures.CartSummary) es.QueryHandler[fixtures.GetCart, *fixtures.CartSummary] {
	return es.NewQueryHandlerFunc(func(ctx context.Context, q fixtures.GetCart) (*fixtures.CartSummary, error) {
		summary, ok := carts[q.CartID]
		if !ok {
			return nil, &es.AggregateNotFoundError{TypeName: "Cart", ID: q.CartID}
		}
		return &summary, nil
	})
}

func TestQueryBus_ExecuteQuery(t *testing.T) {
	bus := es.NewQueryBus()
	es.RegisterQueryHandler(bus, cartSummaries(map[string]fixtures.CartSummary{
		"cart-1": {CartID: "cart-1", Items: 3},
	}))

	summary, err := es.ExecuteQuery[fixtures.GetCart, *fixtures.CartSummary](context.Background(), bus, fixtures.GetCart{CartID: "cart-1"})

	require.NoError(t, err)
	assert.Equal(t, &fixtures.CartSummary{CartID: "cart-1", Items: 3}, summary)
}

func TestQueryBus_RoutesByQueryAndResultType(t *testing.T) {
	bus := es.NewQueryBus()
	es.RegisterQueryHandler(bus, es.NewQueryHandlerFunc(func(ctx context.Context, q fixtures.GetCart) (*fixtures.CartSummary, error) {
		return &fixtures.CartSummary{CartID: q.CartID}, nil
	}))
	es.RegisterQueryHandler(bus, es.NewQueryHandlerFunc(func(ctx context.Context, q fixtures.GetCart) (int, error) {
		return 7, nil
	}))
	es.RegisterQueryHandler(bus, es.NewQueryHandlerFunc(func(ctx context.Context, q fixtures.ListCarts) ([]string, error) {
		return []string{"cart-1", "cart-2"}, nil
	}))

	summary, err := es.ExecuteQuery[fixtures.GetCart, *fixtures.CartSummary](context.Background(), bus, fixtures.GetCart{CartID: "cart-1"})
	require.NoError(t, err)
	assert.Equal(t, "cart-1", summary.CartID)

	items, err := es.ExecuteQuery[fixtures.GetCart, int](context.Background(), bus, fixtures.GetCart{CartID: "cart-1"})
	require.NoError(t, err)
	assert.Equal(t, 7, items)

	ids, err := es.ExecuteQuery[fixtures.ListCarts, []string](context.Background(), bus, fixtures.ListCarts{ClientID: "client-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cart-1", "cart-2"}, ids)
}

func TestQueryBus_HandlerNotFound(t *testing.T) {
	bus := es.NewQueryBus()

	summary, err := es.ExecuteQuery[fixtures.GetCart, *fixtures.CartSummary](context.Background(), bus, fixtures.GetCart{CartID: "cart-1"})

	assert.ErrorIs(t, err, es.ErrHandlerNotFound)
	assert.Nil(t, summary)
}

func TestRegisterQueryHandler_DuplicatePanics(t *testing.T) {
	bus := es.NewQueryBus()
	es.RegisterQueryHandler(bus, cartSummaries(nil))

	assert.PanicsWithError(t, "handler already registered for query fixtures.GetCart -> *fixtures.CartSummary: duplicate handler", func() {
		es.RegisterQueryHandler(bus, cartSummaries(nil), es.WithHandlerName("other"))
	})
}

func TestQueryBus_HandlerError(t *testing.T) {
	bus := es.NewQueryBus()
	es.RegisterQueryHandler(bus, cartSummaries(nil))

	summary, err := es.ExecuteQuery[fixtures.GetCart, *fixtures.CartSummary](context.Background(), bus, fixtures.GetCart{CartID: "cart-9"})

	assert.ErrorIs(t, err, es.ErrStreamNotFound)
	assert.Nil(t, summary)
}

func TestQueryBus_RunsUnderRetryPolicy(t *testing.T) {
	bus := es.NewQueryBus(es.WithRetryPolicy(constantRetries(3)))
	calls := 0
	es.RegisterQueryHandler(bus, es.NewQueryHandlerFunc(func(ctx context.Context, q fixtures.GetCart) (*fixtures.CartSummary, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("read model lagging")
		}
		return &fixtures.CartSummary{CartID: q.CartID, Items: 1}, nil
	}))

	summary, err := es.ExecuteQuery[fixtures.GetCart, *fixtures.CartSummary](context.Background(), bus, fixtures.GetCart{CartID: "cart-1"})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Items)
	assert.Equal(t, 3, calls)
}

func TestQueryBus_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	bus := es.NewQueryBus(es.WithActivityScope(es.NewActivityScope(tp)))

	es.RegisterQueryHandler(bus, cartSummaries(map[string]fixtures.CartSummary{"cart-1": {CartID: "cart-1"}}),
		es.WithHandlerName("CartReadModel"))
	es.RegisterQueryHandler(bus, es.NewQueryHandlerFunc(func(ctx context.Context, q fixtures.ListCarts) ([]string, error) {
		return nil, errors.New("index offline")
	}))

	_, err := es.ExecuteQuery[fixtures.GetCart, *fixtures.CartSummary](context.Background(), bus, fixtures.GetCart{CartID: "cart-1"})
	require.NoError(t, err)
	_, err = es.ExecuteQuery[fixtures.ListCarts, []string](context.Background(), bus, fixtures.ListCarts{})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "CartReadModel/GetCart", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), es.AttrHandler.String("CartReadModel"))
	assert.Contains(t, spans[0].Attributes(), es.AttrQueryType.String("GetCart"))
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)

	assert.Equal(t, "ListCartsHandler/ListCarts", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
