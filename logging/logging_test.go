package logging_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	es "github.com/terraskye/eventsourcing-core"
	"github.com/terraskye/eventsourcing-core/fixtures"
	"github.com/terraskye/eventsourcing-core/logging"
)

func TestWithCommandLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	boom := errors.New("cart is closed")
	handler := logging.WithCommandLogging(logrus.NewEntry(logger), es.CommandHandler[fixtures.ConfirmCart](
		func(ctx context.Context, cmd fixtures.ConfirmCart) error {
			if cmd.CartID == "closed" {
				return boom
			}
			return nil
		},
	))

	require.NoError(t, handler(context.Background(), fixtures.ConfirmCart{CartID: "cart-1"}))
	require.Len(t, hook.AllEntries(), 2)
	first := hook.AllEntries()[0]
	assert.Equal(t, "dispatch", first.Message)
	assert.Equal(t, "ConfirmCart", first.Data["command"])
	assert.Equal(t, "cart-1", first.Data["aggregate_id"])

	hook.Reset()
	err := handler(context.Background(), fixtures.ConfirmCart{CartID: "closed"})
	assert.ErrorIs(t, err, boom)
	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.ErrorLevel, last.Level)
	assert.Equal(t, "dispatch failed", last.Message)
	assert.Equal(t, boom, last.Data[logrus.ErrorKey])
}

func TestWithQueryLogging(t *testing.T) {
	type CartItems struct{ CartID string }
	logger, hook := test.NewNullLogger()

	boom := errors.New("view unavailable")
	handler := logging.WithQueryLogging(logrus.NewEntry(logger), es.NewQueryHandlerFunc(
		func(ctx context.Context, q CartItems) (int, error) { return 0, boom },
	))

	_, err := handler.HandleQuery(context.Background(), CartItems{CartID: "cart-1"})

	assert.ErrorIs(t, err, boom)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "query failed", hook.LastEntry().Message)
	assert.Equal(t, "CartItems", hook.LastEntry().Data["query"])
}

func TestWithLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	spy := fixtures.NewEventHandlerSpy[fixtures.CartOpened]("projection", nil).FailTimes(1, errors.New("db down"))
	handler := logging.WithLoggingMiddleware(logger, spy)
	assert.Equal(t, spy.EventType(), handler.EventType())

	env := fixtures.NewEnvelope(fixtures.CartOpened{CartID: "cart-1"},
		fixtures.WithStreamID("fixtures_Cart-cart-1"),
		fixtures.WithStreamPosition(4),
	)

	assert.Error(t, handler.Handle(context.Background(), env))
	assert.Contains(t, buf.String(), "error processing event")
	assert.Contains(t, buf.String(), "stream-id=fixtures_Cart-cart-1")
	assert.Contains(t, buf.String(), "version=4")

	buf.Reset()
	require.NoError(t, handler.Handle(context.Background(), env))
	assert.Contains(t, buf.String(), "event processed successfully")
	assert.NotContains(t, buf.String(), "level=ERROR")
}

func TestWithLoggingMiddleware_SkippedIsNotAnError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := logging.WithLoggingMiddleware(logger, es.OnEvent(func(ctx context.Context, e fixtures.CartOpened) error {
		return nil
	}))

	err := handler.Handle(context.Background(), fixtures.NewEnvelope(fixtures.CartConfirmed{}))

	var skipped *es.ErrSkippedEvent
	assert.ErrorAs(t, err, &skipped)
	assert.Contains(t, buf.String(), "event skipped")
	assert.NotContains(t, buf.String(), "level=ERROR")
}
