package logging

import (
	"context"
	"errors"
	"log/slog"
	"reflect"

	eventsourcing "github.com/terraskye/eventsourcing-core"
)

type eventLogger struct {
	logger *slog.Logger
	next   eventsourcing.EventHandler
}

// WithLoggingMiddleware logs every envelope handled by next together with
// its stream metadata. Skipped events are not logged as errors.
func WithLoggingMiddleware(logger *slog.Logger, next eventsourcing.EventHandler) eventsourcing.EventHandler {
	return &eventLogger{logger: logger, next: next}
}

func (h *eventLogger) EventType() reflect.Type {
	return h.next.EventType()
}

func (h *eventLogger) Handle(ctx context.Context, envelope eventsourcing.Envelope) error {
	l := h.logger.With(
		"event-type", eventsourcing.TypeName(envelope.Event),
		"event-id", envelope.Metadata.EventID,
		"stream-id", envelope.Metadata.StreamID,
		"version", envelope.Metadata.StreamPosition,
		"global-version", envelope.Metadata.LogPosition,
	)

	l.DebugContext(ctx, "event processing started")

	err := h.next.Handle(ctx, envelope)

	switch {
	case err == nil:
		l.DebugContext(ctx, "event processed successfully")
	case isSkipped(err):
		l.DebugContext(ctx, "event skipped")
	default:
		l.ErrorContext(ctx, "error processing event", "error", err)
	}

	return err
}

func isSkipped(err error) bool {
	var skipped *eventsourcing.ErrSkippedEvent
	return errors.As(err, &skipped)
}
