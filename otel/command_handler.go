package otel

import (
	"context"
	"errors"
	"slices"

	eventsourcing "github.com/terraskye/eventsourcing-core"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WithCommandTelemetry counts failed commands and concurrency conflicts of
// next.
//
// The command bus already measures in-flight commands, totals and durations
// and traces each attempt; this decorator adds the outcome. On failure the
// error is also recorded on the span found in ctx.
//
// Example Usage:
//
//	Register(bus, "CartHandler", otel.WithCommandTelemetry(NewCommandHandler(store, carts)))
func WithCommandTelemetry[C eventsourcing.Command](next eventsourcing.CommandHandler[C], options ...Option) eventsourcing.CommandHandler[C] {
	cfg := newConfig(options)
	metrics := cfg.instruments()

	var zero C
	baseAttributes := append(slices.Clone(cfg.Attributes), AttrCommandType.String(eventsourcing.TypeName(zero)))

	return func(ctx context.Context, command C) error {
		err := next(ctx, command)
		if err == nil {
			return nil
		}

		attrs := baseAttributes
		if errors.Is(err, eventsourcing.ErrConcurrencyConflict) {
			metrics.concurrencyConflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
			attrs = append(slices.Clone(attrs), AttrConflictType.String("revision"))
		}
		metrics.commandsFailed.Add(ctx, 1, metric.WithAttributes(attrs...))
		trace.SpanFromContext(ctx).RecordError(err)
		return err
	}
}
