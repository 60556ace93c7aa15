package logging

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	eventsourcing "github.com/terraskye/eventsourcing-core"
)

// WithCommandLogging wraps a CommandHandler with logging functionality.
// It logs the command type and aggregate ID before execution, and logs
// errors if the command fails.
func WithCommandLogging[C eventsourcing.Command](logger *logrus.Entry, next eventsourcing.CommandHandler[C]) eventsourcing.CommandHandler[C] {
	return func(ctx context.Context, command C) error {
		entry := logger.WithContext(ctx).WithField("command", eventsourcing.TypeName(command))
		if c, ok := any(command).(interface{ AggregateID() string }); ok {
			entry = entry.WithField("aggregate_id", c.AggregateID())
		}
		entry.Info("dispatch")

		started := time.Now()
		err := next(ctx, command)
		entry = entry.WithField("duration", time.Since(started))

		if err != nil {
			entry.WithError(err).Error("dispatch failed")
			return err
		}
		entry.Debug("dispatched")
		return nil
	}
}
