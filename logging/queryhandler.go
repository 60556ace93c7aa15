package logging

import (
	"context"

	"github.com/sirupsen/logrus"
	eventsourcing "github.com/terraskye/eventsourcing-core"
)

type queryHandlerLogger[T eventsourcing.Query, R any] struct {
	logger *logrus.Entry
	next   eventsourcing.QueryHandler[T, R]
}

func (q *queryHandlerLogger[T, R]) HandleQuery(ctx context.Context, qry T) (R, error) {
	entry := q.logger.WithContext(ctx).WithField("query", eventsourcing.TypeName(qry))
	entry.Debug("query")

	result, err := q.next.HandleQuery(ctx, qry)
	if err != nil {
		entry.WithError(err).Error("query failed")
	}

	return result, err
}

// WithQueryLogging wraps a QueryHandler with logging functionality.
// It logs the query type before execution, and logs errors if the query fails.
func WithQueryLogging[T eventsourcing.Query, R any](logger *logrus.Entry, next eventsourcing.QueryHandler[T, R]) eventsourcing.QueryHandler[T, R] {
	return &queryHandlerLogger[T, R]{
		logger: logger,
		next:   next,
	}
}
