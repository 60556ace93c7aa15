package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	eventsourcing "github.com/terraskye/eventsourcing-core"
)

// Subscriber follows the global log of an EventStore and publishes new
// events on an EventBus.
//
// It keeps the log position of the next event to deliver. A failed publish
// leaves the position on the failing event, so the next poll delivers it
// again.
type Subscriber struct {
	store eventsourcing.EventStore
	bus   eventsourcing.EventBus

	mu   sync.Mutex
	next uint64
}

// NewSubscriber creates a subscriber that starts at log position from.
//
// Example Usage:
//
//	sub := NewSubscriber(store, bus, 0)
//	go sub.Run(ctx, 100*time.Millisecond)
func NewSubscriber(store eventsourcing.EventStore, bus eventsourcing.EventBus, from uint64) *Subscriber {
	return &Subscriber{store: store, bus: bus, next: from}
}

// Position returns the log position of the next event to deliver.
func (s *Subscriber) Position() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Poll delivers every event appended since the last poll and returns how
// many were published.
func (s *Subscriber) Poll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter, err := s.store.LoadFromAll(ctx, s.next)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for iter.Next(ctx) {
		envelope := iter.Value()
		if err := s.bus.PublishBatch(ctx, []eventsourcing.Envelope{envelope}); err != nil {
			return delivered, err
		}
		s.next = envelope.Metadata.LogPosition + 1
		delivered++
	}
	return delivered, iter.Err()
}

// Run polls every interval until ctx is done. Publish failures end the run.
func (s *Subscriber) Run(ctx context.Context, interval time.Duration) error {
	ticker := backoff.NewTicker(backoff.WithContext(backoff.NewConstantBackOff(interval), ctx))
	defer ticker.Stop()

	for {
		if _, err := s.Poll(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ticker.C:
			if !ok {
				return nil
			}
		}
	}
}
