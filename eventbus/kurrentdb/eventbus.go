package kurrentdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kurrent-io/KurrentDB-Client-Go/kurrentdb"
	eventsourcing "github.com/terraskye/eventsourcing-core"
	kstore "github.com/terraskye/eventsourcing-core/eventstore/kurrentdb"
)

// Option configures a Subscriber.
type Option func(*Subscriber)

// Subscriber feeds a catch-up subscription on $all into an EventBus.
//
// Every event appended to the database is decoded with the Codec and
// published on the bus in commit order. System events and events of unmapped
// types are skipped. A failing publish ends Run with that error, so the
// subscription can be restarted from the last delivered position.
type Subscriber struct {
	db     *kurrentdb.Client
	bus    eventsourcing.EventBus
	codec  *kstore.Codec
	logger *slog.Logger
	opts   kurrentdb.SubscribeToAllOptions

	mu       sync.Mutex
	position uint64
}

// NewSubscriber creates a subscriber that delivers to bus.
//
// Example Usage:
//
//	sub := NewSubscriber(client, bus, types, WithFromStart(), WithFilterStream([]string{"fixtures_Cart-"}))
//	go func() { errs <- sub.Run(ctx) }()
func NewSubscriber(db *kurrentdb.Client, bus eventsourcing.EventBus, types *eventsourcing.EventTypeMapper, opts ...Option) *Subscriber {
	s := &Subscriber{
		db:     db,
		bus:    bus,
		codec:  kstore.NewCodec(types),
		logger: slog.Default(),
		opts:   kurrentdb.SubscribeToAllOptions{From: kurrentdb.End{}},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// WithLogger sets the logger used for skipped events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Subscriber) {
		s.logger = logger
	}
}

// Position returns the commit position of the last delivered event.
func (s *Subscriber) Position() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Run delivers events until ctx is done, the subscription is dropped or a
// publish fails.
func (s *Subscriber) Run(ctx context.Context) error {
	stream, err := s.db.SubscribeToAll(ctx, s.opts)
	if err != nil {
		return fmt.Errorf("subscribe to $all: %w", err)
	}
	defer stream.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		event := stream.Recv()

		if event.SubscriptionDropped != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("subscription dropped: %w", event.SubscriptionDropped.Error)
		}

		if event.EventAppeared == nil {
			continue
		}

		if err := s.deliver(ctx, event.EventAppeared); err != nil {
			return err
		}
	}
}

func (s *Subscriber) deliver(ctx context.Context, resolved *kurrentdb.ResolvedEvent) error {
	recorded := resolved.OriginalEvent()
	if kstore.IsSystemEvent(recorded) {
		return nil
	}

	envelope, err := s.codec.Decode(recorded)
	if errors.Is(err, eventsourcing.ErrUnknownEventType) {
		s.logger.DebugContext(ctx, "skipping unmapped event",
			slog.String("event_type", recorded.EventType),
			slog.String("stream_id", recorded.StreamID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode %s from %s: %w", recorded.EventType, recorded.StreamID, err)
	}

	if err := s.bus.PublishBatch(ctx, []eventsourcing.Envelope{envelope}); err != nil {
		return err
	}

	s.mu.Lock()
	s.position = recorded.Position.Commit
	s.mu.Unlock()
	return nil
}

// WithFromStart replays the whole log before following new events.
func WithFromStart() Option {
	return func(s *Subscriber) {
		s.opts.From = kurrentdb.Start{}
	}
}

// WithFromPosition resumes after a previously delivered commit position.
func WithFromPosition(commit uint64) Option {
	return func(s *Subscriber) {
		s.opts.From = kurrentdb.Position{Commit: commit, Prepare: commit}
	}
}

// WithFilterEvents only delivers events whose type starts with one of prefixes.
func WithFilterEvents(prefixes []string) Option {
	return func(s *Subscriber) {
		s.opts.Filter = &kurrentdb.SubscriptionFilter{
			Type:     kurrentdb.EventFilterType,
			Prefixes: prefixes,
		}
	}
}

// WithFilterStream only delivers events of streams starting with one of prefixes.
func WithFilterStream(streams []string) Option {
	return func(s *Subscriber) {
		s.opts.Filter = &kurrentdb.SubscriptionFilter{
			Type:     kurrentdb.StreamFilterType,
			Prefixes: streams,
		}
	}
}
