package config

import (
	"fmt"
	"log/slog"

	"github.com/kurrent-io/KurrentDB-Client-Go/kurrentdb"
	eventsourcing "github.com/terraskye/eventsourcing-core"
	kstore "github.com/terraskye/eventsourcing-core/eventstore/kurrentdb"
	"github.com/terraskye/eventsourcing-core/eventstore/memory"
	"github.com/terraskye/eventsourcing-core/external/nats"
)

// OpenEventStore connects to KurrentDB when KurrentDBURL is set and falls
// back to an in-memory store otherwise. Closing the store closes the client.
func (c Config) OpenEventStore(types *eventsourcing.EventTypeMapper) (eventsourcing.EventStore, error) {
	if c.KurrentDBURL == "" {
		return memory.NewMemoryStore(), nil
	}

	settings, err := kurrentdb.ParseConnectionString(c.KurrentDBURL)
	if err != nil {
		return nil, fmt.Errorf("parse ES_KURRENTDB_URL: %w", err)
	}
	db, err := kurrentdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("connect kurrentdb: %w", err)
	}
	return kstore.NewEventStore(db, types), nil
}

// ExternalProducer connects to NATS when NATSURL is set. Without it external
// events are dropped. The returned close function is never nil.
func (c Config) ExternalProducer(types *eventsourcing.EventTypeMapper, log *slog.Logger) (eventsourcing.ExternalEventProducer, func(), error) {
	if c.NATSURL == "" {
		return eventsourcing.NopExternalEventProducer{}, func() {}, nil
	}

	nc, err := nats.Connect(c.NATSURL)
	if err != nil {
		return nil, func() {}, fmt.Errorf("connect nats: %w", err)
	}

	producer, err := nats.NewProducer(nats.ProducerConfig{
		Publisher:     nc,
		Types:         types,
		SubjectPrefix: c.NATSSubjectPrefix,
		Log:           log,
	})
	if err != nil {
		nc.Close()
		return nil, func() {}, err
	}
	return producer, func() { _ = nc.Drain() }, nil
}
