package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	eventsourcing "github.com/terraskye/eventsourcing-core"
)

// MemoryStore is an EventStore that keeps every stream in process memory.
//
// Stored envelopes get their StreamPosition (index within the stream) and
// LogPosition (index within the global log) assigned on Save. Iterators work
// on a snapshot taken when the load starts.
type MemoryStore struct {
	mu     sync.RWMutex
	global []eventsourcing.Envelope
	events map[string][]eventsourcing.Envelope
	closed bool
}

var _ eventsourcing.EventStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string][]eventsourcing.Envelope),
	}
}

func (m *MemoryStore) Save(ctx context.Context, events []eventsourcing.Envelope, revision eventsourcing.StreamState) (eventsourcing.AppendResult, error) {
	if err := ctx.Err(); err != nil {
		return eventsourcing.AppendResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return eventsourcing.AppendResult{}, eventsourcing.WrapEventStoreError(fmt.Errorf("memory store is closed"))
	}

	if len(events) == 0 {
		return eventsourcing.AppendResult{Successful: true, NextExpectedVersion: 0}, nil
	}

	streamId := events[0].Metadata.StreamID
	for i, env := range events {
		if env.Metadata.StreamID != streamId {
			return eventsourcing.AppendResult{}, fmt.Errorf(
				"save events to stream %q: %w: event %d has different stream ID %q",
				streamId, eventsourcing.ErrInvalidEventBatch, i, env.Metadata.StreamID,
			)
		}
	}

	currentVersion := uint64(len(m.events[streamId]))

	switch rev := revision.(type) {
	case eventsourcing.Any:
	case eventsourcing.NoStream:
		if currentVersion != 0 {
			return eventsourcing.AppendResult{}, fmt.Errorf("stream %q: already exists: %w", streamId, eventsourcing.ErrStreamExists)
		}
	case eventsourcing.StreamExists:
		if currentVersion == 0 {
			return eventsourcing.AppendResult{}, fmt.Errorf("stream %q: should exist: %w", streamId, eventsourcing.ErrStreamNotFound)
		}
	case eventsourcing.Revision:
		if currentVersion != uint64(rev) {
			return eventsourcing.AppendResult{}, &eventsourcing.StreamRevisionConflictError{
				Stream:           streamId,
				ExpectedRevision: rev,
				ActualRevision:   eventsourcing.Revision(currentVersion),
			}
		}
	default:
		return eventsourcing.AppendResult{}, fmt.Errorf("unsupported revision type %T for stream %s: %w", revision, streamId, eventsourcing.ErrInvalidRevision)
	}

	for _, env := range events {
		env.Metadata.StreamPosition = currentVersion
		env.Metadata.LogPosition = uint64(len(m.global))
		m.events[streamId] = append(m.events[streamId], env)
		m.global = append(m.global, env)
		currentVersion++
	}

	return eventsourcing.AppendResult{
		Successful:          true,
		NextExpectedVersion: currentVersion,
	}, nil
}

func (m *MemoryStore) LoadStream(ctx context.Context, id string) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	return m.LoadStreamFrom(ctx, id, 0)
}

// LoadStreamFrom yields the events of stream id from position version on.
// Asking for the position right after the last event yields nothing; asking
// beyond it fails with ErrInvalidRevision.
func (m *MemoryStore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	m.mu.RLock()
	events, exists := m.events[id]
	events = slices.Clone(events)
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("load stream %q: %w", id, eventsourcing.ErrStreamNotFound)
	}

	if version > uint64(len(events)) {
		return nil, fmt.Errorf(
			"load stream %q: requested %d but stream has %d: %w",
			id, version, len(events), eventsourcing.ErrInvalidRevision,
		)
	}

	return eventsourcing.NewSliceIterator(events[version:]), nil
}

// LoadFromAll yields every stored event with a LogPosition of at least
// version, in global order.
func (m *MemoryStore) LoadFromAll(ctx context.Context, version uint64) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	m.mu.RLock()
	all := slices.Clone(m.global)
	m.mu.RUnlock()

	if version > uint64(len(all)) {
		return nil, fmt.Errorf(
			"load all: requested %d but log has %d: %w",
			version, len(all), eventsourcing.ErrInvalidRevision,
		)
	}

	return eventsourcing.NewSliceIterator(all[version:]), nil
}

// Close drops all stored events. Saving after Close fails.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.events = make(map[string][]eventsourcing.Envelope)
	m.global = nil
	return nil
}
