package eventsourcing

import (
	"context"
)

// EventStore defines the contract for an append-only event store
// used in event-sourced systems. An EventStore persists events
// associated with a given aggregate ID in sequential order, allowing
// for full reconstruction of aggregate state at any point in time.
//
// Implementations must guarantee:
//   - Events for a given aggregate are stored in order.
//   - Concurrency control based on the aggregate's expected version.
//   - Iteration order from all Load* methods is deterministic (oldest → newest).
//
// The returned iterators are lazy cursors over the stored events. They should
// be consumed immediately and are not safe for concurrent use.
type EventStore interface {
	// Save appends all events in the given slice to the event stream for a specific aggregate.
	//
	// Parameters:
	//   - ctx: Request-scoped context for cancellation and tracing.
	//   - events: A slice of Envelope values to append. Each envelope should have
	//     the aggregate ID and version set consistently.
	//   - revision: The expected stream state or concurrency requirement. This can
	//     be one of:
	//       - Any: always append, do not check for conflicts.
	//       - NoStream: stream must not exist; fail if it does.
	//       - StreamExists: stream must exist; fail if it does not.
	//       - Revision(n): the stream must hold exactly n events.
	//
	// Errors:
	//   - ErrStreamExists / ErrStreamNotFound for NoStream / StreamExists.
	//   - StreamRevisionConflictError if the revision does not match.
	//   - ErrInvalidEventBatch if the envelopes target different streams.
	//   - Any store-specific persistence error.
	Save(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error)

	// LoadStream loads all events for the given stream from version 0 onward.
	//
	// The returned iterator yields events in ascending version order and stops
	// when the context is canceled.
	//
	// Returns ErrStreamNotFound when the stream has never been written.
	LoadStream(ctx context.Context, id string) (*Iterator[Envelope], error)

	// LoadStreamFrom loads all events for the given aggregate ID starting at the specified version.
	//
	// Parameters:
	//   - ctx: Request-scoped context for cancellation and tracing.
	//   - id: Stream identifier.
	//   - version: Zero-based version index from which to start iteration.
	//
	// Returns ErrStreamNotFound when the stream has never been written.
	LoadStreamFrom(ctx context.Context, id string, version uint64) (*Iterator[Envelope], error)

	// LoadFromAll loads all events from all streams starting at the given log
	// position, in the order the backend committed them.
	LoadFromAll(ctx context.Context, version uint64) (*Iterator[Envelope], error)
	// Close releases any resources held by the EventStore, such as network
	// connections or file handles. After Close is called, the EventStore should
	// not be used.
	//
	// Implementations should make Close idempotent.
	Close() error
}

// AppendResult describes the outcome of an append operation.
type AppendResult struct {
	Successful bool
	// NextExpectedVersion is the number of events in the stream after the append.
	NextExpectedVersion uint64
}
