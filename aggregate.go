package eventsourcing

// Aggregate is the interface that all event-sourced aggregates must implement.
//
// Concrete aggregates embed AggregateBase, which provides the identity,
// version and uncommitted-event bookkeeping, and implement Apply themselves:
//
//	type Cart struct {
//		eventsourcing.AggregateBase
//		Status CartStatus
//	}
//
//	func (c *Cart) Apply(event eventsourcing.Event) {
//		switch e := event.(type) {
//		case CartOpened:
//			c.Status = CartOpen
//		case CartConfirmed:
//			c.Status = CartConfirmed
//		}
//	}
//
// Domain methods record changes with Enqueue, never by calling Apply directly.
type Aggregate interface {
	// Apply mutates the aggregate state for one event. Events the aggregate
	// does not recognize must be ignored.
	Apply(event Event)

	// AggregateID returns the unique identifier of the aggregate.
	AggregateID() string

	// AggregateVersion returns the number of events applied to reach the
	// current state, pending events included.
	AggregateVersion() uint64

	// DequeueUncommittedEvents returns the pending events in the order they
	// were enqueued and empties the queue.
	DequeueUncommittedEvents() []Event

	aggregateBase() *AggregateBase
}

// AggregateBase holds the bookkeeping shared by all aggregates.
type AggregateBase struct {
	id          string
	version     uint64
	uncommitted []Event
}

// NewAggregateBase creates the base of a new aggregate.
func NewAggregateBase(id string) AggregateBase {
	return AggregateBase{id: id}
}

func (a *AggregateBase) AggregateID() string {
	return a.id
}

// SetAggregateID assigns the identity, typically from a creation event.
func (a *AggregateBase) SetAggregateID(id string) {
	a.id = id
}

func (a *AggregateBase) AggregateVersion() uint64 {
	return a.version
}

func (a *AggregateBase) DequeueUncommittedEvents() []Event {
	events := a.uncommitted
	a.uncommitted = nil
	return events
}

// PendingEvents reports how many events are waiting to be persisted.
func (a *AggregateBase) PendingEvents() int {
	return len(a.uncommitted)
}

func (a *AggregateBase) aggregateBase() *AggregateBase {
	return a
}

// Enqueue records a new event on the aggregate: it is queued for persistence
// and applied immediately, so the aggregate state always includes its own
// pending events. The version is incremented once per event.
func Enqueue(agg Aggregate, event Event) {
	base := agg.aggregateBase()
	base.uncommitted = append(base.uncommitted, event)
	agg.Apply(event)
	base.version++
}

// ExpectedVersion returns the version the aggregate had before the pending
// events were raised. It is the default expected revision for an update.
func ExpectedVersion(agg Aggregate, pending int) uint64 {
	version := agg.AggregateVersion()
	if uint64(pending) > version {
		return 0
	}
	return version - uint64(pending)
}

// applyStored applies an event read from a store. It does not queue the event.
func applyStored(agg Aggregate, event Event) {
	agg.Apply(event)
	agg.aggregateBase().version++
}
