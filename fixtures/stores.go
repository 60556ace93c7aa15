package fixtures

import (
	"context"
	"sync"

	es "github.com/terraskye/eventsourcing-core"
)

// StoreSpy is a configurable mock EventStore for testing.
// It tracks calls and allows injecting custom behavior or failures.
type StoreSpy struct {
	mu sync.Mutex

	// Function overrides for custom behavior
	LoadStreamFn     func(ctx context.Context, id string) (*es.Iterator[es.Envelope], error)
	LoadStreamFromFn func(ctx context.Context, id string, version uint64) (*es.Iterator[es.Envelope], error)
	LoadFromAllFn    func(ctx context.Context, version uint64) (*es.Iterator[es.Envelope], error)
	SaveFn           func(ctx context.Context, events []es.Envelope, revision es.StreamState) (es.AppendResult, error)

	// Call tracking
	LoadStreamCalls     int
	LoadStreamFromCalls int
	LoadFromAllCalls    int
	SaveCalls           int
	CloseCalls          int

	// Captured arguments from last call
	LastSaveEvents   []es.Envelope
	LastSaveRevision es.StreamState
	LastLoadStreamID string

	events map[string][]es.Envelope

	loadErr error
	saveErr error
}

// NewStoreSpy creates a new StoreSpy with default behavior.
func NewStoreSpy() *StoreSpy {
	return &StoreSpy{
		events: make(map[string][]es.Envelope),
	}
}

// WithEvents pre-populates the store with events for a stream.
func (s *StoreSpy) WithEvents(streamID string, events ...es.Event) *StoreSpy {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[streamID] = EnvelopesFromEvents(streamID, events...)
	return s
}

// FailOnLoad configures the store to return an error on load operations.
func (s *StoreSpy) FailOnLoad(err error) *StoreSpy {
	s.loadErr = err
	return s
}

// FailOnSave configures the store to return an error on save operations.
func (s *StoreSpy) FailOnSave(err error) *StoreSpy {
	s.saveErr = err
	return s
}

func (s *StoreSpy) LoadStream(ctx context.Context, id string) (*es.Iterator[es.Envelope], error) {
	s.mu.Lock()
	s.LoadStreamCalls++
	s.LastLoadStreamID = id
	s.mu.Unlock()

	if s.LoadStreamFn != nil {
		return s.LoadStreamFn(ctx, id)
	}
	return s.load(id, 0)
}

func (s *StoreSpy) LoadStreamFrom(ctx context.Context, id string, version uint64) (*es.Iterator[es.Envelope], error) {
	s.mu.Lock()
	s.LoadStreamFromCalls++
	s.LastLoadStreamID = id
	s.mu.Unlock()

	if s.LoadStreamFromFn != nil {
		return s.LoadStreamFromFn(ctx, id, version)
	}
	return s.load(id, version)
}

func (s *StoreSpy) load(id string, from uint64) (*es.Iterator[es.Envelope], error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	s.mu.Lock()
	events, ok := s.events[id]
	s.mu.Unlock()

	if !ok {
		return nil, es.ErrStreamNotFound
	}
	if from > uint64(len(events)) {
		from = uint64(len(events))
	}
	return es.NewSliceIterator(events[from:]), nil
}

func (s *StoreSpy) LoadFromAll(ctx context.Context, version uint64) (*es.Iterator[es.Envelope], error) {
	s.mu.Lock()
	s.LoadFromAllCalls++
	s.mu.Unlock()

	if s.LoadFromAllFn != nil {
		return s.LoadFromAllFn(ctx, version)
	}
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	s.mu.Lock()
	var all []es.Envelope
	for _, events := range s.events {
		all = append(all, events...)
	}
	s.mu.Unlock()

	return es.NewSliceIterator(all), nil
}

// Save records the call and appends without any concurrency check.
func (s *StoreSpy) Save(ctx context.Context, events []es.Envelope, revision es.StreamState) (es.AppendResult, error) {
	s.mu.Lock()
	s.SaveCalls++
	s.LastSaveEvents = events
	s.LastSaveRevision = revision
	s.mu.Unlock()

	if s.SaveFn != nil {
		return s.SaveFn(ctx, events, revision)
	}
	if s.saveErr != nil {
		return es.AppendResult{Successful: false}, s.saveErr
	}
	if len(events) == 0 {
		return es.AppendResult{Successful: true}, nil
	}

	streamID := events[0].Metadata.StreamID

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[streamID] = append(s.events[streamID], events...)

	return es.AppendResult{
		Successful:          true,
		NextExpectedVersion: uint64(len(s.events[streamID])),
	}, nil
}

func (s *StoreSpy) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	return nil
}

// ConcurrencyConflictStore returns a StoreSpy that returns a concurrency conflict on save.
func ConcurrencyConflictStore(streamID string, expected es.StreamState, actual es.Revision) *StoreSpy {
	store := NewStoreSpy()
	store.SaveFn = func(ctx context.Context, events []es.Envelope, revision es.StreamState) (es.AppendResult, error) {
		return es.AppendResult{Successful: false}, &es.StreamRevisionConflictError{
			Stream:           streamID,
			ExpectedRevision: expected,
			ActualRevision:   actual,
		}
	}
	return store
}
