package eventsourcing

import (
	"errors"
	"fmt"
)

var (
	ErrStreamNotFound        = errors.New("stream not found")
	ErrStreamExists          = errors.New("stream already exists")
	ErrConcurrencyConflict   = errors.New("concurrency conflict")
	ErrInvalidRevision       = errors.New("invalid revision")
	ErrInvalidEventBatch     = errors.New("invalid event batch")
	ErrHandlerNotFound       = errors.New("handler not found")
	ErrDuplicateHandler      = errors.New("duplicate handler")
	ErrBusinessRuleViolation = errors.New("business rule violation")
	ErrUnknownEventType      = errors.New("unknown event type")
)

// ErrSkippedEvent is returned when a handler cannot handle the event type.
type ErrSkippedEvent struct {
	Event Event
}

func (e ErrSkippedEvent) Error() string {
	return fmt.Sprintf("skipped event of type %T", e.Event)
}

// StreamRevisionConflictError is returned by a store when the expected
// revision of a stream does not match the stored one.
type StreamRevisionConflictError struct {
	Stream           string
	ExpectedRevision StreamState
	ActualRevision   Revision
}

func (s StreamRevisionConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict on stream %q: (expected version %v, actual %d)",
		s.Stream, s.ExpectedRevision, uint64(s.ActualRevision))
}

// Is reports conflicts as ErrConcurrencyConflict so callers and retry
// policies can match on the sentinel.
func (s StreamRevisionConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// AggregateNotFoundError is returned by the throwing replay variants when the
// stream of an aggregate has never been written.
type AggregateNotFoundError struct {
	TypeName string
	ID       string
}

func (e *AggregateNotFoundError) Error() string {
	return fmt.Sprintf("%s with id '%s' was not found", e.TypeName, e.ID)
}

func (e *AggregateNotFoundError) Is(target error) bool {
	return target == ErrStreamNotFound
}

// UnhandledCommandError is returned by Send when no handler is registered
// for the runtime type of a command.
type UnhandledCommandError struct {
	CommandType string
}

func (e *UnhandledCommandError) Error() string {
	return fmt.Sprintf("unable to find handler for command '%s'", e.CommandType)
}

func (e *UnhandledCommandError) Is(target error) bool {
	return target == ErrHandlerNotFound
}

type EventStoreError struct {
	Err error
}

func (e *EventStoreError) Error() string {
	return fmt.Sprintf("eventstore error: %v", e.Err)
}

func (e *EventStoreError) Unwrap() error {
	return e.Err
}

func WrapEventStoreError(err error) error {
	if err == nil {
		return nil
	}
	return &EventStoreError{Err: err}
}
