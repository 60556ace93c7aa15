package kurrentdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/kurrent-io/KurrentDB-Client-Go/kurrentdb"
	eventsourcing "github.com/terraskye/eventsourcing-core"
)

const readAllEvents = math.MaxInt64

type eventstore struct {
	client *kurrentdb.Client
	codec  *Codec
}

// NewEventStore creates a KurrentDB-backed eventstore. Event types are named
// and resolved through types, so every event read back must have been
// mapped or written by this process before.
func NewEventStore(db *kurrentdb.Client, types *eventsourcing.EventTypeMapper) eventsourcing.EventStore {
	return &eventstore{
		client: db,
		codec:  NewCodec(types),
	}
}

func (e *eventstore) Save(ctx context.Context, events []eventsourcing.Envelope, revision eventsourcing.StreamState) (eventsourcing.AppendResult, error) {
	if len(events) == 0 {
		return eventsourcing.AppendResult{Successful: true}, nil
	}

	streamID := events[0].Metadata.StreamID
	kevents := make([]kurrentdb.EventData, len(events))
	for i, ev := range events {
		if ev.Metadata.StreamID != streamID {
			return eventsourcing.AppendResult{}, fmt.Errorf(
				"save events to stream %q: %w: event %d has different stream ID %q",
				streamID, eventsourcing.ErrInvalidEventBatch, i, ev.Metadata.StreamID,
			)
		}
		data, err := e.codec.Encode(ev)
		if err != nil {
			return eventsourcing.AppendResult{}, eventsourcing.WrapEventStoreError(err)
		}
		kevents[i] = data
	}

	state, err := toStreamState(revision)
	if err != nil {
		return eventsourcing.AppendResult{}, fmt.Errorf("stream %s: %w", streamID, err)
	}

	result, err := e.client.AppendToStream(ctx, streamID, kurrentdb.AppendToStreamOptions{
		StreamState: state,
	}, kevents...)
	if err != nil {
		if isErrorCode(err, kurrentdb.ErrorCodeWrongExpectedVersion) {
			return eventsourcing.AppendResult{}, e.conflict(ctx, streamID, revision)
		}
		return eventsourcing.AppendResult{}, eventsourcing.WrapEventStoreError(err)
	}

	return eventsourcing.AppendResult{
		Successful:          true,
		NextExpectedVersion: result.NextExpectedVersion + 1,
	}, nil
}

// conflict translates a wrong expected version into the matching error.
func (e *eventstore) conflict(ctx context.Context, streamID string, revision eventsourcing.StreamState) error {
	switch revision.(type) {
	case eventsourcing.NoStream:
		return fmt.Errorf("stream %q: already exists: %w", streamID, eventsourcing.ErrStreamExists)
	case eventsourcing.StreamExists:
		return fmt.Errorf("stream %q: should exist: %w", streamID, eventsourcing.ErrStreamNotFound)
	}

	actual, err := e.currentRevision(ctx, streamID)
	if err != nil {
		return eventsourcing.WrapEventStoreError(err)
	}
	return &eventsourcing.StreamRevisionConflictError{
		Stream:           streamID,
		ExpectedRevision: revision,
		ActualRevision:   actual,
	}
}

// currentRevision returns the number of events in streamID.
func (e *eventstore) currentRevision(ctx context.Context, streamID string) (eventsourcing.Revision, error) {
	stream, err := e.client.ReadStream(ctx, streamID, kurrentdb.ReadStreamOptions{
		Direction: kurrentdb.Backwards,
		From:      kurrentdb.End{},
	}, 1)
	if err != nil {
		if isErrorCode(err, kurrentdb.ErrorCodeResourceNotFound) {
			return 0, nil
		}
		return 0, err
	}
	defer stream.Close()

	last, err := stream.Recv()
	switch {
	case errors.Is(err, io.EOF), isErrorCode(err, kurrentdb.ErrorCodeResourceNotFound):
		return 0, nil
	case err != nil:
		return 0, err
	}
	return eventsourcing.Revision(last.OriginalEvent().EventNumber + 1), nil
}

func (e *eventstore) LoadStream(ctx context.Context, id string) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	return e.LoadStreamFrom(ctx, id, 0)
}

func (e *eventstore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	streamer, err := e.client.ReadStream(ctx, id, kurrentdb.ReadStreamOptions{
		Direction: kurrentdb.Forwards,
		From: kurrentdb.StreamRevision{
			Value: version,
		},
		ResolveLinkTos: true,
	}, readAllEvents)
	if err != nil {
		return nil, translateReadError(id, err)
	}

	return eventsourcing.NewIteratorFunc(func(ctx context.Context) (eventsourcing.Envelope, error) {
		if err := ctx.Err(); err != nil {
			streamer.Close()
			return eventsourcing.Envelope{}, err
		}

		resolved, err := streamer.Recv()
		if err != nil {
			streamer.Close()
			if errors.Is(err, io.EOF) {
				return eventsourcing.Envelope{}, io.EOF
			}
			return eventsourcing.Envelope{}, translateReadError(id, err)
		}

		env, err := e.codec.Decode(resolved.Event)
		if err != nil {
			streamer.Close()
			return eventsourcing.Envelope{}, eventsourcing.WrapEventStoreError(fmt.Errorf("stream %q: %w", id, err))
		}
		return env, nil
	}), nil
}

// LoadFromAll reads the global log from commit position version on. Server
// events and events of unmapped types are skipped.
func (e *eventstore) LoadFromAll(ctx context.Context, version uint64) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	var from kurrentdb.AllPosition = kurrentdb.Start{}
	if version > 0 {
		from = kurrentdb.Position{Commit: version, Prepare: version}
	}

	streamer, err := e.client.ReadAll(ctx, kurrentdb.ReadAllOptions{
		Direction:      kurrentdb.Forwards,
		From:           from,
		ResolveLinkTos: true,
	}, readAllEvents)
	if err != nil {
		return nil, eventsourcing.WrapEventStoreError(err)
	}

	return eventsourcing.NewIteratorFunc(func(ctx context.Context) (eventsourcing.Envelope, error) {
		for {
			if err := ctx.Err(); err != nil {
				streamer.Close()
				return eventsourcing.Envelope{}, err
			}

			resolved, err := streamer.Recv()
			if err != nil {
				streamer.Close()
				if errors.Is(err, io.EOF) {
					return eventsourcing.Envelope{}, io.EOF
				}
				return eventsourcing.Envelope{}, eventsourcing.WrapEventStoreError(err)
			}

			recorded := resolved.OriginalEvent()
			if IsSystemEvent(recorded) {
				continue
			}
			env, err := e.codec.Decode(recorded)
			if errors.Is(err, eventsourcing.ErrUnknownEventType) {
				continue
			}
			if err != nil {
				streamer.Close()
				return eventsourcing.Envelope{}, eventsourcing.WrapEventStoreError(err)
			}
			return env, nil
		}
	}), nil
}

func (e *eventstore) Close() error {
	return e.client.Close()
}

// toStreamState maps a StreamState to the server's expected revision. A
// Revision counts events while the server expects the last event number.
func toStreamState(revision eventsourcing.StreamState) (kurrentdb.StreamState, error) {
	switch rev := revision.(type) {
	case nil, eventsourcing.Any:
		return kurrentdb.Any{}, nil
	case eventsourcing.NoStream:
		return kurrentdb.NoStream{}, nil
	case eventsourcing.StreamExists:
		return kurrentdb.StreamExists{}, nil
	case eventsourcing.Revision:
		if rev == 0 {
			return kurrentdb.NoStream{}, nil
		}
		return kurrentdb.StreamRevision{Value: uint64(rev) - 1}, nil
	default:
		return nil, fmt.Errorf("unsupported revision type %T: %w", revision, eventsourcing.ErrInvalidRevision)
	}
}

func translateReadError(stream string, err error) error {
	if isErrorCode(err, kurrentdb.ErrorCodeResourceNotFound) {
		return fmt.Errorf("load stream %q: %w", stream, eventsourcing.ErrStreamNotFound)
	}
	return eventsourcing.WrapEventStoreError(err)
}

func isErrorCode(err error, code kurrentdb.ErrorCode) bool {
	if err == nil {
		return false
	}
	var kerr *kurrentdb.Error
	return errors.As(err, &kerr) && kerr.Code() == code
}
