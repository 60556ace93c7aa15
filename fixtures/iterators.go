package fixtures

import (
	"context"
	"io"

	es "github.com/terraskye/eventsourcing-core"
)

// EmptyIterator returns an iterator that yields no items.
func EmptyIterator() *es.Iterator[es.Envelope] {
	return es.NewIteratorFunc(func(ctx context.Context) (es.Envelope, error) {
		return es.Envelope{}, io.EOF
	})
}

// FailingIterator returns an iterator that fails with the given error.
func FailingIterator(err error) *es.Iterator[es.Envelope] {
	return es.NewIteratorFunc(func(ctx context.Context) (es.Envelope, error) {
		return es.Envelope{}, err
	})
}

// EnvelopeIteratorFromEvents creates an iterator over one stream of events.
func EnvelopeIteratorFromEvents(streamID string, events ...es.Event) *es.Iterator[es.Envelope] {
	return es.NewSliceIterator(EnvelopesFromEvents(streamID, events...))
}

// FailAfterNIterator returns an iterator that yields n items, then fails.
func FailAfterNIterator(envelopes []es.Envelope, n int, err error) *es.Iterator[es.Envelope] {
	idx := 0
	return es.NewIteratorFunc(func(ctx context.Context) (es.Envelope, error) {
		if idx >= n {
			return es.Envelope{}, err
		}
		if idx >= len(envelopes) {
			return es.Envelope{}, io.EOF
		}
		env := envelopes[idx]
		idx++
		return env, nil
	})
}
