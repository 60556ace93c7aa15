package fixtures

import (
	"context"
	"reflect"
	"sync"

	es "github.com/terraskye/eventsourcing-core"
)

// CallLog records the order in which test handlers ran.
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *CallLog) Record(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *CallLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// EventHandlerSpy is a configurable EventHandler for events of type T.
type EventHandlerSpy[T any] struct {
	mu sync.Mutex

	name     string
	log      *CallLog
	failures int
	err      error

	HandleCalls int
	Received    []es.Envelope
}

// NewEventHandlerSpy creates a handler spy that records into log under name.
// log may be nil.
func NewEventHandlerSpy[T any](name string, log *CallLog) *EventHandlerSpy[T] {
	return &EventHandlerSpy[T]{name: name, log: log}
}

// FailTimes makes the next n calls fail with err.
func (h *EventHandlerSpy[T]) FailTimes(n int, err error) *EventHandlerSpy[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = n
	h.err = err
	return h
}

func (h *EventHandlerSpy[T]) EventType() reflect.Type {
	return reflect.TypeFor[T]()
}

func (h *EventHandlerSpy[T]) Handle(ctx context.Context, envelope es.Envelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.HandleCalls++
	if h.log != nil {
		h.log.Record(h.name)
	}
	if h.failures != 0 {
		if h.failures > 0 {
			h.failures--
		}
		return h.err
	}
	h.Received = append(h.Received, envelope)
	return nil
}

func (h *EventHandlerSpy[T]) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.HandleCalls
}

// EventBusSpy records published envelopes.
type EventBusSpy struct {
	mu sync.Mutex

	PublishFn func(ctx context.Context, envelope es.Envelope) error

	Published []es.Envelope
	log       *CallLog
}

func NewEventBusSpy(log *CallLog) *EventBusSpy {
	return &EventBusSpy{log: log}
}

func (b *EventBusSpy) Publish(ctx context.Context, envelope es.Envelope) error {
	b.mu.Lock()
	b.Published = append(b.Published, envelope)
	b.mu.Unlock()

	if b.log != nil {
		b.log.Record("bus")
	}
	if b.PublishFn != nil {
		return b.PublishFn(ctx, envelope)
	}
	return nil
}

func (b *EventBusSpy) PublishBatch(ctx context.Context, envelopes []es.Envelope) error {
	for _, envelope := range envelopes {
		if err := b.Publish(ctx, envelope); err != nil {
			return err
		}
	}
	return nil
}

func (b *EventBusSpy) PublishedEnvelopes() []es.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]es.Envelope(nil), b.Published...)
}

// ProducerSpy is an ExternalEventProducer that records what it forwards.
type ProducerSpy struct {
	mu sync.Mutex

	Err       error
	Published []es.Envelope
	log       *CallLog
}

func NewProducerSpy(log *CallLog) *ProducerSpy {
	return &ProducerSpy{log: log}
}

func (p *ProducerSpy) Publish(ctx context.Context, envelope es.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.log != nil {
		p.log.Record("producer")
	}
	if p.Err != nil {
		return p.Err
	}
	p.Published = append(p.Published, envelope)
	return nil
}
