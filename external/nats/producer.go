// Package nats forwards external events to NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	natsgo "github.com/nats-io/nats.go"
	eventsourcing "github.com/terraskye/eventsourcing-core"
)

// Header keys set on every forwarded message besides the trace context.
const (
	HeaderEventType  = "Es-Event-Type"
	HeaderStreamID   = "Es-Stream-Id"
	HeaderOccurredAt = "Es-Occurred-At"
)

// Publisher is the part of *nats.Conn the producer needs.
type Publisher interface {
	PublishMsg(m *natsgo.Msg) error
}

type ProducerConfig struct {
	Publisher     Publisher                      // Publisher sends the messages, usually a *nats.Conn.
	Types         *eventsourcing.EventTypeMapper // Types names events in subjects and headers.
	SubjectPrefix string                         // SubjectPrefix for event subjects, e.g. "events" -> events.<event name>
	Log           *slog.Logger                   // Log for diagnostics (optional)
}

// Producer is an ExternalEventProducer that publishes each event as JSON on
// the subject "{prefix}.{event name}".
//
// The event id is sent as Nats-Msg-Id so JetStream can drop duplicates, and
// the recorded trace context is copied into the headers.
type Producer struct {
	pub    Publisher
	types  *eventsourcing.EventTypeMapper
	prefix string
	log    *slog.Logger
}

var _ eventsourcing.ExternalEventProducer = (*Producer)(nil)

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("nats producer: publisher is required")
	}

	types := cfg.Types
	if types == nil {
		types = eventsourcing.NewEventTypeMapper()
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "events"
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &Producer{
		pub:    cfg.Publisher,
		types:  types,
		prefix: prefix,
		log:    log.With(slog.String("producer", "nats")),
	}, nil
}

// Subject returns the subject event is published on.
func (p *Producer) Subject(event eventsourcing.Event) string {
	return p.prefix + "." + p.types.NameOf(event)
}

func (p *Producer) Publish(ctx context.Context, envelope eventsourcing.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(envelope.Event)
	if err != nil {
		return fmt.Errorf("marshal event %T: %w", envelope.Event, err)
	}

	eventType := p.types.NameOf(envelope.Event)
	msg := natsgo.NewMsg(p.Subject(envelope.Event))
	msg.Data = data

	if envelope.Metadata.EventID != "" {
		msg.Header.Set(natsgo.MsgIdHdr, envelope.Metadata.EventID)
	}
	msg.Header.Set(HeaderEventType, eventType)
	if envelope.Metadata.StreamID != "" {
		msg.Header.Set(HeaderStreamID, envelope.Metadata.StreamID)
	}
	if !envelope.Metadata.OccurredAt.IsZero() {
		msg.Header.Set(HeaderOccurredAt, envelope.Metadata.OccurredAt.UTC().Format(time.RFC3339Nano))
	}
	for key, value := range envelope.Metadata.PropagationContext {
		msg.Header.Set(key, value)
	}

	if err := p.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", eventType, msg.Subject, err)
	}

	p.log.DebugContext(ctx, "forwarded external event",
		slog.String("subject", msg.Subject),
		slog.String("event_id", envelope.Metadata.EventID),
	)
	return nil
}
