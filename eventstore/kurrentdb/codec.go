package kurrentdb

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kurrent-io/KurrentDB-Client-Go/kurrentdb"
	eventsourcing "github.com/terraskye/eventsourcing-core"
)

// storedMetadata is the user metadata written next to every event.
type storedMetadata struct {
	OccurredAt         time.Time         `json:"occurredAt"`
	PropagationContext map[string]string `json:"propagation,omitempty"`
}

// Codec converts envelopes to KurrentDB event data and back, naming event
// types through an EventTypeMapper.
type Codec struct {
	types *eventsourcing.EventTypeMapper
}

func NewCodec(types *eventsourcing.EventTypeMapper) *Codec {
	return &Codec{types: types}
}

// Encode serializes the payload and metadata of env as JSON.
func (c *Codec) Encode(env eventsourcing.Envelope) (kurrentdb.EventData, error) {
	data, err := json.Marshal(env.Event)
	if err != nil {
		return kurrentdb.EventData{}, fmt.Errorf("marshal event %T: %w", env.Event, err)
	}

	metadata, err := json.Marshal(storedMetadata{
		OccurredAt:         env.Metadata.OccurredAt,
		PropagationContext: env.Metadata.PropagationContext,
	})
	if err != nil {
		return kurrentdb.EventData{}, fmt.Errorf("marshal metadata of %T: %w", env.Event, err)
	}

	id, err := uuid.Parse(env.Metadata.EventID)
	if err != nil {
		id = uuid.New()
	}

	return kurrentdb.EventData{
		EventID:     id,
		EventType:   c.types.NameOf(env.Event),
		ContentType: kurrentdb.ContentTypeJson,
		Data:        data,
		Metadata:    metadata,
	}, nil
}

// Decode rebuilds an envelope from a recorded event. Unknown event types
// fail with ErrUnknownEventType.
func (c *Codec) Decode(recorded *kurrentdb.RecordedEvent) (eventsourcing.Envelope, error) {
	event, err := c.types.Decode(recorded.EventType, recorded.Data)
	if err != nil {
		return eventsourcing.Envelope{}, err
	}

	var metadata storedMetadata
	if len(recorded.UserMetadata) > 0 {
		if err := json.Unmarshal(recorded.UserMetadata, &metadata); err != nil {
			return eventsourcing.Envelope{}, fmt.Errorf("unmarshal metadata of %s: %w", recorded.EventType, err)
		}
	}
	if metadata.OccurredAt.IsZero() {
		metadata.OccurredAt = recorded.CreatedDate
	}

	return eventsourcing.NewEnvelope(event, eventsourcing.EventMetadata{
		EventID:            recorded.EventID.String(),
		StreamID:           recorded.StreamID,
		StreamPosition:     recorded.EventNumber,
		LogPosition:        recorded.Position.Commit,
		OccurredAt:         metadata.OccurredAt,
		PropagationContext: metadata.PropagationContext,
	}), nil
}

// IsSystemEvent reports whether recorded is one of the server's own events.
func IsSystemEvent(recorded *kurrentdb.RecordedEvent) bool {
	return strings.HasPrefix(recorded.EventType, "$")
}
