package eventsourcing

import "fmt"

// StreamState is the concurrency requirement applied when appending to a stream.
type StreamState interface {
	streamState()
}

// Any means append without checking current revision.
type Any struct{}

func (Any) streamState() {}
func (Any) String() string { return "any" }

// NoStream means the stream should not exist yet.
type NoStream struct{}

func (NoStream) streamState() {}
func (NoStream) String() string { return "no stream" }

// StreamExists means the stream must exist.
type StreamExists struct{}

func (StreamExists) streamState() {}
func (StreamExists) String() string { return "stream exists" }

// Revision expects the stream to contain exactly this many events.
type Revision uint64

func (Revision) streamState() {}
func (r Revision) String() string { return fmt.Sprintf("%d", uint64(r)) }
