package eventsourcing

import (
	"context"
	"fmt"
)

// EventOrCommand is one message scheduled by a process manager. Exactly one
// of Event and Command is set.
type EventOrCommand struct {
	Event   Event
	Command Command
}

func (m EventOrCommand) IsCommand() bool {
	return m.Command != nil
}

// ProcessManager coordinates a long-running workflow. It reacts to events
// and schedules follow-up events and commands instead of changing state of
// other aggregates directly.
type ProcessManager interface {
	ProcessManagerID() string

	// DequeuePendingMessages returns the scheduled messages in order and
	// empties the queue.
	DequeuePendingMessages() []EventOrCommand
}

// ProcessManagerBase keeps the identity and the queue of scheduled
// messages. Embed it in concrete process managers.
type ProcessManagerBase struct {
	id      string
	version uint64
	pending []EventOrCommand
}

func NewProcessManagerBase(id string) ProcessManagerBase {
	return ProcessManagerBase{id: id}
}

func (p *ProcessManagerBase) ProcessManagerID() string {
	return p.id
}

// Version counts the messages scheduled over the lifetime of the process.
func (p *ProcessManagerBase) Version() uint64 {
	return p.version
}

func (p *ProcessManagerBase) EnqueueEvent(event Event) {
	p.pending = append(p.pending, EventOrCommand{Event: event})
	p.version++
}

func (p *ProcessManagerBase) ScheduleCommand(cmd Command) {
	p.pending = append(p.pending, EventOrCommand{Command: cmd})
	p.version++
}

func (p *ProcessManagerBase) DequeuePendingMessages() []EventOrCommand {
	pending := p.pending
	p.pending = nil
	return pending
}

// DispatchPendingMessages dequeues the messages of pm and delivers them in
// order: events are published on events and commands are sent on commands.
// It stops at the first failure; messages after it are dropped.
func DispatchPendingMessages(ctx context.Context, pm ProcessManager, events EventBus, commands CommandBus) error {
	for _, msg := range pm.DequeuePendingMessages() {
		if msg.IsCommand() {
			if err := commands.Send(ctx, msg.Command); err != nil {
				return fmt.Errorf("process %s: %w", pm.ProcessManagerID(), err)
			}
			continue
		}

		envelope := EnvelopeFrom(msg.Event)
		envelope.Metadata.StreamID = pm.ProcessManagerID()
		if err := events.Publish(ctx, envelope); err != nil {
			return fmt.Errorf("process %s: %w", pm.ProcessManagerID(), err)
		}
	}
	return nil
}
