package eventsourcing

import (
	"fmt"
	"reflect"
	"slices"
)

// EventGroupProcessor bundles the handlers of one subscriber, such as a
// projection, under a single group name. Within a group each event type has
// exactly one handler.
type EventGroupProcessor struct {
	groupName string
	handlers  []EventHandler
}

// NewEventGroupProcessor creates a group. It panics when two handlers in the
// group handle the same event type.
func NewEventGroupProcessor(groupName string, handlers ...EventHandler) *EventGroupProcessor {
	seen := make(map[reflect.Type]struct{}, len(handlers))
	for _, h := range handlers {
		t := h.EventType()
		if _, dup := seen[t]; dup {
			panic(fmt.Errorf("group %s has more than one handler for %s: %w", groupName, t, ErrDuplicateHandler))
		}
		seen[t] = struct{}{}
	}

	return &EventGroupProcessor{
		groupName: groupName,
		handlers:  handlers,
	}
}

func (p *EventGroupProcessor) Name() string {
	return p.groupName
}

// EventNames returns the logical names of the handled event types, sorted.
// Stores use them to filter subscriptions down to what the group needs.
func (p *EventGroupProcessor) EventNames(types *EventTypeMapper) []string {
	names := make([]string, 0, len(p.handlers))
	for _, h := range p.handlers {
		names = append(names, types.ToName(h.EventType()))
	}
	slices.Sort(names)
	return names
}

// SubscribeTo registers every handler of the group on bus, in order.
func (p *EventGroupProcessor) SubscribeTo(bus *InMemoryEventBus) {
	bus.Subscribe(p.groupName, p.handlers...)
}
