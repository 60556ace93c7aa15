package eventsourcing

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// EventTypeMapper maps runtime event types to stable logical names and back.
//
// The mapper is an explicitly constructed dependency: create one at the
// composition root and hand it to the stores and buses that need it.
//
// Names derived from the type are inserted only if absent, so concurrent
// first lookups of the same type always agree. AddCustomMap overwrites any
// previous mapping in both directions.
//
// Example Usage:
//
//	types := NewEventTypeMapper()
//	MapEventType[CartOpened](types, "cart-opened")
//	name := types.NameOf(CartOpened{}) // "cart-opened"
type EventTypeMapper struct {
	mu     sync.RWMutex
	byType map[reflect.Type]string
	byName map[string]reflect.Type
}

func NewEventTypeMapper() *EventTypeMapper {
	return &EventTypeMapper{
		byType: make(map[reflect.Type]string),
		byName: make(map[string]reflect.Type),
	}
}

// MapEventType registers a custom name for T.
func MapEventType[T any](m *EventTypeMapper, name string) {
	m.AddCustomMap(reflect.TypeFor[T](), name)
}

// AddCustomMap binds t and name to each other, replacing earlier bindings.
// The previous name of t stops resolving, and a type that held name before
// falls back to its default name.
func (m *EventTypeMapper) AddCustomMap(t reflect.Type, name string) {
	key := indirect(t)

	m.mu.Lock()
	defer m.mu.Unlock()

	if previous, ok := m.byType[key]; ok && previous != name {
		if owner, ok := m.byName[previous]; ok && indirect(owner) == key {
			delete(m.byName, previous)
		}
	}
	if owner, ok := m.byName[name]; ok && indirect(owner) != key {
		delete(m.byType, indirect(owner))
	}

	m.byType[key] = name
	m.byName[name] = t
}

// ToName returns the logical name of t. Unmapped types get their default
// name "pkg.TypeName", which is cached on first use.
func (m *EventTypeMapper) ToName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	key := indirect(t)

	m.mu.RLock()
	name, ok := m.byType[key]
	m.mu.RUnlock()
	if ok {
		return name
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if name, ok := m.byType[key]; ok {
		return name
	}
	name = key.String()
	m.byType[key] = name
	if _, taken := m.byName[name]; !taken {
		m.byName[name] = t
	}
	return name
}

// NameOf returns the logical name of the runtime type of event.
func (m *EventTypeMapper) NameOf(event Event) string {
	return m.ToName(reflect.TypeOf(event))
}

// ToType resolves a logical name back to the type it was registered with.
// Only names that were mapped or resolved before can be found.
func (m *EventTypeMapper) ToType(name string) (reflect.Type, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.byName[name]
	return t, ok
}

// Decode builds a new event of the type registered under name from its JSON
// representation. The result has the same shape (value or pointer) as the
// registered type.
func (m *EventTypeMapper) Decode(name string, data []byte) (Event, error) {
	t, ok := m.ToType(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, name)
	}

	ptr := reflect.New(indirect(t))
	if len(data) > 0 {
		if err := json.Unmarshal(data, ptr.Interface()); err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", name, err)
		}
	}
	if t.Kind() == reflect.Pointer {
		return ptr.Interface(), nil
	}
	return ptr.Elem().Interface(), nil
}

// TypeName returns the simple name of the runtime type of v, without package
// or pointer decoration.
func TypeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return simpleName(reflect.TypeOf(v))
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func simpleName(t reflect.Type) string {
	t = indirect(t)
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// packageName returns the name of the package that declares t.
func packageName(t reflect.Type) string {
	t = indirect(t)
	if t.PkgPath() == "" {
		return ""
	}
	pkg, _, found := strings.Cut(t.String(), ".")
	if !found {
		return ""
	}
	return pkg
}
