package eventsourcing

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// nameCache is a type-keyed name table with insert-if-absent reads and
// last-write-wins overrides.
type nameCache struct {
	mu    sync.RWMutex
	names map[reflect.Type]string
}

func (c *nameCache) set(t reflect.Type, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.names == nil {
		c.names = make(map[reflect.Type]string)
	}
	c.names[indirect(t)] = name
}

func (c *nameCache) getOrAdd(t reflect.Type, derive func(reflect.Type) string) string {
	key := indirect(t)

	c.mu.RLock()
	name, ok := c.names[key]
	c.mu.RUnlock()
	if ok {
		return name
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if name, ok := c.names[key]; ok {
		return name
	}
	if c.names == nil {
		c.names = make(map[reflect.Type]string)
	}
	name = derive(key)
	c.names[key] = name
	return name
}

// StreamNameMapper computes canonical stream identifiers for aggregate types.
//
// The default prefix of a type is "{package}_{TypeName}". Stream ids have the
// form "{prefix}-{tenant}_{id}" where the tenant part is optional; keeping the
// tenant to the right of the dash leaves the category ("{prefix}") parseable.
type StreamNameMapper struct {
	cache nameCache
}

func NewStreamNameMapper() *StreamNameMapper {
	return &StreamNameMapper{}
}

// AddCustomMap overrides the stream prefix for t.
func (m *StreamNameMapper) AddCustomMap(t reflect.Type, prefix string) {
	m.cache.set(t, prefix)
}

// ToStreamPrefix returns the stream category for t.
func (m *StreamNameMapper) ToStreamPrefix(t reflect.Type) string {
	return m.cache.getOrAdd(t, func(t reflect.Type) string {
		if pkg := packageName(t); pkg != "" {
			return pkg + "_" + simpleName(t)
		}
		return simpleName(t)
	})
}

// ToStreamID returns the stream id of the aggregate with the given id. An
// empty tenantID omits the tenant part.
func (m *StreamNameMapper) ToStreamID(t reflect.Type, aggregateID string, tenantID string) string {
	tenantPrefix := ""
	if tenantID != "" {
		tenantPrefix = tenantID + "_"
	}
	return fmt.Sprintf("%s-%s%s", m.ToStreamPrefix(t), tenantPrefix, aggregateID)
}

// StreamIDFor is the generic form of ToStreamID.
func StreamIDFor[T any](m *StreamNameMapper, aggregateID string, tenantID string) string {
	return m.ToStreamID(reflect.TypeFor[T](), aggregateID, tenantID)
}

// IndexNameMapper computes lower-cased read-model index names.
//
// The default prefix of a type is "{package}-{typename}"; index names are
// "{tenant}-{prefix}" with an optional tenant.
type IndexNameMapper struct {
	cache nameCache
}

func NewIndexNameMapper() *IndexNameMapper {
	return &IndexNameMapper{}
}

func (m *IndexNameMapper) AddCustomMap(t reflect.Type, prefix string) {
	m.cache.set(t, prefix)
}

func (m *IndexNameMapper) ToIndexPrefix(t reflect.Type) string {
	return m.cache.getOrAdd(t, func(t reflect.Type) string {
		name := simpleName(t)
		if pkg := packageName(t); pkg != "" {
			name = pkg + "-" + name
		}
		return strings.ToLower(name)
	})
}

func (m *IndexNameMapper) ToIndexName(t reflect.Type, tenantID string) string {
	tenantPrefix := ""
	if tenantID != "" {
		tenantPrefix = tenantID + "-"
	}
	return strings.ToLower(tenantPrefix + m.ToIndexPrefix(t))
}

// IndexNameFor is the generic form of ToIndexName.
func IndexNameFor[T any](m *IndexNameMapper, tenantID string) string {
	return m.ToIndexName(reflect.TypeFor[T](), tenantID)
}
