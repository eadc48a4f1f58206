package ddd

import (
	"fmt"
	"sort"
	"sync"
)

// EventConstructor returns a new, empty instance of a concrete event type.
type EventConstructor func() Event

// EventConstructorMap maps event type tags to constructors. Stores use it to
// turn a tag read from the wire back into a concrete event.
//
// The map is closed: every event type a store may read must be registered
// before the store is used. It is safe for concurrent use.
type EventConstructorMap struct {
	mu           sync.RWMutex
	constructors map[string]EventConstructor
}

func NewEventConstructorMap() *EventConstructorMap {
	return &EventConstructorMap{constructors: map[string]EventConstructor{}}
}

// Register adds a constructor under the type tag of the event it builds.
//
// Panics:
//   - If fn is nil or returns nil.
//   - If the type tag is already registered.
//
// Example Usage:
//
//	m.Register(func() ddd.Event { return &ContingentIncreased{} })
func (m *EventConstructorMap) Register(fn EventConstructor) {
	if fn == nil {
		panic("cannot register nil event constructor")
	}
	ev := fn()
	if ev == nil {
		panic("event constructor returned nil")
	}
	m.RegisterName(EventType(ev), fn)
}

// RegisterName adds a constructor under an explicit type tag. It panics
// under the same conditions as Register.
func (m *EventConstructorMap) RegisterName(name string, fn EventConstructor) {
	if fn == nil {
		panic(fmt.Sprintf("cannot register nil event constructor for %s", name))
	}
	if fn() == nil {
		panic(fmt.Sprintf("event constructor returned nil for %s", name))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.constructors[name]; exists {
		panic(fmt.Sprintf("event already registered: %s", name))
	}
	m.constructors[name] = fn
}

// New builds an empty event for the type tag.
// It returns *EventConstructorMappingNotFoundError for unknown tags.
func (m *EventConstructorMap) New(name string) (Event, error) {
	m.mu.RLock()
	fn, ok := m.constructors[name]
	m.mu.RUnlock()

	if !ok {
		return nil, &EventConstructorMappingNotFoundError{EventType: name}
	}
	return fn(), nil
}

// Types returns the registered type tags in sorted order.
func (m *EventConstructorMap) Types() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.constructors))
	for name := range m.constructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RegisterEvent registers the event type E, built as new(E).
//
//	ddd.RegisterEvent[ContingentIncreased](m)
func RegisterEvent[E any, P interface {
	*E
	Event
}](m *EventConstructorMap) {
	m.Register(func() Event { return P(new(E)) })
}
