package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ddd "github.com/terraskye/ddd"
)

var ErrClosed = errors.New("eventstore is closed")

// MemoryStore is an in-process ddd.EventStore. Appended events are kept per
// stream in append order and, when a bus is configured, published after the
// append succeeded.
type MemoryStore struct {
	mu     sync.RWMutex
	bus    ddd.EventBus
	global []ddd.Event
	events map[string][]ddd.Event
	closed bool
}

var _ ddd.EventStore = (*MemoryStore)(nil)

type Option func(*MemoryStore)

// WithEventBus publishes every appended event to bus.
func WithEventBus(bus ddd.EventBus) Option {
	return func(m *MemoryStore) { m.bus = bus }
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	m := &MemoryStore{
		events: make(map[string][]ddd.Event),
		global: make([]ddd.Event, 0),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Append stores events, which may belong to different aggregates.
func (m *MemoryStore) Append(ctx context.Context, events ...ddd.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return ddd.WrapEventStoreError(err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ddd.WrapEventStoreError(ErrClosed)
	}
	for _, ev := range events {
		if ev.AggregateID().IsZero() {
			m.mu.Unlock()
			return ddd.WrapEventStoreError(fmt.Errorf("event %s has no aggregate id", ddd.EventType(ev)))
		}
	}
	for _, ev := range events {
		stream := ddd.StreamName(ev.AggregateID())
		m.events[stream] = append(m.events[stream], ev)
		m.global = append(m.global, ev)
	}
	bus := m.bus
	m.mu.Unlock()

	if bus == nil {
		return nil
	}
	for _, ev := range events {
		if err := bus.Publish(ctx, ev); err != nil {
			return fmt.Errorf("publish %s: %w", ddd.EventType(ev), err)
		}
	}
	return nil
}

// GetAggregateStream returns the events of id in append order. An unknown
// aggregate yields an empty stream.
func (m *MemoryStore) GetAggregateStream(ctx context.Context, id ddd.ID) (ddd.AggregateEventStream, error) {
	if err := ctx.Err(); err != nil {
		return ddd.AggregateEventStream{}, ddd.WrapEventStoreError(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return ddd.NewAggregateEventStream(id, m.events[ddd.StreamName(id)]), nil
}

// All returns every stored event in global append order.
func (m *MemoryStore) All() []ddd.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ddd.Event(nil), m.global...)
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.events = make(map[string][]ddd.Event)
	m.global = nil
	return nil
}
