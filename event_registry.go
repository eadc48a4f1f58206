package ddd

import "sync"

// EventProvider is anything buffering raised events until a transaction
// collects them: entities, aggregates, correlators.
type EventProvider interface {
	// DequeueEvents returns the buffered events and empties the buffer.
	DequeueEvents() []Event
}

// EventRegistry accumulates the events raised during one logical
// transaction, possibly by several entities. It is safe for concurrent use.
type EventRegistry struct {
	mu     sync.Mutex
	events []Event
}

func NewEventRegistry() *EventRegistry {
	return &EventRegistry{}
}

// Raise appends ev to the buffer.
func (r *EventRegistry) Raise(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// DequeueEvents returns the buffered events in raise order and empties the
// buffer. Each event is returned exactly once.
func (r *EventRegistry) DequeueEvents() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

// DequeueProviderAndRegisterEvents moves every event buffered by p into the
// registry, keeping their order.
func (r *EventRegistry) DequeueProviderAndRegisterEvents(p EventProvider) {
	events := p.DequeueEvents()
	if len(events) == 0 {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, events...)
	r.mu.Unlock()
}

// Len reports the number of buffered events.
func (r *EventRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
