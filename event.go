package ddd

import (
	"fmt"
	"reflect"
	"sync"
	"time"
)

var now = time.Now

// Event is a domain event: an immutable fact about one aggregate.
//
// Concrete events are pointers to structs that embed EventBase and declare
// their own properties as exported fields of plain data:
//
//	type ContingentIncreased struct {
//	    ddd.EventBase
//	    Quantity int `json:"quantity"`
//	}
//
// Events are created with NewEvent, which validates the own properties and
// assigns the event id, the aggregate id and the raise time.
type Event interface {
	Message
	AggregateID() ID
	RaisedAt() time.Time

	base() *EventBase
}

// EventBase is the embeddable header of a domain event.
type EventBase struct {
	MessageBase
	aggregateID ID
	raisedAt    time.Time
}

func (e *EventBase) AggregateID() ID     { return e.aggregateID }
func (e *EventBase) RaisedAt() time.Time { return e.raisedAt }

// CorrelateWith records the chain with message kinds, matching the form in
// which event correlation travels on the wire.
func (e *EventBase) CorrelateWith(other Message) {
	e.MessageBase.CorrelateWith(other)
	e.correlation = e.correlation.WithKind(MessageKind)
	e.causation = e.causation.WithKind(MessageKind)
}

func (e *EventBase) base() *EventBase { return e }

// NewEvent stamps ev as a freshly raised event of the aggregate.
//
// Parameters:
//   - ev: a pointer to a concrete event whose own properties are already set.
//   - aggregateID: the identifier of the aggregate raising the event.
//
// Returns:
//   - the same event with id, aggregate id and raisedAt assigned.
//   - *InvalidPayloadError when an own property is not plain data.
//
// The event starts uncorrelated; the command handler correlates it with the
// command that caused it.
//
// Example Usage:
//
//	ev, err := ddd.NewEvent(&ContingentIncreased{Quantity: 5}, contingent.ID())
func NewEvent[E Event](ev E, aggregateID ID) (E, error) {
	if err := ValidatePayload(ev); err != nil {
		var zero E
		return zero, err
	}
	b := ev.base()
	b.id = NextID(EventKind)
	b.hasCorrelation, b.hasCausation = false, false
	b.aggregateID = aggregateID
	b.raisedAt = clock.next()
	return ev, nil
}

// RestoreEvent sets the header of a decoded event. It is used by stores
// when rebuilding events from their persisted form.
func RestoreEvent(ev Event, h EventHeader) {
	b := ev.base()
	b.MessageBase.restore(h.ID, h.CorrelationID, h.CausationID)
	b.aggregateID = h.AggregateID
	b.raisedAt = h.RaisedAt
}

// Header returns the persisted header fields of ev.
func Header(ev Event) EventHeader {
	b := ev.base()
	return EventHeader{
		ID:            b.id,
		CorrelationID: b.correlationRef(),
		CausationID:   b.causationRef(),
		AggregateID:   b.aggregateID,
		RaisedAt:      b.raisedAt,
	}
}

// EventHeader is the part of an event that is not its own properties.
type EventHeader struct {
	ID            ID
	CorrelationID *ID
	CausationID   *ID
	AggregateID   ID
	RaisedAt      time.Time
}

// EventType returns the type tag of ev: the value of its EventType method
// when it declares one, its Go type name otherwise.
func EventType(ev Event) string {
	if t, ok := ev.(interface{ EventType() string }); ok {
		return t.EventType()
	}
	return TypeName(ev)
}

// TypeName returns the name of the concrete type of v, without package path
// or pointer indirection.
func TypeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return fmt.Sprintf("%T", v)
	}
	return t.Name()
}

// milliClock hands out millisecond timestamps that never go backwards
// within the process.
type milliClock struct {
	mu   sync.Mutex
	last time.Time
}

var clock milliClock

func (c *milliClock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := now().Truncate(time.Millisecond)
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
