package ddd

import (
	"fmt"
	"time"
)

// Applier mutates in-memory state from one event.
//
// Implementations switch over their closed set of events and return
// *MissingApplyHandlerError for anything else:
//
//	func (c *Contingent) Apply(ev ddd.Event) error {
//	    switch e := ev.(type) {
//	    case *ContingentInitialized:
//	        ...
//	    default:
//	        return &ddd.MissingApplyHandlerError{Aggregate: "Contingent", Event: ddd.EventType(ev)}
//	    }
//	}
//
// Apply must not raise events; it runs both for fresh events and during
// replay of history.
type Applier interface {
	Apply(ev Event) error
}

// Raiser buffers freshly raised events.
type Raiser interface {
	Raise(ev Event)
}

// Entity is the embeddable base of every event-sourced entity.
// The zero value is an uninitialized entity; Initialize is called by the
// apply handler of the creation event.
type Entity struct {
	id        ID
	createdAt time.Time
	pending   EventRegistry
}

func (e *Entity) ID() ID { return e.id }

func (e *Entity) CreatedAt() time.Time { return e.createdAt }

// Initialize sets identity and creation time.
func (e *Entity) Initialize(id ID, createdAt time.Time) {
	e.id = id
	e.createdAt = createdAt
}

func (e *Entity) IsInitialized() bool { return !e.id.IsZero() }

// Raise buffers ev until the next DequeueEvents.
func (e *Entity) Raise(ev Event) {
	e.pending.Raise(ev)
}

func (e *Entity) DequeueEvents() []Event {
	return e.pending.DequeueEvents()
}

// AggregateRoot is the embeddable base of an aggregate: the consistency
// boundary that owns child entities and collects their events.
type AggregateRoot struct {
	Entity
}

// Drain moves the events of an owned child entity into the root's buffer so
// that a single DequeueEvents on the root returns everything raised within
// the aggregate.
//
// A child raises and applies its own events, and the root drains them:
//
//	func (l *OrderLine) ChangeQuantity(order *Order, q int) error {
//	    ev, err := ddd.NewEvent(&LineQuantityChanged{LineID: l.ID().String(), Quantity: q}, order.ID())
//	    if err != nil {
//	        return err
//	    }
//	    if err := ddd.RaiseAndApply(l, ev); err != nil {
//	        return err
//	    }
//	    order.Drain(l)
//	    return nil
//	}
//
// During Replay nothing is raised. The root's Apply creates the child from
// its creation event and hands every later child event to the child's Apply:
//
//	case *LineQuantityChanged:
//	    return o.lines[e.LineID].Apply(e)
func (a *AggregateRoot) Drain(child EventProvider) {
	for _, ev := range child.DequeueEvents() {
		a.Raise(ev)
	}
}

// RaiseAndApply buffers ev on target and then applies it.
func RaiseAndApply[T interface {
	Applier
	Raiser
}](target T, ev Event) error {
	target.Raise(ev)
	if err := target.Apply(ev); err != nil {
		return fmt.Errorf("apply %s: %w", EventType(ev), err)
	}
	return nil
}

// Replay rebuilds target from its history. Events are applied in order and
// nothing is raised. A missing apply handler aborts the replay.
func Replay(target Applier, stream AggregateEventStream) error {
	for i, ev := range stream.events {
		if err := target.Apply(ev); err != nil {
			return fmt.Errorf("replay %s event %d (%s): %w", StreamName(stream.aggregateID), i, EventType(ev), err)
		}
	}
	return nil
}
