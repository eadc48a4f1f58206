package ddd

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// EventHandler reacts to events delivered by an EventBus.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

// NewEventHandlerFunc adapts fn to an EventHandler that receives every
// event, whatever its type. Use OnEvent for a handler bound to one event type.
//
//	audit := NewEventHandlerFunc(func(ctx context.Context, ev Event) error {
//	    log.Println("received", EventType(ev))
//	    return nil
//	})
//	bus.Subscribe(ctx, "audit", audit)
func NewEventHandlerFunc(fn func(ctx context.Context, event Event) error) EventHandler {
	return eventHandlerFunc(fn)
}

type eventHandlerFunc func(ctx context.Context, event Event) error

func (h eventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return h(ctx, event)
}

// namedHandler is implemented by handlers bound to a single event type tag.
type namedHandler interface {
	EventHandler
	EventName() string
}

type typedEventHandler[T Event] func(ctx context.Context, ev T) error

// EventName is the type tag of T, honouring an EventType override on the
// pointed-to struct.
func (h typedEventHandler[T]) EventName() string {
	var zero T
	if t := reflect.TypeOf(zero); t != nil && t.Kind() == reflect.Pointer {
		if ev, ok := reflect.New(t.Elem()).Interface().(Event); ok {
			return EventType(ev)
		}
	}
	return TypeName(zero)
}

func (h typedEventHandler[T]) Handle(ctx context.Context, event Event) error {
	ev, ok := event.(T)
	if !ok {
		return &ErrSkippedEvent{Event: event}
	}
	return h(ctx, ev)
}

// OnEvent binds fn to the event type T. Handle returns *ErrSkippedEvent for
// any other event.
//
//	sold := OnEvent(func(ctx context.Context, ev *ContingentSold) error {
//	    report.Add(ev.AggregateID(), ev.Quantity)
//	    return nil
//	})
func OnEvent[T Event](fn func(ctx context.Context, ev T) error) EventHandler {
	return typedEventHandler[T](fn)
}

// EventGroupProcessor dispatches each event to the one handler registered
// for its type tag.
type EventGroupProcessor struct {
	handlers map[string]EventHandler
}

// NewEventGroupProcessor groups handlers created with OnEvent. It panics when
// a handler is not bound to an event type, or when two handlers share one.
//
//	report := &SalesReport{}
//	bus.Subscribe(ctx, "sales-report", NewEventGroupProcessor(
//	    OnEvent(report.OnContingentInitialized),
//	    OnEvent(report.OnContingentSold),
//	))
func NewEventGroupProcessor(handlers ...EventHandler) *EventGroupProcessor {
	p := &EventGroupProcessor{handlers: make(map[string]EventHandler, len(handlers))}
	for _, h := range handlers {
		named, ok := h.(namedHandler)
		if !ok {
			panic(fmt.Errorf("handler %T is not bound to an event type, create it with OnEvent", h))
		}
		name := named.EventName()
		if _, exists := p.handlers[name]; exists {
			panic(fmt.Errorf("duplicate handler for event %s: %w", name, ErrDuplicateHandler))
		}
		p.handlers[name] = h
	}
	return p
}

// Handle returns *ErrSkippedEvent when no handler is registered for ev.
func (p *EventGroupProcessor) Handle(ctx context.Context, ev Event) error {
	h, ok := p.handlers[EventType(ev)]
	if !ok {
		return &ErrSkippedEvent{Event: ev}
	}
	return h.Handle(ctx, ev)
}

// StreamFilter lists the handled type tags in sorted order.
func (p *EventGroupProcessor) StreamFilter() []string {
	return slices.Sorted(maps.Keys(p.handlers))
}
