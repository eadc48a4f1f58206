package fixtures

import (
	"context"
	"sync"

	ddd "github.com/terraskye/ddd"
)

// EventBusSpy records what is published and subscribed. Handlers are never
// called.
type EventBusSpy struct {
	mu sync.Mutex

	PublishCalls  int
	Published     []ddd.Event
	Subscriptions map[string]ddd.EventHandler

	publishErr error
	errs       chan error
	closed     bool
}

var _ ddd.EventBus = (*EventBusSpy)(nil)

func NewEventBusSpy() *EventBusSpy {
	return &EventBusSpy{
		Subscriptions: make(map[string]ddd.EventHandler),
		errs:          make(chan error, 10),
	}
}

// FailOnPublish makes every Publish return err.
func (b *EventBusSpy) FailOnPublish(err error) *EventBusSpy {
	b.publishErr = err
	return b
}

func (b *EventBusSpy) Publish(ctx context.Context, ev ddd.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.PublishCalls++
	if b.publishErr != nil {
		return b.publishErr
	}
	b.Published = append(b.Published, ev)
	return nil
}

// PublishedEvents returns a copy of the published events.
func (b *EventBusSpy) PublishedEvents() []ddd.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ddd.Event(nil), b.Published...)
}

func (b *EventBusSpy) Subscribe(ctx context.Context, name string, handler ddd.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Subscriptions[name] = handler
	return nil
}

func (b *EventBusSpy) Errors() <-chan error { return b.errs }

func (b *EventBusSpy) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.errs)
	}
	return nil
}

// EventHandlerSpy captures handled events and delegates to HandleFn when set.
type EventHandlerSpy struct {
	mu sync.Mutex

	HandleFn func(ctx context.Context, ev ddd.Event) error
	Received []ddd.Event
}

func NewEventHandlerSpy() *EventHandlerSpy {
	return &EventHandlerSpy{}
}

func (h *EventHandlerSpy) Handle(ctx context.Context, ev ddd.Event) error {
	h.mu.Lock()
	h.Received = append(h.Received, ev)
	fn := h.HandleFn
	h.mu.Unlock()

	if fn != nil {
		return fn(ctx, ev)
	}
	return nil
}
