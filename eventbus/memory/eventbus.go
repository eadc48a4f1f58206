package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	ddd "github.com/terraskye/ddd"
)

var ErrClosed = errors.New("eventbus is closed")

type subscriber struct {
	name    string
	handler ddd.EventHandler
	events  chan ddd.Event
	done    chan struct{}
	cancel  context.CancelFunc
}

// EventBus is an in-process ddd.EventBus. Every subscriber has its own
// buffered queue and worker goroutine, so a slow handler only delays its
// own deliveries.
type EventBus struct {
	mu         sync.RWMutex
	subs       map[string]*subscriber
	closed     bool
	errs       chan error
	wg         sync.WaitGroup
	bufferSize int
	log        *slog.Logger
}

type Option func(b *EventBus)

// WithLogger sets the logger used for handler errors that could not be
// delivered on the Errors channel.
func WithLogger(log *slog.Logger) Option {
	return func(b *EventBus) { b.log = log }
}

// NewEventBus constructs a new bus with a given subscriber buffer size.
func NewEventBus(bufferSize int, opts ...Option) *EventBus {
	b := &EventBus{
		subs:       make(map[string]*subscriber),
		errs:       make(chan error, 64),
		bufferSize: bufferSize,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Subscribe registers a handler under a unique name. The subscription ends
// when ctx is done or the bus is closed.
func (b *EventBus) Subscribe(ctx context.Context, name string, handler ddd.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	if _, exists := b.subs[name]; exists {
		return fmt.Errorf("handler with name %q already registered", name)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	s := &subscriber{
		name:    name,
		handler: handler,
		events:  make(chan ddd.Event, b.bufferSize),
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	b.subs[name] = s

	b.wg.Add(1)
	go b.runSubscriber(workerCtx, s)

	// Automatically remove when caller's ctx finishes
	go func() {
		select {
		case <-ctx.Done():
			b.removeSubscriber(name)
		case <-s.done:
		}
	}()

	return nil
}

func (b *EventBus) Errors() <-chan error {
	return b.errs
}

// Publish hands ev to every subscriber. It blocks while a subscriber's
// queue is full, until the event is accepted or ctx is done.
func (b *EventBus) Publish(ctx context.Context, ev ddd.Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.events <- ev:
		case <-s.done:
			// unsubscribed meanwhile
		case <-ctx.Done():
			return fmt.Errorf("publish %s to %q: %w", ddd.EventType(ev), s.name, ctx.Err())
		}
	}
	return nil
}

// Close shuts down the bus and waits for all workers.
func (b *EventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	for name, s := range b.subs {
		s.stop()
		delete(b.subs, name)
	}
	b.mu.Unlock()

	// Wait until all workers finish
	b.wg.Wait()

	close(b.errs)
	return nil
}

// runSubscriber processes events for a single handler.
func (b *EventBus) runSubscriber(ctx context.Context, s *subscriber) {
	defer b.wg.Done()

	for {
		select {
		case <-s.done:
			return

		case ev := <-s.events:
			if err := s.handler.Handle(ddd.WithEvent(ctx, ev), ev); err != nil {
				b.report(fmt.Errorf("handler %q: %w", s.name, err))
			}
		}
	}
}

func (b *EventBus) report(err error) {
	select {
	case b.errs <- err:
	default:
		b.log.Warn("eventbus error channel full, dropping error", slog.Any("error", err))
	}
}

func (b *EventBus) removeSubscriber(name string) {
	b.mu.Lock()
	s, ok := b.subs[name]
	if ok {
		delete(b.subs, name)
	}
	b.mu.Unlock()

	if ok {
		s.stop()
	}
}

func (s *subscriber) stop() {
	s.cancel()
	close(s.done)
}
