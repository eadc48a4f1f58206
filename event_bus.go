package ddd

import "context"

// EventBus distributes events published by an event store to every
// subscribed handler.
type EventBus interface {
	// Publish hands ev to every subscriber.
	Publish(ctx context.Context, ev Event) error

	// Subscribe adds a named handler. Returns an error if the handler is
	// nil, the name is already taken or the bus is closed.
	Subscribe(ctx context.Context, name string, handler EventHandler) error

	// Errors returns an error channel where async handling errors are sent.
	Errors() <-chan error

	// Close closes the EventBus and waits for all handlers to finish.
	Close() error
}
