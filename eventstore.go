package ddd

import (
	"context"
)

// EventStore defines the contract for an append-only event store used in
// event-sourced systems. An EventStore persists the events of every
// aggregate in order, allowing full reconstruction of aggregate state.
//
// Implementations must guarantee:
//   - Events of one aggregate are returned in the order they were appended.
//   - An append is all or nothing from the point of view of the caller.
//
// No optimistic concurrency check is made on append; concurrent writers to
// the same aggregate are serialized by the command bus shards instead.
type EventStore interface {
	// Append persists events, which may belong to several aggregates, as one
	// batch. An empty batch is a no-op.
	//
	// Errors:
	//   - *EventStoreError for failures of the underlying storage.
	Append(ctx context.Context, events ...Event) error

	// GetAggregateStream returns the history of one aggregate, oldest first.
	// An aggregate that was never written yields an empty stream, not an
	// error.
	GetAggregateStream(ctx context.Context, id ID) (AggregateEventStream, error)
}
