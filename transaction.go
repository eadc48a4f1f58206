package ddd

import (
	"context"
	"fmt"
)

// TransactionManager brackets the execution of one command.
type TransactionManager interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// EventSourcedTransactionManager commits the events collected in a shared
// EventRegistry to an EventStore.
//
// The registry is shared by every command handler using the manager, so a
// transaction claims it from Begin until Commit or Rollback. Concurrent
// commands wait for the claim, honouring their context.
//
// The claim is not bound to a caller. Commit and Rollback act on whichever
// transaction holds it, so they must only follow a successful Begin by the
// same caller. Rolling back after a failed Begin would drop the events of
// the transaction that does hold the claim and release it.
type EventSourcedTransactionManager struct {
	registry *EventRegistry
	store    EventStore
	claim    chan struct{}
}

func NewEventSourcedTransactionManager(registry *EventRegistry, store EventStore) *EventSourcedTransactionManager {
	return &EventSourcedTransactionManager{
		registry: registry,
		store:    store,
		claim:    make(chan struct{}, 1),
	}
}

// Begin claims the registry and drops whatever a previous, abandoned unit
// of work left in it.
func (tm *EventSourcedTransactionManager) Begin(ctx context.Context) error {
	select {
	case tm.claim <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("begin transaction: %w", ctx.Err())
	}
	tm.registry.DequeueEvents()
	return nil
}

// Commit appends every collected event to the store in one batch and
// releases the claim. On failure the claim is kept until Rollback.
func (tm *EventSourcedTransactionManager) Commit(ctx context.Context) error {
	events := tm.registry.DequeueEvents()
	if err := tm.store.Append(ctx, events...); err != nil {
		return fmt.Errorf("commit %d events: %w", len(events), err)
	}
	tm.release()
	return nil
}

// Rollback drops every collected event and releases the claim. It is safe
// to call after a failed Commit, and a no-op while no transaction is open.
// Never call it after a failed Begin.
func (tm *EventSourcedTransactionManager) Rollback(ctx context.Context) error {
	tm.registry.DequeueEvents()
	tm.release()
	return nil
}

func (tm *EventSourcedTransactionManager) release() {
	select {
	case <-tm.claim:
	default:
	}
}
