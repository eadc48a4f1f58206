package ddd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// testStore records appended batches.
type testStore struct {
	mu        sync.Mutex
	batches   [][]Event
	appendErr error
}

func (s *testStore) Append(ctx context.Context, events ...Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.batches = append(s.batches, events)
	return nil
}

func (s *testStore) GetAggregateStream(ctx context.Context, id ID) (AggregateEventStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, b := range s.batches {
		for _, ev := range b {
			if ev.AggregateID().Equals(id) {
				out = append(out, ev)
			}
		}
	}
	return NewAggregateEventStream(id, out), nil
}

func (s *testStore) appendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func TestTransactionManager_CommitsRegistryInOneBatch(t *testing.T) {
	registry := NewEventRegistry()
	store := &testStore{}
	tm := NewEventSourcedTransactionManager(registry, store)
	ctx := context.Background()

	registry.Raise(&thingRenamed{})
	if err := tm.Begin(ctx); err != nil {
		t.Fatal(err)
	}
	if registry.Len() != 0 {
		t.Fatal("Begin should discard leftovers")
	}

	registry.DequeueProviderAndRegisterEvents(newThing(t, "a"))
	registry.DequeueProviderAndRegisterEvents(newThing(t, "b"))
	if err := tm.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	if store.appendCount() != 1 || len(store.batches[0]) != 2 {
		t.Fatalf("expected one batch of 2 events, got %v", store.batches)
	}
	if registry.Len() != 0 {
		t.Fatal("registry should be empty after commit")
	}
}

func TestTransactionManager_RollbackDropsEvents(t *testing.T) {
	registry := NewEventRegistry()
	store := &testStore{}
	tm := NewEventSourcedTransactionManager(registry, store)
	ctx := context.Background()

	_ = tm.Begin(ctx)
	registry.DequeueProviderAndRegisterEvents(newThing(t, "a"))
	if err := tm.Rollback(ctx); err != nil {
		t.Fatal(err)
	}

	if registry.Len() != 0 || store.appendCount() != 0 {
		t.Fatal("rollback must leave registry and store untouched")
	}
}

func TestTransactionManager_FailedCommitThenRollback(t *testing.T) {
	registry := NewEventRegistry()
	store := &testStore{appendErr: WrapEventStoreError(errors.New("down"))}
	tm := NewEventSourcedTransactionManager(registry, store)
	ctx := context.Background()

	_ = tm.Begin(ctx)
	registry.DequeueProviderAndRegisterEvents(newThing(t, "a"))

	err := tm.Commit(ctx)
	var storeErr *EventStoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected EventStoreError, got %v", err)
	}
	if err := tm.Rollback(ctx); err != nil {
		t.Fatal(err)
	}

	// the claim is free again
	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if err := tm.Begin(ctx); err != nil {
		t.Fatalf("begin after rollback: %v", err)
	}
}

func TestTransactionManager_BeginWaitsForClaim(t *testing.T) {
	tm := NewEventSourcedTransactionManager(NewEventRegistry(), &testStore{})

	if err := tm.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := tm.Begin(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while claimed, got %v", err)
	}
}

func TestTransactionManager_RollbackWithoutTransaction(t *testing.T) {
	tm := NewEventSourcedTransactionManager(NewEventRegistry(), &testStore{})
	ctx := context.Background()

	if err := tm.Rollback(ctx); err != nil {
		t.Fatal(err)
	}
	if err := tm.Begin(ctx); err != nil {
		t.Fatal(err)
	}

	// exactly one claim is held
	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := tm.Begin(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected second Begin to wait, got %v", err)
	}
}

func TestNewCommandHandler_FailedBeginLeavesHolderUntouched(t *testing.T) {
	f := newHandlerFixture()
	ctx := context.Background()

	if err := f.tm.Begin(ctx); err != nil {
		t.Fatal(err)
	}
	f.registry.DequeueProviderAndRegisterEvents(newThing(t, "holder"))

	handler := NewCommandHandler(f.tm, f.registry, func(ctx context.Context, cmd *renameThing) (EventProvider, error) {
		t.Error("logic must not run without a transaction")
		return nil, nil
	})

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := handler(waitCtx, &renameThing{CommandBase: NewCommandBase()}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	if f.registry.Len() != 1 {
		t.Fatalf("holder's events were dropped, registry has %d", f.registry.Len())
	}
	if err := f.tm.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if f.store.appendCount() != 1 {
		t.Fatal("holder's commit should reach the store")
	}
}
