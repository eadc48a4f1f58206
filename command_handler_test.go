package ddd

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v4"
)

// ---------------------- Test helpers / stubs ----------------------

type renameThing struct {
	CommandBase
	Target ID
	Name   string
}

func (c *renameThing) AggregateID() ID { return c.Target }

type handlerFixture struct {
	registry *EventRegistry
	store    *testStore
	tm       *EventSourcedTransactionManager
}

func newHandlerFixture() *handlerFixture {
	registry := NewEventRegistry()
	store := &testStore{}
	return &handlerFixture{
		registry: registry,
		store:    store,
		tm:       NewEventSourcedTransactionManager(registry, store),
	}
}

// ---------------------- Tests ----------------------

func TestNewCommandHandler_CorrelatesAndCommits(t *testing.T) {
	f := newHandlerFixture()
	th := newThing(t, "x")
	th.DequeueEvents()

	handler := NewCommandHandler(f.tm, f.registry, func(ctx context.Context, cmd *renameThing) (EventProvider, error) {
		return th, th.Rename(cmd.Name)
	})

	cmd := &renameThing{CommandBase: NewCommandBase(), Target: th.ID(), Name: "y"}
	if err := handler(context.Background(), cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.store.appendCount() != 1 {
		t.Fatalf("expected one append, got %d", f.store.appendCount())
	}
	ev := f.store.batches[0][0]
	if !ev.CorrelationID().Equals(cmd.CorrelationID()) {
		t.Fatal("event correlation must equal the command correlation")
	}
	if !ev.CausationID().Equals(cmd.MessageID()) {
		t.Fatal("event causation must equal the command id")
	}
}

func TestNewCommandHandler_InheritsCorrelationOfCausingCommand(t *testing.T) {
	f := newHandlerFixture()
	th := newThing(t, "x")
	th.DequeueEvents()

	handler := NewCommandHandler(f.tm, f.registry, func(ctx context.Context, cmd *renameThing) (EventProvider, error) {
		return th, th.Rename(cmd.Name)
	})

	first := &renameThing{CommandBase: NewCommandBase(), Target: th.ID()}
	second := &renameThing{CommandBase: NewCommandBase(), Target: th.ID(), Name: "z"}
	second.CorrelateWith(first)

	if err := handler(context.Background(), second); err != nil {
		t.Fatal(err)
	}

	ev := f.store.batches[0][0]
	if !ev.CorrelationID().Equals(first.MessageID()) {
		t.Fatalf("correlation = %s, want root %s", ev.CorrelationID(), first.MessageID())
	}
	if !ev.CausationID().Equals(second.MessageID()) {
		t.Fatal("causation should be the direct command")
	}
}

func TestNewCommandHandler_LogicErrorRollsBack(t *testing.T) {
	f := newHandlerFixture()
	businessErr := errors.New("not allowed")

	var hookErr error
	handler := NewCommandHandler(f.tm, f.registry,
		func(ctx context.Context, cmd *renameThing) (EventProvider, error) {
			th := newThing(t, "x")
			// events buffered in the registry before the failure
			f.registry.DequeueProviderAndRegisterEvents(th)
			return nil, businessErr
		},
		WithPostRollback(func(ctx context.Context, err error, cmd *renameThing) error {
			hookErr = err
			return err
		}),
	)

	err := handler(context.Background(), &renameThing{CommandBase: NewCommandBase()})
	if !errors.Is(err, businessErr) {
		t.Fatalf("expected business error, got %v", err)
	}
	if !errors.Is(hookErr, businessErr) {
		t.Fatalf("post rollback hook not called with the error, got %v", hookErr)
	}
	if f.registry.Len() != 0 {
		t.Fatal("registry should be empty after rollback")
	}
	if f.store.appendCount() != 0 {
		t.Fatal("store must not be written")
	}
}

func TestNewCommandHandler_PostRollbackCanSuppress(t *testing.T) {
	f := newHandlerFixture()

	handler := NewCommandHandler(f.tm, f.registry,
		func(ctx context.Context, cmd *renameThing) (EventProvider, error) {
			return nil, errors.New("boom")
		},
		WithPostRollback(func(ctx context.Context, err error, cmd *renameThing) error { return nil }),
	)

	if err := handler(context.Background(), &renameThing{CommandBase: NewCommandBase()}); err != nil {
		t.Fatalf("expected suppressed error, got %v", err)
	}
}

func TestNewCommandHandler_CommitFailureRollsBack(t *testing.T) {
	f := newHandlerFixture()
	f.store.appendErr = WrapEventStoreError(errors.New("unavailable"))

	rollbacks := 0
	handler := NewCommandHandler(f.tm, f.registry,
		func(ctx context.Context, cmd *renameThing) (EventProvider, error) {
			return newThing(t, "x"), nil
		},
		WithPostRollback(func(ctx context.Context, err error, cmd *renameThing) error {
			rollbacks++
			return err
		}),
	)

	err := handler(context.Background(), &renameThing{CommandBase: NewCommandBase()})
	var storeErr *EventStoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected EventStoreError, got %v", err)
	}
	if rollbacks != 1 {
		t.Fatalf("expected post rollback once, got %d", rollbacks)
	}
	if f.registry.Len() != 0 {
		t.Fatal("registry should be empty")
	}
}

func TestNewCommandHandler_RetriesStoreErrors(t *testing.T) {
	f := newHandlerFixture()
	f.store.appendErr = WrapEventStoreError(errors.New("unavailable"))

	attempts := 0
	handler := NewCommandHandler(f.tm, f.registry,
		func(ctx context.Context, cmd *renameThing) (EventProvider, error) {
			attempts++
			if attempts == 3 {
				f.store.mu.Lock()
				f.store.appendErr = nil
				f.store.mu.Unlock()
			}
			return newThing(t, "x"), nil
		},
		WithRetryStrategy[*renameThing](func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 5)
		}),
	)

	if err := handler(context.Background(), &renameThing{CommandBase: NewCommandBase()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if f.store.appendCount() != 1 || len(f.store.batches[0]) != 1 {
		t.Fatal("expected exactly the last attempt's event to be stored")
	}
}

func TestNewCommandHandler_RetryBudgetPerCommand(t *testing.T) {
	f := newHandlerFixture()
	f.store.appendErr = WrapEventStoreError(errors.New("unavailable"))

	var mu sync.Mutex
	attempts := map[ID]int{}
	handler := NewCommandHandler(f.tm, f.registry,
		func(ctx context.Context, cmd *renameThing) (EventProvider, error) {
			mu.Lock()
			attempts[cmd.MessageID()]++
			mu.Unlock()
			return newThing(t, "x"), nil
		},
		WithRetryStrategy[*renameThing](func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
		}),
	)

	const commands = 8
	var wg sync.WaitGroup
	errs := make(chan error, commands)
	for i := 0; i < commands; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- handler(context.Background(), &renameThing{CommandBase: NewCommandBase()})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		var storeErr *EventStoreError
		if !errors.As(err, &storeErr) {
			t.Fatalf("expected EventStoreError, got %v", err)
		}
	}
	if len(attempts) != commands {
		t.Fatalf("expected %d commands to run, got %d", commands, len(attempts))
	}
	for id, n := range attempts {
		if n != 3 {
			t.Fatalf("command %s ran %d times, want 3", id, n)
		}
	}
}

func TestNewCommandHandler_NilProviderCommitsNothing(t *testing.T) {
	f := newHandlerFixture()

	handler := NewCommandHandler(f.tm, f.registry, func(ctx context.Context, cmd *renameThing) (EventProvider, error) {
		var th *thing
		return th, nil
	})

	if err := handler(context.Background(), &renameThing{CommandBase: NewCommandBase()}); err != nil {
		t.Fatal(err)
	}
	if f.store.appendCount() != 1 || len(f.store.batches[0]) != 0 {
		t.Fatalf("expected an empty commit, got %v", f.store.batches)
	}
}

func TestNewCommandHandler_PanicRollsBackAndRepanics(t *testing.T) {
	f := newHandlerFixture()

	handler := NewCommandHandler(f.tm, f.registry, func(ctx context.Context, cmd *renameThing) (EventProvider, error) {
		f.registry.DequeueProviderAndRegisterEvents(newThing(t, "x"))
		panic("boom")
	})

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic")
			}
		}()
		_ = handler(context.Background(), &renameThing{CommandBase: NewCommandBase()})
	}()

	if f.registry.Len() != 0 {
		t.Fatal("registry should be empty after panic")
	}
	// the transaction was released
	if err := f.tm.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}
}
