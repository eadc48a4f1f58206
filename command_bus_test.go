package ddd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// ---- Test Stubs ----

type testCmd struct {
	CommandBase
	Target ID
}

func (c *testCmd) AggregateID() ID { return c.Target }

type testCmd2 struct {
	CommandBase
}

func newTestCmd() *testCmd {
	return &testCmd{CommandBase: NewCommandBase(), Target: NextID(thingKind)}
}

type recordingCommandStore struct {
	mu       sync.Mutex
	commands []Command
	err      error
}

func (s *recordingCommandStore) Append(ctx context.Context, cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.commands = append(s.commands, cmd)
	return nil
}

// ---- Tests ----

func TestCommandBus_Success(t *testing.T) {
	bus := NewCommandBus(10, 2)
	defer bus.Stop()

	called := false
	Register(bus, func(ctx context.Context, cmd *testCmd) error {
		called = true
		return nil
	})

	if err := bus.Dispatch(context.Background(), newTestCmd()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !called {
		t.Fatal("handler was not called")
	}
}

func TestCommandBus_StoresCommandBeforeHandling(t *testing.T) {
	store := &recordingCommandStore{}
	bus := NewCommandBus(10, 1, WithCommandStore(store))
	defer bus.Stop()

	Register(bus, func(ctx context.Context, cmd *testCmd) error {
		store.mu.Lock()
		defer store.mu.Unlock()
		if len(store.commands) != 1 {
			t.Errorf("command should be stored before handling, got %d", len(store.commands))
		}
		return nil
	})

	cmd := newTestCmd()
	if err := bus.Dispatch(context.Background(), cmd); err != nil {
		t.Fatal(err)
	}
	if store.commands[0] != Command(cmd) {
		t.Fatal("stored command mismatch")
	}
}

func TestCommandBus_StoreFailureAbortsDispatch(t *testing.T) {
	storeErr := errors.New("store down")
	bus := NewCommandBus(10, 1, WithCommandStore(&recordingCommandStore{err: storeErr}))
	defer bus.Stop()

	Register(bus, func(ctx context.Context, cmd *testCmd) error {
		t.Error("handler must not run when the command could not be stored")
		return nil
	})

	if err := bus.Dispatch(context.Background(), newTestCmd()); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestCommandBus_NoHandler(t *testing.T) {
	bus := NewCommandBus(10, 1)
	defer bus.Stop()

	err := bus.Dispatch(context.Background(), &testCmd2{CommandBase: NewCommandBase()})
	if !errors.Is(err, ErrHandlerNotFound) {
		t.Fatalf("expected ErrHandlerNotFound, got %v", err)
	}
}

func TestCommandBus_StoresCommandWithoutHandler(t *testing.T) {
	store := &recordingCommandStore{}
	bus := NewCommandBus(10, 1, WithCommandStore(store))
	defer bus.Stop()

	cmd := &testCmd2{CommandBase: NewCommandBase()}
	if err := bus.Dispatch(context.Background(), cmd); !errors.Is(err, ErrHandlerNotFound) {
		t.Fatalf("expected ErrHandlerNotFound, got %v", err)
	}
	if len(store.commands) != 1 || store.commands[0] != Command(cmd) {
		t.Fatalf("expected the unhandled command to be stored, got %d", len(store.commands))
	}
}

func TestCommandBus_HandlerPanic(t *testing.T) {
	bus := NewCommandBus(10, 1)
	defer bus.Stop()

	Register(bus, func(ctx context.Context, cmd *testCmd) error {
		panic("boom")
	})

	err := bus.Dispatch(context.Background(), newTestCmd())
	if err == nil || err.Error() == "" {
		t.Fatalf("expected panic recovery error")
	}
}

func TestCommandBus_ContextCancelBeforeEnqueue(t *testing.T) {
	bus := NewCommandBus(0, 1)
	defer bus.Stop()

	Register(bus, func(ctx context.Context, cmd *testCmd) error {
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := bus.Dispatch(ctx, newTestCmd()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCommandBus_ContextCancelWhileWaiting(t *testing.T) {
	bus := NewCommandBus(10, 1)
	defer bus.Stop()

	Register(bus, func(ctx context.Context, cmd *testCmd) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := bus.Dispatch(ctx, newTestCmd()); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestCommandBus_SameAggregateInOrder(t *testing.T) {
	bus := NewCommandBus(100, 4)
	defer bus.Stop()

	var mu sync.Mutex
	var order []ID
	Register(bus, func(ctx context.Context, cmd *testCmd) error {
		mu.Lock()
		order = append(order, cmd.MessageID())
		mu.Unlock()
		return nil
	})

	target := NextID(thingKind)
	var sent []ID
	for i := 0; i < 20; i++ {
		cmd := &testCmd{CommandBase: NewCommandBase(), Target: target}
		sent = append(sent, cmd.MessageID())
		if err := bus.Dispatch(context.Background(), cmd); err != nil {
			t.Fatal(err)
		}
	}

	for i := range sent {
		if !order[i].Equals(sent[i]) {
			t.Fatalf("command %d handled out of order", i)
		}
	}
}

func TestCommandBus_Stopped(t *testing.T) {
	bus := NewCommandBus(10, 1)
	Register(bus, func(ctx context.Context, cmd *testCmd) error { return nil })
	bus.Stop()
	bus.Stop()

	if err := bus.Dispatch(context.Background(), newTestCmd()); !errors.Is(err, ErrCommandBusStopped) {
		t.Fatalf("expected ErrCommandBusStopped, got %v", err)
	}
}

func TestRegister_DuplicateHandlerPanics(t *testing.T) {
	bus := NewCommandBus(10, 1)
	defer bus.Stop()

	Register(bus, func(ctx context.Context, cmd *testCmd) error { return nil })

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
		if err, ok := r.(error); !ok || !errors.Is(err, ErrDuplicateHandler) {
			t.Fatalf("expected ErrDuplicateHandler, got %v", r)
		}
	}()
	Register(bus, func(ctx context.Context, cmd *testCmd) error { return nil })
}
