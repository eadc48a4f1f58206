package ddd

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
)

// CommandStore durably records every dispatched command before it is handled.
type CommandStore interface {
	Append(ctx context.Context, command Command) error
}

// queuedCommand represents a command enqueued in the command bus for processing.
// Each queuedCommand includes the context for cancellation, the command itself,
// and a response channel to return the processing result.
type queuedCommand struct {
	Ctx        context.Context
	Command    Command
	ResponseCh chan<- error
}

// CommandBus is an in-memory, type-safe command dispatcher.
// It maintains a mapping of command type names to their handlers, one queue
// per shard, and synchronization mechanisms for safe concurrent access.
//
// The CommandBus supports:
//   - Recording commands in a CommandStore before they are handled
//   - Typed command registration using generics
//   - In-order processing of commands addressed to the same aggregate
//   - Safe shutdown that waits for in-flight commands to complete
//   - Panic recovery in handlers to prevent the bus from crashing
type CommandBus struct {
	handlers   map[string]func(ctx context.Context, command Command) error
	queues     []chan queuedCommand
	store      CommandStore
	stopped    bool
	inflight   sync.WaitGroup
	workers    sync.WaitGroup
	mu         sync.RWMutex
	shardCount int
}

// CommandBusOption configures a CommandBus.
type CommandBusOption func(b *CommandBus)

// WithCommandStore records every dispatched command in store before it is
// routed to its handler.
func WithCommandStore(store CommandStore) CommandBusOption {
	return func(b *CommandBus) { b.store = store }
}

// NewCommandBus creates a new CommandBus with one buffered queue per shard.
//
// Parameters:
//   - bufferSize: the size of each shard queue.
//   - shardCount: the number of workers. Commands for the same aggregate are
//     always handled by the same worker, in dispatch order.
//
// Returns:
//   - pointer to a newly initialized CommandBus. The worker goroutines are
//     started automatically.
//
// Example:
//
//	bus := NewCommandBus(100, 4, WithCommandStore(store))
func NewCommandBus(bufferSize int, shardCount int, opts ...CommandBusOption) *CommandBus {
	if shardCount <= 0 {
		shardCount = 1
	}

	bus := &CommandBus{
		queues:     make([]chan queuedCommand, shardCount),
		handlers:   make(map[string]func(ctx context.Context, command Command) error),
		shardCount: shardCount,
	}
	for _, o := range opts {
		o(bus)
	}

	for i := 0; i < shardCount; i++ {
		bus.queues[i] = make(chan queuedCommand, bufferSize)
		bus.workers.Add(1)
		go bus.worker(bus.queues[i])
	}

	return bus
}

// Dispatch records the command in the command store, when one is
// configured, and then hands it to the registered handler, waiting for the
// result. It is safe to call concurrently.
//
// Returns:
//   - error: the handler's error, the command store's error (the command is
//     then not handled), ErrHandlerNotFound, ErrCommandBusStopped, or the
//     context's error.
func (b *CommandBus) Dispatch(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := commandName(cmd)

	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return ErrCommandBusStopped
	}
	b.inflight.Add(1)
	b.mu.RUnlock()
	defer b.inflight.Done()

	// commands are logged even when nothing handles them
	if b.store != nil {
		if err := b.store.Append(ctx, cmd); err != nil {
			return fmt.Errorf("dispatch %s: store command: %w", name, err)
		}
	}

	b.mu.RLock()
	_, exists := b.handlers[name]
	b.mu.RUnlock()
	if !exists {
		return fmt.Errorf("dispatch %s: %w", name, ErrHandlerNotFound)
	}

	responseCh := make(chan error, 1)
	shard := b.getShard(shardKey(cmd))

	select {
	case b.queues[shard] <- queuedCommand{Ctx: ctx, Command: cmd, ResponseCh: responseCh}:
		select {
		case err := <-responseCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker processes commands from a single shard queue.
func (b *CommandBus) worker(queue chan queuedCommand) {
	defer b.workers.Done()
	for cmd := range queue {
		b.handle(cmd)
	}
}

func (b *CommandBus) handle(cmd queuedCommand) {
	name := commandName(cmd.Command)

	b.mu.RLock()
	h, exists := b.handlers[name]
	b.mu.RUnlock()

	if !exists {
		cmd.ResponseCh <- fmt.Errorf("dispatch %s: %w", name, ErrHandlerNotFound)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			cmd.ResponseCh <- fmt.Errorf("panic in handler for %s: %v", name, r)
		}
	}()

	cmd.ResponseCh <- h(cmd.Ctx, cmd.Command)
}

func (b *CommandBus) getShard(key string) int {
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return int(hash.Sum32() % uint32(b.shardCount))
}

func shardKey(cmd Command) string {
	if t, ok := cmd.(aggregateTarget); ok {
		return t.AggregateID().String()
	}
	return cmd.CorrelationID().String()
}

func commandName(cmd any) string {
	return fmt.Sprintf("%T", cmd)
}

// Register adds a new typed command handler to the bus.
//
// Parameters:
//   - b: pointer to the CommandBus
//   - handler: a CommandHandler for a specific command type C
//
// Notes:
//   - Derives the command type name automatically using fmt.Sprintf("%T") to avoid
//     manual registration strings.
//   - Panics if a handler is already registered for the same command type.
//
// Example:
//
//	Register(bus, increaseHandler)
func Register[C Command](b *CommandBus, handler CommandHandler[C]) {
	var zero C
	cmdName := commandName(zero)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[cmdName]; exists {
		panic(fmt.Errorf("handler for command type %s: %w", cmdName, ErrDuplicateHandler))
	}

	b.handlers[cmdName] = func(ctx context.Context, cmd Command) error {
		c, ok := cmd.(C)
		if !ok {
			return fmt.Errorf("expected command type %s but got %T", cmdName, cmd)
		}
		return handler(ctx, c)
	}
}

// Stop shuts down the CommandBus safely.
//
// Behavior:
//   - Stops accepting new commands.
//   - Waits for all in-flight dispatches to finish, then stops the workers.
//   - Calling Stop more than once is a no-op.
//
// Example:
//
//	bus.Stop()
func (b *CommandBus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.mu.Unlock()

	b.inflight.Wait()
	for _, q := range b.queues {
		close(q)
	}
	b.workers.Wait()
}
