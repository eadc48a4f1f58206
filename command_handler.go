package ddd

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/cenkalti/backoff/v4"
)

// CommandHandler handles one command type.
//
// Handlers of this type are registered with a CommandBus, which ensures that
// commands are dispatched to the correct handler based on their type.
//
// Parameters:
//   - ctx: The context for controlling cancellation, deadlines, and carrying request-scoped values.
//   - command: The command of type C, representing the intent to perform a domain action.
//
// Returns:
//   - error: Non-nil if the command handling failed, e.g., due to validation errors, business rule violations,
//     or persistence failures.
type CommandHandler[C Command] func(ctx context.Context, command C) error

// CommandLogic is the domain part of a command handler. It loads what it
// needs, calls the domain, and returns the provider holding the raised
// events, usually the aggregate itself. A nil provider means nothing to
// commit.
type CommandLogic[C Command] func(ctx context.Context, command C) (EventProvider, error)

// PostRollback runs after a failed transaction has been rolled back. Its
// result is what the handler returns: the error unchanged, a translated
// error, or nil when it compensated for the failure.
type PostRollback[C Command] func(ctx context.Context, err error, command C) error

// CommandHandlerOption defines a function type that modifies handlerOptions.
// These options are applied when constructing a NewCommandHandler to customize behavior.
type CommandHandlerOption[C Command] func(configuration *handlerOptions[C])

// handlerOptions defines configuration for a CommandHandler.
type handlerOptions[C Command] struct {
	// PostRollback is called with the failure of a rolled back transaction.
	PostRollback PostRollback[C]

	// RetryStrategy builds the policy for retrying the whole transaction
	// when the event store reports a failure. It is called once per handled
	// command. Domain errors are never retried.
	RetryStrategy func() backoff.BackOff
}

// WithPostRollback sets the hook invoked after a rollback.
//
// Usage:
//
//	handler := NewCommandHandler(tm, registry, logic, WithPostRollback(func(ctx context.Context, err error, cmd *Sell) error {
//	    return fmt.Errorf("sell %s: %w", cmd.ContingentID, err)
//	}))
func WithPostRollback[C Command](hook PostRollback[C]) CommandHandlerOption[C] {
	return func(cfg *handlerOptions[C]) { cfg.PostRollback = hook }
}

// WithRetryStrategy sets the retry strategy for a NewCommandHandler.
//
// newStrategy is called for every handled command, since a BackOff holds
// the state of one retry loop. The strategy controls how many times and
// with what delay the handler reruns the transaction after an
// *EventStoreError. Each attempt begins a new transaction and reruns the
// logic.
//
// Usage:
//
//	handler := NewCommandHandler(tm, registry, logic, WithRetryStrategy[*Sell](func() backoff.BackOff {
//	    return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
//	}))
func WithRetryStrategy[C Command](newStrategy func() backoff.BackOff) CommandHandlerOption[C] {
	return func(cfg *handlerOptions[C]) { cfg.RetryStrategy = newStrategy }
}

// NewCommandHandler wraps logic in the transactional envelope shared by all
// event-sourced command handlers:
//  1. Begin a transaction on tm.
//  2. Run logic.
//  3. When logic returns an EventProvider, correlate each of its events with
//     the command and move them into the registry.
//  4. Commit.
//
// When any of steps 2 to 4 fails, the transaction is rolled back, the
// PostRollback hook runs, and its result is returned. A panic in logic rolls
// back and is re-raised.
//
// Parameters:
//   - tm: the TransactionManager committing the registry.
//   - registry: the EventRegistry collecting the events of the transaction.
//   - logic: the domain logic for the command.
//   - opts: optional CommandHandlerOption values.
//
// Example Usage:
//
//	handler := NewCommandHandler(tm, registry, func(ctx context.Context, cmd *IncreaseContingent) (ddd.EventProvider, error) {
//	    c, err := repo.FindOneByID(ctx, cmd.ContingentID)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return c, c.Increase(cmd.Quantity)
//	})
func NewCommandHandler[C Command](
	tm TransactionManager,
	registry *EventRegistry,
	logic CommandLogic[C],
	opts ...CommandHandlerOption[C],
) CommandHandler[C] {
	cfg := &handlerOptions[C]{
		PostRollback:  func(_ context.Context, err error, _ C) error { return err },
		RetryStrategy: func() backoff.BackOff { return &backoff.StopBackOff{} },
	}
	for _, o := range opts {
		o(cfg)
	}

	return func(ctx context.Context, command C) error {
		began := false
		err := backoff.Retry(func() error {
			if err := tm.Begin(ctx); err != nil {
				return backoff.Permanent(fmt.Errorf("handle command %s: %w", TypeName(command), err))
			}
			began = true
			err := runTransaction(ctx, tm, registry, logic, command)
			if err == nil {
				return nil
			}
			var storeErr *EventStoreError
			if errors.As(err, &storeErr) {
				return err
			}
			return backoff.Permanent(err)
		}, backoff.WithContext(cfg.RetryStrategy(), ctx))
		if err == nil || !began {
			return err
		}
		return cfg.PostRollback(ctx, err, command)
	}
}

// runTransaction runs logic inside a transaction begun by the caller and
// rolls it back on failure.
func runTransaction[C Command](ctx context.Context, tm TransactionManager, registry *EventRegistry, logic CommandLogic[C], command C) (err error) {
	defer func() {
		if r := recover(); r != nil {
			_ = tm.Rollback(ctx)
			panic(r)
		}
		if err != nil {
			if rbErr := tm.Rollback(ctx); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	provider, err := logic(ctx, command)
	if err != nil {
		return err
	}
	if !isNilProvider(provider) {
		registry.DequeueProviderAndRegisterEvents(newEventCorrelator(provider, command))
	}
	if err := tm.Commit(ctx); err != nil {
		return err
	}
	return nil
}

// isNilProvider also catches typed nil pointers returned as EventProvider.
func isNilProvider(p EventProvider) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// eventCorrelator dequeues a provider once and marks every event as caused
// by the command.
type eventCorrelator struct {
	events []Event
}

func newEventCorrelator(provider EventProvider, with Message) *eventCorrelator {
	events := provider.DequeueEvents()
	for _, ev := range events {
		ev.CorrelateWith(with)
	}
	return &eventCorrelator{events: events}
}

func (c *eventCorrelator) DequeueEvents() []Event {
	events := c.events
	c.events = nil
	return events
}
