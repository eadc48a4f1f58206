package ddd

import (
	"errors"
	"fmt"
)

var (
	// ErrHandlerNotFound is returned when a command has no registered handler.
	ErrHandlerNotFound = errors.New("no handler registered")

	// ErrDuplicateHandler is used when a handler is registered twice for the same type.
	ErrDuplicateHandler = errors.New("duplicate handler")

	// ErrCommandBusStopped is returned by Dispatch after Stop.
	ErrCommandBusStopped = errors.New("command bus is stopped")

	// ErrBusinessRuleViolation is wrapped by domain errors that reject a
	// command without any system failure.
	ErrBusinessRuleViolation = errors.New("business rule violation")
)

type InvalidIdentifierError struct {
	Value string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("attempted to generate id from non-uuid string %s", e.Value)
}

// UncorrelatedMessageError is the panic value raised when the correlation
// chain of a message is read before it was set.
type UncorrelatedMessageError struct {
	Field     string
	MessageID ID
}

func (e *UncorrelatedMessageError) Error() string {
	return fmt.Sprintf("attempted to read %s of message %s before it was correlated", e.Field, e.MessageID)
}

type InvalidPayloadError struct {
	Event  string
	Path   string
	Reason string
}

func (e *InvalidPayloadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid payload of event %s: %s", e.Event, e.Reason)
	}
	return fmt.Sprintf("property '%s' of event %s %s", e.Path, e.Event, e.Reason)
}

type EventConstructorMappingNotFoundError struct {
	EventType string
}

func (e *EventConstructorMappingNotFoundError) Error() string {
	return fmt.Sprintf("event type %s not registered in event constructor map", e.EventType)
}

type InvalidStreamNameError struct {
	Stream string
}

func (e *InvalidStreamNameError) Error() string {
	return fmt.Sprintf("invalid stream name %q", e.Stream)
}

type MissingApplyHandlerError struct {
	Aggregate string
	Event     string
}

func (e *MissingApplyHandlerError) Error() string {
	return fmt.Sprintf("aggregate %s has no apply handler for event %s", e.Aggregate, e.Event)
}

// ErrSkippedEvent is returned when a handler cannot handle the event type.
type ErrSkippedEvent struct {
	Event Event
}

func (e ErrSkippedEvent) Error() string {
	return fmt.Sprintf("skipped event of type %s", EventType(e.Event))
}

type EventStoreError struct {
	Err error
}

func (e *EventStoreError) Error() string {
	return fmt.Sprintf("eventstore error: %v", e.Err)
}

func (e *EventStoreError) Unwrap() error {
	return e.Err
}

func WrapEventStoreError(err error) error {
	if err == nil {
		return nil
	}
	return &EventStoreError{Err: err}
}
