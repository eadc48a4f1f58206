package ddd

import (
	"errors"
	"testing"
)

type pingCommand struct {
	CommandBase
}

func TestCommandBase_IsOwnCorrelationRoot(t *testing.T) {
	cmd := &pingCommand{CommandBase: NewCommandBase()}

	if !cmd.CorrelationID().Equals(cmd.MessageID()) {
		t.Fatalf("correlation %s != id %s", cmd.CorrelationID(), cmd.MessageID())
	}
	if !cmd.CausationID().Equals(cmd.MessageID()) {
		t.Fatalf("causation %s != id %s", cmd.CausationID(), cmd.MessageID())
	}
}

func TestCorrelateWith_Chain(t *testing.T) {
	root := &pingCommand{CommandBase: NewCommandBase()}
	second := &pingCommand{CommandBase: NewCommandBase()}
	third := &pingCommand{CommandBase: NewCommandBase()}

	second.CorrelateWith(root)
	third.CorrelateWith(second)

	if !third.CorrelationID().Equals(root.MessageID()) {
		t.Fatalf("chain root = %s, want %s", third.CorrelationID(), root.MessageID())
	}
	if !third.CausationID().Equals(second.MessageID()) {
		t.Fatalf("causation = %s, want %s", third.CausationID(), second.MessageID())
	}

	// same argument twice
	third.CorrelateWith(second)
	if !third.CausationID().Equals(second.MessageID()) {
		t.Fatal("CorrelateWith is not idempotent")
	}
}

func TestEvent_UncorrelatedReadPanics(t *testing.T) {
	ev, err := NewEvent(&thingCreated{Name: "x"}, NextID(thingKind))
	if err != nil {
		t.Fatal(err)
	}
	if ev.IsCorrelated() {
		t.Fatal("fresh event must be uncorrelated")
	}

	defer func() {
		r := recover()
		err, ok := r.(error)
		var uncorrelated *UncorrelatedMessageError
		if !ok || !errors.As(err, &uncorrelated) {
			t.Fatalf("expected UncorrelatedMessageError panic, got %v", r)
		}
		if uncorrelated.Field != "correlationId" {
			t.Fatalf("field = %q", uncorrelated.Field)
		}
	}()
	ev.CorrelationID()
}

func TestEvent_CorrelateWithCommand(t *testing.T) {
	cmd := &pingCommand{CommandBase: NewCommandBase()}
	ev, _ := NewEvent(&thingCreated{Name: "x"}, NextID(thingKind))

	ev.CorrelateWith(cmd)

	if ev.CorrelationID().Kind() != MessageKind || ev.CausationID().Kind() != MessageKind {
		t.Fatalf("event chain should use message kind, got %s / %s", ev.CorrelationID().Kind(), ev.CausationID().Kind())
	}
	if !ev.CorrelationID().Equals(cmd.CorrelationID()) {
		t.Fatal("event correlation does not match the command")
	}
	if !ev.CausationID().Equals(cmd.MessageID()) {
		t.Fatal("event causation does not match the command id")
	}
}
