package ddd

import (
	"errors"
	"testing"
)

func TestStreamName(t *testing.T) {
	id := MustParseID(AggregateKind("Contingent"), sampleUUID)

	stream := StreamName(id)
	if stream != "Contingent-"+sampleUUID {
		t.Fatalf("StreamName() = %q", stream)
	}

	parsed, err := ParseStreamName(stream)
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.Equals(id) {
		t.Fatalf("ParseStreamName() = %s (%s)", parsed, parsed.Kind())
	}
}

func TestParseStreamName_TypeWithDashes(t *testing.T) {
	parsed, err := ParseStreamName("event-organizing-" + sampleUUID)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.AggregateType() != "event-organizing" {
		t.Fatalf("AggregateType() = %q", parsed.AggregateType())
	}
}

func TestParseStreamName_Invalid(t *testing.T) {
	for _, s := range []string{"", "Contingent", "-" + sampleUUID, "Contingent-not-a-uuid-at-all-but-long-enough"} {
		_, err := ParseStreamName(s)
		var invalid *InvalidStreamNameError
		if !errors.As(err, &invalid) {
			t.Fatalf("%q: expected InvalidStreamNameError, got %v", s, err)
		}
	}
}

func TestAggregateEventStream_IsImmutable(t *testing.T) {
	th := newThing(t, "x")
	events := th.DequeueEvents()
	stream := NewAggregateEventStream(th.ID(), events)

	events[0] = nil
	out := stream.Events()
	out[0] = nil

	if stream.Events()[0] == nil {
		t.Fatal("stream was mutated through a slice")
	}
	if stream.IsEmpty() || stream.Len() != 1 {
		t.Fatalf("unexpected length %d", stream.Len())
	}
}
