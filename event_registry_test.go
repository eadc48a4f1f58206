package ddd

import (
	"sync"
	"testing"
)

func TestEventRegistry_DequeueProviderAndRegisterEvents(t *testing.T) {
	r := NewEventRegistry()
	a := newThing(t, "a")
	b := newThing(t, "b")
	_ = b.Rename("b2")

	r.DequeueProviderAndRegisterEvents(a)
	r.DequeueProviderAndRegisterEvents(b)

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	if len(a.DequeueEvents()) != 0 || len(b.DequeueEvents()) != 0 {
		t.Fatal("providers should be drained")
	}

	events := r.DequeueEvents()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if !events[0].AggregateID().Equals(a.ID()) || !events[2].AggregateID().Equals(b.ID()) {
		t.Fatal("events out of order")
	}
	if got := r.DequeueEvents(); len(got) != 0 {
		t.Fatalf("second dequeue returned %d events", len(got))
	}
}

func TestEventRegistry_ConcurrentRaise(t *testing.T) {
	r := NewEventRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev := &thingRenamed{}
			r.Raise(ev)
		}()
	}
	wg.Wait()

	if got := len(r.DequeueEvents()); got != 50 {
		t.Fatalf("expected 50 events, got %d", got)
	}
}
