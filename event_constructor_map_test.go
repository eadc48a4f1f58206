package ddd

import (
	"errors"
	"reflect"
	"strconv"
	"sync"
	"testing"
)

func TestEventConstructorMap(t *testing.T) {
	m := NewEventConstructorMap()

	t.Run("register and create new instance", func(t *testing.T) {
		RegisterEvent[thingCreated](m)

		ev, err := m.New("thingCreated")
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := ev.(*thingCreated); !ok {
			t.Fatalf("expected *thingCreated, got %T", ev)
		}

		// Each call returns a new instance
		ev2, _ := m.New("thingCreated")
		if ev == ev2 {
			t.Fatal("constructor returned same instance twice")
		}
	})

	t.Run("register under the EventType override", func(t *testing.T) {
		m.Register(func() Event { return &taggedEvent{} })
		if _, err := m.New("thing.tagged.v2"); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := m.New("Nope")
		var notFound *EventConstructorMappingNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected EventConstructorMappingNotFoundError, got %v", err)
		}
		if err.Error() != "event type Nope not registered in event constructor map" {
			t.Fatalf("unexpected message %q", err.Error())
		}
	})

	t.Run("panic on duplicate registration", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic on duplicate registration")
			}
		}()
		RegisterEvent[thingCreated](m)
	})

	t.Run("panic on nil constructor", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic on nil constructor")
			}
		}()
		m.RegisterName("Nil", nil)
	})

	t.Run("types are sorted", func(t *testing.T) {
		want := []string{"thing.tagged.v2", "thingCreated"}
		if got := m.Types(); !reflect.DeepEqual(got, want) {
			t.Fatalf("Types() = %v, want %v", got, want)
		}
	})
}

func TestEventConstructorMap_ConcurrencySafety(t *testing.T) {
	m := NewEventConstructorMap()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.RegisterName("Evt"+strconv.Itoa(i), func() Event { return &thingRenamed{} })
		}(i)
	}
	wg.Wait()

	if got := len(m.Types()); got != 100 {
		t.Fatalf("expected 100 registrations, got %d", got)
	}
}
