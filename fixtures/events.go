package fixtures

import (
	"fmt"

	ddd "github.com/terraskye/ddd"
)

// TestAggregateKind is the kind of the aggregate owning the test events.
var TestAggregateKind = ddd.AggregateKind("TestAggregate")

// TestEvent is a configurable test event implementing the Event interface.
type TestEvent struct {
	ddd.EventBase
	Data string `json:"data"`
}

// OtherTestEvent is a second event type for routing tests.
type OtherTestEvent struct {
	ddd.EventBase
	Count int `json:"count"`
}

// RegisterTestEvents adds both fixture event types to m.
func RegisterTestEvents(m *ddd.EventConstructorMap) *ddd.EventConstructorMap {
	ddd.RegisterEvent[TestEvent](m)
	ddd.RegisterEvent[OtherTestEvent](m)
	return m
}

// TestEventBuilder provides a fluent API for constructing test events.
type TestEventBuilder struct {
	aggregateID ddd.ID
	data        string
	correlate   ddd.Message
}

// NewTestEvent creates a new TestEventBuilder with sensible defaults.
func NewTestEvent() *TestEventBuilder {
	return &TestEventBuilder{
		aggregateID: ddd.NextID(TestAggregateKind),
	}
}

// WithAggregateID sets the aggregate ID.
func (b *TestEventBuilder) WithAggregateID(id ddd.ID) *TestEventBuilder {
	b.aggregateID = id
	return b
}

// WithData sets custom data on the event.
func (b *TestEventBuilder) WithData(data string) *TestEventBuilder {
	b.data = data
	return b
}

// CorrelatedWith correlates the built events with msg.
func (b *TestEventBuilder) CorrelatedWith(msg ddd.Message) *TestEventBuilder {
	b.correlate = msg
	return b
}

// Build constructs the TestEvent.
func (b *TestEventBuilder) Build() *TestEvent {
	return b.build(b.data)
}

// BuildN creates n events with sequential data.
func (b *TestEventBuilder) BuildN(n int) []ddd.Event {
	events := make([]ddd.Event, n)
	for i := 0; i < n; i++ {
		events[i] = b.build(fmt.Sprintf("%s-%d", b.data, i+1))
	}
	return events
}

func (b *TestEventBuilder) build(data string) *TestEvent {
	ev, err := ddd.NewEvent(&TestEvent{Data: data}, b.aggregateID)
	if err != nil {
		panic(err)
	}
	if b.correlate != nil {
		ev.CorrelateWith(b.correlate)
	}
	return ev
}
