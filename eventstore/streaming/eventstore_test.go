package streaming_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ddd "github.com/terraskye/ddd"
	eventbus "github.com/terraskye/ddd/eventbus/memory"
	"github.com/terraskye/ddd/eventstore/streaming"
	"github.com/terraskye/ddd/fixtures"
	"github.com/terraskye/ddd/streams"
	"github.com/terraskye/ddd/streams/memory"
)

const topic = "domain-events"

func newStore(t *testing.T, client streams.Client, bus ddd.EventBus) *streaming.EventStore {
	t.Helper()
	store, err := streaming.New(streaming.Config{
		Client:       client,
		TenantID:     "tenant",
		Topic:        topic,
		Constructors: fixtures.RegisterTestEvents(ddd.NewEventConstructorMap()),
		Bus:          bus,
	})
	require.NoError(t, err)
	return store
}

func TestNew_RequiresCollaborators(t *testing.T) {
	client := memory.NewBroker().NewClient(streams.Options{})
	defer client.Close()

	_, err := streaming.New(streaming.Config{Topic: topic, Constructors: ddd.NewEventConstructorMap()})
	assert.Error(t, err)
	_, err = streaming.New(streaming.Config{Client: client, Constructors: ddd.NewEventConstructorMap()})
	assert.Error(t, err)
	_, err = streaming.New(streaming.Config{Client: client, Topic: topic})
	assert.Error(t, err)
}

func TestAppend_EmptyBatchIsNoOp(t *testing.T) {
	broker := memory.NewBroker()
	client := broker.NewClient(streams.Options{})
	defer client.Close()

	store := newStore(t, client, nil)
	require.NoError(t, store.Append(t.Context()))
	assert.Empty(t, broker.Events(topic))
}

func TestAppend_PublishesWireEvents(t *testing.T) {
	broker := memory.NewBroker()
	client := broker.NewClient(streams.Options{})
	defer client.Close()
	store := newStore(t, client, nil)

	cmd := fixtures.NewTestCommand().Build()
	ev := fixtures.NewTestEvent().WithData("hello").CorrelatedWith(cmd).Build()
	require.NoError(t, store.Append(t.Context(), ev))

	published := broker.Events(topic)
	require.Len(t, published, 1)
	w := published[0]
	assert.Equal(t, ev.MessageID().String(), w.ID)
	assert.Equal(t, "tenant", w.TenantID)
	assert.Equal(t, "TestEvent", w.Type)
	assert.Equal(t, ddd.StreamName(ev.AggregateID()), w.Stream)
	require.NotNil(t, w.CorrelationID)
	assert.Equal(t, cmd.CorrelationID().String(), *w.CorrelationID)
	require.NotNil(t, w.CausationID)
	assert.Equal(t, cmd.MessageID().String(), *w.CausationID)
	assert.JSONEq(t, `"hello"`, string(mustField(t, w.Payload, "data")))
}

func TestGetAggregateStream_RoundTrip(t *testing.T) {
	client := memory.NewBroker().NewClient(streams.Options{})
	defer client.Close()
	store := newStore(t, client, nil)

	cmd := fixtures.NewTestCommand().Build()
	id := ddd.NextID(fixtures.TestAggregateKind)
	events := fixtures.NewTestEvent().WithAggregateID(id).WithData("x").CorrelatedWith(cmd).BuildN(2)
	require.NoError(t, store.Append(t.Context(), events...))
	require.NoError(t, store.Append(t.Context(), fixtures.NewTestEvent().Build()))

	stream, err := store.GetAggregateStream(t.Context(), id)
	require.NoError(t, err)
	require.Equal(t, 2, stream.Len())

	for i, got := range stream.Events() {
		typed, ok := got.(*fixtures.TestEvent)
		require.True(t, ok, "event %d has type %T", i, got)
		want := events[i].(*fixtures.TestEvent)

		assert.Equal(t, want.Data, typed.Data)
		assert.True(t, typed.MessageID().Equals(want.MessageID()))
		assert.True(t, typed.AggregateID().Equals(id))
		assert.True(t, typed.CorrelationID().Equals(cmd.CorrelationID()))
		assert.True(t, typed.CausationID().Equals(cmd.MessageID()))
		assert.Equal(t, want.RaisedAt().UnixMilli(), typed.RaisedAt().UnixMilli())
	}
}

func TestGetAggregateStream_UnknownAggregate(t *testing.T) {
	client := memory.NewBroker().NewClient(streams.Options{})
	defer client.Close()
	store := newStore(t, client, nil)

	stream, err := store.GetAggregateStream(t.Context(), ddd.NextID(fixtures.TestAggregateKind))
	require.NoError(t, err)
	assert.True(t, stream.IsEmpty())
}

func TestGetAggregateStream_MissingMapping(t *testing.T) {
	client := memory.NewBroker().NewClient(streams.Options{})
	defer client.Close()

	id := ddd.NextID(fixtures.TestAggregateKind)
	require.NoError(t, client.Publish(t.Context(), topic, []*streams.WireEvent{{
		ID:       ddd.NextID(ddd.EventKind).String(),
		Payload:  []byte(`{}`),
		TenantID: "tenant",
		Type:     "UnknownEvent",
		Stream:   ddd.StreamName(id),
	}}))

	_, err := newStore(t, client, nil).GetAggregateStream(t.Context(), id)

	var notFound *ddd.EventConstructorMappingNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestGetAggregateStream_TransportFailure(t *testing.T) {
	client := memory.NewBroker().NewClient(streams.Options{})
	require.NoError(t, client.Close())
	store := newStore(t, client, nil)

	_, err := store.GetAggregateStream(t.Context(), ddd.NextID(fixtures.TestAggregateKind))

	var storeErr *ddd.EventStoreError
	require.ErrorAs(t, err, &storeErr)
}

func TestInitialize_FansOutToLocalBus(t *testing.T) {
	broker := memory.NewBroker()
	client := broker.NewClient(streams.Options{})
	defer client.Close()

	bus := eventbus.NewEventBus(16)
	defer bus.Close()

	received := make(chan ddd.Event, 4)
	require.NoError(t, bus.Subscribe(t.Context(), "probe", ddd.NewEventHandlerFunc(func(ctx context.Context, ev ddd.Event) error {
		received <- ev
		return nil
	})))

	store := newStore(t, client, bus)
	require.NoError(t, store.Initialize(t.Context()))

	ev := fixtures.NewTestEvent().WithData("live").Build()
	require.NoError(t, store.Append(t.Context(), ev))

	select {
	case got := <-received:
		typed, ok := got.(*fixtures.TestEvent)
		require.True(t, ok)
		assert.Equal(t, "live", typed.Data)
		assert.True(t, typed.MessageID().Equals(ev.MessageID()))
	case <-time.After(2 * time.Second):
		t.Fatal("event was not fanned out to the local bus")
	}
}

func TestInitialize_DecodeFailureReachesTransport(t *testing.T) {
	broker := memory.NewBroker()
	client := broker.NewClient(streams.Options{})
	defer client.Close()

	bus := eventbus.NewEventBus(16)
	defer bus.Close()

	store := newStore(t, client, bus)
	require.NoError(t, store.Initialize(t.Context()))

	require.NoError(t, client.Publish(t.Context(), topic, []*streams.WireEvent{{
		ID:       ddd.NextID(ddd.EventKind).String(),
		Payload:  []byte(`{}`),
		TenantID: "tenant",
		Type:     "UnknownEvent",
		Stream:   ddd.StreamName(ddd.NextID(fixtures.TestAggregateKind)),
	}}))

	select {
	case err := <-client.Errors():
		var notFound *ddd.EventConstructorMappingNotFoundError
		assert.True(t, errors.As(err, &notFound), "unexpected error %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("decode failure was swallowed")
	}
}

func TestInitialize_WithoutBusDoesNotSubscribe(t *testing.T) {
	client := &recordingClient{}
	store := newStore(t, client, nil)

	require.NoError(t, store.Initialize(t.Context()))
	assert.Zero(t, client.subscribes)
}

type recordingClient struct {
	streams.Client
	subscribes int
}

func (c *recordingClient) Subscribe(ctx context.Context, topics []string) error {
	c.subscribes++
	return nil
}
