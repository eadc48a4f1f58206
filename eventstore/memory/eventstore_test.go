package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ddd "github.com/terraskye/ddd"
	"github.com/terraskye/ddd/eventstore/memory"
	"github.com/terraskye/ddd/fixtures"
)

func TestAppend_EmptyBatch(t *testing.T) {
	bus := fixtures.NewEventBusSpy()
	store := memory.NewMemoryStore(memory.WithEventBus(bus))

	require.NoError(t, store.Append(context.Background()))
	assert.Empty(t, store.All())
	assert.Zero(t, bus.PublishCalls)
}

func TestAppend_GroupsByAggregate(t *testing.T) {
	store := memory.NewMemoryStore()
	defer store.Close()

	first := fixtures.NewTestEvent().WithData("a").BuildN(2)
	second := fixtures.NewTestEvent().WithData("b").BuildN(1)

	require.NoError(t, store.Append(context.Background(), first[0], second[0], first[1]))

	stream, err := store.GetAggregateStream(context.Background(), first[0].AggregateID())
	require.NoError(t, err)
	assert.Equal(t, first, stream.Events())
	assert.True(t, stream.AggregateID().Equals(first[0].AggregateID()))

	assert.Len(t, store.All(), 3)
}

func TestGetAggregateStream_Unknown(t *testing.T) {
	store := memory.NewMemoryStore()

	stream, err := store.GetAggregateStream(context.Background(), ddd.NextID(fixtures.TestAggregateKind))
	require.NoError(t, err)
	assert.True(t, stream.IsEmpty())
}

func TestAppend_PublishesAfterStoring(t *testing.T) {
	bus := fixtures.NewEventBusSpy()
	store := memory.NewMemoryStore(memory.WithEventBus(bus))

	events := fixtures.NewTestEvent().BuildN(2)
	require.NoError(t, store.Append(context.Background(), events...))

	assert.Equal(t, events, bus.PublishedEvents())
}

func TestAppend_PublishFailure(t *testing.T) {
	boom := errors.New("bus down")
	bus := fixtures.NewEventBusSpy().FailOnPublish(boom)
	store := memory.NewMemoryStore(memory.WithEventBus(bus))

	ev := fixtures.NewTestEvent().Build()
	err := store.Append(context.Background(), ev)
	require.ErrorIs(t, err, boom)

	// the events were stored before publishing
	assert.Len(t, store.All(), 1)
}

func TestAppend_Cancelled(t *testing.T) {
	store := memory.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Append(ctx, fixtures.NewTestEvent().Build())

	var storeErr *ddd.EventStoreError
	require.ErrorAs(t, err, &storeErr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAppend_Closed(t *testing.T) {
	store := memory.NewMemoryStore()
	require.NoError(t, store.Close())

	err := store.Append(context.Background(), fixtures.NewTestEvent().Build())
	assert.ErrorIs(t, err, memory.ErrClosed)
}

func TestMemoryStore_ReplaysIntoAggregate(t *testing.T) {
	store := memory.NewMemoryStore()
	id := ddd.NextID(fixtures.TestAggregateKind)
	events := fixtures.NewTestEvent().WithAggregateID(id).WithData("x").BuildN(3)
	require.NoError(t, store.Append(context.Background(), events...))

	stream, err := store.GetAggregateStream(context.Background(), id)
	require.NoError(t, err)

	var seen []string
	require.NoError(t, ddd.Replay(applierFunc(func(ev ddd.Event) error {
		seen = append(seen, ev.(*fixtures.TestEvent).Data)
		return nil
	}), stream))
	assert.Equal(t, []string{"x-1", "x-2", "x-3"}, seen)
}

type applierFunc func(ddd.Event) error

func (f applierFunc) Apply(ev ddd.Event) error { return f(ev) }
