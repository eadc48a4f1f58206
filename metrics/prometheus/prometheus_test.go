package prometheus_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ddd "github.com/terraskye/ddd"
	"github.com/terraskye/ddd/fixtures"
	dddprom "github.com/terraskye/ddd/metrics/prometheus"
)

func TestWithCommandMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := dddprom.NewMetrics(reg)

	results := []error{
		nil,
		fmt.Errorf("sold out: %w", ddd.ErrBusinessRuleViolation),
		errors.New("boom"),
		nil,
	}
	i := 0
	handler := dddprom.WithCommandMetrics(m, func(ctx context.Context, c *fixtures.TestCommand) error {
		err := results[i]
		i++
		return err
	})
	for range results {
		_ = handler(context.Background(), fixtures.NewTestCommand().Build())
	}

	want := `
# HELP ddd_commands_total Total number of handled commands by result
# TYPE ddd_commands_total counter
ddd_commands_total{command_type="*fixtures.TestCommand",result="error"} 1
ddd_commands_total{command_type="*fixtures.TestCommand",result="rejected"} 1
ddd_commands_total{command_type="*fixtures.TestCommand",result="success"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "ddd_commands_total"))
	count, err := testutil.GatherAndCount(reg, "ddd_command_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWrapEventStore(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := dddprom.NewMetrics(reg)
	store := m.WrapEventStore(fixtures.NewStoreSpy())

	id := ddd.NextID(fixtures.TestAggregateKind)
	require.NoError(t, store.Append(context.Background(), fixtures.NewTestEvent().WithAggregateID(id).BuildN(3)...))

	stream, err := store.GetAggregateStream(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 3, stream.Len())

	want := `
# HELP ddd_events_appended_total Total number of events appended
# TYPE ddd_events_appended_total counter
ddd_events_appended_total{aggregate_type="TestAggregate"} 3
# HELP ddd_events_loaded_total Total number of events loaded
# TYPE ddd_events_loaded_total counter
ddd_events_loaded_total{aggregate_type="TestAggregate"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "ddd_events_appended_total", "ddd_events_loaded_total"))
}

func TestWrapEventStore_Errors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := dddprom.NewMetrics(reg)
	store := m.WrapEventStore(fixtures.FailingStore(errors.New("down")))

	require.Error(t, store.Append(context.Background(), fixtures.NewTestEvent().Build()))
	_, err := store.GetAggregateStream(context.Background(), ddd.NextID(fixtures.TestAggregateKind))
	require.Error(t, err)

	want := `
# HELP ddd_eventstore_errors_total Total number of failed event store operations
# TYPE ddd_eventstore_errors_total counter
ddd_eventstore_errors_total{operation="append"} 1
ddd_eventstore_errors_total{operation="load"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "ddd_eventstore_errors_total"))
}
