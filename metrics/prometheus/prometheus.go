// Package prometheus records command handling and event store activity
// as Prometheus metrics.
package prometheus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	ddd "github.com/terraskye/ddd"
)

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

// command handling outcomes
const (
	resultSuccess  = "success"
	resultRejected = "rejected"
	resultError    = "error"
)

type Metrics struct {
	commandDuration *prometheus.HistogramVec
	commandsTotal   *prometheus.CounterVec

	storeLoadDuration   *prometheus.HistogramVec
	storeAppendDuration *prometheus.HistogramVec
	eventsAppended      *prometheus.CounterVec
	eventsLoaded        *prometheus.CounterVec
	storeErrors         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ddd_command_duration_seconds",
			Help:    "Command handling latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"command_type"}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddd_commands_total",
			Help: "Total number of handled commands by result",
		}, []string{"command_type", "result"}),

		storeLoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ddd_eventstore_load_duration_seconds",
			Help:    "Event store load latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"aggregate_type"}),

		storeAppendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ddd_eventstore_append_duration_seconds",
			Help:    "Event store append latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"aggregate_type"}),

		eventsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddd_events_appended_total",
			Help: "Total number of events appended",
		}, []string{"aggregate_type"}),

		eventsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddd_events_loaded_total",
			Help: "Total number of events loaded",
		}, []string{"aggregate_type"}),

		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddd_eventstore_errors_total",
			Help: "Total number of failed event store operations",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		m.commandDuration,
		m.commandsTotal,
		m.storeLoadDuration,
		m.storeAppendDuration,
		m.eventsAppended,
		m.eventsLoaded,
		m.storeErrors,
	)

	return m
}

// WithCommandMetrics observes the duration and result of every command
// handled by next.
func WithCommandMetrics[C ddd.Command](m *Metrics, next ddd.CommandHandler[C]) ddd.CommandHandler[C] {
	return func(ctx context.Context, cmd C) error {
		commandType := fmt.Sprintf("%T", cmd)
		start := time.Now()
		err := next(ctx, cmd)
		m.commandDuration.WithLabelValues(commandType).Observe(time.Since(start).Seconds())

		result := resultSuccess
		switch {
		case err == nil:
		case errors.Is(err, ddd.ErrBusinessRuleViolation):
			result = resultRejected
		default:
			result = resultError
		}
		m.commandsTotal.WithLabelValues(commandType, result).Inc()
		return err
	}
}

// WrapEventStore returns next instrumented with the store metrics.
func (m *Metrics) WrapEventStore(next ddd.EventStore) ddd.EventStore {
	return &eventStore{next: next, m: m}
}

type eventStore struct {
	next ddd.EventStore
	m    *Metrics
}

func (s *eventStore) Append(ctx context.Context, events ...ddd.Event) error {
	start := time.Now()
	err := s.next.Append(ctx, events...)
	if err != nil {
		s.m.storeErrors.WithLabelValues("append").Inc()
		return err
	}

	counts := make(map[string]int)
	for _, ev := range events {
		counts[ev.AggregateID().AggregateType()]++
	}
	elapsed := time.Since(start).Seconds()
	for aggType, n := range counts {
		s.m.storeAppendDuration.WithLabelValues(aggType).Observe(elapsed)
		s.m.eventsAppended.WithLabelValues(aggType).Add(float64(n))
	}
	return nil
}

func (s *eventStore) GetAggregateStream(ctx context.Context, id ddd.ID) (ddd.AggregateEventStream, error) {
	start := time.Now()
	stream, err := s.next.GetAggregateStream(ctx, id)
	if err != nil {
		s.m.storeErrors.WithLabelValues("load").Inc()
		return stream, err
	}

	aggType := id.AggregateType()
	s.m.storeLoadDuration.WithLabelValues(aggType).Observe(time.Since(start).Seconds())
	s.m.eventsLoaded.WithLabelValues(aggType).Add(float64(stream.Len()))
	return stream, nil
}
