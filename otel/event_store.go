package otel

import (
	"context"
	"time"

	ddd "github.com/terraskye/ddd"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var _ ddd.EventStore = (*TelemetryStore)(nil)

// TelemetryStore traces and counts the operations of an EventStore.
type TelemetryStore struct {
	next   ddd.EventStore
	cfg    *config
	tracer trace.Tracer
}

func NewTelemetryStore(next ddd.EventStore, options ...Option) *TelemetryStore {
	cfg := newConfig(options)
	return &TelemetryStore{next: next, cfg: cfg, tracer: cfg.tracer()}
}

// Append with metrics + span
func (t *TelemetryStore) Append(ctx context.Context, events ...ddd.Event) error {
	attr := []attribute.KeyValue{
		AttrOperation.String("append"),
		AttrEventCount.Int(len(events)),
	}
	if len(events) > 0 {
		attr = append(attr, AttrStreamID.String(ddd.StreamName(events[0].AggregateID())))
		attr = append(attr, messageAttributes(events[0])...)
	}

	ctx, span := t.tracer.Start(ctx, t.cfg.spanName(ctx, "EventStore.Append"),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.cfg.attributes(ctx, attr...)...),
	)
	defer span.End()

	start := time.Now()
	err := t.next.Append(ctx, events...)

	opAttr := metric.WithAttributes(AttrOperation.String("append"))
	EventStoreDuration.Record(ctx, float64(time.Since(start).Milliseconds()), opAttr)
	EventStoreAppends.Add(ctx, 1)

	if err != nil {
		EventStoreErrors.Add(ctx, 1, opAttr)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	EventsAppended.Add(ctx, int64(len(events)))
	span.SetStatus(codes.Ok, "")
	return nil
}

// GetAggregateStream with metrics + span
func (t *TelemetryStore) GetAggregateStream(ctx context.Context, id ddd.ID) (ddd.AggregateEventStream, error) {
	ctx, span := t.tracer.Start(ctx, t.cfg.spanName(ctx, "EventStore.GetAggregateStream"),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.cfg.attributes(ctx,
			AttrOperation.String("load"),
			AttrStreamID.String(ddd.StreamName(id)),
			AttrAggregateID.String(id.String()),
		)...),
	)
	defer span.End()

	start := time.Now()
	stream, err := t.next.GetAggregateStream(ctx, id)

	opAttr := metric.WithAttributes(AttrOperation.String("load"))
	EventStoreDuration.Record(ctx, float64(time.Since(start).Milliseconds()), opAttr)
	EventStoreLoads.Add(ctx, 1)

	if err != nil {
		EventStoreErrors.Add(ctx, 1, opAttr)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stream, err
	}

	EventsLoaded.Add(ctx, int64(stream.Len()))
	span.SetAttributes(AttrEventCount.Int(stream.Len()))
	span.SetStatus(codes.Ok, "")
	return stream, nil
}
