package otel

import (
	"context"
	"errors"
	"time"

	ddd "github.com/terraskye/ddd"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WithEventTelemetry traces every event handled by next. The span carries
// the metadata put on the context by the event bus.
func WithEventTelemetry(next ddd.EventHandler, options ...Option) ddd.EventHandler {
	cfg := newConfig(options)
	tracer := cfg.tracer()

	return ddd.NewEventHandlerFunc(func(ctx context.Context, event ddd.Event) error {
		eventType := ddd.EventType(event)
		attr := []attribute.KeyValue{
			AttrEventType.String(eventType),
			AttrEventID.String(event.MessageID().String()),
			AttrStreamID.String(ddd.StreamName(event.AggregateID())),
			AttrAggregateID.String(event.AggregateID().String()),
		}
		attr = append(attr, messageAttributes(event)...)

		ctx, span := tracer.Start(ctx, cfg.spanName(ctx, "events.handle "+eventType),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(cfg.attributes(ctx, attr...)...),
		)
		defer span.End()

		typeAttr := metric.WithAttributes(AttrEventType.String(eventType))
		EventBusHandled.Add(ctx, 1, typeAttr)

		startTime := time.Now()
		err := next.Handle(ctx, event)
		EventBusDuration.Record(ctx, float64(time.Since(startTime).Milliseconds()), typeAttr)

		if err != nil {
			var skipped *ddd.ErrSkippedEvent
			if errors.As(err, &skipped) {
				span.SetStatus(codes.Ok, "event skipped")
			} else {
				EventBusErrors.Add(ctx, 1, typeAttr)
				span.SetStatus(codes.Error, err.Error())
				span.RecordError(err)
			}
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	})
}
