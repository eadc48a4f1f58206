package otel

import (
	"context"

	ddd "github.com/terraskye/ddd"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var _ ddd.EventBus = (*TelemetryEventBus)(nil)

// TelemetryEventBus wraps an EventBus with OpenTelemetry tracing and metrics.
//
// Publish runs in a producer span. Every subscription is wrapped in a
// consumer span named "subscription.receive {name}", with the handler itself
// instrumented by WithEventTelemetry.
type TelemetryEventBus struct {
	next   ddd.EventBus
	cfg    *config
	tracer trace.Tracer
	opts   []Option
}

func (t *TelemetryEventBus) Publish(ctx context.Context, ev ddd.Event) error {
	eventType := ddd.EventType(ev)
	ctx, span := t.tracer.Start(ctx, t.cfg.spanName(ctx, "events.publish "+eventType),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(t.cfg.attributes(ctx,
			AttrEventType.String(eventType),
			AttrEventID.String(ev.MessageID().String()),
			AttrStreamID.String(ddd.StreamName(ev.AggregateID())),
		)...),
	)
	defer span.End()

	if err := t.next.Publish(ctx, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	EventBusPublished.Add(ctx, 1, metric.WithAttributes(AttrEventType.String(eventType)))
	span.SetStatus(codes.Ok, "")
	return nil
}

// Subscribe registers next wrapped with telemetry instrumentation.
func (t *TelemetryEventBus) Subscribe(ctx context.Context, name string, next ddd.EventHandler) error {
	handler := WithEventTelemetry(next, t.opts...)

	return t.next.Subscribe(ctx, name, ddd.NewEventHandlerFunc(func(ctx context.Context, event ddd.Event) error {
		attr := []attribute.KeyValue{
			AttrEventType.String(ddd.EventType(event)),
			AttrEventID.String(event.MessageID().String()),
			AttrSubscriberName.String(name),
		}

		ctx, span := t.tracer.Start(ctx, "subscription.receive "+name,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(t.cfg.attributes(ctx, attr...)...),
		)
		defer span.End()

		err := handler.Handle(ctx, event)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	}))
}

// Errors returns the error channel from the underlying event bus.
func (t *TelemetryEventBus) Errors() <-chan error {
	return t.next.Errors()
}

// Close closes the underlying event bus.
func (t *TelemetryEventBus) Close() error {
	return t.next.Close()
}

// WithEventBusTelemetry wraps an EventBus with OpenTelemetry tracing and metrics.
//
// Example Usage:
//
//	bus := otel.WithEventBusTelemetry(eventBus,
//	    otel.WithAttributes(attribute.String("service", "contingents")),
//	)
//	err := bus.Subscribe(ctx, "contingent-projector", handler)
func WithEventBusTelemetry(next ddd.EventBus, options ...Option) *TelemetryEventBus {
	cfg := newConfig(options)
	return &TelemetryEventBus{
		next:   next,
		cfg:    cfg,
		tracer: cfg.tracer(),
		opts:   options,
	}
}
