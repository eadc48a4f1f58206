package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	ddd "github.com/terraskye/ddd"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WithCommandTelemetry wraps a CommandHandler with OpenTelemetry tracing and metrics.
//
// For each command it:
//  1. Starts an internal span named "command.handle {type}" carrying the
//     command type, command id, correlation chain and aggregate id.
//  2. Tracks the command in the in-flight counter while the handler runs.
//  3. Records the handling duration.
//  4. Classifies the result: success, business rule violation (span status
//     OK with a "business_rule_violation" event) or system failure (span
//     status Error with the error recorded).
//
// Example Usage:
//
//	handler := otel.WithCommandTelemetry(myCommandHandler)
//	err := handler(ctx, myCommand)
func WithCommandTelemetry[C ddd.Command](next ddd.CommandHandler[C], options ...Option) ddd.CommandHandler[C] {
	cfg := newConfig(options)
	tracer := cfg.tracer()

	return func(ctx context.Context, cmd C) error {
		commandType := fmt.Sprintf("%T", cmd)
		typeAttr := metric.WithAttributes(AttrCommandType.String(commandType))
		attr := []attribute.KeyValue{
			AttrCommandType.String(commandType),
			AttrCommandID.String(cmd.MessageID().String()),
		}
		attr = append(attr, messageAttributes(cmd)...)
		if t, ok := any(cmd).(interface{ AggregateID() ddd.ID }); ok {
			id := t.AggregateID()
			attr = append(attr,
				AttrAggregateID.String(id.String()),
				AttrAggregateType.String(id.AggregateType()),
			)
		}

		ctx, span := tracer.Start(ctx, cfg.spanName(ctx, "command.handle "+commandType),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(cfg.attributes(ctx, attr...)...),
		)
		defer span.End()

		CommandsInFlight.Add(ctx, 1, typeAttr)
		defer CommandsInFlight.Add(ctx, -1, typeAttr)

		startTime := time.Now()
		err := next(ctx, cmd)
		CommandsDuration.Record(ctx, float64(time.Since(startTime).Milliseconds()), typeAttr)

		switch {
		case err == nil:
			span.SetStatus(codes.Ok, "")
			CommandsHandled.Add(ctx, 1, typeAttr)
		case errors.Is(err, ddd.ErrBusinessRuleViolation):
			span.SetStatus(codes.Ok, fmt.Sprintf("business rule violation: %v", err))
			span.AddEvent("business_rule_violation", trace.WithAttributes(
				AttrCommandType.String(commandType),
				attribute.String("reason", err.Error()),
			))
			CommandsRejected.Add(ctx, 1, typeAttr)
		default:
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
			CommandsFailed.Add(ctx, 1, typeAttr)
		}

		return err
	}
}
