package logging

import (
	"context"
	"log/slog"

	ddd "github.com/terraskye/ddd"
)

func WithLoggingMiddleware(logger *slog.Logger, next ddd.EventHandler) ddd.EventHandler {
	return ddd.NewEventHandlerFunc(func(ctx context.Context, event ddd.Event) error {
		l := logger.With(
			"stream", ddd.StreamFromContext(ctx),
			"eventType", ddd.EventTypeFromContext(ctx),
			"eventId", ddd.EventIDFromContext(ctx).String(),
			"aggregateId", ddd.AggregateIDFromContext(ctx).String(),
		)
		if corr, ok := ddd.CorrelationIDFromContext(ctx); ok {
			l = l.With("correlationId", corr.String())
		}
		if cause, ok := ddd.CausationIDFromContext(ctx); ok {
			l = l.With("causationId", cause.String())
		}

		l.DebugContext(ctx, "event processing started")

		err := next.Handle(ctx, event)

		if err != nil {
			l.ErrorContext(ctx, "error processing event", "error", err)
		} else {
			l.DebugContext(ctx, "event processed successfully")
		}

		return err

	})
}
