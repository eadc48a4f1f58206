package ddd

import (
	"context"
	"time"
)

type ctxKey string

// Define constants for context keys
const (
	streamKey        ctxKey = "stream"
	aggregateIDKey   ctxKey = "aggregateID"
	eventIDKey       ctxKey = "eventID"
	eventTypeKey     ctxKey = "eventType"
	correlationIDKey ctxKey = "correlationID"
	causationIDKey   ctxKey = "causationID"
	raisedAtKey      ctxKey = "raisedAt"
)

// WithEvent adds the metadata of ev to the context. Event buses call it
// before invoking a handler.
func WithEvent(ctx context.Context, ev Event) context.Context {
	h := Header(ev)
	ctx = context.WithValue(ctx, streamKey, StreamName(h.AggregateID))
	ctx = context.WithValue(ctx, aggregateIDKey, h.AggregateID)
	ctx = context.WithValue(ctx, eventIDKey, h.ID)
	ctx = context.WithValue(ctx, eventTypeKey, EventType(ev))
	ctx = context.WithValue(ctx, raisedAtKey, h.RaisedAt)
	if h.CorrelationID != nil {
		ctx = context.WithValue(ctx, correlationIDKey, *h.CorrelationID)
	}
	if h.CausationID != nil {
		ctx = context.WithValue(ctx, causationIDKey, *h.CausationID)
	}
	return ctx
}

// StreamFromContext returns the stream name or "" if not present
func StreamFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(streamKey).(string); ok {
		return s
	}
	return ""
}

// EventTypeFromContext returns the event type tag or "" if not present
func EventTypeFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(eventTypeKey).(string); ok {
		return s
	}
	return ""
}

// AggregateIDFromContext returns the aggregate id or the zero ID if not present
func AggregateIDFromContext(ctx context.Context) ID {
	return idFromContext(ctx, aggregateIDKey)
}

// EventIDFromContext returns the event id or the zero ID if not present
func EventIDFromContext(ctx context.Context) ID {
	return idFromContext(ctx, eventIDKey)
}

// CorrelationIDFromContext returns the correlation id and whether it is present.
func CorrelationIDFromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(correlationIDKey).(ID)
	return id, ok
}

// CausationIDFromContext returns the causation id and whether it is present.
func CausationIDFromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(causationIDKey).(ID)
	return id, ok
}

// RaisedAtFromContext returns raisedAt or zero time if not present
func RaisedAtFromContext(ctx context.Context) time.Time {
	if t, ok := ctx.Value(raisedAtKey).(time.Time); ok {
		return t
	}
	return time.Time{}
}

func idFromContext(ctx context.Context, key ctxKey) ID {
	if id, ok := ctx.Value(key).(ID); ok {
		return id
	}
	return ID{}
}
