// Package streams defines the publish / subscribe / read contract of the
// streaming transport that backs the event store and the command store.
package streams

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const (
	DefaultGroupID    = "ddd-backend"
	DefaultAckTimeout = time.Second
)

var ErrClientClosed = errors.New("streams client is closed")

// WireEvent is the unit exchanged with the transport.
type WireEvent struct {
	ID            string          `json:"id"`
	Payload       json.RawMessage `json:"payload"`
	TenantID      string          `json:"tenantId"`
	Type          string          `json:"type"`
	Stream        string          `json:"stream"`
	CorrelationID *string         `json:"correlationId"`
	CausationID   *string         `json:"causationId"`
	RaisedAt      time.Time       `json:"raisedAt,omitzero"`
}

// Handler consumes one delivered event. A non-nil error marks the delivery
// as failed.
type Handler func(ctx context.Context, ev *WireEvent) error

type Client interface {
	// Publish appends events to topic, keeping their order.
	Publish(ctx context.Context, topic string, events []*WireEvent) error

	// Subscribe starts delivering events of topics to the handler installed
	// with UseEventHandlerForAllEventTypes.
	Subscribe(ctx context.Context, topics []string) error

	// GetStream returns every event of stream in publish order. An unknown
	// stream is empty.
	GetStream(ctx context.Context, tenantID, stream string) ([]*WireEvent, error)

	UseEventHandlerForAllEventTypes(h Handler)

	Close() error
}

type Options struct {
	ServerAddress string
	GroupID       string
	AckTimeout    time.Duration
}

// WithDefaults fills the unset fields.
func (o Options) WithDefaults() Options {
	if o.GroupID == "" {
		o.GroupID = DefaultGroupID
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = DefaultAckTimeout
	}
	return o
}

// Dialer creates a connected client.
type Dialer func(ctx context.Context, opts Options) (Client, error)

// String returns a pointer to s, or nil for the empty string.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
