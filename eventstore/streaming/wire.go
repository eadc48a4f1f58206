package streaming

import (
	"fmt"

	ddd "github.com/terraskye/ddd"
	"github.com/terraskye/ddd/streams"
)

// ToWire converts a domain event into its transport representation.
func ToWire(tenantID string, ev ddd.Event) (*streams.WireEvent, error) {
	payload, err := ddd.EncodeEvent(ev)
	if err != nil {
		return nil, err
	}

	h := ddd.Header(ev)
	w := &streams.WireEvent{
		ID:       h.ID.String(),
		Payload:  payload,
		TenantID: tenantID,
		Type:     ddd.EventType(ev),
		Stream:   ddd.StreamName(h.AggregateID),
		RaisedAt: h.RaisedAt,
	}
	if h.CorrelationID != nil {
		w.CorrelationID = streams.String(h.CorrelationID.String())
	}
	if h.CausationID != nil {
		w.CausationID = streams.String(h.CausationID.String())
	}
	return w, nil
}

// FromWire rebuilds the domain event of w. The aggregate id is taken from
// the stream name unless the payload carries one.
func FromWire(constructors *ddd.EventConstructorMap, w *streams.WireEvent) (ddd.Event, error) {
	ev, err := constructors.New(w.Type)
	if err != nil {
		return nil, err
	}

	id, err := ddd.ParseID(ddd.EventKind, w.ID)
	if err != nil {
		return nil, fmt.Errorf("event id of %s: %w", w.Type, err)
	}
	aggregateID, err := ddd.ParseStreamName(w.Stream)
	if err != nil {
		return nil, fmt.Errorf("stream of %s event %s: %w", w.Type, w.ID, err)
	}

	h := ddd.EventHeader{
		ID:          id,
		AggregateID: aggregateID,
		RaisedAt:    w.RaisedAt,
	}
	if h.CorrelationID, err = optionalID(w.CorrelationID); err != nil {
		return nil, fmt.Errorf("correlation id of %s event %s: %w", w.Type, w.ID, err)
	}
	if h.CausationID, err = optionalID(w.CausationID); err != nil {
		return nil, fmt.Errorf("causation id of %s event %s: %w", w.Type, w.ID, err)
	}

	if err := ddd.DecodeEvent(ev, w.Payload, h); err != nil {
		return nil, err
	}
	return ev, nil
}

func optionalID(s *string) (*ddd.ID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := ddd.ParseID(ddd.MessageKind, *s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

