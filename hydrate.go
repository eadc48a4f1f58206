package ddd

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	payloadRaisedAtKey    = "raisedAt"
	payloadAggregateIDKey = "aggregateId"
)

// EncodeEvent returns the payload of ev: its own properties plus raisedAt
// (milliseconds since the epoch) and aggregateId. The event id and the
// correlation chain are not part of the payload; see Header.
func EncodeEvent(ev Event) (json.RawMessage, error) {
	own, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", EventType(ev), err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(own, &fields); err != nil {
		return nil, fmt.Errorf("encode event %s: own properties are not an object: %w", EventType(ev), err)
	}

	b := ev.base()
	raisedAt, _ := json.Marshal(b.raisedAt.UnixMilli())
	aggregateID, _ := json.Marshal(b.aggregateID.String())
	fields[payloadRaisedAtKey] = raisedAt
	fields[payloadAggregateIDKey] = aggregateID

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", EventType(ev), err)
	}
	return out, nil
}

// DecodeEvent fills ev from a payload produced by EncodeEvent and the header
// read from the envelope. raisedAt and aggregateId in the payload take
// precedence over the header; the aggregate id keeps the header's kind.
func DecodeEvent(ev Event, payload []byte, h EventHeader) error {
	if err := json.Unmarshal(payload, ev); err != nil {
		return fmt.Errorf("decode event %s: %w", EventType(ev), err)
	}

	var meta struct {
		RaisedAt    *int64  `json:"raisedAt"`
		AggregateID *string `json:"aggregateId"`
	}
	if err := json.Unmarshal(payload, &meta); err != nil {
		return fmt.Errorf("decode event %s: %w", EventType(ev), err)
	}

	if meta.RaisedAt != nil {
		h.RaisedAt = time.UnixMilli(*meta.RaisedAt)
	}
	if meta.AggregateID != nil {
		id, err := ParseID(h.AggregateID.Kind(), *meta.AggregateID)
		if err != nil {
			return fmt.Errorf("decode event %s: %w", EventType(ev), err)
		}
		h.AggregateID = id
	}

	RestoreEvent(ev, h)
	return nil
}
