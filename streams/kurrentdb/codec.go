package kurrentdb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kurrent-io/KurrentDB-Client-Go/kurrentdb"

	"github.com/terraskye/ddd/streams"
)

// metadata is stored as the user metadata of every event.
type metadata struct {
	Topic         string    `json:"topic"`
	TenantID      string    `json:"tenantId"`
	ID            string    `json:"id"`
	CorrelationID *string   `json:"correlationId"`
	CausationID   *string   `json:"causationId"`
	RaisedAt      time.Time `json:"raisedAt,omitzero"`
}

// eventID maps a wire id onto a KurrentDB event id. Non-uuid ids are
// hashed so a retried append keeps its id.
func eventID(id string) uuid.UUID {
	if u, err := uuid.Parse(id); err == nil {
		return u
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
}

func toEventData(topic string, ev *streams.WireEvent) (kurrentdb.EventData, error) {
	raisedAt := ev.RaisedAt
	if raisedAt.IsZero() {
		raisedAt = time.Now().UTC()
	}

	md, err := json.Marshal(metadata{
		Topic:         topic,
		TenantID:      ev.TenantID,
		ID:            ev.ID,
		CorrelationID: ev.CorrelationID,
		CausationID:   ev.CausationID,
		RaisedAt:      raisedAt,
	})
	if err != nil {
		return kurrentdb.EventData{}, fmt.Errorf("encode metadata of event %s: %w", ev.ID, err)
	}

	payload := ev.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	return kurrentdb.EventData{
		EventID:     eventID(ev.ID),
		EventType:   ev.Type,
		ContentType: kurrentdb.ContentTypeJson,
		Data:        payload,
		Metadata:    md,
	}, nil
}

// fromRecorded rebuilds the wire event and returns the topic it was
// published to.
func fromRecorded(rec *kurrentdb.RecordedEvent) (*streams.WireEvent, string, error) {
	var md metadata
	if len(rec.UserMetadata) > 0 {
		if err := json.Unmarshal(rec.UserMetadata, &md); err != nil {
			return nil, "", fmt.Errorf("decode metadata of %s event %s: %w", rec.EventType, rec.EventID, err)
		}
	}

	id := md.ID
	if id == "" {
		id = rec.EventID.String()
	}
	raisedAt := md.RaisedAt
	if raisedAt.IsZero() {
		raisedAt = rec.CreatedDate
	}

	return &streams.WireEvent{
		ID:            id,
		Payload:       json.RawMessage(rec.Data),
		TenantID:      md.TenantID,
		Type:          rec.EventType,
		Stream:        rec.StreamID,
		CorrelationID: md.CorrelationID,
		CausationID:   md.CausationID,
		RaisedAt:      raisedAt,
	}, md.Topic, nil
}
