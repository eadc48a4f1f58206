// Package commandstore records dispatched commands as an intent log. The
// streams-backed Store publishes every command to its own topic, grouped in
// streams by correlation id so a whole conversation can be read back.
package commandstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	ddd "github.com/terraskye/ddd"
	"github.com/terraskye/ddd/streams"
)

var now = time.Now

var _ ddd.CommandStore = (*Store)(nil)

// CommandType returns the Go type name of cmd without package or pointer.
func CommandType(cmd ddd.Command) string {
	t := reflect.TypeOf(cmd)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// Encode converts cmd into a wire event. The payload holds the exported
// fields of the command; the header fields travel on the envelope.
func Encode(tenantID string, cmd ddd.Command) (*streams.WireEvent, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode command %s: %w", CommandType(cmd), err)
	}

	correlation := cmd.CorrelationID().String()
	return &streams.WireEvent{
		ID:            cmd.MessageID().String(),
		Payload:       payload,
		TenantID:      tenantID,
		Type:          CommandType(cmd),
		Stream:        correlation,
		CorrelationID: streams.String(correlation),
		CausationID:   streams.String(cmd.CausationID().String()),
		RaisedAt:      now(),
	}, nil
}

type Store struct {
	client   streams.Client
	tenantID string
	topic    string
}

func New(client streams.Client, tenantID, topic string) *Store {
	return &Store{client: client, tenantID: tenantID, topic: topic}
}

func (s *Store) Append(ctx context.Context, cmd ddd.Command) error {
	w, err := Encode(s.tenantID, cmd)
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.topic, []*streams.WireEvent{w}); err != nil {
		return fmt.Errorf("append command %s to %q: %w", w.ID, s.topic, err)
	}
	return nil
}
