package ddd

import (
	"strings"
)

// AggregateEventStream is the ordered history of one aggregate.
type AggregateEventStream struct {
	aggregateID ID
	events      []Event
}

func NewAggregateEventStream(aggregateID ID, events []Event) AggregateEventStream {
	return AggregateEventStream{
		aggregateID: aggregateID,
		events:      append([]Event(nil), events...),
	}
}

func (s AggregateEventStream) AggregateID() ID { return s.aggregateID }

// Events returns a copy of the events, oldest first.
func (s AggregateEventStream) Events() []Event {
	return append([]Event(nil), s.events...)
}

func (s AggregateEventStream) Len() int { return len(s.events) }

func (s AggregateEventStream) IsEmpty() bool { return len(s.events) == 0 }

// StreamName returns the transport stream of an aggregate:
// "{aggregateType}-{aggregateId}".
func StreamName(id ID) string {
	return id.AggregateType() + "-" + id.String()
}

// uuid strings are 36 characters, plus the separating dash
const streamSuffixLen = 37

// ParseStreamName is the inverse of StreamName.
func ParseStreamName(stream string) (ID, error) {
	if len(stream) <= streamSuffixLen || stream[len(stream)-streamSuffixLen] != '-' {
		return ID{}, &InvalidStreamNameError{Stream: stream}
	}
	typ := stream[:len(stream)-streamSuffixLen]
	if strings.TrimSpace(typ) == "" {
		return ID{}, &InvalidStreamNameError{Stream: stream}
	}
	id, err := ParseID(AggregateKind(typ), stream[len(stream)-streamSuffixLen+1:])
	if err != nil {
		return ID{}, &InvalidStreamNameError{Stream: stream}
	}
	return id, nil
}
