package ddd

import (
	"errors"
	"testing"
)

func TestErrorStrings(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "InvalidIdentifierError",
			err:  &InvalidIdentifierError{Value: "abc"},
			want: "attempted to generate id from non-uuid string abc",
		},
		{
			name: "ErrSkippedEvent",
			err:  ErrSkippedEvent{Event: &thingCreated{}},
			want: "skipped event of type thingCreated",
		},
		{
			name: "MissingApplyHandlerError",
			err:  &MissingApplyHandlerError{Aggregate: "Thing", Event: "thingArchived"},
			want: "aggregate Thing has no apply handler for event thingArchived",
		},
		{
			name: "InvalidPayloadError",
			err:  &InvalidPayloadError{Event: "thingCreated", Path: "Tags[0]", Reason: "is not a primitive"},
			want: "property 'Tags[0]' of event thingCreated is not a primitive",
		},
		{
			name: "EventStoreError",
			err:  WrapEventStoreError(errors.New("down")),
			want: "eventstore error: down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	if WrapEventStoreError(nil) != nil {
		t.Error("WrapEventStoreError(nil) should be nil")
	}
}
