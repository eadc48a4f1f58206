package fixtures

import (
	"context"
	"sync"

	ddd "github.com/terraskye/ddd"
)

// StoreSpy is an in-memory ddd.EventStore that counts calls and can be told
// to fail.
type StoreSpy struct {
	mu sync.Mutex

	AppendCalls             int
	GetAggregateStreamCalls int

	streams   map[string][]ddd.Event
	loadErr   error
	appendErr error
}

var _ ddd.EventStore = (*StoreSpy)(nil)

func NewStoreSpy() *StoreSpy {
	return &StoreSpy{streams: make(map[string][]ddd.Event)}
}

// FailingStore returns a StoreSpy whose every call fails with err.
func FailingStore(err error) *StoreSpy {
	s := NewStoreSpy()
	s.loadErr, s.appendErr = err, err
	return s
}

func (s *StoreSpy) Append(ctx context.Context, events ...ddd.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AppendCalls++
	if s.appendErr != nil {
		return s.appendErr
	}
	for _, ev := range events {
		stream := ddd.StreamName(ev.AggregateID())
		s.streams[stream] = append(s.streams[stream], ev)
	}
	return nil
}

func (s *StoreSpy) GetAggregateStream(ctx context.Context, id ddd.ID) (ddd.AggregateEventStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetAggregateStreamCalls++
	if s.loadErr != nil {
		return ddd.AggregateEventStream{}, s.loadErr
	}
	return ddd.NewAggregateEventStream(id, append([]ddd.Event(nil), s.streams[ddd.StreamName(id)]...)), nil
}
