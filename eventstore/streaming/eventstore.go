// Package streaming implements ddd.EventStore on top of a streams.Client.
// Events are published to one topic and read back per aggregate stream;
// with a local bus configured, every event observed on the topic is also
// published locally.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	ddd "github.com/terraskye/ddd"
	"github.com/terraskye/ddd/streams"
)

var _ ddd.EventStore = (*EventStore)(nil)

type Config struct {
	Client       streams.Client
	TenantID     string
	Topic        string
	Constructors *ddd.EventConstructorMap

	// Bus receives every event observed on Topic. Optional.
	Bus    ddd.EventBus
	Logger *slog.Logger
}

type EventStore struct {
	client       streams.Client
	tenantID     string
	topic        string
	constructors *ddd.EventConstructorMap
	bus          ddd.EventBus
	log          *slog.Logger
}

func New(cfg Config) (*EventStore, error) {
	if cfg.Client == nil {
		return nil, errors.New("streaming eventstore: client is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("streaming eventstore: topic is required")
	}
	if cfg.Constructors == nil {
		return nil, errors.New("streaming eventstore: event constructor map is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &EventStore{
		client:       cfg.Client,
		tenantID:     cfg.TenantID,
		topic:        cfg.Topic,
		constructors: cfg.Constructors,
		bus:          cfg.Bus,
		log:          log.With(slog.String("eventstore", "streaming"), slog.String("topic", cfg.Topic)),
	}, nil
}

// Initialize installs the live fan-out and subscribes to the topic. It does
// nothing without a bus.
func (s *EventStore) Initialize(ctx context.Context) error {
	if s.bus == nil {
		return nil
	}

	s.client.UseEventHandlerForAllEventTypes(s.fanOut)
	if err := s.client.Subscribe(ctx, []string{s.topic}); err != nil {
		return fmt.Errorf("subscribe to event topic %q: %w", s.topic, err)
	}
	s.log.InfoContext(ctx, "subscribed to event stream topic")
	return nil
}

// Append publishes the batch in one call.
func (s *EventStore) Append(ctx context.Context, events ...ddd.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := make([]*streams.WireEvent, len(events))
	for i, ev := range events {
		w, err := ToWire(s.tenantID, ev)
		if err != nil {
			return err
		}
		batch[i] = w
	}

	if err := s.client.Publish(ctx, s.topic, batch); err != nil {
		return ddd.WrapEventStoreError(fmt.Errorf("publish %d events to %q: %w", len(batch), s.topic, err))
	}
	return nil
}

// GetAggregateStream loads every event of the aggregate. An event type
// missing from the constructor map fails the whole read.
func (s *EventStore) GetAggregateStream(ctx context.Context, id ddd.ID) (ddd.AggregateEventStream, error) {
	stream := ddd.StreamName(id)

	wire, err := s.client.GetStream(ctx, s.tenantID, stream)
	if err != nil {
		return ddd.AggregateEventStream{}, ddd.WrapEventStoreError(fmt.Errorf("get stream %s: %w", stream, err))
	}

	events := make([]ddd.Event, 0, len(wire))
	for _, w := range wire {
		ev, err := FromWire(s.constructors, w)
		if err != nil {
			return ddd.AggregateEventStream{}, fmt.Errorf("read stream %s: %w", stream, err)
		}
		events = append(events, ev)
	}

	return ddd.NewAggregateEventStream(id, events), nil
}

func (s *EventStore) fanOut(ctx context.Context, w *streams.WireEvent) error {
	if w.TenantID != s.tenantID {
		return nil
	}

	ev, err := FromWire(s.constructors, w)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to decode live event",
			slog.String("type", w.Type),
			slog.String("id", w.ID),
			slog.Any("error", err),
		)
		return err
	}

	if err := s.bus.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish %s event %s locally: %w", w.Type, w.ID, err)
	}
	return nil
}
