// Package memory is an in-process streams transport. A Broker keeps every
// published event and delivers it to one client per consumer group.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/terraskye/ddd/streams"
)

type record struct {
	topic string
	event *streams.WireEvent
}

// Broker is safe for concurrent use.
type Broker struct {
	mu      sync.Mutex
	records []record
	groups  map[string][]*Client
	next    map[string]int

	bufferSize int
	log        *slog.Logger
}

type BrokerOption func(*Broker)

// WithBufferSize sets the delivery queue length of every client.
func WithBufferSize(n int) BrokerOption {
	return func(b *Broker) { b.bufferSize = n }
}

func WithLogger(log *slog.Logger) BrokerOption {
	return func(b *Broker) { b.log = log }
}

func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		groups:     make(map[string][]*Client),
		next:       make(map[string]int),
		bufferSize: 256,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Dialer returns a streams.Dialer creating clients on b.
func (b *Broker) Dialer() streams.Dialer {
	return func(ctx context.Context, opts streams.Options) (streams.Client, error) {
		return b.NewClient(opts), nil
	}
}

// NewClient creates a client in the consumer group of opts.
func (b *Broker) NewClient(opts streams.Options) *Client {
	opts = opts.WithDefaults()
	c := &Client{
		broker: b,
		opts:   opts,
		topics: make(map[string]struct{}),
		queue:  make(chan *streams.WireEvent, b.bufferSize),
		errs:   make(chan error, 64),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.groups[opts.GroupID] = append(b.groups[opts.GroupID], c)
	b.mu.Unlock()
	return c
}

// Events returns every event published to topic, in order.
func (b *Broker) Events(topic string) []*streams.WireEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*streams.WireEvent
	for _, r := range b.records {
		if r.topic == topic {
			out = append(out, r.event)
		}
	}
	return out
}

func (b *Broker) publish(ctx context.Context, topic string, events []*streams.WireEvent) error {
	type delivery struct {
		client *Client
		event  *streams.WireEvent
	}

	b.mu.Lock()
	var deliveries []delivery
	for _, ev := range events {
		b.records = append(b.records, record{topic: topic, event: ev})
		for group := range b.groups {
			if c := b.pick(group, topic); c != nil {
				deliveries = append(deliveries, delivery{client: c, event: ev})
			}
		}
	}
	b.mu.Unlock()

	for _, d := range deliveries {
		if err := d.client.enqueue(ctx, d.event); err != nil {
			return fmt.Errorf("deliver %s to group %q: %w", d.event.ID, d.client.opts.GroupID, err)
		}
	}
	return nil
}

// pick selects the next subscribed client of group round robin.
func (b *Broker) pick(group, topic string) *Client {
	members := b.groups[group]
	for range members {
		i := b.next[group] % len(members)
		b.next[group] = i + 1
		if members[i].subscribed(topic) {
			return members[i]
		}
	}
	return nil
}

func (b *Broker) stream(tenantID, stream string) []*streams.WireEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*streams.WireEvent
	for _, r := range b.records {
		if r.event.TenantID == tenantID && r.event.Stream == stream {
			out = append(out, r.event)
		}
	}
	return out
}

func (b *Broker) remove(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	group := c.opts.GroupID
	b.groups[group] = slices.DeleteFunc(b.groups[group], func(m *Client) bool { return m == c })
	if len(b.groups[group]) == 0 {
		delete(b.groups, group)
		delete(b.next, group)
	}
}
