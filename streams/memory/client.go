package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/terraskye/ddd/streams"
)

var _ streams.Client = (*Client)(nil)

type Client struct {
	broker *Broker
	opts   streams.Options

	mu      sync.RWMutex
	handler streams.Handler
	topics  map[string]struct{}
	started bool
	closed  bool

	queue chan *streams.WireEvent
	errs  chan error
	done  chan struct{}
	wg    sync.WaitGroup
}

func (c *Client) Publish(ctx context.Context, topic string, events []*streams.WireEvent) error {
	if c.isClosed() {
		return streams.ErrClientClosed
	}
	if len(events) == 0 {
		return nil
	}
	return c.broker.publish(ctx, topic, events)
}

// Subscribe adds topics to the subscription and starts the delivery loop
// on the first call.
func (c *Client) Subscribe(ctx context.Context, topics []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return streams.ErrClientClosed
	}
	if c.handler == nil {
		return fmt.Errorf("subscribe to %v: no event handler installed", topics)
	}
	for _, t := range topics {
		c.topics[t] = struct{}{}
	}
	if !c.started {
		c.started = true
		c.wg.Add(1)
		go c.deliver()
	}
	return nil
}

func (c *Client) GetStream(ctx context.Context, tenantID, stream string) ([]*streams.WireEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.isClosed() {
		return nil, streams.ErrClientClosed
	}
	return c.broker.stream(tenantID, stream), nil
}

func (c *Client) UseEventHandlerForAllEventTypes(h streams.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Errors reports failed deliveries.
func (c *Client) Errors() <-chan error {
	return c.errs
}

// Close stops the delivery loop. Queued events are dropped.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.broker.remove(c)
	c.wg.Wait()
	close(c.errs)
	return nil
}

func (c *Client) subscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.topics[topic]
	return ok && !c.closed
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) enqueue(ctx context.Context, ev *streams.WireEvent) error {
	select {
	case c.queue <- ev:
		return nil
	case <-c.done:
		// closed meanwhile; the event stays in the broker log
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) deliver() {
	defer c.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.done
		cancel()
	}()

	for {
		select {
		case <-c.done:
			return
		case ev := <-c.queue:
			c.mu.RLock()
			h := c.handler
			c.mu.RUnlock()

			if err := h(ctx, ev); err != nil {
				c.report(fmt.Errorf("handle %s event %s: %w", ev.Type, ev.ID, err))
			}
		}
	}
}

func (c *Client) report(err error) {
	select {
	case c.errs <- err:
	default:
		c.broker.log.Warn("streams error channel full, dropping error", slog.Any("error", err))
	}
}
