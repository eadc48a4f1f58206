// Package kurrentdb is the KurrentDB streams transport. Every wire stream
// maps onto a KurrentDB stream; topic, tenant and correlation travel in the
// event metadata.
package kurrentdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/kurrent-io/KurrentDB-Client-Go/kurrentdb"

	"github.com/terraskye/ddd/streams"
)

var _ streams.Client = (*Client)(nil)

type Client struct {
	db   *kurrentdb.Client
	log  *slog.Logger
	opts streams.Options

	mu      sync.Mutex
	handler streams.Handler
	topics  []string
	cancel  context.CancelFunc
	closed  bool

	errs chan error
	wg   sync.WaitGroup
}

type Option func(*Client)

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// Dialer returns a streams.Dialer treating the server address as a
// KurrentDB connection string.
func Dialer(options ...Option) streams.Dialer {
	return func(ctx context.Context, opts streams.Options) (streams.Client, error) {
		return Dial(opts, options...)
	}
}

// Dial parses opts.ServerAddress as a connection string and connects.
func Dial(opts streams.Options, options ...Option) (*Client, error) {
	cfg, err := kurrentdb.ParseConnectionString(opts.ServerAddress)
	if err != nil {
		return nil, fmt.Errorf("parse kurrentdb connection string: %w", err)
	}
	db, err := kurrentdb.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create kurrentdb client: %w", err)
	}
	return NewClient(db, opts, options...), nil
}

// NewClient wraps an existing connection. Close closes db.
func NewClient(db *kurrentdb.Client, opts streams.Options, options ...Option) *Client {
	c := &Client{
		db:   db,
		log:  slog.Default(),
		opts: opts.WithDefaults(),
		errs: make(chan error, 64),
	}
	for _, o := range options {
		o(c)
	}
	c.log = c.log.With(slog.String("transport", "kurrentdb"), slog.String("group", c.opts.GroupID))
	return c
}

// Publish appends consecutive events of the same stream in one call, so
// the batch order is kept.
func (c *Client) Publish(ctx context.Context, topic string, events []*streams.WireEvent) error {
	if c.isClosed() {
		return streams.ErrClientClosed
	}

	for start := 0; start < len(events); {
		end := start + 1
		for end < len(events) && events[end].Stream == events[start].Stream {
			end++
		}

		run := make([]kurrentdb.EventData, 0, end-start)
		for _, ev := range events[start:end] {
			data, err := toEventData(topic, ev)
			if err != nil {
				return err
			}
			run = append(run, data)
		}

		stream := events[start].Stream
		if _, err := c.db.AppendToStream(ctx, stream, kurrentdb.AppendToStreamOptions{
			StreamState: kurrentdb.Any{},
		}, run...); err != nil {
			return fmt.Errorf("append %d events to %s: %w", len(run), stream, err)
		}
		start = end
	}
	return nil
}

// GetStream reads stream forwards. The tenant is matched against the event
// metadata; a missing stream is empty.
func (c *Client) GetStream(ctx context.Context, tenantID, stream string) ([]*streams.WireEvent, error) {
	if c.isClosed() {
		return nil, streams.ErrClientClosed
	}

	reader, err := c.db.ReadStream(ctx, stream, kurrentdb.ReadStreamOptions{
		Direction:      kurrentdb.Forwards,
		From:           kurrentdb.Start{},
		ResolveLinkTos: true,
	}, math.MaxUint64)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read stream %s: %w", stream, err)
	}
	defer reader.Close()

	var events []*streams.WireEvent
	for {
		resolved, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			if isNotFound(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("read stream %s: %w", stream, err)
		}

		ev, _, err := fromRecorded(resolved.Event)
		if err != nil {
			return nil, err
		}
		if ev.TenantID == tenantID {
			events = append(events, ev)
		}
	}
}

func (c *Client) UseEventHandlerForAllEventTypes(h streams.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Subscribe follows $all from its end and hands events of the subscribed
// topics to the handler. Calling it again extends the topic set.
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
		if !slices.Contains(c.topics, t) {
			c.topics = append(c.topics, t)
		}
	}
	if c.cancel != nil {
		return nil
	}

	sub, err := c.db.SubscribeToAll(ctx, kurrentdb.SubscribeToAllOptions{
		From:   kurrentdb.End{},
		Filter: kurrentdb.ExcludeSystemEventsFilter(),
	})
	if err != nil {
		return fmt.Errorf("subscribe to $all: %w", err)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(workerCtx, sub)

	c.log.Info("subscribed", slog.Any("topics", c.topics))
	return nil
}

func (c *Client) run(ctx context.Context, sub *kurrentdb.Subscription) {
	defer c.wg.Done()

	// Recv blocks until the subscription is closed
	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	for {
		event := sub.Recv()
		if ctx.Err() != nil {
			return
		}

		if event.SubscriptionDropped != nil {
			c.report(fmt.Errorf("subscription dropped: %w", event.SubscriptionDropped.Error))
			return
		}
		if event.EventAppeared == nil {
			continue
		}

		ev, topic, err := fromRecorded(event.EventAppeared.Event)
		if err != nil {
			c.report(err)
			continue
		}
		if !c.subscribed(topic) {
			continue
		}

		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()

		hctx, cancel := context.WithTimeout(ctx, c.opts.AckTimeout)
		err = h(hctx, ev)
		cancel()
		if err != nil {
			c.report(fmt.Errorf("handle %s event %s: %w", ev.Type, ev.ID, err))
		}
	}
}

// Errors reports dropped subscriptions and failed deliveries.
func (c *Client) Errors() <-chan error {
	return c.errs
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	close(c.errs)
	return c.db.Close()
}

func (c *Client) subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Contains(c.topics, topic)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) report(err error) {
	c.log.Error("delivery failed", slog.Any("error", err))
	select {
	case c.errs <- err:
	default:
	}
}

func isNotFound(err error) bool {
	kerr, ok := kurrentdb.FromError(err)
	return !ok && kerr != nil && kerr.IsErrorCode(kurrentdb.ErrorCodeResourceNotFound)
}
