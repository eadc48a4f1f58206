// Package nats is the JetStream streams transport. All topics share one
// JetStream stream; an event is stored under the subject
// "{prefix}.{topic}.{tenant}.{stream}".
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/terraskye/ddd/streams"
)

const (
	defaultStreamName    = "STREAMS"
	defaultSubjectPrefix = "streams"

	headerEventType = "x-event-type"
	headerTenantID  = "x-tenant-id"
	headerStream    = "x-stream"

	fetchBatchSize = 100
)

var _ streams.Client = (*Client)(nil)

type Config struct {
	Connect       Connector    // Connect creates the NATS connection. If nil, the server address of the options is dialed.
	Log           *slog.Logger // Log for diagnostics (optional)
	StreamName    string
	SubjectPrefix string
}

type Client struct {
	nc      *natsgo.Conn
	closeNc closeFunc
	js      jetstream.JetStream
	stream  jetstream.Stream
	log     *slog.Logger
	opts    streams.Options
	prefix  string

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	handler  streams.Handler
	topics   []string
	consumer jetstream.ConsumeContext
	closed   bool
}

// Dialer returns a streams.Dialer for cfg.
func Dialer(cfg Config) streams.Dialer {
	return func(ctx context.Context, opts streams.Options) (streams.Client, error) {
		return NewClient(ctx, opts, cfg)
	}
}

// NewClient connects and ensures the JetStream stream exists.
func NewClient(ctx context.Context, opts streams.Options, cfg Config) (*Client, error) {
	opts = opts.WithDefaults()

	connect := cfg.Connect
	if connect == nil {
		if opts.ServerAddress == "" {
			connect = ConnectDefault()
		} else {
			connect = ConnectURL(opts.ServerAddress)
		}
	}

	nc, closeNc, err := connect()
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeNc()
		return nil, err
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	streamName := strings.ToUpper(cfg.StreamName)
	if streamName == "" {
		streamName = defaultStreamName
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	log = log.With(
		slog.String("transport", "nats_js"),
		slog.String("stream", streamName),
		slog.String("group", opts.GroupID),
	)

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{prefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		FirstSeq:  1,
	})
	if err != nil {
		closeNc()
		return nil, fmt.Errorf("ensure stream %s: %w", streamName, err)
	}
	log.Debug("ensured stream")

	cctx, cancel := context.WithCancel(context.Background())
	return &Client{
		nc:      nc,
		closeNc: closeNc,
		js:      js,
		stream:  stream,
		log:     log,
		opts:    opts,
		prefix:  prefix,
		ctx:     cctx,
		cancel:  cancel,
	}, nil
}

// Publish stores events one by one, in order. Every message carries the
// event id as its de-duplication id, so a retried publish is stored once.
func (c *Client) Publish(ctx context.Context, topic string, events []*streams.WireEvent) error {
	if c.isClosed() {
		return streams.ErrClientClosed
	}

	for _, ev := range events {
		out := *ev
		if out.RaisedAt.IsZero() {
			out.RaisedAt = time.Now().UTC()
		}

		msg := natsgo.NewMsg(c.subject(topic, ev.TenantID, ev.Stream))
		msg.Header.Set(headerEventType, ev.Type)
		msg.Header.Set(headerTenantID, ev.TenantID)
		msg.Header.Set(headerStream, ev.Stream)

		data, err := json.Marshal(&out)
		if err != nil {
			return fmt.Errorf("encode %s event %s: %w", ev.Type, ev.ID, err)
		}
		msg.Data = data

		if _, err := c.js.PublishMsg(ctx, msg, jetstream.WithMsgID(ev.ID)); err != nil {
			return fmt.Errorf("publish %s event %s to %s: %w", ev.Type, ev.ID, msg.Subject, err)
		}
	}
	return nil
}

func (c *Client) UseEventHandlerForAllEventTypes(h streams.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Subscribe binds the durable consumer of the group to topics. Calling it
// again extends the filter.
func (c *Client) Subscribe(ctx context.Context, topics []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return streams.ErrClientClosed
	}
	if c.handler == nil {
		return fmt.Errorf("subscribe to %v: no event handler installed", topics)
	}

	merged := slices.Clone(c.topics)
	for _, t := range topics {
		if !slices.Contains(merged, t) {
			merged = append(merged, t)
		}
	}
	filters := make([]string, len(merged))
	for i, t := range merged {
		filters[i] = c.prefix + "." + token(t) + ".>"
	}

	consumer, err := c.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:        token(c.opts.GroupID),
		DeliverPolicy:  jetstream.DeliverNewPolicy,
		AckPolicy:      jetstream.AckExplicitPolicy,
		AckWait:        c.opts.AckTimeout,
		FilterSubjects: filters,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s for %v: %w", c.opts.GroupID, filters, err)
	}

	handler := c.handler
	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		c.handle(handler, msg)
	})
	if err != nil {
		return fmt.Errorf("consume %v: %w", filters, err)
	}

	if c.consumer != nil {
		c.consumer.Stop()
	}
	c.consumer = cc
	c.topics = merged
	c.log.Info("subscribed", slog.Any("topics", merged))
	return nil
}

func (c *Client) handle(handler streams.Handler, msg jetstream.Msg) {
	var ev streams.WireEvent
	if err := json.Unmarshal(msg.Data(), &ev); err != nil {
		c.log.Error("failed to decode message", slog.String("subject", msg.Subject()), slog.Any("error", err))
		// redelivery cannot fix a malformed message
		if err := msg.Term(); err != nil {
			c.log.Error("failed to term message", slog.Any("error", err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.AckTimeout)
	defer cancel()

	if err := handler(ctx, &ev); err != nil {
		c.log.Error("event handler failed",
			slog.String("type", ev.Type),
			slog.String("id", ev.ID),
			slog.Any("error", err),
		)
		if err := msg.Nak(); err != nil {
			c.log.Error("failed to nak message", slog.Any("error", err))
		}
		return
	}
	if err := msg.Ack(); err != nil {
		c.log.Error("failed to ack message", slog.Any("error", err))
	}
}

// GetStream reads the stream through an ephemeral consumer that is deleted
// afterwards.
func (c *Client) GetStream(ctx context.Context, tenantID, stream string) ([]*streams.WireEvent, error) {
	if c.isClosed() {
		return nil, streams.ErrClientClosed
	}

	subject := c.prefix + ".*." + token(tenantID) + "." + token(stream)

	info, err := c.stream.Info(ctx, jetstream.WithSubjectFilter(subject))
	if err != nil {
		return nil, fmt.Errorf("stream info for %s: %w", subject, err)
	}
	var total uint64
	for _, n := range info.State.Subjects {
		total += n
	}
	if total == 0 {
		return nil, nil
	}

	name := "get-" + gonanoid.Must()
	consumer, err := c.stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
		Name:              name,
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		FilterSubject:     subject,
		InactiveThreshold: time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer for %s: %w", subject, err)
	}
	defer func() {
		if err := c.stream.DeleteConsumer(context.WithoutCancel(ctx), name); err != nil && !errors.Is(err, jetstream.ErrConsumerNotFound) {
			c.log.Warn("failed to delete consumer", slog.String("consumer", name), slog.Any("error", err))
		}
	}()

	events := make([]*streams.WireEvent, 0, total)
	for uint64(len(events)) < total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := consumer.Fetch(fetchBatchSize, jetstream.FetchMaxWait(c.opts.AckTimeout))
		if err != nil {
			return nil, err
		}

		empty := true
		for msg := range batch.Messages() {
			empty = false
			var ev streams.WireEvent
			if err := json.Unmarshal(msg.Data(), &ev); err != nil {
				return nil, fmt.Errorf("decode message %s: %w", msg.Subject(), err)
			}
			if err := msg.Ack(); err != nil {
				return nil, fmt.Errorf("ack message %s: %w", msg.Subject(), err)
			}
			events = append(events, &ev)
		}
		if batch.Error() != nil {
			return nil, batch.Error()
		}
		if empty {
			break
		}
	}
	return events, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.consumer != nil {
		c.consumer.Stop()
	}
	c.mu.Unlock()

	c.cancel()
	c.js.CleanupPublisher()
	c.closeNc()
	c.log.Debug("closed streams client")
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) subject(topic, tenantID, stream string) string {
	return c.prefix + "." + token(topic) + "." + token(tenantID) + "." + token(stream)
}

// token makes s usable as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
