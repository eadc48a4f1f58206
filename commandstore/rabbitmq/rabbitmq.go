// Package rabbitmq publishes the command log to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	ddd "github.com/terraskye/ddd"
	"github.com/terraskye/ddd/commandstore"
)

const DefaultExchange = "commands"

// Channel is the subset of *amqp.Channel used by the store.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var _ Channel = (*amqp.Channel)(nil)
var _ ddd.CommandStore = (*Store)(nil)

// Dial connects to the broker until it answers or b gives up. A nil b
// retries with an exponential backoff for up to a minute.
func Dial(ctx context.Context, url string, b backoff.BackOff, log *slog.Logger) (*amqp.Connection, error) {
	if b == nil {
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = time.Minute
		b = eb
	}
	if log == nil {
		log = slog.Default()
	}

	conn, err := backoff.RetryNotifyWithData(func() (*amqp.Connection, error) {
		return amqp.Dial(url)
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		log.WarnContext(ctx, "rabbitmq not reachable, retrying",
			slog.Any("error", err),
			slog.Duration("wait", wait),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	log.InfoContext(ctx, "connected to RabbitMQ")
	return conn, nil
}

type Store struct {
	ch       Channel
	exchange string
	tenantID string
}

type Option func(*Store)

func WithExchange(name string) Option {
	return func(s *Store) { s.exchange = name }
}

// New declares the durable topic exchange on ch.
func New(ch Channel, tenantID string, opts ...Option) (*Store, error) {
	s := &Store{ch: ch, exchange: DefaultExchange, tenantID: tenantID}
	for _, o := range opts {
		o(s)
	}

	err := ch.ExchangeDeclare(
		s.exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange %q: %w", s.exchange, err)
	}
	return s, nil
}

// Append publishes cmd with its type as routing key.
func (s *Store) Append(ctx context.Context, cmd ddd.Command) error {
	w, err := commandstore.Encode(s.tenantID, cmd)
	if err != nil {
		return err
	}

	err = s.ch.PublishWithContext(ctx, s.exchange, w.Type,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			MessageId:     w.ID,
			CorrelationId: *w.CorrelationID,
			Type:          w.Type,
			Headers: amqp.Table{
				"x-tenant-id":    w.TenantID,
				"x-causation-id": *w.CausationID,
			},
			Body:         w.Payload,
			DeliveryMode: amqp.Persistent,
			Timestamp:    w.RaisedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("publish command %s: %w", w.ID, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.ch.Close()
}
