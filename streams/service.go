package streams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
)

// Service owns the shared transport client of a process and the dedicated
// clients created on demand.
type Service struct {
	dial   Dialer
	opts   Options
	bo     func() backoff.BackOff
	log    *slog.Logger
	client Client

	mu        sync.Mutex
	dedicated []Client
}

type ServiceOption func(*Service)

// WithConnectBackOff sets the retry policy of every dial.
func WithConnectBackOff(fn func() backoff.BackOff) ServiceOption {
	return func(s *Service) { s.bo = fn }
}

func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// NewService dials the shared client.
func NewService(ctx context.Context, dial Dialer, opts Options, options ...ServiceOption) (*Service, error) {
	s := &Service{
		dial: dial,
		opts: opts.WithDefaults(),
		bo: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		log: slog.Default(),
	}
	for _, o := range options {
		o(s)
	}

	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	s.client = client
	return s, nil
}

func (s *Service) Client() Client { return s.client }

// NewDedicatedClient dials another client with the service options. It is
// closed on Shutdown.
func (s *Service) NewDedicatedClient(ctx context.Context) (Client, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.dedicated = append(s.dedicated, client)
	s.mu.Unlock()
	return client, nil
}

// Shutdown closes all clients concurrently.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	clients := append([]Client{s.client}, s.dedicated...)
	s.dedicated = nil
	s.mu.Unlock()

	errs := make([]error, len(clients))
	var g errgroup.Group
	for i, c := range clients {
		g.Go(func() error {
			errs[i] = c.Close()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		return errors.Join(errs...)
	case <-ctx.Done():
		return fmt.Errorf("shutdown streams clients: %w", ctx.Err())
	}
}

func (s *Service) connect(ctx context.Context) (Client, error) {
	attempt := 0
	client, err := backoff.RetryWithData(func() (Client, error) {
		attempt++
		c, err := s.dial(ctx, s.opts)
		if err != nil {
			s.log.WarnContext(ctx, "streams dial failed",
				slog.String("address", s.opts.ServerAddress),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			return nil, err
		}
		return c, nil
	}, backoff.WithContext(s.bo(), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to streams %q: %w", s.opts.ServerAddress, err)
	}

	s.log.InfoContext(ctx, "connected to streams",
		slog.String("address", s.opts.ServerAddress),
		slog.String("group", s.opts.GroupID),
	)
	return client, nil
}
