package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	ddd "github.com/terraskye/ddd"
	"github.com/terraskye/ddd/commandstore"
	"github.com/terraskye/ddd/commandstore/postgres"
	"github.com/terraskye/ddd/commandstore/rabbitmq"
	"github.com/terraskye/ddd/config"
	"github.com/terraskye/ddd/contingent"
	eventbus "github.com/terraskye/ddd/eventbus/memory"
	"github.com/terraskye/ddd/eventstore/streaming"
	"github.com/terraskye/ddd/internal/api"
	"github.com/terraskye/ddd/logging"
	dddprom "github.com/terraskye/ddd/metrics/prometheus"
	dddotel "github.com/terraskye/ddd/otel"
	"github.com/terraskye/ddd/streams"
	kurrentstreams "github.com/terraskye/ddd/streams/kurrentdb"
	memorystreams "github.com/terraskye/ddd/streams/memory"
	natsstreams "github.com/terraskye/ddd/streams/nats"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	log := logrus.NewEntry(logger).WithField("service", "contingent-api")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel(cfg.LogLevel)}))
	slog.SetDefault(slogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, slogger); err != nil {
		log.WithError(err).Fatal("Service stopped")
	}
	log.Info("Service exited gracefully")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Entry, slogger *slog.Logger) error {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	telemetry := dddotel.WithTracerProvider(tp)
	metrics := dddprom.NewMetrics(prometheus.DefaultRegisterer)

	service, err := streams.NewService(ctx, dialer(cfg, slogger), cfg.StreamsOptions(), streams.WithLogger(slogger))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := service.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Failed to close streams clients")
		}
	}()

	localBus := dddotel.WithEventBusTelemetry(eventbus.NewEventBus(256, eventbus.WithLogger(slogger)), telemetry)
	defer localBus.Close()
	go func() {
		for err := range localBus.Errors() {
			slogger.Error("event handler failed", slog.Any("error", err))
		}
	}()

	activity := contingent.NewActivityLog(slogger).Handler()
	if err := localBus.Subscribe(ctx, "contingent-activity", logging.WithLoggingMiddleware(slogger, activity)); err != nil {
		return err
	}

	events, err := streaming.New(streaming.Config{
		Client:       service.Client(),
		TenantID:     cfg.TenantID,
		Topic:        cfg.EventTopic,
		Constructors: contingent.RegisterEvents(ddd.NewEventConstructorMap()),
		Bus:          localBus,
		Logger:       slogger,
	})
	if err != nil {
		return err
	}
	if err := events.Initialize(ctx); err != nil {
		return err
	}
	store := metrics.WrapEventStore(dddotel.NewTelemetryStore(events, telemetry))

	commands, closeCommands, err := commandStore(ctx, cfg, service, slogger)
	if err != nil {
		return err
	}
	defer closeCommands()

	registry := ddd.NewEventRegistry()
	tm := ddd.NewEventSourcedTransactionManager(registry, store)
	bus := ddd.NewCommandBus(256, 8, ddd.WithCommandStore(commands))
	defer bus.Stop()

	repo := contingent.NewRepository(store)
	contingent.RegisterHandlers(bus, tm, registry, repo,
		func(next ddd.CommandHandler[ddd.Command]) ddd.CommandHandler[ddd.Command] {
			return logging.WithCommandLogging(log, next)
		},
		func(next ddd.CommandHandler[ddd.Command]) ddd.CommandHandler[ddd.Command] {
			return dddotel.WithCommandTelemetry(next, telemetry)
		},
		func(next ddd.CommandHandler[ddd.Command]) ddd.CommandHandler[ddd.Command] {
			return dddprom.WithCommandMetrics(metrics, next)
		},
	)

	srv := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: api.NewRouter(api.NewContingentHandler(bus, store, repo), prometheus.DefaultGatherer, log),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Listening on port %s", cfg.APIPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func dialer(cfg *config.Config, slogger *slog.Logger) streams.Dialer {
	switch cfg.StreamsTransport {
	case config.TransportKurrentDB:
		return kurrentstreams.Dialer(kurrentstreams.WithLogger(slogger))
	case config.TransportMemory:
		return memorystreams.NewBroker(memorystreams.WithLogger(slogger)).Dialer()
	default:
		return natsstreams.Dialer(natsstreams.Config{
			Connect: natsstreams.ReuseConnection(natsstreams.ConnectURL(cfg.StreamsConnection)),
			Log:     slogger,
		})
	}
}

// commandStore picks the command log backend: PostgreSQL, then RabbitMQ,
// then a dedicated streams client.
func commandStore(ctx context.Context, cfg *config.Config, service *streams.Service, slogger *slog.Logger) (ddd.CommandStore, func(), error) {
	switch {
	case cfg.CommandDatabaseURL != "":
		db, err := postgres.Connect(ctx, cfg.CommandDatabaseURL, nil, slogger)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.New(db, cfg.TenantID)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil

	case cfg.CommandAMQPURL != "":
		conn, err := rabbitmq.Dial(ctx, cfg.CommandAMQPURL, nil, slogger)
		if err != nil {
			return nil, nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("open rabbitmq channel: %w", err)
		}
		store, err := rabbitmq.New(ch, cfg.TenantID, rabbitmq.WithExchange(cfg.CommandTopic))
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return store, func() {
			store.Close()
			conn.Close()
		}, nil

	default:
		client, err := service.NewDedicatedClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		// closed by service.Shutdown
		return commandstore.New(client, cfg.TenantID, cfg.CommandTopic), func() {}, nil
	}
}

func slogLevel(level logrus.Level) slog.Level {
	switch {
	case level >= logrus.DebugLevel:
		return slog.LevelDebug
	case level == logrus.InfoLevel:
		return slog.LevelInfo
	case level == logrus.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
