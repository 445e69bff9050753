package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/audit"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/billing"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/entity"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/events"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/idempotency"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/platform/config"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/platform/httpserver"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/platform/kafka"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/platform/logger"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/platform/metrics"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/platform/postgres"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/platform/redis"
	httptransport "github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/transport/http"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/platform/tx"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Storage: Postgres when a DSN is configured, in-memory otherwise.
	var (
		entityStore  entity.Store
		auditStore   audit.Store
		receiptStore idempotency.Store
		runner       tx.Runner
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		entityStore = entity.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		receiptStore = idempotency.NewPostgresStore(db)
		runner = tx.NewSQLRunner(db)
		log.Info("using postgres stores")
	} else {
		entityStore = entity.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		receiptStore = idempotency.NewInMemoryStore()
		runner = tx.NewMemoryRunner()
		log.Info("using in-memory stores; set FUSIONEMS_POSTGRES_DSN for durability")
	}

	publisher, closePublisher, err := buildPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	recorder := audit.NewRecorder(auditStore)
	entities := entity.NewService(entityStore, recorder, log, entity.WithMetrics(m))
	guard := idempotency.NewGuard(receiptStore, log, idempotency.WithMetrics(m))
	billingService := billing.NewService(entities, guard, runner, publisher, log, billing.WithMetrics(m))

	handler := httptransport.NewHandler(billingService, recorder, log)
	router := httptransport.NewRouter(handler, log)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr, "publisher", string(cfg.Publisher))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildPublisher constructs the configured event publisher and returns a
// close function for its underlying client.
func buildPublisher(ctx context.Context, cfg config.Config, log *slog.Logger) (events.Publisher, func(), error) {
	noop := func() {}
	switch cfg.Publisher {
	case config.PublisherRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		if client == nil {
			return nil, noop, errors.New("redis publisher selected but FUSIONEMS_REDIS_URL is empty")
		}
		log.Info("publishing events to redis", "channel", cfg.Redis.Channel)
		return events.NewRedisPublisher(client, cfg.Redis.Channel), func() { _ = client.Close() }, nil
	case config.PublisherKafka:
		client, err := kafka.NewClient(ctx, cfg.Kafka)
		if err != nil {
			return nil, noop, err
		}
		if client == nil {
			return nil, noop, errors.New("kafka publisher selected but FUSIONEMS_KAFKA_BROKERS is empty")
		}
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic); err != nil {
			client.Close()
			return nil, noop, err
		}
		log.Info("publishing events to kafka", "topic", cfg.Kafka.Topic)
		return events.NewKafkaPublisher(client, cfg.Kafka.Topic), func() { client.Close() }, nil
	case config.PublisherNoop, "":
		log.Info("event publishing disabled")
		return events.NoopPublisher{}, noop, nil
	default:
		return nil, noop, errors.New("unknown event publisher backend: " + string(cfg.Publisher))
	}
}
