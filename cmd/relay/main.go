// Command relay publishes workout events from the transactional outbox to
// Kafka and retries dead-lettered events in the background.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/fittracker/internal/config"
	"example.com/fittracker/internal/logging"
	"example.com/fittracker/internal/outbox"
	"example.com/fittracker/internal/persistence/postgres"
	httptransport "example.com/fittracker/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("production", "relay")
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(cfg.AppEnv, "relay")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		URL:              cfg.PostgresURL,
		MaxConns:         cfg.PostgresMaxConns,
		StatementTimeout: cfg.StatementTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing kafka producer")
		}
	}()

	dispatcher := outbox.NewDispatcher(
		pool,
		producer,
		outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL),
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		outbox.WithDispatcherLogger(logger),
		outbox.WithClaimTimeout(cfg.OutboxClaimTimeout),
	)
	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, logger)

	go dispatcher.Start(ctx)

	dlqDone := make(chan struct{})
	go func() {
		defer close(dlqDone)
		manager.Run(ctx, cfg.DLQPollInterval, cfg.DLQBatchSize)
	}()

	logger.Info().
		Dur("poll_interval", cfg.OutboxPollInterval).
		Dur("dlq_interval", cfg.DLQPollInterval).
		Int("dlq_max_retries", cfg.DLQMaxRetries).
		Msg("relay started")

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	metrics := httptransport.NewServer(httptransport.ServerConfig{Address: cfg.MetricsAddress}, mux)

	if err := httptransport.Serve(ctx, metrics, cfg.HTTPShutdownTimeout, logger); err != nil {
		logger.Error().Err(err).Msg("metrics server error")
		stop()
	}

	dispatcher.Wait()
	<-dlqDone
	logger.Info().Msg("relay stopped")
}
