// Command consumer reads workout events from Kafka and appends them to the
// workout_event_log audit table.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/fittracker/internal/config"
	"example.com/fittracker/internal/consumer"
	"example.com/fittracker/internal/logging"
	"example.com/fittracker/internal/persistence/postgres"
	httptransport "example.com/fittracker/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("production", "consumer")
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(cfg.AppEnv, "consumer")

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

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		Topic:           cfg.WorkoutEventsTopic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})
	defer reader.Close()

	proc := consumer.NewProcessor(reader, consumer.NewPersistenceHandler(pool), consumer.WithLogger(logger))

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info().Str("topic", cfg.WorkoutEventsTopic).Str("group", cfg.ConsumerGroupID).Msg("consumer started")
		if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped with error")
			stop()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	metrics := httptransport.NewServer(httptransport.ServerConfig{Address: cfg.MetricsAddress}, mux)
	if err := httptransport.Serve(ctx, metrics, cfg.HTTPShutdownTimeout, logger); err != nil {
		logger.Error().Err(err).Msg("metrics server error")
		stop()
	}

	<-done
	logger.Info().Msg("consumer stopped")
}
