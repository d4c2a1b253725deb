// Command migrate applies the embedded schema migrations and exits.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/fittracker/db"
	"example.com/fittracker/internal/config"
	"example.com/fittracker/internal/logging"
	"example.com/fittracker/internal/persistence/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("production", "migrate")
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(cfg.AppEnv, "migrate")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{URL: cfg.PostgresURL})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	applied, err := db.Apply(ctx, pool)
	pool.Close()
	if err != nil {
		logger.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}
	if len(applied) == 0 {
		logger.Info().Msg("schema already up to date")
		return
	}
	logger.Info().Strs("applied", applied).Msg("migrations applied")
}
