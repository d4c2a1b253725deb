package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"example.com/fittracker/db"
	"example.com/fittracker/internal/api"
	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/catalog"
	"example.com/fittracker/internal/config"
	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/logging"
	"example.com/fittracker/internal/persistence/memory"
	"example.com/fittracker/internal/persistence/postgres"
	httptransport "example.com/fittracker/internal/transport/http"
)

// store is everything the API needs from a storage backend.
type store interface {
	domain.UserRepository
	domain.WorkoutRepository
	domain.GoalRepository
	domain.ExerciseRepository
	domain.StatsRepository
	auth.RefreshTokenStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("production", "api")
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	gateway := catalog.NewGateway(catalog.Config{
		BaseURL:  cfg.CatalogBaseURL,
		Timeout:  cfg.CatalogTimeout,
		CacheTTL: cfg.CatalogCacheTTL,
	}, catalogCache(ctx, cfg, logger)...)

	tokens := auth.NewService(auth.Config{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		Leeway:     cfg.JWTLeeway,
	}, repo)

	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid trusted proxies")
	}

	handler := api.NewHandler(api.Services{
		Accounts:  domain.NewAccountService(repo),
		Tokens:    tokens,
		Composer:  domain.NewComposer(repo, gateway),
		Goals:     domain.NewGoalService(repo),
		Exercises: domain.NewExerciseService(repo),
		Stats:     domain.NewStatsService(repo),
		Catalog:   gateway,
	},
		api.WithLogger(logger),
		api.WithSecureCookies(cfg.IsProduction()),
		api.WithLoginRateLimit(cfg.LoginRatePerMinute, cfg.LoginRateBurst),
		api.WithTrustedProxies(proxies...),
	)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}, httptransport.Chain(mux, api.CORS(cfg.CORSOrigins), api.RequestLogger(logger)))

	if err := httptransport.Serve(ctx, server, cfg.HTTPShutdownTimeout, logger); err != nil {
		logger.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (store, func()) {
	if cfg.StorageDriver == config.StorageMemory {
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
		return memory.NewStore(), func() {}
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		URL:              cfg.PostgresURL,
		MaxConns:         cfg.PostgresMaxConns,
		StatementTimeout: cfg.StatementTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	if cfg.AutoMigrate {
		applied, err := db.Apply(ctx, pool)
		if err != nil {
			pool.Close()
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Strs("applied", applied).Msg("migrations up to date")
	}

	return postgres.NewRepository(pool, postgres.WithEventTopic(cfg.WorkoutEventsTopic)), pool.Close
}

func catalogCache(ctx context.Context, cfg config.Config, logger zerolog.Logger) []catalog.Option {
	if cfg.RedisURL == "" {
		return nil
	}
	cache, err := catalog.NewRedisCache(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid REDIS_URL, catalog cache disabled")
		return nil
	}
	if err := cache.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, catalog responses will be fetched upstream until it recovers")
	}
	return []catalog.Option{catalog.WithCache(cache)}
}
