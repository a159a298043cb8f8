package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sealbox-protocol/sealbox/internal/api"
	"github.com/sealbox-protocol/sealbox/internal/config"
	"github.com/sealbox-protocol/sealbox/internal/handlers"
	"github.com/sealbox-protocol/sealbox/internal/notify"
	"github.com/sealbox-protocol/sealbox/internal/store"
	"github.com/sealbox-protocol/sealbox/internal/sweeper"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to the external catalog the sweeper checks subjects against
	var catalog store.Catalog
	switch {
	case cfg.DatabaseURL != "":
		pg, err := store.NewPostgresCatalog(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("catalog connection failed")
		}
		defer pg.Close()
		catalog = pg
		logger.Info().Msg("catalog: PostgreSQL")
	case cfg.SQLitePath != "":
		lite, err := store.NewSQLiteCatalog(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("catalog open failed")
		}
		defer lite.Close()
		catalog = lite
		logger.Info().Str("path", cfg.SQLitePath).Msg("catalog: SQLite")
	default:
		logger.Warn().Msg("no catalog configured; obsolete-subject sweep disabled")
	}

	// Optional Redis for rate limiting
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisClient.Close()
		logger.Info().Msg("connected to Redis")
	}

	// In-memory stores: initialized at startup, swept periodically, gone at
	// shutdown. Nothing in them outlives the process.
	sessions := store.NewSessionStore(cfg.SessionTTL, cfg.DHGroupBits)
	messages := store.NewMessageStore()
	bus := notify.NewBus(time.Second, logger)

	sw := sweeper.New(sessions, messages, catalog, cfg.SweepInterval, logger)
	go sw.Run(ctx)

	// Create router
	h := handlers.NewHandler(sessions, messages, bus, catalog, sw)
	router := api.NewRouter(logger, cfg, h, redisClient)

	// Create server
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: /events streams for the connection's lifetime.
		IdleTimeout: 60 * time.Second,
		// Tie request contexts to the signal context so open event streams
		// unwind during shutdown instead of stalling the drain.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Dur("session_ttl", cfg.SessionTTL).
			Msg("starting Sealbox relay")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
