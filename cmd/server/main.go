package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openmargin/margin/internal/api"
	"github.com/openmargin/margin/internal/config"
	"github.com/openmargin/margin/internal/llm"
	"github.com/openmargin/margin/internal/repository/postgres"
	"github.com/openmargin/margin/internal/repository/redis"
	"github.com/openmargin/margin/internal/repository/sqlite"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.Logging)

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Msg("Starting Margin chat API server")

	// Initialize storage for the configured driver
	deps, cleanup, err := buildStorage(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer cleanup()

	// Initialize Redis (optional)
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		deps.Redis = redisClient
	} else {
		log.Info().Msg("Redis disabled; rate limiting and model cache are off")
	}

	// Build the model router and probe each provider backend. A failed
	// probe is logged but not fatal; the provider stays registered and
	// may recover.
	llmRouter := api.NewLLMRouter(cfg.LLM)
	probeProviders(llmRouter, cfg.LLM)

	router := api.NewRouter(cfg, llmRouter, deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func setupLogger(cfg config.LoggingConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// buildStorage connects to the configured database, runs migrations
// and returns the repository set plus a close function.
func buildStorage(ctx context.Context, cfg *config.Config) (api.Dependencies, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return api.Dependencies{}, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := postgres.RunMigrations(cfg.Database.DSN(), "file://migrations/postgres"); err != nil {
			db.Close()
			return api.Dependencies{}, nil, err
		}
		return api.Dependencies{
			DB:        db,
			Sessions:  postgres.NewSessionRepository(db.Pool),
			Messages:  postgres.NewMessageRepository(db.Pool),
			Contexts:  postgres.NewContextRepository(db.Pool),
			Documents: postgres.NewDocumentRepository(db.Pool),
			Users:     postgres.NewUserRepository(db.Pool),
		}, db.Close, nil

	case "sqlite":
		db, err := sqlite.NewDB(ctx, cfg.Database)
		if err != nil {
			return api.Dependencies{}, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if err := sqlite.RunMigrations(cfg.Database.Path, "file://migrations/sqlite"); err != nil {
			db.Close()
			return api.Dependencies{}, nil, err
		}
		return api.Dependencies{
			DB:        db,
			Sessions:  sqlite.NewSessionRepository(db.SQL),
			Messages:  sqlite.NewMessageRepository(db.SQL),
			Contexts:  sqlite.NewContextRepository(db.SQL),
			Documents: sqlite.NewDocumentRepository(db.SQL),
			Users:     sqlite.NewUserRepository(db.SQL),
		}, db.Close, nil

	default:
		return api.Dependencies{}, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// probeProviders runs each registered provider's connectivity check.
// Failures are logged and left alone; an unreachable backend should
// not keep the rest of the service down.
func probeProviders(router *llm.Router, cfg config.LLMConfig) {
	for key := range cfg.Providers {
		p, ok := router.Provider(key)
		if !ok {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := p.Initialize(ctx); err != nil {
			log.Warn().Err(err).Str("provider", key).Msg("Provider probe failed")
		} else {
			log.Info().Str("provider", key).Msg("Provider ready")
		}
		cancel()
	}
}
