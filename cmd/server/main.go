package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"repairdesk/backend/internal/config"
	"repairdesk/backend/internal/httpapi"
	"repairdesk/backend/internal/logger"
	"repairdesk/backend/internal/service"
	"repairdesk/backend/internal/store"
	"repairdesk/backend/internal/store/memory"
	pgstore "repairdesk/backend/internal/store/postgres"
	"repairdesk/backend/internal/store/redisblob"
	"repairdesk/backend/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	defaults, err := cfg.Shop.Defaults()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid shop configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	blobs, closers, err := openBlobStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open repository")
	}

	svc := service.New(store.NewRepository(blobs), defaults, log)
	api := httpapi.New(svc, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Logger:        log,
		Limiter:       httpapi.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("repair desk backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

// openBlobStore picks the backend from the configuration. A configured
// backend that cannot be reached is fatal rather than silently replaced by
// the in-memory store.
func openBlobStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.BlobStore, []func() error, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		log.Info().Str("backend", "postgres").Msg("repository ready")
		return pg, []func() error{pg.Close}, nil
	case cfg.RedisAddr != "":
		rdb := redisblob.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "repairdesk:")
		if err := rdb.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis unavailable and REDIS_ADDR is set: %w", err)
		}
		log.Info().Str("backend", "redis").Msg("repository ready")
		return rdb, []func() error{rdb.Close}, nil
	case cfg.SQLitePath != "":
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %q: %w", cfg.SQLitePath, err)
		}
		log.Info().Str("backend", "sqlite").Str("path", cfg.SQLitePath).Msg("repository ready")
		return db, []func() error{db.Close}, nil
	default:
		log.Warn().Str("backend", "memory").Msg("no persistent backend configured, using seeded in-memory store")
		return memory.NewSeeded(), nil, nil
	}
}

func validateConfig(cfg config.Config) error {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", cfg.Port)
	}
	if cfg.AllowedOrigin == "" {
		return fmt.Errorf("ALLOWED_ORIGIN must be set")
	}
	if cfg.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}

	backends := 0
	for _, v := range []string{cfg.DatabaseURL, cfg.RedisAddr, cfg.SQLitePath} {
		if v != "" {
			backends++
		}
	}
	if backends > 1 {
		return fmt.Errorf("only one of DATABASE_URL, REDIS_ADDR and SQLITE_PATH may be set")
	}
	return nil
}
