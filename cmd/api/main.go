package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/iconflow/internal/api"
	"github.com/dunamismax/iconflow/internal/config"
	"github.com/dunamismax/iconflow/internal/logging"
	"github.com/dunamismax/iconflow/internal/queue"
	"github.com/dunamismax/iconflow/internal/ratelimit"
	"github.com/dunamismax/iconflow/internal/storage"
	"github.com/dunamismax/iconflow/internal/store"
	"github.com/dunamismax/iconflow/internal/telemetry"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := logging.New("iconflow", cfg.Log)

	if err := run(cfg, logger); err != nil {
		logger.Error("api failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger hclog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "iconflow-api", cfg.Telemetry, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close error", "error", err)
		}
	}()

	jobStore, closeStore, err := openJobStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	storageClient, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return err
	}
	if err := storageClient.EnsureBucket(ctx); err != nil {
		logger.Warn("object storage unavailable, s3_presigned jobs will fail", "error", err)
	}

	var limiter api.RateLimiter
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	defer redisClient.Close()
	bucket, err := ratelimit.FromConfig(redisClient, cfg.RateLimit)
	if err != nil {
		return err
	}
	if bucket != nil {
		limiter = bucket
	}

	app := api.NewServer(logger, queueClient, jobStore, storageClient, limiter, cfg.API)

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     logger.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true}),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

// openJobStore uses Postgres when a DSN is configured and falls back to an
// in-process store otherwise.
func openJobStore(ctx context.Context, db config.DatabaseConfig, logger hclog.Logger) (store.JobStore, func(), error) {
	if db.DSN == "" {
		logger.Warn("POSTGRES_DSN not set, using in-memory job store")
		return store.NewMemoryJobStore(), func() {}, nil
	}
	pg, err := store.NewPostgresJobStore(ctx, db.DSN)
	if err != nil {
		return nil, nil, err
	}
	return pg, func() {
		if err := pg.Close(); err != nil {
			logger.Warn("postgres close error", "error", err)
		}
	}, nil
}
