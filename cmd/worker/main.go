package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/iconflow/internal/config"
	"github.com/dunamismax/iconflow/internal/logging"
	"github.com/dunamismax/iconflow/internal/pipeline"
	"github.com/dunamismax/iconflow/internal/storage"
	"github.com/dunamismax/iconflow/internal/store"
	"github.com/dunamismax/iconflow/internal/telemetry"
	"github.com/dunamismax/iconflow/internal/webhook"
	"github.com/dunamismax/iconflow/internal/worker"
	"github.com/hashicorp/go-hclog"
)

func main() {
	cfg := config.Load()
	logger := logging.New("iconflow", cfg.Log)

	if err := run(cfg, logger); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger hclog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "iconflow-worker", cfg.Telemetry, logger)
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

	if err := pipeline.Startup(); err != nil {
		return err
	}
	defer pipeline.Shutdown()

	storageClient, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return err
	}

	var (
		jobStore   store.JobStore
		usageStore store.UsageStore
	)
	if cfg.Database.DSN != "" {
		pg, err := store.NewPostgresJobStore(ctx, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		jobStore, usageStore = pg, pg
	} else {
		logger.Warn("POSTGRES_DSN not set, job status and usage stay in process")
		mem := store.NewMemoryJobStore()
		jobStore, usageStore = mem, mem
	}

	srv, err := worker.NewServer(
		logger,
		cfg.Queue,
		cfg.Worker,
		pipeline.NewIconDefaults(cfg.Icon),
		storageClient,
		webhook.NewClient(cfg.Webhook),
		jobStore,
		usageStore,
	)
	if err != nil {
		return err
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           srv.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting worker",
		"concurrency", cfg.Worker.Concurrency,
		"max_active_jobs", cfg.Worker.MaxActiveJobs,
		"queue", cfg.Queue.Name,
		"redis", cfg.Queue.RedisAddr,
		"metrics", cfg.Worker.MetricsAddr,
	)

	// asynq's Run traps SIGINT/SIGTERM itself and returns after draining.
	return srv.Run()
}
