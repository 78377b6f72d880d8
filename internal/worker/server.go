package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/iconflow/internal/config"
	"github.com/dunamismax/iconflow/internal/domain"
	"github.com/dunamismax/iconflow/internal/icon"
	"github.com/dunamismax/iconflow/internal/pipeline"
	"github.com/dunamismax/iconflow/internal/queue"
	"github.com/dunamismax/iconflow/internal/store"
	"github.com/dunamismax/iconflow/internal/webhook"
	"github.com/hashicorp/go-hclog"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger          hclog.Logger
	server          *asynq.Server
	sem             chan struct{}
	localProcessor  processor
	objectProcessor processor
	webhookClient   webhookSender
	jobStore        store.JobStore
	usageStore      store.UsageStore
	metrics         *metrics
	tracer          trace.Tracer
	retryState      func(ctx context.Context) (retried, maxRetry int, ok bool)
}

type processor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger hclog.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	icons pipeline.IconDefaults,
	objectStore pipeline.ObjectStore,
	webhookClient *webhook.Client,
	jobStore store.JobStore,
	usageStore store.UsageStore,
) (*Server, error) {
	if objectStore == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	logger = logger.Named("worker")

	localProcessor, err := pipeline.NewLocalProcessor(workerCfg.LocalOutputDir, icons)
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline processor: %w", err)
	}

	objectProcessor, err := pipeline.NewObjectStoreProcessor(
		pipeline.ObjectStoreFetcher{Storage: objectStore},
		pipeline.ObjectStoreEmitter{Storage: objectStore, OutputPrefix: "outputs"},
		icons,
	)
	if err != nil {
		return nil, fmt.Errorf("initialize object-store processor: %w", err)
	}

	if usageStore == nil {
		if jobAndUsageStore, ok := jobStore.(store.UsageStore); ok {
			usageStore = jobAndUsageStore
		}
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Error("task failed", "type", task.Type(), "retry", retried, "max_retry", maxRetry, "error", err)
				}),
			},
		),
		sem:             make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		localProcessor:  localProcessor,
		objectProcessor: objectProcessor,
		webhookClient:   webhookClient,
		jobStore:        jobStore,
		usageStore:      usageStore,
		metrics:         newMetrics(),
		tracer:          otel.Tracer("iconflow/worker"),
		retryState:      taskRetryState,
	}
	return s, nil
}

func (s *Server) Run() error {
	return s.server.Run(s.mux())
}

func (s *Server) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeProcessIcon, s.handleProcessIcon)
	return mux
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleProcessIcon(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.JobStatusFailed

	payload, err := queue.ParseProcessIconPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.process_icon", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.source_type", payload.SourceType),
		attribute.Int("job.pipeline_steps", len(payload.Pipeline)),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(payload.SourceType, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(payload.SourceType, outcome).Inc()
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	log := s.logger.With("job_id", payload.JobID)
	log.Info("processing job", "source_type", payload.SourceType, "steps", len(payload.Pipeline), "object_key", payload.ObjectKey)

	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusProcessing)

	request := pipeline.Request{
		JobID:      payload.JobID,
		SourceType: payload.SourceType,
		ObjectKey:  payload.ObjectKey,
		Pipeline:   payload.Pipeline,
	}

	var result pipeline.Result
	switch payload.SourceType {
	case domain.SourceTypeLocalFile:
		result, err = s.localProcessor.Process(ctx, request)
	default:
		result, err = s.objectProcessor.Process(ctx, request)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		if !permanent(err) && s.willRetry(ctx) {
			log.Warn("pipeline failed, retrying", "error", err)
			s.updateJobStatus(ctx, payload.JobID, domain.JobStatusQueued)
			return fmt.Errorf("run pipeline: %w", err)
		}

		s.updateJobStatus(ctx, payload.JobID, domain.JobStatusFailed)
		_ = s.dispatchWebhook(ctx, payload, webhook.EventJobFailed, map[string]any{
			"job_id":       payload.JobID,
			"status":       domain.JobStatusFailed,
			"source_type":  payload.SourceType,
			"object_key":   payload.ObjectKey,
			"requested_at": payload.RequestedAt,
			"failed_at":    time.Now().UTC(),
			"error":        err.Error(),
		})
		if permanent(err) {
			log.Warn("pipeline rejected job", "error", err)
			return fmt.Errorf("run pipeline: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("run pipeline: %w", err)
	}

	log.Info("processed job", "outputs", len(result.Outputs), "elapsed", time.Since(startedAt))
	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusSucceeded)
	s.metrics.pipelineOutputsTotal.Add(float64(len(result.Outputs)))
	for _, out := range result.Outputs {
		if out.Action == domain.ActionIconify {
			s.metrics.iconsSynthesizedTotal.WithLabelValues(out.Format).Inc()
		}
	}
	s.recordUsage(ctx, payload.JobID, result, time.Since(startedAt))

	if err := s.dispatchWebhook(ctx, payload, webhook.EventJobCompleted, map[string]any{
		"job_id":       payload.JobID,
		"status":       domain.JobStatusSucceeded,
		"source_type":  payload.SourceType,
		"object_key":   payload.ObjectKey,
		"requested_at": payload.RequestedAt,
		"completed_at": time.Now().UTC(),
		"outputs":      result.Outputs,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	outcome = domain.JobStatusSucceeded
	span.SetStatus(codes.Ok, "processed")
	return nil
}

// willRetry reports whether asynq runs the task again after a failed
// attempt. Outside a task context every attempt counts as the last.
func (s *Server) willRetry(ctx context.Context) bool {
	if s.retryState == nil {
		return false
	}
	retried, maxRetry, ok := s.retryState(ctx)
	return ok && retried < maxRetry
}

func taskRetryState(ctx context.Context) (retried, maxRetry int, ok bool) {
	retried, ok = asynq.GetRetryCount(ctx)
	if !ok {
		return 0, 0, false
	}
	maxRetry, ok = asynq.GetMaxRetry(ctx)
	return retried, maxRetry, ok
}

// permanent reports pipeline failures that no retry can fix.
func permanent(err error) bool {
	return errors.Is(err, icon.ErrInvalidConfiguration) ||
		errors.Is(err, icon.ErrEmptyImage) ||
		errors.Is(err, pipeline.ErrInvalidStepAction) ||
		errors.Is(err, pipeline.ErrUnsupportedSourceType)
}

func (s *Server) updateJobStatus(ctx context.Context, jobID, status string) {
	if s.jobStore == nil {
		return
	}
	if _, err := s.jobStore.UpdateStatus(ctx, jobID, status); err != nil {
		s.logger.Warn("job status update failed", "job_id", jobID, "status", status, "error", err)
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.ProcessIconPayload, event string, body map[string]any) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.logger.Error("webhook delivery failed", "job_id", payload.JobID, "event", event, "error", err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	return nil
}

func (s *Server) recordUsage(ctx context.Context, jobID string, result pipeline.Result, computeDuration time.Duration) {
	if s.usageStore == nil {
		return
	}

	userID := "anonymous"
	if s.jobStore != nil {
		job, ok, err := s.jobStore.Get(ctx, jobID)
		if err != nil {
			s.logger.Warn("usage lookup failed", "job_id", jobID, "error", err)
		} else if ok && strings.TrimSpace(job.UserID) != "" {
			userID = job.UserID
		}
	}

	var (
		pixelsProcessed  int64
		totalOutputBytes int
		icons            int
	)
	for _, output := range result.Outputs {
		pixelsProcessed += int64(output.Width * output.Height)
		totalOutputBytes += output.Bytes
		if output.Action == domain.ActionIconify {
			icons++
		}
	}

	bytesSaved := max(0, int64(result.SourceBytes-totalOutputBytes))
	computeTimeMS := max(1, computeDuration.Milliseconds())

	usage := domain.UsageLog{
		UserID:           userID,
		JobID:            jobID,
		IconsSynthesized: icons,
		PixelsProcessed:  pixelsProcessed,
		BytesSaved:       bytesSaved,
		ComputeTimeMS:    computeTimeMS,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.usageStore.CreateUsageLog(ctx, usage); err != nil {
		s.logger.Error("usage log write failed", "job_id", jobID, "error", err)
		return
	}

	s.metrics.pixelsProcessedTotal.Add(float64(pixelsProcessed))
	s.metrics.bytesSavedTotal.Add(float64(bytesSaved))
	s.metrics.computeTimeMSTotal.Add(float64(computeTimeMS))
}
