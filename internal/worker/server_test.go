package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dunamismax/iconflow/internal/domain"
	"github.com/dunamismax/iconflow/internal/icon"
	"github.com/dunamismax/iconflow/internal/pipeline"
	"github.com/dunamismax/iconflow/internal/queue"
	"github.com/dunamismax/iconflow/internal/store"
	"github.com/dunamismax/iconflow/internal/webhook"
	"github.com/hashicorp/go-hclog"
	"github.com/hibiken/asynq"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel"
)

func TestRecordUsageWritesUsageLog(t *testing.T) {
	jobStore := store.NewMemoryJobStore()
	if err := jobStore.Create(context.Background(), domain.Job{
		ID:         "job-1",
		UserID:     "user-1",
		Status:     domain.JobStatusProcessing,
		SourceType: domain.SourceTypeLocalFile,
		ObjectKey:  "input.png",
		Pipeline:   []domain.PipelineStep{{ID: "favicon", Action: domain.ActionIconify}},
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	usageStore := &captureUsageStore{}
	s := &Server{
		logger:     hclog.NewNullLogger(),
		jobStore:   jobStore,
		usageStore: usageStore,
		metrics:    newMetrics(),
	}

	s.recordUsage(context.Background(), "job-1", pipeline.Result{
		SourceBytes: 1_000,
		Outputs: []pipeline.Output{
			{Action: domain.ActionIconify, Width: 10, Height: 10, Bytes: 300},
			{Action: domain.ActionResize, Width: 20, Height: 20, Bytes: 400},
		},
	}, 250*time.Millisecond)

	if !usageStore.called {
		t.Fatal("expected usage log to be written")
	}
	if usageStore.log.UserID != "user-1" {
		t.Fatalf("expected user_id=user-1, got %s", usageStore.log.UserID)
	}
	if usageStore.log.IconsSynthesized != 1 {
		t.Fatalf("expected icons_synthesized=1, got %d", usageStore.log.IconsSynthesized)
	}
	if usageStore.log.PixelsProcessed != 500 {
		t.Fatalf("expected pixels_processed=500, got %d", usageStore.log.PixelsProcessed)
	}
	if usageStore.log.BytesSaved != 300 {
		t.Fatalf("expected bytes_saved=300, got %d", usageStore.log.BytesSaved)
	}
	if usageStore.log.ComputeTimeMS != 250 {
		t.Fatalf("expected compute_time_ms=250, got %d", usageStore.log.ComputeTimeMS)
	}
}

func TestRecordUsageClampsNegativeBytesSaved(t *testing.T) {
	usageStore := &captureUsageStore{}
	s := &Server{
		logger:     hclog.NewNullLogger(),
		usageStore: usageStore,
		metrics:    newMetrics(),
	}

	s.recordUsage(context.Background(), "job-2", pipeline.Result{
		SourceBytes: 100,
		Outputs: []pipeline.Output{
			{Width: 5, Height: 5, Bytes: 200},
		},
	}, 0)

	if usageStore.log.UserID != "anonymous" {
		t.Fatalf("expected anonymous user, got %s", usageStore.log.UserID)
	}
	if usageStore.log.BytesSaved != 0 {
		t.Fatalf("expected bytes_saved=0, got %d", usageStore.log.BytesSaved)
	}
	if usageStore.log.ComputeTimeMS < 1 {
		t.Fatalf("expected compute_time_ms to be at least 1, got %d", usageStore.log.ComputeTimeMS)
	}
}

func TestHandleProcessIconSuccess(t *testing.T) {
	s, jobs, hooks := newTestServer(t, fakeProcessor{result: pipeline.Result{
		SourceBytes: 4096,
		Outputs: []pipeline.Output{
			{StepID: "favicon", Action: domain.ActionIconify, Format: "png", Width: 32, Height: 32, Bytes: 512},
			{StepID: "preview", Action: domain.ActionResize, Format: "jpeg", Width: 128, Height: 128, Bytes: 2048},
		},
	}})

	if err := s.handleProcessIcon(context.Background(), testTask(t)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	job, _, _ := jobs.Get(context.Background(), "job-1")
	if job.Status != domain.JobStatusSucceeded {
		t.Fatalf("expected succeeded, got %s", job.Status)
	}
	var m dto.Metric
	if err := s.metrics.iconsSynthesizedTotal.WithLabelValues("png").Write(&m); err != nil {
		t.Fatalf("read icon counter: %v", err)
	}
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected 1 synthesized icon, got %v", got)
	}
	if logs := jobs.UsageLogs(); len(logs) != 1 || logs[0].UserID != "user-1" {
		t.Fatalf("unexpected usage logs: %+v", logs)
	}
	if len(hooks.events) != 1 || hooks.events[0] != webhook.EventJobCompleted {
		t.Fatalf("expected job.completed webhook, got %v", hooks.events)
	}
}

func TestHandleProcessIconFailures(t *testing.T) {
	cases := map[string]struct {
		err       error
		skipRetry bool
	}{
		"invalid configuration": {fmt.Errorf("transform stage: %w", icon.ErrInvalidConfiguration), true},
		"unknown action":        {fmt.Errorf("transform stage: %w", pipeline.ErrInvalidStepAction), true},
		"transient":             {errors.New("connection reset"), false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s, jobs, hooks := newTestServer(t, fakeProcessor{err: tc.err})

			err := s.handleProcessIcon(context.Background(), testTask(t))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, asynq.SkipRetry); got != tc.skipRetry {
				t.Fatalf("SkipRetry=%v, want %v (err=%v)", got, tc.skipRetry, err)
			}

			job, _, _ := jobs.Get(context.Background(), "job-1")
			if job.Status != domain.JobStatusFailed {
				t.Fatalf("expected failed, got %s", job.Status)
			}
			if len(hooks.events) != 1 || hooks.events[0] != webhook.EventJobFailed {
				t.Fatalf("expected job.failed webhook, got %v", hooks.events)
			}
		})
	}
}

func TestHandleProcessIconReportsFailureOnLastAttemptOnly(t *testing.T) {
	cases := map[string]struct {
		err        error
		retried    int
		wantStatus string
		wantHooks  int
	}{
		"transient with retries left": {errors.New("connection reset"), 2, domain.JobStatusQueued, 0},
		"transient on last retry":     {errors.New("connection reset"), 5, domain.JobStatusFailed, 1},
		"permanent with retries left": {fmt.Errorf("transform stage: %w", icon.ErrEmptyImage), 0, domain.JobStatusFailed, 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s, jobs, hooks := newTestServer(t, fakeProcessor{err: tc.err})
			s.retryState = func(context.Context) (int, int, bool) { return tc.retried, 5, true }

			if err := s.handleProcessIcon(context.Background(), testTask(t)); err == nil {
				t.Fatal("expected error")
			}

			job, _, _ := jobs.Get(context.Background(), "job-1")
			if job.Status != tc.wantStatus {
				t.Fatalf("expected status %s, got %s", tc.wantStatus, job.Status)
			}
			if len(hooks.events) != tc.wantHooks {
				t.Fatalf("expected %d webhooks, got %v", tc.wantHooks, hooks.events)
			}
		})
	}
}

func TestHandleProcessIconRejectsMalformedPayload(t *testing.T) {
	s, _, _ := newTestServer(t, fakeProcessor{})
	err := s.handleProcessIcon(context.Background(), asynq.NewTask(queue.TypeProcessIcon, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func newTestServer(t *testing.T, p fakeProcessor) (*Server, *store.MemoryJobStore, *captureWebhook) {
	t.Helper()
	jobs := store.NewMemoryJobStore()
	if err := jobs.Create(context.Background(), domain.Job{
		ID:         "job-1",
		UserID:     "user-1",
		Status:     domain.JobStatusQueued,
		SourceType: domain.SourceTypeS3Presigned,
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	hooks := &captureWebhook{}
	return &Server{
		logger:          hclog.NewNullLogger(),
		sem:             make(chan struct{}, 1),
		localProcessor:  p,
		objectProcessor: p,
		webhookClient:   hooks,
		jobStore:        jobs,
		usageStore:      jobs,
		metrics:         newMetrics(),
		tracer:          otel.Tracer("worker-test"),
		retryState:      taskRetryState,
	}, jobs, hooks
}

func testTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := queue.NewProcessIconTask(queue.ProcessIconPayload{
		JobID:      "job-1",
		SourceType: domain.SourceTypeS3Presigned,
		WebhookURL: "https://hooks.example.test/icons",
		ObjectKey:  "uploads/job-1/source",
		Pipeline:   []domain.PipelineStep{{ID: "favicon", Action: domain.ActionIconify}},
	})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return task
}

type fakeProcessor struct {
	result pipeline.Result
	err    error
}

func (p fakeProcessor) Process(_ context.Context, _ pipeline.Request) (pipeline.Result, error) {
	return p.result, p.err
}

type captureWebhook struct {
	events []string
}

func (c *captureWebhook) Send(_ context.Context, _, event string, _ any) error {
	c.events = append(c.events, event)
	return nil
}

type captureUsageStore struct {
	called bool
	log    domain.UsageLog
}

func (s *captureUsageStore) CreateUsageLog(_ context.Context, usage domain.UsageLog) error {
	s.called = true
	s.log = usage
	return nil
}
