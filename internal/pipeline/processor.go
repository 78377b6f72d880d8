package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dunamismax/iconflow/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const SourceTypeLocalFile = domain.SourceTypeLocalFile

var (
	ErrUnsupportedSourceType = errors.New("unsupported source_type")
	ErrInvalidStepAction     = errors.New("invalid pipeline action")
)

type Request struct {
	JobID      string
	SourceType string
	ObjectKey  string
	Pipeline   []domain.PipelineStep
}

type Output struct {
	StepID  string `json:"step_id"`
	Action  string `json:"action"`
	Format  string `json:"format"`
	Path    string `json:"path"`
	Bytes   int    `json:"bytes"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Success bool   `json:"success"`
}

type Result struct {
	SourceBytes int
	Outputs     []Output
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, step domain.PipelineStep, data []byte, format string, width, height int) (Output, error)
}

type Processor struct {
	fetcher     Fetcher
	transformer Transformer
	emitter     Emitter
	tracer      trace.Tracer
}

func NewProcessor(fetcher Fetcher, transformer Transformer, emitter Emitter) *Processor {
	return &Processor{
		fetcher:     fetcher,
		transformer: transformer,
		emitter:     emitter,
		tracer:      otel.Tracer("iconflow/pipeline"),
	}
}

func NewLocalProcessor(outputDir string, icons IconDefaults) (*Processor, error) {
	transformer, err := newTransformer(icons)
	if err != nil {
		return nil, fmt.Errorf("build transformer: %w", err)
	}

	return NewProcessor(LocalFileFetcher{}, transformer, LocalFileEmitter{OutputDir: outputDir}), nil
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return Result{}, errors.New("job_id is required")
	}
	if len(req.Pipeline) == 0 {
		return Result{}, errors.New("pipeline must contain at least one step")
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	out := Result{
		SourceBytes: len(sourceBytes),
		Outputs:     make([]Output, 0, len(req.Pipeline)),
	}
	for _, step := range req.Pipeline {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		written, err := p.runStep(ctx, req, step, sourceBytes)
		if err != nil {
			return Result{}, err
		}
		out.Outputs = append(out.Outputs, written)
	}

	return out, nil
}

func (p *Processor) runStep(ctx context.Context, req Request, step domain.PipelineStep, sourceBytes []byte) (Output, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.step")
	span.SetAttributes(
		attribute.String("job.id", req.JobID),
		attribute.String("step.id", step.ID),
		attribute.String("step.action", step.Action),
	)
	defer span.End()

	transformed, format, width, height, err := p.transformer.Transform(ctx, sourceBytes, step)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transform failed")
		return Output{}, fmt.Errorf("transform stage step=%s action=%s: %w", step.ID, step.Action, err)
	}

	written, err := p.emitter.Emit(ctx, req, step, transformed, format, width, height)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "emit failed")
		return Output{}, fmt.Errorf("emit stage step=%s action=%s: %w", step.ID, step.Action, err)
	}
	span.SetAttributes(
		attribute.Int("output.width", width),
		attribute.Int("output.height", height),
		attribute.Int("output.bytes", written.Bytes),
	)
	return written, nil
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(req.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", req.ObjectKey, err)
	}
	return data, nil
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, req Request, step domain.PipelineStep, data []byte, format string, width, height int) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}
	if strings.TrimSpace(step.ID) == "" {
		return Output{}, errors.New("pipeline step id is required")
	}

	jobDir := filepath.Join(e.OutputDir, sanitizePathToken(req.JobID))
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}

	filename := fmt.Sprintf("%s.%s", sanitizePathToken(step.ID), normalizeOutputFormat(format))
	fullPath := filepath.Join(jobDir, filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	return Output{
		StepID:  step.ID,
		Action:  step.Action,
		Format:  normalizeOutputFormat(format),
		Path:    fullPath,
		Bytes:   len(data),
		Width:   width,
		Height:  height,
		Success: true,
	}, nil
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
