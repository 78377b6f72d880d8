package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/dunamismax/iconflow/internal/domain"
)

const (
	SourceTypeS3Presigned = domain.SourceTypeS3Presigned
)

// ObjectStore is the slice of storage.Client the object-store stages use.
type ObjectStore interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
}

func NewObjectStoreProcessor(fetcher ObjectStoreFetcher, emitter ObjectStoreEmitter, icons IconDefaults) (*Processor, error) {
	transformer, err := newTransformer(icons)
	if err != nil {
		return nil, fmt.Errorf("build transformer: %w", err)
	}
	return NewProcessor(fetcher, transformer, emitter), nil
}

type ObjectStoreFetcher struct {
	Storage ObjectStore
}

func (f ObjectStoreFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if f.Storage == nil {
		return nil, errors.New("storage client is required")
	}
	if strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}
	return f.Storage.ReadObject(ctx, req.ObjectKey)
}

type ObjectStoreEmitter struct {
	Storage      ObjectStore
	OutputPrefix string
}

func (e ObjectStoreEmitter) Emit(ctx context.Context, req Request, step domain.PipelineStep, data []byte, format string, width, height int) (Output, error) {
	if e.Storage == nil {
		return Output{}, errors.New("storage client is required")
	}
	if strings.TrimSpace(step.ID) == "" {
		return Output{}, errors.New("pipeline step id is required")
	}

	objectKey := OutputObjectKey(e.OutputPrefix, req.JobID, step.ID, format)

	if err := e.Storage.WriteObject(ctx, objectKey, data, contentTypeForFormat(format)); err != nil {
		return Output{}, err
	}

	return Output{
		StepID:  step.ID,
		Action:  step.Action,
		Format:  normalizeOutputFormat(format),
		Path:    objectKey,
		Bytes:   len(data),
		Width:   width,
		Height:  height,
		Success: true,
	}, nil
}

// OutputObjectKey is where ObjectStoreEmitter writes a step's output.
func OutputObjectKey(prefix, jobID, stepID, format string) string {
	return path.Join(
		defaultOutputPrefix(prefix),
		sanitizePathToken(jobID),
		fmt.Sprintf("%s.%s", sanitizePathToken(stepID), normalizeOutputFormat(strings.ToLower(strings.TrimSpace(format)))),
	)
}

func defaultOutputPrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "outputs"
	}
	return prefix
}

func contentTypeForFormat(format string) string {
	switch normalizeOutputFormat(strings.ToLower(strings.TrimSpace(format))) {
	case "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
