package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/dunamismax/iconflow/internal/domain"
)

func BenchmarkProcessorResize(b *testing.B) {
	benchmarkStep(b, domain.PipelineStep{
		ID:      "resize_640_jpeg",
		Action:  domain.ActionResize,
		Width:   640,
		Format:  "jpeg",
		Quality: 82,
	})
}

func BenchmarkProcessorIconify(b *testing.B) {
	benchmarkStep(b, domain.PipelineStep{
		ID:     "icon_32",
		Action: domain.ActionIconify,
		Icon:   &domain.IconSettings{Size: 32},
	})
}

func BenchmarkProcessorIconifyAutoPalette(b *testing.B) {
	benchmarkStep(b, domain.PipelineStep{
		ID:     "icon_auto",
		Action: domain.ActionIconify,
		Icon: &domain.IconSettings{
			ColorMode: domain.ColorModePalette,
			Palette:   "auto",
		},
	})
}

func benchmarkStep(b *testing.B, step domain.PipelineStep) {
	source := buildTestPNG(b, 1920, 1080)
	processor, err := NewLocalProcessor(b.TempDir(), testIconDefaults())
	if err != nil {
		b.Fatalf("new local processor: %v", err)
	}
	processor.fetcher = staticFetcher{data: source}
	processor.emitter = discardEmitter{}

	req := Request{
		SourceType: SourceTypeLocalFile,
		ObjectKey:  "ignored.png",
		Pipeline:   []domain.PipelineStep{step},
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req.JobID = fmt.Sprintf("bench-%s-%d", step.ID, i)
		if _, err := processor.Process(context.Background(), req); err != nil {
			b.Fatalf("process: %v", err)
		}
	}
}

type staticFetcher struct {
	data []byte
}

func (f staticFetcher) Fetch(_ context.Context, _ Request) ([]byte, error) {
	return f.data, nil
}

type discardEmitter struct{}

func (discardEmitter) Emit(_ context.Context, _ Request, step domain.PipelineStep, data []byte, format string, width, height int) (Output, error) {
	return Output{
		StepID:  step.ID,
		Action:  step.Action,
		Format:  normalizeOutputFormat(format),
		Bytes:   len(data),
		Width:   width,
		Height:  height,
		Success: true,
	}, nil
}
