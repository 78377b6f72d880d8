package queue

import (
	"testing"
	"time"

	"github.com/dunamismax/iconflow/internal/domain"
)

func TestProcessIconTaskRoundTrip(t *testing.T) {
	cutoff := 35.0
	payload := ProcessIconPayload{
		JobID:      "job-123",
		SourceType: domain.SourceTypeS3Presigned,
		ObjectKey:  "uploads/job-123/source",
		Pipeline: []domain.PipelineStep{
			{
				ID:     "favicon",
				Action: domain.ActionIconify,
				Icon: &domain.IconSettings{
					Size:             16,
					CutoffPercentile: &cutoff,
					ColorMode:        domain.ColorModePalette,
					Palette:          "ocean",
				},
			},
		},
		RequestedAt: time.Now().UTC(),
	}

	task, err := NewProcessIconTask(payload)
	if err != nil {
		t.Fatalf("NewProcessIconTask returned error: %v", err)
	}
	if task.Type() != TypeProcessIcon {
		t.Fatalf("expected task type %q, got %q", TypeProcessIcon, task.Type())
	}

	parsed, err := ParseProcessIconPayload(task)
	if err != nil {
		t.Fatalf("ParseProcessIconPayload returned error: %v", err)
	}

	if parsed.JobID != payload.JobID {
		t.Fatalf("expected job_id %q, got %q", payload.JobID, parsed.JobID)
	}
	if len(parsed.Pipeline) != 1 || parsed.Pipeline[0].Icon == nil {
		t.Fatalf("expected one iconify step with settings, got %+v", parsed.Pipeline)
	}
	icon := parsed.Pipeline[0].Icon
	if icon.CutoffPercentile == nil || *icon.CutoffPercentile != cutoff {
		t.Fatalf("cutoff percentile lost in transit: %+v", icon)
	}
	if icon.BinarizePercentile != nil {
		t.Fatalf("unset binarize percentile should stay nil, got %v", *icon.BinarizePercentile)
	}
}

func TestNewProcessIconTaskRequiresJobID(t *testing.T) {
	if _, err := NewProcessIconTask(ProcessIconPayload{}); err == nil {
		t.Fatal("expected error for empty job_id")
	}
}
