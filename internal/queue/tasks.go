package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dunamismax/iconflow/internal/domain"
	"github.com/hibiken/asynq"
)

const TypeProcessIcon = "icon:process"

type ProcessIconPayload struct {
	JobID       string                `json:"job_id"`
	SourceType  string                `json:"source_type"`
	WebhookURL  string                `json:"webhook_url,omitempty"`
	ObjectKey   string                `json:"object_key"`
	Pipeline    []domain.PipelineStep `json:"pipeline"`
	RequestedAt time.Time             `json:"requested_at"`
}

func NewProcessIconTask(payload ProcessIconPayload) (*asynq.Task, error) {
	if payload.JobID == "" {
		return nil, fmt.Errorf("process payload: job_id is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal process payload: %w", err)
	}
	return asynq.NewTask(TypeProcessIcon, body), nil
}

func ParseProcessIconPayload(task *asynq.Task) (ProcessIconPayload, error) {
	var payload ProcessIconPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ProcessIconPayload{}, fmt.Errorf("unmarshal process payload: %w", err)
	}
	return payload, nil
}
