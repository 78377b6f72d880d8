package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// ErrAlreadyQueued is returned when a job already has a pending task.
var ErrAlreadyQueued = errors.New("job already queued")

type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		queue:     queueName,
	}
}

// EnqueueProcessIcon queues the job under its own id as task id, so a job
// has at most one live task. The archived task of an earlier run that used
// up its retries is removed first; anything still pending, scheduled,
// retrying or active yields ErrAlreadyQueued.
func (c *Client) EnqueueProcessIcon(ctx context.Context, payload ProcessIconPayload) (*asynq.TaskInfo, error) {
	task, err := NewProcessIconTask(payload)
	if err != nil {
		return nil, err
	}

	info, err := c.enqueue(ctx, task, payload.JobID)
	if !errors.Is(err, asynq.ErrTaskIDConflict) {
		return info, err
	}

	cleared, err := c.clearArchived(payload.JobID)
	if err != nil {
		return nil, err
	}
	if !cleared {
		return nil, ErrAlreadyQueued
	}

	info, err = c.enqueue(ctx, task, payload.JobID)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil, ErrAlreadyQueued
	}
	return info, err
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, taskID string) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.TaskID(taskID),
		asynq.MaxRetry(5),
		asynq.Timeout(3*time.Minute),
	)
}

// clearArchived deletes taskID when it only survives as an archived task.
// It reports whether the id is free again.
func (c *Client) clearArchived(taskID string) (bool, error) {
	info, err := c.inspector.GetTaskInfo(c.queue, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect task %s: %w", taskID, err)
	}
	if info.State != asynq.TaskStateArchived {
		return false, nil
	}

	err = c.inspector.DeleteTask(c.queue, taskID)
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return false, fmt.Errorf("delete archived task %s: %w", taskID, err)
	}
	return true, nil
}

func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}
