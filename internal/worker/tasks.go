package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskRetentionCleanup deletes data older than the retention window.
const TaskRetentionCleanup = "retention:cleanup"

// CleanupPayload is the body of a TaskRetentionCleanup task. A nil
// DaysToKeep selects the worker's configured retention; an explicit zero
// keeps nothing older than the run itself.
type CleanupPayload struct {
	DaysToKeep *int `json:"days_to_keep,omitempty"`
	DryRun     bool `json:"dry_run,omitempty"`
}

// Days returns a payload window of n days.
func Days(n int) *int {
	return &n
}

// NewCleanupTask builds a retention cleanup task. Periodic registrations
// reuse the task, so a task id is only assigned at enqueue time.
func NewCleanupTask(payload CleanupPayload, opts ...asynq.Option) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal cleanup payload: %w", err)
	}
	base := []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Timeout(10 * time.Minute),
		asynq.Retention(24 * time.Hour),
	}
	return asynq.NewTask(TaskRetentionCleanup, body, append(base, opts...)...), nil
}

// Client enqueues maintenance tasks.
type Client struct {
	client *asynq.Client
}

// NewClient connects to the Redis instance named by redisURL.
func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Client{client: asynq.NewClient(opt)}, nil
}

// EnqueueCleanup schedules a one-off retention cleanup and returns its task id.
func (c *Client) EnqueueCleanup(ctx context.Context, payload CleanupPayload) (string, error) {
	task, err := NewCleanupTask(payload, asynq.TaskID(uuid.NewString()))
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue cleanup: %w", err)
	}
	return info.ID, nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
