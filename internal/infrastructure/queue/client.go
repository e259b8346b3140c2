package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"

	"github.com/F3nrir-00/gaming-library-tracker/internal/shared"
)

// Enqueuer is the producer side the API depends on.
type Enqueuer interface {
	EnqueueLibrarySync(ctx context.Context, payload shared.LibrarySyncPayload) (string, error)
}

type Options struct {
	Queue    string
	MaxRetry int
	Timeout  time.Duration
	// Unique collapses repeated requests for the same account while a task
	// is still pending.
	Unique time.Duration
}

type asynqEnqueuer struct {
	client *asynq.Client
	opts   Options
}

func NewEnqueuer(client *asynq.Client, opts Options) Enqueuer {
	if opts.Queue == "" {
		opts.Queue = shared.QueueSync
	}
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	return &asynqEnqueuer{client: client, opts: opts}
}

// NewLibrarySyncTask builds the task the worker consumes.
func NewLibrarySyncTask(payload shared.LibrarySyncPayload, opts Options) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sync payload: %w", err)
	}

	queueName := opts.Queue
	if queueName == "" {
		queueName = shared.QueueSync
	}
	taskOpts := []asynq.Option{
		asynq.Queue(queueName),
		asynq.MaxRetry(opts.MaxRetry),
		asynq.Timeout(opts.Timeout),
	}
	if opts.Unique > 0 {
		taskOpts = append(taskOpts, asynq.Unique(opts.Unique))
	}
	return asynq.NewTask(shared.TypeLibrarySync, data, taskOpts...), nil
}

func (e *asynqEnqueuer) EnqueueLibrarySync(ctx context.Context, payload shared.LibrarySyncPayload) (string, error) {
	task, err := NewLibrarySyncTask(payload, e.opts)
	if err != nil {
		return "", err
	}

	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue library sync: %w", err)
	}
	return info.ID, nil
}
