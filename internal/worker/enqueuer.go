package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carwash-payments/internal/events"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type taskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer hands settlement notifications and re-verification to the queue.
type Enqueuer struct {
	client   taskClient
	maxRetry int
	log      *zap.Logger
}

func NewEnqueuer(client *asynq.Client, maxRetry int, log *zap.Logger) *Enqueuer {
	return newEnqueuer(client, maxRetry, log)
}

func newEnqueuer(client taskClient, maxRetry int, log *zap.Logger) *Enqueuer {
	return &Enqueuer{
		client:   client,
		maxRetry: maxRetry,
		log:      log.With(zap.String("worker", "enqueuer")),
	}
}

func (e *Enqueuer) Notify(ctx context.Context, event events.Event) error {
	task, opts, err := NewNotifyTask(event)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task, opts, zap.String("event_id", event.ID))
}

func (e *Enqueuer) ScheduleVerify(ctx context.Context, correlationID string, delay time.Duration) error {
	task, opts, err := NewVerifyTask(correlationID, delay, e.maxRetry)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task, opts, zap.String("correlation_id", correlationID))
}

func (e *Enqueuer) enqueue(ctx context.Context, task *asynq.Task, opts []asynq.Option, field zap.Field) error {
	info, err := e.client.EnqueueContext(ctx, task, opts...)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict), errors.Is(err, asynq.ErrDuplicateTask):
		e.log.Debug("Task already queued", zap.String("type", task.Type()), field)
		return nil
	case err != nil:
		e.log.Error("Failed to enqueue task", zap.Error(err), zap.String("type", task.Type()), field)
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}

	e.log.Debug("Task enqueued",
		zap.String("type", task.Type()),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
		field,
	)
	return nil
}
