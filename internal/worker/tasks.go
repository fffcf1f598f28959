// Package worker runs the background side of reconciliation on asynq:
// notification delivery, delayed payment re-verification and the daily
// overdue-invoice sweep.
package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"carwash-payments/internal/events"

	"github.com/hibiken/asynq"
)

const (
	TypeNotify = "payment:notify"
	TypeVerify = "payment:verify"
	TypeSweep  = "invoice:sweep"
)

type verifyPayload struct {
	CorrelationID string `json:"correlation_id"`
}

func NewNotifyTask(event events.Event) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, nil, fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	task := asynq.NewTask(TypeNotify, b)
	// the event id is stable per fact, so a repeated settlement enqueues nothing
	opts := []asynq.Option{asynq.TaskID(event.ID)}

	return task, opts, nil
}

func NewVerifyTask(correlationID string, delay time.Duration, maxRetry int) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(verifyPayload{CorrelationID: correlationID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeVerify, b)
	opts := []asynq.Option{
		asynq.TaskID("verify:" + correlationID),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(maxRetry),
	}

	return task, opts, nil
}

func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TypeSweep, nil)
}
