package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carwash-payments/pkg/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// RedisOpt builds the asynq connection from the queue database settings.
func RedisOpt(cfg utils.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.QueueDB,
	}
}

// Worker processes queued tasks and fires the periodic sweep.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	log       *zap.Logger
}

func NewWorker(redisOpt asynq.RedisClientOpt, cfg utils.WorkerConfig, handlers *Handlers, log *zap.Logger) (*Worker, error) {
	log = log.With(zap.String("worker", "server"))

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
			Logger:   log.Sugar(),
			LogLevel: asynq.WarnLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				if errors.Is(err, errStillPending) {
					return
				}
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				log.Warn("Task failed",
					zap.String("type", task.Type()),
					zap.Int("retried", retried),
					zap.Int("max_retry", maxRetry),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()
	handlers.Register(mux)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   log.Sugar(),
		LogLevel: asynq.WarnLevel,
	})
	if _, err := scheduler.Register(cfg.SweepCron, NewSweepTask(), asynq.Unique(time.Hour)); err != nil {
		return nil, fmt.Errorf("register sweep %q: %w", cfg.SweepCron, err)
	}

	return &Worker{
		server:    srv,
		scheduler: scheduler,
		mux:       mux,
		log:       log,
	}, nil
}

func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	if err := w.scheduler.Start(); err != nil {
		w.server.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}
	w.log.Info("Worker started")
	return nil
}

func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
	w.log.Info("Worker stopped")
}
