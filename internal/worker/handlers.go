package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"carwash-payments/internal/events"
	"carwash-payments/internal/usecase"
	"carwash-payments/pkg/apperror"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Publisher is the notification boundary the notify task delivers to.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

var errStillPending = errors.New("payment still awaiting provider")

type Handlers struct {
	payments  usecase.PaymentService
	invoices  usecase.InvoiceService
	publisher Publisher
	log       *zap.Logger
}

func NewHandlers(payments usecase.PaymentService, invoices usecase.InvoiceService, publisher Publisher, log *zap.Logger) *Handlers {
	return &Handlers{
		payments:  payments,
		invoices:  invoices,
		publisher: publisher,
		log:       log.With(zap.String("worker", "handlers")),
	}
}

func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeNotify, h.handleNotify)
	mux.HandleFunc(TypeVerify, h.handleVerify)
	mux.HandleFunc(TypeSweep, h.handleSweep)
}

func (h *Handlers) handleNotify(ctx context.Context, task *asynq.Task) error {
	var event events.Event
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		h.log.Error("Invalid notify payload", zap.Error(err))
		return fmt.Errorf("decode event: %v: %w", err, asynq.SkipRetry)
	}

	return h.publisher.Publish(ctx, event)
}

// handleVerify asks the provider again. A payment that is still active is
// returned as an error so asynq retries it with backoff until MaxRetry.
func (h *Handlers) handleVerify(ctx context.Context, task *asynq.Task) error {
	var p verifyPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil || p.CorrelationID == "" {
		h.log.Error("Invalid verify payload", zap.ByteString("payload", task.Payload()))
		return fmt.Errorf("decode verify payload: %w", asynq.SkipRetry)
	}

	log := h.log.With(zap.String("correlation_id", p.CorrelationID))

	payment, err := h.payments.VerifyPayment(ctx, p.CorrelationID)
	switch {
	case errors.Is(err, apperror.ErrNotFound), errors.Is(err, apperror.ErrValidation):
		log.Warn("Verify target gone", zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case err != nil:
		return err
	}

	if payment.Status.IsActive() {
		log.Debug("Payment still active after verify", zap.String("status", string(payment.Status)))
		return errStillPending
	}

	log.Info("Payment converged by verify", zap.String("status", string(payment.Status)))
	return nil
}

func (h *Handlers) handleSweep(ctx context.Context, task *asynq.Task) error {
	res, err := h.invoices.SweepOverdue(ctx)
	if err != nil {
		h.log.Error("Overdue sweep failed", zap.Error(err))
		return err
	}

	h.log.Info("Overdue sweep finished", zap.Int64("updated", res.Updated))
	return nil
}
