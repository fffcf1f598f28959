package usecase

import (
	"context"
	"fmt"
	"time"

	"carwash-payments/internal/data/entity"
	"carwash-payments/internal/data/repository"
	"carwash-payments/internal/gateway"
	"carwash-payments/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// paymentLedger owns payment state. Every write is a conditional update so
// concurrent verify and callback deliveries settle a payment once.
type paymentLedger struct {
	now func() time.Time
	log *zap.Logger
}

func newPaymentLedger(now func() time.Time, log *zap.Logger) *paymentLedger {
	return &paymentLedger{
		now: now,
		log: log.With(zap.String("service", "ledger")),
	}
}

// EnsureNoActive fails when the booking already has a live attempt for method.
func (l *paymentLedger) EnsureNoActive(ctx context.Context, repo *repository.Repository, bookingID uuid.UUID, method entity.PaymentMethod) error {
	active, err := repo.Payment.FindActiveByBookingAndMethod(ctx, bookingID, method)
	if err != nil {
		return err
	}
	if active != nil {
		l.log.Info("Rejected duplicate payment attempt",
			zap.String("booking_id", bookingID.String()),
			zap.String("method", string(method)),
			zap.String("active_payment_id", active.ID.String()),
		)
		return apperror.DuplicateActivePayment(bookingID.String(), string(method))
	}
	return nil
}

func (l *paymentLedger) CreatePending(ctx context.Context, repo *repository.Repository, payment *entity.Payment) error {
	if err := l.EnsureNoActive(ctx, repo, payment.BookingID, payment.Method); err != nil {
		return err
	}

	now := l.now()
	payment.Status = entity.PaymentStatusPending
	payment.CreatedAt = now
	payment.UpdatedAt = now

	if err := repo.Payment.Create(ctx, payment); err != nil {
		return err
	}

	l.log.Info("Payment created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("booking_id", payment.BookingID.String()),
		zap.String("method", string(payment.Method)),
		zap.String("transaction_id", payment.TransactionID),
	)
	return nil
}

// Resolve finds the payment a provider result refers to.
func (l *paymentLedger) Resolve(ctx context.Context, repo *repository.Repository, res *gateway.Result) (*entity.Payment, error) {
	for _, ref := range []string{res.CheckoutID, res.PaymentIntentID} {
		if ref == "" {
			continue
		}
		payment, err := repo.Payment.FindByCorrelationID(ctx, ref)
		if err != nil || payment != nil {
			return payment, err
		}
	}

	if id, err := uuid.Parse(res.PaymentID); err == nil {
		return repo.Payment.FindByID(ctx, id)
	}
	return nil, nil
}

// ApplyOutcome records a provider outcome. It reports false, with the stored
// record, when there was nothing to apply or another caller settled first.
func (l *paymentLedger) ApplyOutcome(ctx context.Context, repo *repository.Repository, payment *entity.Payment, res *gateway.Result) (*entity.Payment, bool, error) {
	log := l.log.With(
		zap.String("payment_id", payment.ID.String()),
		zap.String("outcome", string(res.Outcome)),
		zap.String("result_code", res.ResultCode),
	)

	if !payment.Status.IsActive() {
		if res.Outcome == gateway.OutcomeSuccess && payment.Status != entity.PaymentStatusCompleted &&
			payment.Status != entity.PaymentStatusRefunded {
			log.Warn("Provider reports success for a closed payment; money must be reconciled manually",
				zap.String("status", string(payment.Status)),
				zap.String("receipt", res.ReceiptID),
				zap.String("payment_intent_id", res.PaymentIntentID),
			)
		} else {
			log.Debug("Payment already settled", zap.String("status", string(payment.Status)))
		}
		return payment, false, nil
	}

	status := res.Outcome.PaymentStatus()
	if res.Outcome == gateway.OutcomePending {
		return payment, false, nil
	}
	if res.Outcome == gateway.OutcomeDeclined {
		// keep the attempt open for a retry, only remember why it was refused
		status = payment.Status
	} else if status == payment.Status {
		return payment, false, nil
	}

	now := l.now()
	update := repository.OutcomeUpdate{Status: status, UpdatedAt: now}

	switch res.Outcome {
	case gateway.OutcomeDeclined:
		reason := res.ResultDescription
		if reason == "" {
			reason = "payment declined"
		}
		update.FailureReason = &reason
	case gateway.OutcomeSuccess:
		update.PaidAt = &now
		if res.ReceiptID != "" && payment.Method == entity.PaymentMethodMobileMoney {
			receipt := res.ReceiptID
			update.ReceiptNumber = &receipt
		}
		if res.PaymentIntentID != "" && payment.Method == entity.PaymentMethodCard {
			intent := res.PaymentIntentID
			update.PaymentIntentID = &intent
		}
		if res.Amount != nil && !res.Amount.Equal(payment.Amount) && !res.Amount.Equal(payment.Amount.Round(0)) {
			log.Warn("Provider settled a different amount",
				zap.String("expected", payment.Amount.String()),
				zap.String("settled", res.Amount.String()),
			)
		}
	case gateway.OutcomeFailed, gateway.OutcomeExpired:
		reason := res.ResultDescription
		if reason == "" {
			reason = fmt.Sprintf("payment %s", status)
		}
		update.FailureReason = &reason
	}

	applied, err := repo.Payment.ApplyOutcome(ctx, payment.ID, update)
	if err != nil {
		return nil, false, err
	}

	current, err := repo.Payment.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, false, err
	}
	if current == nil {
		return nil, false, apperror.NotFound("payment", payment.ID.String())
	}

	if applied {
		log.Info("Payment outcome applied", zap.String("status", string(current.Status)))
	} else {
		log.Debug("Payment outcome already applied by another caller", zap.String("status", string(current.Status)))
	}
	return current, applied, nil
}

func (l *paymentLedger) CancelPending(ctx context.Context, repo *repository.Repository, payment *entity.Payment) (*entity.Payment, error) {
	if payment.Status != entity.PaymentStatusPending {
		return nil, apperror.InvalidState(fmt.Sprintf("only pending payments can be cancelled, payment is %s", payment.Status))
	}

	ok, err := repo.Payment.TransitionStatus(ctx, payment.ID,
		[]entity.PaymentStatus{entity.PaymentStatusPending}, entity.PaymentStatusCancelled)
	if err != nil {
		return nil, err
	}

	current, err := repo.Payment.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperror.NotFound("payment", payment.ID.String())
	}
	if !ok {
		// an outcome landed first
		return nil, apperror.InvalidState(fmt.Sprintf("only pending payments can be cancelled, payment is %s", current.Status))
	}

	l.log.Info("Payment cancelled", zap.String("payment_id", payment.ID.String()))
	return current, nil
}

func (l *paymentLedger) MarkRefunded(ctx context.Context, repo *repository.Repository, payment *entity.Payment, reason string) (*entity.Payment, error) {
	if payment.Status != entity.PaymentStatusCompleted {
		return nil, apperror.InvalidState(fmt.Sprintf("only completed payments can be refunded, payment is %s", payment.Status))
	}

	ok, err := repo.Payment.MarkRefunded(ctx, payment.ID, reason, l.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.InvalidState("payment was refunded by another request")
	}

	current, err := repo.Payment.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperror.NotFound("payment", payment.ID.String())
	}

	l.log.Info("Payment refunded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("reason", reason),
	)
	return current, nil
}
