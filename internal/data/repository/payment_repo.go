package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carwash-payments/internal/data/entity"
	"carwash-payments/pkg/apperror"
	"carwash-payments/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ActivePaymentConstraint guards against two live attempts per booking and method.
const ActivePaymentConstraint = "payments_active_method_uq"

// OutcomeUpdate is the settlement written by ApplyOutcome.
type OutcomeUpdate struct {
	Status          entity.PaymentStatus
	PaidAt          *time.Time
	FailureReason   *string
	ReceiptNumber   *string
	PaymentIntentID *string
	UpdatedAt       time.Time
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	// FindByCorrelationID matches any provider identifier the payment carries.
	FindByCorrelationID(ctx context.Context, correlationID string) (*entity.Payment, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Payment, error)
	FindActiveByBookingAndMethod(ctx context.Context, bookingID uuid.UUID, method entity.PaymentMethod) (*entity.Payment, error)
	FindCompletedByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error)

	// ApplyOutcome settles the payment only while it is still pending or
	// processing. It reports false when another caller settled it first.
	ApplyOutcome(ctx context.Context, id uuid.UUID, update OutcomeUpdate) (bool, error)
	// TransitionStatus moves the payment to `to` only from one of `from`.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []entity.PaymentStatus, to entity.PaymentStatus) (bool, error)
	MarkRefunded(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)

	// Stats groups by "status" or "payment_method".
	Stats(ctx context.Context, groupBy string, from, to *time.Time) ([]entity.PaymentStats, error)
}

const paymentColumns = `id, booking_id, user_id, amount, currency, status, payment_method, transaction_id,
	phone_number, mpesa_checkout_request_id, mpesa_merchant_request_id, mpesa_receipt_number,
	stripe_session_id, stripe_payment_intent_id, failure_reason, refund_reason, paid_at, refunded_at,
	created_at, updated_at`

type paymentRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPaymentRepository(db database.Querier, log *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment")),
	}
}

func scanPayment(row pgx.Row) (*entity.Payment, error) {
	var p entity.Payment
	err := row.Scan(
		&p.ID,
		&p.BookingID,
		&p.UserID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.Method,
		&p.TransactionID,
		&p.PhoneNumber,
		&p.MpesaCheckoutRequestID,
		&p.MpesaMerchantRequestID,
		&p.MpesaReceiptNumber,
		&p.StripeSessionID,
		&p.StripePaymentIntentID,
		&p.FailureReason,
		&p.RefundReason,
		&p.PaidAt,
		&p.RefundedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func statusStrings(statuses []entity.PaymentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *paymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (id, booking_id, user_id, amount, currency, status, payment_method, transaction_id,
			phone_number, mpesa_checkout_request_id, mpesa_merchant_request_id, stripe_session_id,
			stripe_payment_intent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.Exec(ctx, query,
		payment.ID,
		payment.BookingID,
		payment.UserID,
		payment.Amount,
		payment.Currency,
		string(payment.Status),
		string(payment.Method),
		payment.TransactionID,
		payment.PhoneNumber,
		payment.MpesaCheckoutRequestID,
		payment.MpesaMerchantRequestID,
		payment.StripeSessionID,
		payment.StripePaymentIntentID,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	if database.IsUniqueViolation(err, ActivePaymentConstraint) {
		r.log.Warn("Active payment already exists",
			zap.String("booking_id", payment.BookingID.String()),
			zap.String("method", string(payment.Method)),
		)
		return apperror.DuplicateActivePayment(payment.BookingID.String(), string(payment.Method))
	}
	if err != nil {
		r.log.Error("Failed to create payment",
			zap.Error(err),
			zap.String("booking_id", payment.BookingID.String()),
			zap.String("transaction_id", payment.TransactionID),
		)
		return fmt.Errorf("create payment %s: %w", payment.TransactionID, err)
	}

	return nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment by ID",
			zap.Error(err),
			zap.String("payment_id", id.String()),
		)
		return nil, fmt.Errorf("find payment by ID %s: %w", id.String(), err)
	}

	return payment, nil
}

func (r *paymentRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE transaction_id = $1
		   OR mpesa_checkout_request_id = $1
		   OR stripe_session_id = $1
		   OR stripe_payment_intent_id = $1
		LIMIT 1
	`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, correlationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment by correlation ID",
			zap.Error(err),
			zap.String("correlation_id", correlationID),
		)
		return nil, fmt.Errorf("find payment by correlation ID %s: %w", correlationID, err)
	}

	return payment, nil
}

func (r *paymentRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to find payments by booking ID",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find payments by booking ID %s: %w", bookingID.String(), err)
	}
	defer rows.Close()

	var payments []*entity.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			r.log.Error("Failed to scan payment row", zap.Error(err))
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

func (r *paymentRepository) FindActiveByBookingAndMethod(ctx context.Context, bookingID uuid.UUID, method entity.PaymentMethod) (*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE booking_id = $1 AND payment_method = $2 AND status = ANY($3)
		LIMIT 1
	`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, bookingID, string(method), statusStrings(entity.ActivePaymentStatuses)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find active payment",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
			zap.String("method", string(method)),
		)
		return nil, fmt.Errorf("find active %s payment for booking %s: %w", method, bookingID.String(), err)
	}

	return payment, nil
}

func (r *paymentRepository) FindCompletedByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE booking_id = $1 AND status = 'completed'
		ORDER BY paid_at DESC
		LIMIT 1
	`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find completed payment",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find completed payment for booking %s: %w", bookingID.String(), err)
	}

	return payment, nil
}

func (r *paymentRepository) ApplyOutcome(ctx context.Context, id uuid.UUID, update OutcomeUpdate) (bool, error) {
	query := `
		UPDATE payments
		SET status = $2,
		    paid_at = COALESCE($3, paid_at),
		    failure_reason = $4,
		    mpesa_receipt_number = COALESCE($5, mpesa_receipt_number),
		    stripe_payment_intent_id = COALESCE($6, stripe_payment_intent_id),
		    updated_at = $7
		WHERE id = $1 AND status IN ('pending', 'processing')
	`

	result, err := r.db.Exec(ctx, query,
		id,
		string(update.Status),
		update.PaidAt,
		update.FailureReason,
		update.ReceiptNumber,
		update.PaymentIntentID,
		update.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to apply payment outcome",
			zap.Error(err),
			zap.String("payment_id", id.String()),
			zap.String("status", string(update.Status)),
		)
		return false, fmt.Errorf("apply outcome %s to payment %s: %w", update.Status, id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *paymentRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from []entity.PaymentStatus, to entity.PaymentStatus) (bool, error) {
	query := `UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1 AND status = ANY($3)`

	result, err := r.db.Exec(ctx, query, id, string(to), statusStrings(from))
	if err != nil {
		r.log.Error("Failed to update payment status",
			zap.Error(err),
			zap.String("payment_id", id.String()),
			zap.String("to", string(to)),
		)
		return false, fmt.Errorf("update payment %s status to %s: %w", id.String(), to, err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *paymentRepository) MarkRefunded(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'refunded', refund_reason = $2, refunded_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'completed'
	`

	result, err := r.db.Exec(ctx, query, id, reason, at)
	if err != nil {
		r.log.Error("Failed to mark payment refunded",
			zap.Error(err),
			zap.String("payment_id", id.String()),
		)
		return false, fmt.Errorf("mark payment %s refunded: %w", id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *paymentRepository) Stats(ctx context.Context, groupBy string, from, to *time.Time) ([]entity.PaymentStats, error) {
	column := "status"
	if groupBy == "payment_method" {
		column = "payment_method"
	}

	query := `
		SELECT ` + column + `, COUNT(*), COALESCE(SUM(amount), 0)
		FROM payments
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		GROUP BY ` + column + `
		ORDER BY ` + column

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		r.log.Error("Failed to aggregate payments", zap.Error(err), zap.String("group_by", column))
		return nil, fmt.Errorf("aggregate payments by %s: %w", column, err)
	}
	defer rows.Close()

	var stats []entity.PaymentStats
	for rows.Next() {
		var s entity.PaymentStats
		if err := rows.Scan(&s.Key, &s.Count, &s.TotalAmount); err != nil {
			r.log.Error("Failed to scan payment stats row", zap.Error(err))
			return nil, fmt.Errorf("scan payment stats row: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}
