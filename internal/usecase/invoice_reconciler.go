package usecase

import (
	"context"
	"time"

	"carwash-payments/internal/data/entity"
	"carwash-payments/internal/data/repository"
	"carwash-payments/pkg/apperror"
	"carwash-payments/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultInvoiceDueDays = 30

type invoiceOptions struct {
	TaxAmount decimal.Decimal
	DueDate   *time.Time
	Notes     *string
}

// invoiceReconciler keeps one invoice per booking in step with its payments.
type invoiceReconciler struct {
	currency string
	dueDays  int
	now      func() time.Time
	log      *zap.Logger
}

func newInvoiceReconciler(cfg utils.PaymentConfig, now func() time.Time, log *zap.Logger) *invoiceReconciler {
	dueDays := cfg.InvoiceDueDays
	if dueDays <= 0 {
		dueDays = defaultInvoiceDueDays
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "kes"
	}
	return &invoiceReconciler{
		currency: currency,
		dueDays:  dueDays,
		now:      now,
		log:      log.With(zap.String("service", "invoice_reconciler")),
	}
}

// EnsureInvoiceForBooking returns the booking's invoice, creating it first
// if needed. Numbers come from a per-month sequence row that stays locked
// until the surrounding transaction ends, so concurrent callers never share one.
func (r *invoiceReconciler) EnsureInvoiceForBooking(ctx context.Context, repo *repository.Repository, booking *entity.Booking, opts invoiceOptions) (*entity.Invoice, bool, error) {
	existing, err := repo.Invoice.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	now := r.now()
	period := utils.InvoicePeriod(now)
	seq, err := repo.Invoice.NextSequence(ctx, period)
	if err != nil {
		return nil, false, err
	}

	dueDate := now.AddDate(0, 0, r.dueDays)
	if opts.DueDate != nil {
		dueDate = *opts.DueDate
	}

	invoice := &entity.Invoice{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		InvoiceNumber: utils.FormatInvoiceNumber(period, seq),
		BookingID:     booking.ID,
		UserID:        booking.UserID,
		Amount:        booking.TotalAmount,
		TaxAmount:     opts.TaxAmount,
		TotalAmount:   booking.TotalAmount.Add(opts.TaxAmount),
		Currency:      r.currency,
		Status:        entity.InvoiceStatusPending,
		DueDate:       dueDate,
		Notes:         opts.Notes,
	}

	created, err := repo.Invoice.CreateIfAbsent(ctx, invoice)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := repo.Invoice.FindByBookingID(ctx, booking.ID)
		if err != nil {
			return nil, false, err
		}
		r.log.Debug("Invoice created concurrently", zap.String("booking_id", booking.ID.String()))
		return existing, false, nil
	}

	r.log.Info("Invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("booking_id", booking.ID.String()),
	)
	return invoice, true, nil
}

// MarkPaidFromPayment links the settling payment and marks the invoice paid.
func (r *invoiceReconciler) MarkPaidFromPayment(ctx context.Context, repo *repository.Repository, invoice *entity.Invoice, payment *entity.Payment) (*entity.Invoice, bool, error) {
	switch invoice.Status {
	case entity.InvoiceStatusPaid:
		if invoice.PaymentID != nil && *invoice.PaymentID != payment.ID {
			r.log.Warn("Second payment completed for a paid invoice; refund the duplicate",
				zap.String("invoice_id", invoice.ID.String()),
				zap.String("paid_by_payment_id", invoice.PaymentID.String()),
				zap.String("payment_id", payment.ID.String()),
			)
		}
		return invoice, false, nil
	case entity.InvoiceStatusCancelled:
		r.log.Warn("Payment completed against a cancelled invoice",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("payment_id", payment.ID.String()),
		)
		return invoice, false, nil
	}

	paidAt := r.now()
	if payment.PaidAt != nil {
		paidAt = *payment.PaidAt
	}

	ok, err := repo.Invoice.MarkPaid(ctx, invoice.ID, payment.ID, paidAt)
	if err != nil {
		return nil, false, err
	}

	current, err := repo.Invoice.FindByID(ctx, invoice.ID)
	if err != nil {
		return nil, false, err
	}
	if current == nil {
		return nil, false, apperror.NotFound("invoice", invoice.ID.String())
	}
	if ok {
		r.log.Info("Invoice paid",
			zap.String("invoice_number", current.InvoiceNumber),
			zap.String("payment_id", payment.ID.String()),
		)
	}
	return current, ok, nil
}

// SweepOverdue flips pending invoices past their due date. Re-running with
// the same now changes nothing.
func (r *invoiceReconciler) SweepOverdue(ctx context.Context, repo *repository.Repository, now time.Time) (int64, error) {
	count, err := repo.Invoice.SweepOverdue(ctx, now)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		r.log.Info("Invoices marked overdue", zap.Int64("count", count))
	} else {
		r.log.Debug("No overdue invoices")
	}
	return count, nil
}
