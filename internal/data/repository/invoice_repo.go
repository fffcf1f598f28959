package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carwash-payments/internal/data/entity"
	"carwash-payments/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type InvoiceRepository interface {
	// NextSequence allocates the next number of a monthly sequence. The
	// allocation row stays locked until the surrounding transaction ends.
	NextSequence(ctx context.Context, period string) (int64, error)
	// CreateIfAbsent inserts the invoice unless the booking already has one.
	CreateIfAbsent(ctx context.Context, invoice *entity.Invoice) (bool, error)

	FindByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Invoice, error)
	FindByNumber(ctx context.Context, number string) (*entity.Invoice, error)
	List(ctx context.Context, status entity.InvoiceStatus, limit, offset int) ([]*entity.Invoice, error)
	Count(ctx context.Context, status entity.InvoiceStatus) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status entity.InvoiceStatus, limit, offset int) ([]*entity.Invoice, error)
	CountByUser(ctx context.Context, userID uuid.UUID, status entity.InvoiceStatus) (int64, error)
	FindOverdue(ctx context.Context) ([]*entity.Invoice, error)
	Stats(ctx context.Context) (*entity.InvoiceStats, error)

	// UpdateDetails rewrites tax, total, due date and notes while the
	// invoice is still pending or sent.
	UpdateDetails(ctx context.Context, invoice *entity.Invoice) (bool, error)
	MarkPaid(ctx context.Context, id, paymentID uuid.UUID, at time.Time) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// SweepOverdue flips pending invoices due before now and returns how many changed.
	SweepOverdue(ctx context.Context, now time.Time) (int64, error)
}

const invoiceColumns = `id, invoice_number, booking_id, user_id, payment_id, amount, tax_amount, total_amount,
	currency, status, due_date, notes, sent_at, paid_at, created_at, updated_at`

type invoiceRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewInvoiceRepository(db database.Querier, log *zap.Logger) InvoiceRepository {
	return &invoiceRepository{
		db:  db,
		log: log.With(zap.String("repository", "invoice")),
	}
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	err := row.Scan(
		&inv.ID,
		&inv.InvoiceNumber,
		&inv.BookingID,
		&inv.UserID,
		&inv.PaymentID,
		&inv.Amount,
		&inv.TaxAmount,
		&inv.TotalAmount,
		&inv.Currency,
		&inv.Status,
		&inv.DueDate,
		&inv.Notes,
		&inv.SentAt,
		&inv.PaidAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) NextSequence(ctx context.Context, period string) (int64, error) {
	query := `
		INSERT INTO invoice_sequences (period, last_value)
		VALUES ($1, 1)
		ON CONFLICT (period) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value
	`

	var next int64
	if err := r.db.QueryRow(ctx, query, period).Scan(&next); err != nil {
		r.log.Error("Failed to allocate invoice sequence",
			zap.Error(err),
			zap.String("period", period),
		)
		return 0, fmt.Errorf("allocate invoice sequence %s: %w", period, err)
	}

	return next, nil
}

func (r *invoiceRepository) CreateIfAbsent(ctx context.Context, invoice *entity.Invoice) (bool, error) {
	query := `
		INSERT INTO invoices (id, invoice_number, booking_id, user_id, payment_id, amount, tax_amount, total_amount,
			currency, status, due_date, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (booking_id) DO NOTHING
	`

	result, err := r.db.Exec(ctx, query,
		invoice.ID,
		invoice.InvoiceNumber,
		invoice.BookingID,
		invoice.UserID,
		invoice.PaymentID,
		invoice.Amount,
		invoice.TaxAmount,
		invoice.TotalAmount,
		invoice.Currency,
		string(invoice.Status),
		invoice.DueDate,
		invoice.Notes,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create invoice",
			zap.Error(err),
			zap.String("booking_id", invoice.BookingID.String()),
			zap.String("invoice_number", invoice.InvoiceNumber),
		)
		return false, fmt.Errorf("create invoice %s: %w", invoice.InvoiceNumber, err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *invoiceRepository) findOne(ctx context.Context, where string, arg any) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE ` + where

	invoice, err := scanInvoice(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find invoice",
			zap.Error(err),
			zap.String("where", where),
			zap.Any("arg", arg),
		)
		return nil, fmt.Errorf("find invoice where %s: %w", where, err)
	}

	return invoice, nil
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *invoiceRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Invoice, error) {
	return r.findOne(ctx, "booking_id = $1", bookingID)
}

func (r *invoiceRepository) FindByNumber(ctx context.Context, number string) (*entity.Invoice, error) {
	return r.findOne(ctx, "invoice_number = $1", number)
}

func (r *invoiceRepository) list(ctx context.Context, query string, args ...any) ([]*entity.Invoice, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list invoices", zap.Error(err))
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			r.log.Error("Failed to scan invoice row", zap.Error(err))
			return nil, fmt.Errorf("scan invoice row: %w", err)
		}
		invoices = append(invoices, invoice)
	}

	return invoices, rows.Err()
}

// List filters by status unless status is empty.
func (r *invoiceRepository) List(ctx context.Context, status entity.InvoiceStatus, limit, offset int) ([]*entity.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE ($1::text = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, string(status), limit, offset)
}

func (r *invoiceRepository) Count(ctx context.Context, status entity.InvoiceStatus) (int64, error) {
	query := `SELECT COUNT(*) FROM invoices WHERE ($1::text = '' OR status = $1)`

	var count int64
	if err := r.db.QueryRow(ctx, query, string(status)).Scan(&count); err != nil {
		r.log.Error("Failed to count invoices", zap.Error(err), zap.String("status", string(status)))
		return 0, fmt.Errorf("count invoices: %w", err)
	}

	return count, nil
}

func (r *invoiceRepository) ListByUser(ctx context.Context, userID uuid.UUID, status entity.InvoiceStatus, limit, offset int) ([]*entity.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE user_id = $1 AND ($2::text = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	return r.list(ctx, query, userID, string(status), limit, offset)
}

func (r *invoiceRepository) CountByUser(ctx context.Context, userID uuid.UUID, status entity.InvoiceStatus) (int64, error) {
	query := `SELECT COUNT(*) FROM invoices WHERE user_id = $1 AND ($2::text = '' OR status = $2)`

	var count int64
	if err := r.db.QueryRow(ctx, query, userID, string(status)).Scan(&count); err != nil {
		r.log.Error("Failed to count user invoices", zap.Error(err), zap.String("user_id", userID.String()))
		return 0, fmt.Errorf("count invoices of user %s: %w", userID.String(), err)
	}

	return count, nil
}

func (r *invoiceRepository) FindOverdue(ctx context.Context) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE status = 'overdue' ORDER BY due_date`
	return r.list(ctx, query)
}

func (r *invoiceRepository) Stats(ctx context.Context) (*entity.InvoiceStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'paid'),
			COUNT(*) FILTER (WHERE status = 'overdue'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COALESCE(SUM(total_amount) FILTER (WHERE status = 'paid'), 0),
			COALESCE(SUM(total_amount) FILTER (WHERE status IN ('pending', 'sent', 'overdue')), 0)
		FROM invoices
	`

	var s entity.InvoiceStats
	err := r.db.QueryRow(ctx, query).Scan(
		&s.Total,
		&s.Pending,
		&s.Sent,
		&s.Paid,
		&s.Overdue,
		&s.Cancelled,
		&s.PaidAmount,
		&s.OutstandingAmount,
	)
	if err != nil {
		r.log.Error("Failed to aggregate invoices", zap.Error(err))
		return nil, fmt.Errorf("aggregate invoices: %w", err)
	}

	return &s, nil
}

func (r *invoiceRepository) UpdateDetails(ctx context.Context, invoice *entity.Invoice) (bool, error) {
	query := `
		UPDATE invoices
		SET tax_amount = $2, total_amount = $3, due_date = $4, notes = $5, updated_at = $6
		WHERE id = $1 AND status IN ('pending', 'sent')
	`

	result, err := r.db.Exec(ctx, query,
		invoice.ID,
		invoice.TaxAmount,
		invoice.TotalAmount,
		invoice.DueDate,
		invoice.Notes,
		invoice.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update invoice", zap.Error(err), zap.String("invoice_id", invoice.ID.String()))
		return false, fmt.Errorf("update invoice %s: %w", invoice.ID.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *invoiceRepository) MarkPaid(ctx context.Context, id, paymentID uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE invoices
		SET status = 'paid', paid_at = $3, payment_id = $2, updated_at = $3
		WHERE id = $1 AND status IN ('pending', 'sent', 'overdue')
	`

	result, err := r.db.Exec(ctx, query, id, paymentID, at)
	if err != nil {
		r.log.Error("Failed to mark invoice paid",
			zap.Error(err),
			zap.String("invoice_id", id.String()),
			zap.String("payment_id", paymentID.String()),
		)
		return false, fmt.Errorf("mark invoice %s paid: %w", id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *invoiceRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE invoices SET status = 'sent', sent_at = $2, updated_at = $2 WHERE id = $1 AND status = 'pending'`

	result, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		r.log.Error("Failed to mark invoice sent", zap.Error(err), zap.String("invoice_id", id.String()))
		return false, fmt.Errorf("mark invoice %s sent: %w", id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *invoiceRepository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE invoices
		SET status = 'cancelled', updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'sent', 'overdue')
	`

	result, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		r.log.Error("Failed to cancel invoice", zap.Error(err), zap.String("invoice_id", id.String()))
		return false, fmt.Errorf("cancel invoice %s: %w", id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *invoiceRepository) SweepOverdue(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE invoices SET status = 'overdue', updated_at = $1 WHERE status = 'pending' AND due_date < $1`

	result, err := r.db.Exec(ctx, query, now)
	if err != nil {
		r.log.Error("Failed to sweep overdue invoices", zap.Error(err), zap.Time("now", now))
		return 0, fmt.Errorf("sweep overdue invoices: %w", err)
	}

	return result.RowsAffected(), nil
}
