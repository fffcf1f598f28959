package repository

import (
	"context"

	"carwash-payments/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	User    UserRepository
	Booking BookingRepository
	Payment PaymentRepository
	Invoice InvoiceRepository

	tx Transactor
}

// Transactor runs fn against repositories bound to a single transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx *Repository) error) error
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	repo := newRepository(db, log)
	repo.tx = &pgxTransactor{
		db:   db,
		base: log,
		log:  log.With(zap.String("repository", "tx")),
	}
	return repo
}

func newRepository(db database.Querier, log *zap.Logger) *Repository {
	return &Repository{
		User:    NewUserRepository(db, log),
		Booking: NewBookingRepository(db, log),
		Payment: NewPaymentRepository(db, log),
		Invoice: NewInvoiceRepository(db, log),
	}
}

// New assembles a Repository from explicit parts. A nil transactor runs
// WithinTx callbacks inline against the same repositories.
func New(user UserRepository, booking BookingRepository, payment PaymentRepository, invoice InvoiceRepository, tx Transactor) *Repository {
	return &Repository{
		User:    user,
		Booking: booking,
		Payment: payment,
		Invoice: invoice,
		tx:      tx,
	}
}

// WithinTx runs fn in a transaction. Calls made on an already
// transaction-bound Repository join the outer transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx *Repository) error) error {
	if r.tx == nil {
		return fn(r)
	}
	return r.tx.WithinTx(ctx, fn)
}
