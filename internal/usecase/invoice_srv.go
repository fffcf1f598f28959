package usecase

import (
	"context"
	"fmt"
	"time"

	"carwash-payments/internal/data/entity"
	"carwash-payments/internal/data/repository"
	"carwash-payments/internal/dto/request"
	"carwash-payments/internal/dto/response"
	"carwash-payments/internal/events"
	"carwash-payments/internal/invoicepdf"
	"carwash-payments/pkg/apperror"
	"carwash-payments/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type InvoiceService interface {
	// CreateInvoice reports whether a new invoice was created.
	CreateInvoice(ctx context.Context, req *request.CreateInvoiceRequest) (*response.InvoiceResponse, bool, error)
	GetInvoice(ctx context.Context, invoiceID string) (*response.InvoiceResponse, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*response.InvoiceResponse, error)
	GetInvoiceByBooking(ctx context.Context, bookingID string) (*response.InvoiceResponse, error)
	ListInvoices(ctx context.Context, req *request.ListInvoicesRequest) (*response.PaginatedResponse[response.InvoiceResponse], error)
	// ListMyInvoices lists the caller's own invoices.
	ListMyInvoices(ctx context.Context, req *request.ListInvoicesRequest) (*response.PaginatedResponse[response.InvoiceResponse], error)
	ListOverdue(ctx context.Context) ([]response.InvoiceResponse, error)
	GetStats(ctx context.Context) (*entity.InvoiceStats, error)

	UpdateInvoice(ctx context.Context, invoiceID string, req *request.UpdateInvoiceRequest) (*response.InvoiceResponse, error)
	MarkSent(ctx context.Context, invoiceID string) (*response.InvoiceResponse, error)
	// MarkInvoicePaid settles the invoice with a completed payment of its
	// booking, the given one or else the booking's settled payment.
	MarkInvoicePaid(ctx context.Context, invoiceID string, req *request.MarkInvoicePaidRequest) (*response.InvoiceResponse, error)
	CancelInvoice(ctx context.Context, invoiceID string) (*response.InvoiceResponse, error)
	SweepOverdue(ctx context.Context) (*response.SweepResponse, error)

	// RenderPDF returns the document and its download name.
	RenderPDF(ctx context.Context, invoiceID string) ([]byte, string, error)
}

type invoiceService struct {
	repo       *repository.Repository
	reconciler *invoiceReconciler
	notifier   Notifier
	issuer     string
	now        func() time.Time
	log        *zap.Logger
}

func newInvoiceService(repo *repository.Repository, reconciler *invoiceReconciler, issuer string, deps Dependencies, log *zap.Logger) InvoiceService {
	deps = deps.withDefaults()
	return &invoiceService{
		repo:       repo,
		reconciler: reconciler,
		notifier:   deps.Notifier,
		issuer:     issuer,
		now:        deps.Clock,
		log:        log.With(zap.String("service", "invoice")),
	}
}

func (s *invoiceService) respond(inv *entity.Invoice) *response.InvoiceResponse {
	res := response.InvoiceToResponse(inv)
	return &res
}

func (s *invoiceService) findInvoice(ctx context.Context, invoiceID string) (*entity.Invoice, error) {
	id, err := parseID("invoice", invoiceID)
	if err != nil {
		return nil, err
	}

	inv, err := s.repo.Invoice.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil || !callerMayAccess(ctx, inv.UserID) {
		return nil, apperror.NotFound("invoice", invoiceID)
	}
	return inv, nil
}

func (s *invoiceService) CreateInvoice(ctx context.Context, req *request.CreateInvoiceRequest) (*response.InvoiceResponse, bool, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create invoice validation failed", zap.Any("errors", errs))
		return nil, false, apperror.Validation("validation failed: " + utils.FormatValidationErrors(errs))
	}

	bookingID, err := parseID("booking", req.BookingID)
	if err != nil {
		return nil, false, err
	}

	opts := invoiceOptions{TaxAmount: decimal.Zero, Notes: req.Notes}
	if req.TaxAmount != nil {
		if req.TaxAmount.IsNegative() {
			return nil, false, apperror.Validation("tax_amount cannot be negative")
		}
		opts.TaxAmount = *req.TaxAmount
	}
	if req.DueDate != "" {
		opts.DueDate = utils.ParseDate(req.DueDate)
		if opts.DueDate == nil {
			return nil, false, apperror.Validation("due_date must be YYYY-MM-DD")
		}
	}

	var (
		invoice *entity.Invoice
		created bool
	)
	err = s.repo.WithinTx(ctx, func(tx *repository.Repository) error {
		booking, err := tx.Booking.FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return apperror.NotFound("booking", req.BookingID)
		}
		if booking.Status == entity.BookingStatusCancelled {
			return apperror.InvalidState("cannot invoice a cancelled booking")
		}

		invoice, created, err = s.reconciler.EnsureInvoiceForBooking(ctx, tx, booking, opts)
		if err != nil || !created {
			return err
		}

		// a booking paid before staff invoiced it
		paid, err := tx.Payment.FindCompletedByBookingID(ctx, bookingID)
		if err != nil || paid == nil {
			return err
		}
		invoice, _, err = s.reconciler.MarkPaidFromPayment(ctx, tx, invoice, paid)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	return s.respond(invoice), created, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID string) (*response.InvoiceResponse, error) {
	inv, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.respond(inv), nil
}

func (s *invoiceService) GetInvoiceByNumber(ctx context.Context, number string) (*response.InvoiceResponse, error) {
	inv, err := s.repo.Invoice.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if inv == nil || !callerMayAccess(ctx, inv.UserID) {
		return nil, apperror.NotFound("invoice", number)
	}
	return s.respond(inv), nil
}

func (s *invoiceService) GetInvoiceByBooking(ctx context.Context, bookingID string) (*response.InvoiceResponse, error) {
	id, err := parseID("booking", bookingID)
	if err != nil {
		return nil, err
	}

	inv, err := s.repo.Invoice.FindByBookingID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil || !callerMayAccess(ctx, inv.UserID) {
		return nil, apperror.NotFound("invoice for booking", bookingID)
	}
	return s.respond(inv), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, req *request.ListInvoicesRequest) (*response.PaginatedResponse[response.InvoiceResponse], error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation("validation failed: " + utils.FormatValidationErrors(errs))
	}

	status := entity.InvoiceStatus(req.Status)
	invoices, err := s.repo.Invoice.List(ctx, status, req.Limit(), req.Offset())
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Invoice.Count(ctx, status)
	if err != nil {
		return nil, err
	}

	return response.NewPaginatedResponse(response.InvoicesToResponse(invoices), req.Page, req.Limit(), total), nil
}

func (s *invoiceService) ListMyInvoices(ctx context.Context, req *request.ListInvoicesRequest) (*response.PaginatedResponse[response.InvoiceResponse], error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation("validation failed: " + utils.FormatValidationErrors(errs))
	}

	userID, ok := utils.GetUserIDFromContext(ctx)
	if !ok {
		return nil, apperror.Validation("authenticated user required")
	}

	status := entity.InvoiceStatus(req.Status)
	invoices, err := s.repo.Invoice.ListByUser(ctx, userID, status, req.Limit(), req.Offset())
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Invoice.CountByUser(ctx, userID, status)
	if err != nil {
		return nil, err
	}

	return response.NewPaginatedResponse(response.InvoicesToResponse(invoices), req.Page, req.Limit(), total), nil
}

func (s *invoiceService) ListOverdue(ctx context.Context) ([]response.InvoiceResponse, error) {
	invoices, err := s.repo.Invoice.FindOverdue(ctx)
	if err != nil {
		return nil, err
	}
	return response.InvoicesToResponse(invoices), nil
}

func (s *invoiceService) GetStats(ctx context.Context) (*entity.InvoiceStats, error) {
	return s.repo.Invoice.Stats(ctx)
}

func editable(status entity.InvoiceStatus) bool {
	return status == entity.InvoiceStatusPending || status == entity.InvoiceStatusSent
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, invoiceID string, req *request.UpdateInvoiceRequest) (*response.InvoiceResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Update invoice validation failed", zap.Any("errors", errs))
		return nil, apperror.Validation("validation failed: " + utils.FormatValidationErrors(errs))
	}

	inv, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !editable(inv.Status) {
		return nil, apperror.InvalidState(fmt.Sprintf("invoice is %s and can no longer be edited", inv.Status))
	}

	if req.TaxAmount != nil {
		if req.TaxAmount.IsNegative() {
			return nil, apperror.Validation("tax_amount cannot be negative")
		}
		inv.TaxAmount = *req.TaxAmount
	}
	inv.TotalAmount = inv.Amount.Add(inv.TaxAmount)
	if req.DueDate != "" {
		due := utils.ParseDate(req.DueDate)
		if due == nil {
			return nil, apperror.Validation("due_date must be YYYY-MM-DD")
		}
		inv.DueDate = *due
	}
	if req.Notes != nil {
		inv.Notes = req.Notes
	}
	inv.UpdatedAt = s.now()

	ok, err := s.repo.Invoice.UpdateDetails(ctx, inv)
	if err != nil {
		return nil, err
	}
	current, err := s.repo.Invoice.FindByID(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperror.NotFound("invoice", invoiceID)
	}
	if !ok {
		// settled or cancelled between the read and the write
		return nil, apperror.InvalidState(fmt.Sprintf("invoice is %s and can no longer be edited", current.Status))
	}

	s.log.Info("Invoice updated",
		zap.String("invoice_number", current.InvoiceNumber),
		zap.String("total_amount", current.TotalAmount.String()),
	)
	return s.respond(current), nil
}

func (s *invoiceService) MarkInvoicePaid(ctx context.Context, invoiceID string, req *request.MarkInvoicePaidRequest) (*response.InvoiceResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation("validation failed: " + utils.FormatValidationErrors(errs))
	}

	inv, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	var (
		current *entity.Invoice
		changed bool
	)
	err = s.repo.WithinTx(ctx, func(tx *repository.Repository) error {
		var payment *entity.Payment
		if req.PaymentID != "" {
			paymentID, err := parseID("payment", req.PaymentID)
			if err != nil {
				return err
			}
			if payment, err = tx.Payment.FindByID(ctx, paymentID); err != nil {
				return err
			}
			if payment == nil {
				return apperror.NotFound("payment", req.PaymentID)
			}
			if payment.BookingID != inv.BookingID {
				return apperror.Validation("payment belongs to another booking")
			}
			if payment.Status != entity.PaymentStatusCompleted {
				return apperror.InvalidState(fmt.Sprintf("payment is %s, only a completed payment can settle an invoice", payment.Status))
			}
		} else {
			if payment, err = tx.Payment.FindCompletedByBookingID(ctx, inv.BookingID); err != nil {
				return err
			}
			if payment == nil {
				return apperror.InvalidState("booking has no completed payment; confirm a manual payment first")
			}
		}

		fresh, err := tx.Invoice.FindByID(ctx, inv.ID)
		if err != nil {
			return err
		}
		if fresh == nil {
			return apperror.NotFound("invoice", invoiceID)
		}
		if fresh.Status == entity.InvoiceStatusCancelled {
			return apperror.InvalidState("cancelled invoices cannot be paid")
		}

		current, changed, err = s.reconciler.MarkPaidFromPayment(ctx, tx, fresh, payment)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		if err := s.notifier.Notify(ctx, events.ForInvoice(events.InvoicePaid, current, s.now())); err != nil {
			s.log.Error("Failed to queue invoice notification",
				zap.Error(err),
				zap.String("invoice_id", current.ID.String()),
			)
		}
	}
	return s.respond(current), nil
}

func (s *invoiceService) MarkSent(ctx context.Context, invoiceID string) (*response.InvoiceResponse, error) {
	inv, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == entity.InvoiceStatusSent {
		return s.respond(inv), nil
	}

	ok, err := s.repo.Invoice.MarkSent(ctx, inv.ID, s.now())
	if err != nil {
		return nil, err
	}
	current, err := s.repo.Invoice.FindByID(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperror.NotFound("invoice", invoiceID)
	}
	if !ok {
		if current.Status == entity.InvoiceStatusSent {
			return s.respond(current), nil
		}
		return nil, apperror.InvalidState(fmt.Sprintf("only pending invoices can be sent, invoice is %s", current.Status))
	}

	s.log.Info("Invoice sent", zap.String("invoice_number", current.InvoiceNumber))
	if err := s.notifier.Notify(ctx, events.ForInvoice(events.InvoiceSent, current, s.now())); err != nil {
		s.log.Error("Failed to queue invoice notification",
			zap.Error(err),
			zap.String("invoice_id", current.ID.String()),
		)
	}
	return s.respond(current), nil
}

func (s *invoiceService) CancelInvoice(ctx context.Context, invoiceID string) (*response.InvoiceResponse, error) {
	inv, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == entity.InvoiceStatusCancelled {
		return s.respond(inv), nil
	}

	ok, err := s.repo.Invoice.Cancel(ctx, inv.ID, s.now())
	if err != nil {
		return nil, err
	}
	current, err := s.repo.Invoice.FindByID(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperror.NotFound("invoice", invoiceID)
	}
	if !ok {
		return nil, apperror.InvalidState(fmt.Sprintf("invoice is %s and cannot be cancelled", current.Status))
	}

	s.log.Info("Invoice cancelled", zap.String("invoice_number", current.InvoiceNumber))
	return s.respond(current), nil
}

func (s *invoiceService) SweepOverdue(ctx context.Context) (*response.SweepResponse, error) {
	count, err := s.reconciler.SweepOverdue(ctx, s.repo, s.now())
	if err != nil {
		return nil, err
	}
	return &response.SweepResponse{Updated: count}, nil
}

func (s *invoiceService) RenderPDF(ctx context.Context, invoiceID string) ([]byte, string, error) {
	inv, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, "", err
	}

	customer, err := s.repo.User.FindByID(ctx, inv.UserID)
	if err != nil {
		return nil, "", err
	}

	var payment *entity.Payment
	if inv.PaymentID != nil {
		if payment, err = s.repo.Payment.FindByID(ctx, *inv.PaymentID); err != nil {
			return nil, "", err
		}
	}

	doc, err := invoicepdf.Render(invoicepdf.Document{
		Invoice:  inv,
		Customer: customer,
		Payment:  payment,
		Issuer:   s.issuer,
	})
	if err != nil {
		s.log.Error("Failed to render invoice", zap.Error(err), zap.String("invoice_id", invoiceID))
		return nil, "", err
	}
	return doc, invoicepdf.Filename(inv), nil
}
