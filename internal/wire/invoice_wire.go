package wire

import (
	"net/http"

	"carwash-payments/internal/adaptor"
	"carwash-payments/pkg/middleware"
	"carwash-payments/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireInvoice(
	r chi.Router,
	invoiceHandler *adaptor.InvoiceHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	staff := middleware.RequireRole(log, utils.RoleStaff, utils.RoleAdmin)

	r.Route("/api/invoices", func(r chi.Router) {
		// ==================== INTERNAL ROUTES ====================
		// PATCH /api/invoices/overdue/update - Scheduler trigger, falls back to admin JWT
		adminOnly := func(next http.Handler) http.Handler {
			return authenticate(config, log)(middleware.RequireRole(log, utils.RoleAdmin)(next))
		}
		r.With(middleware.InternalToken(config.Internal.TokenHash, adminOnly, log)).
			Patch("/overdue/update", invoiceHandler.SweepOverdue)

		// ==================== PROTECTED ROUTES ====================
		r.Group(func(r chi.Router) {
			r.Use(authenticate(config, log))

			r.Get("/me", invoiceHandler.ListMyInvoices)
			r.Get("/{id}", invoiceHandler.GetInvoice)
			r.Get("/{id}/pdf", invoiceHandler.DownloadPDF)
			r.Get("/number/{number}", invoiceHandler.GetInvoiceByNumber)
			r.Get("/booking/{bookingId}", invoiceHandler.GetInvoiceByBooking)

			// ==================== STAFF ROUTES ====================
			r.Group(func(r chi.Router) {
				r.Use(staff)

				r.Post("/", invoiceHandler.CreateInvoice)
				r.Get("/", invoiceHandler.ListInvoices)
				r.Get("/stats", invoiceHandler.GetStats)
				r.Get("/overdue", invoiceHandler.ListOverdue)
				r.Patch("/{id}", invoiceHandler.UpdateInvoice)
				r.Patch("/{id}/paid", invoiceHandler.MarkPaid)
				r.Patch("/{id}/send", invoiceHandler.MarkSent)
				r.Patch("/{id}/cancel", invoiceHandler.CancelInvoice)
			})
		})
	})
}
