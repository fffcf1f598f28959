package wire

import (
	"carwash-payments/internal/adaptor"
	"carwash-payments/pkg/middleware"
	"carwash-payments/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	r.Route("/api/bookings/{bookingId}", func(r chi.Router) {
		r.Use(authenticate(config, log))

		// GET /api/bookings/{bookingId}/payments - Payment history (owner or staff)
		r.Get("/payments", bookingHandler.GetBookingPayments)

		// PATCH /api/bookings/{bookingId}/status - Explicit transition (staff)
		r.With(middleware.RequireRole(log, utils.RoleStaff, utils.RoleAdmin)).
			Patch("/status", bookingHandler.UpdateStatus)
	})
}
