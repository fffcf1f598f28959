package adaptor

import (
	"net/http"

	"carwash-payments/internal/dto/request"
	"carwash-payments/internal/usecase"
	"carwash-payments/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service  usecase.BookingService
	payments usecase.PaymentService
	log      *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, payments usecase.PaymentService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service:  service,
		payments: payments,
		log:      log.With(zap.String("handler", "booking")),
	}
}

// GetBookingPayments handles GET /api/bookings/{bookingId}/payments (protected)
func (h *BookingHandler) GetBookingPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.payments.ListBookingPayments(r.Context(), chi.URLParam(r, "bookingId"))
	if err != nil {
		handleServiceError(w, h.log, err, "list booking payments")
		return
	}

	utils.ResponseSuccess(w, "success", payments)
}

// UpdateStatus handles PATCH /api/bookings/{bookingId}/status (staff)
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req request.UpdateBookingStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	booking, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "bookingId"), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "update booking status")
		return
	}

	utils.ResponseSuccess(w, "Booking status updated", booking)
}
