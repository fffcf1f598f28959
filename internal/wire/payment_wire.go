package wire

import (
	"net/http"

	"carwash-payments/internal/adaptor"
	"carwash-payments/pkg/middleware"
	"carwash-payments/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wirePayment(
	r chi.Router,
	paymentHandler *adaptor.PaymentHandler,
	limit func(http.Handler) http.Handler,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Group(func(r chi.Router) {
		r.Use(authenticate(config, log))

		// POST /api/payments/initialize - Start a payment for a booking
		r.Post("/api/payments/initialize", paymentHandler.InitializePayment)

		// GET /api/payments/verify/{correlationId} - Poll the provider
		r.With(limit).Get("/api/payments/verify/{correlationId}", paymentHandler.VerifyPayment)

		// POST /api/payments/{id}/cancel - Abandon a pending payment
		r.Post("/api/payments/{id}/cancel", paymentHandler.CancelPayment)

		r.Get("/api/payments/transaction/{correlationId}", paymentHandler.GetPaymentByTransaction)
		r.Get("/api/payments/{id}", paymentHandler.GetPayment)
	})

	// ==================== STAFF ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(authenticate(config, log))
		r.Use(middleware.RequireRole(log, utils.RoleStaff, utils.RoleAdmin))

		r.Get("/api/payments/stats", paymentHandler.GetStats)

		// POST /api/payments/{id}/refund - Refund a completed payment
		r.Post("/api/payments/{id}/refund", paymentHandler.RefundPayment)

		// POST /api/payments/{id}/confirm - Settle a cash or other payment at the till
		r.Post("/api/payments/{id}/confirm", paymentHandler.ConfirmManualPayment)
	})
}

func wireCallback(
	r chi.Router,
	callbackHandler *adaptor.CallbackHandler,
	limit func(http.Handler) http.Handler,
	log *zap.Logger,
) {
	// ==================== PROVIDER ROUTES ====================
	// Authenticated by callback token or signature inside the handler
	r.Group(func(r chi.Router) {
		r.Use(limit)

		r.Post("/api/payments/mpesa/callback", callbackHandler.MpesaCallback)
		r.Post("/api/payments/stripe/webhook", callbackHandler.StripeWebhook)
	})
}
