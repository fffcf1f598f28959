package adaptor

import (
	"net/http"

	"carwash-payments/internal/dto/request"
	"carwash-payments/internal/usecase"
	"carwash-payments/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// InitializePayment handles POST /api/payments/initialize (protected)
func (h *PaymentHandler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.InitializePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	res, err := h.service.InitializePayment(r.Context(), userID.String(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "initialize payment")
		return
	}

	utils.ResponseCreated(w, "Payment initiated", res)
}

// VerifyPayment handles GET /api/payments/verify/{correlationId} (protected)
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.VerifyPayment(r.Context(), chi.URLParam(r, "correlationId"))
	if err != nil {
		handleServiceError(w, h.log, err, "verify payment")
		return
	}

	utils.ResponseSuccess(w, "success", res)
}

// CancelPayment handles POST /api/payments/{id}/cancel (protected)
func (h *PaymentHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.CancelPendingPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "cancel payment")
		return
	}

	utils.ResponseSuccess(w, "Payment cancelled", res)
}

// RefundPayment handles POST /api/payments/{id}/refund (staff)
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var req request.RefundPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	res, err := h.service.RefundPayment(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "refund payment")
		return
	}

	utils.ResponseSuccess(w, res.Message, res)
}

// ConfirmManualPayment handles POST /api/payments/{id}/confirm (staff)
func (h *PaymentHandler) ConfirmManualPayment(w http.ResponseWriter, r *http.Request) {
	var req request.ConfirmManualPaymentRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.ConfirmManualPayment(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "confirm manual payment")
		return
	}

	utils.ResponseSuccess(w, "Payment confirmed", res)
}

// GetPayment handles GET /api/payments/{id} (protected)
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get payment")
		return
	}

	utils.ResponseSuccess(w, "success", res)
}

// GetPaymentByTransaction handles GET /api/payments/transaction/{correlationId} (protected)
func (h *PaymentHandler) GetPaymentByTransaction(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetPaymentByTransaction(r.Context(), chi.URLParam(r, "correlationId"))
	if err != nil {
		handleServiceError(w, h.log, err, "get payment by transaction")
		return
	}

	utils.ResponseSuccess(w, "success", res)
}

// GetStats handles GET /api/payments/stats?from=&to= (staff)
func (h *PaymentHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := &request.PaymentStatsRequest{
		From: query.Get("from"),
		To:   query.Get("to"),
	}

	res, err := h.service.GetStats(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.log, err, "payment stats")
		return
	}

	utils.ResponseSuccess(w, "success", res)
}
