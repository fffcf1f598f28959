package adaptor

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"carwash-payments/internal/gateway/card"
	"carwash-payments/internal/gateway/mpesa"
	"carwash-payments/internal/usecase"
	"carwash-payments/pkg/apperror"
	"carwash-payments/pkg/utils"

	"go.uber.org/zap"
)

// CallbackHandler receives provider pushes. Providers retry anything that is
// not a 2xx, so business failures are acknowledged and left to verification.
type CallbackHandler struct {
	service       usecase.PaymentService
	callbackToken string
	log           *zap.Logger
}

func NewCallbackHandler(service usecase.PaymentService, callbackToken string, log *zap.Logger) *CallbackHandler {
	return &CallbackHandler{
		service:       service,
		callbackToken: callbackToken,
		log:           log.With(zap.String("handler", "callback")),
	}
}

type mpesaAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func writeMpesaAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(mpesaAck{ResultCode: 0, ResultDesc: "Accepted"})
}

func (h *CallbackHandler) tokenMatches(r *http.Request) bool {
	if h.callbackToken == "" {
		return true
	}
	got := r.URL.Query().Get("token")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackToken)) == 1
}

// MpesaCallback handles POST /api/payments/mpesa/callback (public, always 200)
func (h *CallbackHandler) MpesaCallback(w http.ResponseWriter, r *http.Request) {
	if !h.tokenMatches(r) {
		h.log.Warn("M-Pesa callback with wrong token dropped", zap.String("ip", r.RemoteAddr))
		writeMpesaAck(w)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.log.Warn("Failed to read M-Pesa callback body", zap.Error(err))
		writeMpesaAck(w)
		return
	}

	if _, err := h.service.ProcessCallback(r.Context(), mpesa.ProviderName, payload, r.Header); err != nil {
		h.log.Error("M-Pesa callback not applied", zap.Error(err))
	}
	writeMpesaAck(w)
}

// StripeWebhook handles POST /api/payments/stripe/webhook (public, signed)
func (h *CallbackHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	res, err := h.service.ProcessCallback(r.Context(), card.ProviderName, payload, r.Header)
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidSignature) {
			h.log.Warn("Stripe webhook signature rejected", zap.Error(err))
			utils.ResponseBadRequest(w, apperror.Message(err), nil)
			return
		}
		h.log.Error("Stripe webhook not applied", zap.Error(err))
	}

	utils.ResponseSuccess(w, "received", res)
}
