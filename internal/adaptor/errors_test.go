package adaptor

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"carwash-payments/pkg/apperror"

	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperror.Validation("amount must be positive"), http.StatusBadRequest},
		{"signature", apperror.InvalidSignature(errors.New("bad v1")), http.StatusBadRequest},
		{"not found", apperror.NotFound("payment", "CKO1"), http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("verify: %w", apperror.NotFound("payment", "CKO1")), http.StatusNotFound},
		{"duplicate", apperror.DuplicateActivePayment("b1", "mobile_money"), http.StatusConflict},
		{"invalid state", apperror.InvalidState("booking already paid"), http.StatusConflict},
		{"transition", apperror.InvalidTransition("booking", "cancelled", "completed"), http.StatusConflict},
		{"refund unsupported", apperror.New(apperror.ErrRefundUnsupported, "no payment intent"), http.StatusConflict},
		{"provider down", apperror.ProviderUnavailable("mpesa", errors.New("timeout")), http.StatusServiceUnavailable},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleServiceError(rec, zap.NewNop(), tt.err, "test")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandleServiceErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	handleServiceError(rec, zap.NewNop(), errors.New("pq: password authentication failed"), "test")

	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
}

func TestMpesaCallbackWrongTokenStillAcknowledged(t *testing.T) {
	h := NewCallbackHandler(nil, "s3cret", zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/payments/mpesa/callback?token=guess", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.MpesaCallback(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ResultCode":0`) {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}
