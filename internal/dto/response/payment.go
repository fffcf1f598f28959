package response

import (
	"time"

	"carwash-payments/internal/data/entity"

	"github.com/shopspring/decimal"
)

type PaymentResponse struct {
	ID                     string               `json:"id"`
	BookingID              string               `json:"booking_id"`
	UserID                 string               `json:"user_id"`
	Amount                 decimal.Decimal      `json:"amount"`
	Currency               string               `json:"currency"`
	Status                 entity.PaymentStatus `json:"status"`
	PaymentMethod          entity.PaymentMethod `json:"payment_method"`
	TransactionID          string               `json:"transaction_id"`
	PhoneNumber            *string              `json:"phone_number,omitempty"`
	MpesaCheckoutRequestID *string              `json:"mpesa_checkout_request_id,omitempty"`
	MpesaReceiptNumber     *string              `json:"mpesa_receipt_number,omitempty"`
	StripeSessionID        *string              `json:"stripe_session_id,omitempty"`
	StripePaymentIntentID  *string              `json:"stripe_payment_intent_id,omitempty"`
	FailureReason          *string              `json:"failure_reason,omitempty"`
	RefundReason           *string              `json:"refund_reason,omitempty"`
	PaidAt                 *time.Time           `json:"paid_at,omitempty"`
	RefundedAt             *time.Time           `json:"refunded_at,omitempty"`
	CreatedAt              time.Time            `json:"created_at"`
	UpdatedAt              time.Time            `json:"updated_at"`
}

type InitializePaymentResponse struct {
	CorrelationID string          `json:"correlation_id"`
	Message       string          `json:"message,omitempty"`
	ClientSecret  string          `json:"client_secret,omitempty"`
	RedirectURL   string          `json:"redirect_url,omitempty"`
	Payment       PaymentResponse `json:"payment"`
}

type RefundPaymentResponse struct {
	Payment  PaymentResponse `json:"payment"`
	RefundID string          `json:"refund_id,omitempty"`
	// ManualReversalRequired means the money has to be returned outside the provider.
	ManualReversalRequired bool   `json:"manual_reversal_required"`
	Message                string `json:"message"`
}

type CallbackResponse struct {
	Accepted bool `json:"accepted"`
}

type PaymentStatsResponse struct {
	ByStatus []entity.PaymentStats `json:"by_status"`
	ByMethod []entity.PaymentStats `json:"by_method"`
}

func PaymentToResponse(p *entity.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                     p.ID.String(),
		BookingID:              p.BookingID.String(),
		UserID:                 p.UserID.String(),
		Amount:                 p.Amount,
		Currency:               p.Currency,
		Status:                 p.Status,
		PaymentMethod:          p.Method,
		TransactionID:          p.TransactionID,
		PhoneNumber:            p.PhoneNumber,
		MpesaCheckoutRequestID: p.MpesaCheckoutRequestID,
		MpesaReceiptNumber:     p.MpesaReceiptNumber,
		StripeSessionID:        p.StripeSessionID,
		StripePaymentIntentID:  p.StripePaymentIntentID,
		FailureReason:          p.FailureReason,
		RefundReason:           p.RefundReason,
		PaidAt:                 p.PaidAt,
		RefundedAt:             p.RefundedAt,
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}
}

func PaymentsToResponse(payments []*entity.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, PaymentToResponse(p))
	}
	return out
}
