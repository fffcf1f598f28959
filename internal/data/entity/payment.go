package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusExpired    PaymentStatus = "expired"
)

// ActivePaymentStatuses are the statuses an outcome may still be applied to.
var ActivePaymentStatuses = []PaymentStatus{PaymentStatusPending, PaymentStatusProcessing}

func (s PaymentStatus) IsActive() bool {
	return s == PaymentStatusPending || s == PaymentStatusProcessing
}

// IsSettled reports whether no provider outcome can change the payment any more.
func (s PaymentStatus) IsSettled() bool {
	return !s.IsActive()
}

type PaymentMethod string

const (
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodOther       PaymentMethod = "other"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodMobileMoney, PaymentMethodCard, PaymentMethodCash, PaymentMethodOther:
		return true
	}
	return false
}

// IsManual reports methods settled by staff rather than a provider.
func (m PaymentMethod) IsManual() bool {
	return m == PaymentMethodCash || m == PaymentMethodOther
}

type Payment struct {
	BaseNoDelete
	BookingID     uuid.UUID       `db:"booking_id"`
	UserID        uuid.UUID       `db:"user_id"`
	Amount        decimal.Decimal `db:"amount"`
	Currency      string          `db:"currency"`
	Status        PaymentStatus   `db:"status"`
	Method        PaymentMethod   `db:"payment_method"`
	TransactionID string          `db:"transaction_id"`
	PhoneNumber   *string         `db:"phone_number"`

	MpesaCheckoutRequestID *string `db:"mpesa_checkout_request_id"`
	MpesaMerchantRequestID *string `db:"mpesa_merchant_request_id"`
	MpesaReceiptNumber     *string `db:"mpesa_receipt_number"`
	StripeSessionID        *string `db:"stripe_session_id"`
	StripePaymentIntentID  *string `db:"stripe_payment_intent_id"`

	FailureReason *string    `db:"failure_reason"`
	RefundReason  *string    `db:"refund_reason"`
	PaidAt        *time.Time `db:"paid_at"`
	RefundedAt    *time.Time `db:"refunded_at"`
}

// PaymentStats aggregates payments per status or per method.
type PaymentStats struct {
	Key         string          `json:"key"`
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}
