// Package gateway defines the contract every payment provider adapter
// fulfils and the canonical result shape the reconciliation engine consumes.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"carwash-payments/internal/data/entity"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outcome is a provider result reduced to what the ledger can apply.
type Outcome string

const (
	// OutcomePending means the provider has nothing to report yet.
	OutcomePending    Outcome = "pending"
	OutcomeProcessing Outcome = "processing"
	OutcomeSuccess    Outcome = "success"
	OutcomeFailed     Outcome = "failed"
	OutcomeExpired    Outcome = "expired"
	// OutcomeDeclined is a refused attempt the payer may retry on the same
	// checkout, so the payment stays open.
	OutcomeDeclined Outcome = "declined"
)

// PaymentStatus is the ledger status an outcome settles into.
func (o Outcome) PaymentStatus() entity.PaymentStatus {
	switch o {
	case OutcomeSuccess:
		return entity.PaymentStatusCompleted
	case OutcomeFailed:
		return entity.PaymentStatusFailed
	case OutcomeExpired:
		return entity.PaymentStatusExpired
	case OutcomeProcessing:
		return entity.PaymentStatusProcessing
	default:
		return entity.PaymentStatusPending
	}
}

// IsFinal reports outcomes that settle a payment.
func (o Outcome) IsFinal() bool {
	return o == OutcomeSuccess || o == OutcomeFailed || o == OutcomeExpired
}

type Payer struct {
	Phone      string
	Email      string
	Name       string
	SuccessURL string
	CancelURL  string
}

type InitiateRequest struct {
	PaymentID uuid.UUID
	BookingID uuid.UUID
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	// Reference is the merchant reference shown to the payer.
	Reference string
	Narrative string
	Payer     Payer
}

type InitiateResult struct {
	// CheckoutID is the provider's correlation id for this attempt.
	CheckoutID string
	// MerchantID is the provider's secondary id (merchant request or payment intent).
	MerchantID   string
	Message      string
	ClientSecret string
	RedirectURL  string
	// PayerPhone is the normalized phone the push was sent to.
	PayerPhone string
}

// Result is a status query answer or a normalized callback.
type Result struct {
	CheckoutID        string
	ResultCode        string
	ResultDescription string
	ReceiptID         string
	PaymentIntentID   string
	Amount            *decimal.Decimal
	Outcome           Outcome
	// PaymentID is our own payment id when the provider echoes it back.
	PaymentID string
	// EventID identifies one delivery for replay detection.
	EventID string
}

type RefundRequest struct {
	PaymentID       uuid.UUID
	PaymentIntentID string
	Amount          decimal.Decimal
	Currency        string
	Reason          string
}

type RefundResult struct {
	RefundID string
	Status   string
}

// Provider is one external payment provider.
type Provider interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	// QueryStatus is read-only and safe to repeat.
	QueryStatus(ctx context.Context, checkoutID string) (*Result, error)
	// NormalizeCallback returns apperror.ErrUnrecognizedPayload for payloads
	// it cannot interpret and never panics on malformed input.
	NormalizeCallback(ctx context.Context, payload []byte, header http.Header) (*Result, error)
}

// Refunder is implemented by providers that can reverse a settled payment.
type Refunder interface {
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

// Registry maps a payment method to the provider that serves it.
type Registry map[entity.PaymentMethod]Provider

func (r Registry) For(method entity.PaymentMethod) (Provider, error) {
	p, ok := r[method]
	if !ok || p == nil {
		return nil, fmt.Errorf("no provider configured for %s", method)
	}
	return p, nil
}

// ByName finds the provider that receives callbacks under name.
func (r Registry) ByName(name string) (Provider, bool) {
	for _, p := range r {
		if p != nil && p.Name() == name {
			return p, true
		}
	}
	return nil, false
}
