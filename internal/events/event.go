// Package events carries settlement and invoice notifications to the
// notification service over RabbitMQ.
package events

import (
	"time"

	"carwash-payments/internal/data/entity"

	"github.com/shopspring/decimal"
)

// Routing keys on the payments exchange.
const (
	PaymentCompleted = "payment.completed"
	PaymentFailed    = "payment.failed"
	PaymentRefunded  = "payment.refunded"
	InvoiceSent      = "invoice.sent"
	InvoicePaid      = "invoice.paid"
)

type Event struct {
	// ID is stable per fact so consumers can drop redeliveries.
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	PaymentID     string          `json:"payment_id,omitempty"`
	BookingID     string          `json:"booking_id,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
	InvoiceID     string          `json:"invoice_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	Method        string          `json:"payment_method,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

func ForPayment(kind string, p *entity.Payment, at time.Time) Event {
	e := Event{
		ID:         kind + ":" + p.ID.String(),
		Type:       kind,
		OccurredAt: at,
		PaymentID:  p.ID.String(),
		BookingID:  p.BookingID.String(),
		UserID:     p.UserID.String(),
		Method:     string(p.Method),
		Amount:     p.Amount,
		Currency:   p.Currency,
	}
	switch {
	case p.FailureReason != nil:
		e.Reason = *p.FailureReason
	case p.RefundReason != nil:
		e.Reason = *p.RefundReason
	}
	return e
}

func ForInvoice(kind string, inv *entity.Invoice, at time.Time) Event {
	e := Event{
		ID:            kind + ":" + inv.ID.String(),
		Type:          kind,
		OccurredAt:    at,
		BookingID:     inv.BookingID.String(),
		UserID:        inv.UserID.String(),
		InvoiceID:     inv.ID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        inv.TotalAmount,
		Currency:      inv.Currency,
	}
	if inv.PaymentID != nil {
		e.PaymentID = inv.PaymentID.String()
	}
	return e
}
