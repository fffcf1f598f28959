package response

import (
	"time"

	"carwash-payments/internal/data/entity"

	"github.com/shopspring/decimal"
)

type InvoiceResponse struct {
	ID            string               `json:"id"`
	InvoiceNumber string               `json:"invoice_number"`
	BookingID     string               `json:"booking_id"`
	UserID        string               `json:"user_id"`
	PaymentID     *string              `json:"payment_id,omitempty"`
	Amount        decimal.Decimal      `json:"amount"`
	TaxAmount     decimal.Decimal      `json:"tax_amount"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	Currency      string               `json:"currency"`
	Status        entity.InvoiceStatus `json:"status"`
	DueDate       time.Time            `json:"due_date"`
	Notes         *string              `json:"notes,omitempty"`
	SentAt        *time.Time           `json:"sent_at,omitempty"`
	PaidAt        *time.Time           `json:"paid_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

type SweepResponse struct {
	Updated int64 `json:"updated"`
}

func InvoiceToResponse(inv *entity.Invoice) InvoiceResponse {
	res := InvoiceResponse{
		ID:            inv.ID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		BookingID:     inv.BookingID.String(),
		UserID:        inv.UserID.String(),
		Amount:        inv.Amount,
		TaxAmount:     inv.TaxAmount,
		TotalAmount:   inv.TotalAmount,
		Currency:      inv.Currency,
		Status:        inv.Status,
		DueDate:       inv.DueDate,
		Notes:         inv.Notes,
		SentAt:        inv.SentAt,
		PaidAt:        inv.PaidAt,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
	if inv.PaymentID != nil {
		id := inv.PaymentID.String()
		res.PaymentID = &id
	}
	return res
}

func InvoicesToResponse(invoices []*entity.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, InvoiceToResponse(inv))
	}
	return out
}
