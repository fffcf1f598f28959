package request

import "github.com/shopspring/decimal"

type CreateInvoiceRequest struct {
	BookingID string           `json:"booking_id" validate:"required,uuid"`
	TaxAmount *decimal.Decimal `json:"tax_amount"`
	// DueDate is YYYY-MM-DD.
	DueDate string  `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes   *string `json:"notes" validate:"omitempty,max=1000"`
}

type ListInvoicesRequest struct {
	PaginatedRequest
	Status string `json:"status" validate:"omitempty,oneof=pending sent paid overdue cancelled"`
}

// UpdateInvoiceRequest changes only the fields that are set.
type UpdateInvoiceRequest struct {
	TaxAmount *decimal.Decimal `json:"tax_amount"`
	DueDate   string           `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes     *string          `json:"notes" validate:"omitempty,max=1000"`
}

type MarkInvoicePaidRequest struct {
	// PaymentID defaults to the booking's completed payment.
	PaymentID string `json:"payment_id" validate:"omitempty,uuid"`
}
