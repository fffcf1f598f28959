package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

type Invoice struct {
	BaseNoDelete
	InvoiceNumber string          `db:"invoice_number"`
	BookingID     uuid.UUID       `db:"booking_id"`
	UserID        uuid.UUID       `db:"user_id"`
	PaymentID     *uuid.UUID      `db:"payment_id"`
	Amount        decimal.Decimal `db:"amount"`
	TaxAmount     decimal.Decimal `db:"tax_amount"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
	Currency      string          `db:"currency"`
	Status        InvoiceStatus   `db:"status"`
	DueDate       time.Time       `db:"due_date"`
	Notes         *string         `db:"notes"`
	SentAt        *time.Time      `db:"sent_at"`
	PaidAt        *time.Time      `db:"paid_at"`
}

type InvoiceStats struct {
	Total             int64           `json:"total"`
	Pending           int64           `json:"pending"`
	Sent              int64           `json:"sent"`
	Paid              int64           `json:"paid"`
	Overdue           int64           `json:"overdue"`
	Cancelled         int64           `json:"cancelled"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
}
