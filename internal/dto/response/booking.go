package response

import (
	"time"

	"carwash-payments/internal/data/entity"

	"github.com/shopspring/decimal"
)

type BookingResponse struct {
	ID          string               `json:"id"`
	UserID      string               `json:"user_id"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	Status      entity.BookingStatus `json:"status"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func BookingToResponse(b *entity.Booking) BookingResponse {
	return BookingResponse{
		ID:          b.ID.String(),
		UserID:      b.UserID.String(),
		TotalAmount: b.TotalAmount,
		Status:      b.Status,
		UpdatedAt:   b.UpdatedAt,
	}
}
