package adaptor

import (
	"carwash-payments/internal/usecase"
	"carwash-payments/pkg/utils"

	"go.uber.org/zap"
)

type Handler struct {
	Payment  *PaymentHandler
	Callback *CallbackHandler
	Invoice  *InvoiceHandler
	Booking  *BookingHandler
}

func NewHandler(service *usecase.Service, config *utils.Config, log *zap.Logger) *Handler {
	return &Handler{
		Payment:  NewPaymentHandler(service.Payment, log),
		Callback: NewCallbackHandler(service.Payment, config.MPesa.CallbackToken, log),
		Invoice:  NewInvoiceHandler(service.Invoice, log),
		Booking:  NewBookingHandler(service.Booking, service.Payment, log),
	}
}
