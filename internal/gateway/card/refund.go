package card

import (
	"context"
	"strings"

	"carwash-payments/internal/gateway"
	"carwash-payments/pkg/apperror"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// Refund reverses a settled card payment. A zero amount refunds in full.
func (c *Client) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	if !IsIntentID(req.PaymentIntentID) {
		return nil, apperror.InvalidState("payment has no Stripe payment intent to refund")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if req.Amount.IsPositive() {
		currency := strings.ToLower(req.Currency)
		if currency == "" {
			currency = c.cfg.DefaultCurrency
		}
		params.Amount = stripe.Int64(toMinor(req.Amount, currency))
	}
	params.AddMetadata(metadataPaymentID, req.PaymentID.String())
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + req.PaymentID.String())

	refund, err := c.backend.NewRefund(params)
	if err != nil {
		return nil, c.translate("create refund", err)
	}

	c.log.Info("Refund created",
		zap.String("refund_id", refund.ID),
		zap.String("payment_intent_id", req.PaymentIntentID),
		zap.String("status", string(refund.Status)),
	)

	return &gateway.RefundResult{RefundID: refund.ID, Status: string(refund.Status)}, nil
}
