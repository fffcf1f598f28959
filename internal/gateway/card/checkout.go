package card

import (
	"context"
	"strings"

	"carwash-payments/internal/gateway"
	"carwash-payments/pkg/apperror"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

const (
	sessionPrefix = "cs_"
	intentPrefix  = "pi_"

	metadataPaymentID = "payment_id"
	metadataBookingID = "booking_id"
	metadataUserID    = "user_id"
)

// IsSessionID reports whether id names a Checkout Session rather than a PaymentIntent.
func IsSessionID(id string) bool {
	return strings.HasPrefix(id, sessionPrefix)
}

func IsIntentID(id string) bool {
	return strings.HasPrefix(id, intentPrefix)
}

// Initiate opens a hosted Checkout Session when the payer supplied return
// URLs and a bare PaymentIntent otherwise.
func (c *Client) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = c.cfg.DefaultCurrency
	}

	amount := toMinor(req.Amount, currency)
	if amount < 1 {
		return nil, apperror.Validation("amount must be greater than zero")
	}

	metadata := map[string]string{
		metadataPaymentID: req.PaymentID.String(),
		metadataBookingID: req.BookingID.String(),
		metadataUserID:    req.UserID.String(),
	}

	if req.Payer.SuccessURL != "" {
		return c.createSession(ctx, req, currency, amount, metadata)
	}
	return c.createIntent(ctx, req, currency, amount, metadata)
}

func (c *Client) createSession(ctx context.Context, req gateway.InitiateRequest, currency string, amount int64, metadata map[string]string) (*gateway.InitiateResult, error) {
	cancelURL := req.Payer.CancelURL
	if cancelURL == "" {
		cancelURL = req.Payer.SuccessURL
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.Payer.SuccessURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(req.PaymentID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(narrative(req)),
					},
					UnitAmount: stripe.Int64(amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	if req.Payer.Email != "" {
		params.CustomerEmail = stripe.String(req.Payer.Email)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + req.PaymentID.String())

	session, err := c.backend.NewCheckoutSession(params)
	if err != nil {
		return nil, c.translate("create checkout session", err)
	}

	res := &gateway.InitiateResult{
		CheckoutID:  session.ID,
		RedirectURL: session.URL,
		Message:     "Complete the payment on the Stripe checkout page",
	}
	if session.PaymentIntent != nil {
		res.MerchantID = session.PaymentIntent.ID
	}

	c.log.Info("Checkout session created",
		zap.String("session_id", session.ID),
		zap.String("payment_id", req.PaymentID.String()),
	)
	return res, nil
}

func (c *Client) createIntent(ctx context.Context, req gateway.InitiateRequest, currency string, amount int64, metadata map[string]string) (*gateway.InitiateResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(currency),
		Description: stripe.String(narrative(req)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Payer.Email != "" {
		params.ReceiptEmail = stripe.String(req.Payer.Email)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	params.SetIdempotencyKey("intent-" + req.PaymentID.String())

	intent, err := c.backend.NewPaymentIntent(params)
	if err != nil {
		return nil, c.translate("create payment intent", err)
	}

	c.log.Info("Payment intent created",
		zap.String("payment_intent_id", intent.ID),
		zap.String("payment_id", req.PaymentID.String()),
	)

	return &gateway.InitiateResult{
		CheckoutID:   intent.ID,
		MerchantID:   intent.ID,
		ClientSecret: intent.ClientSecret,
		Message:      "Confirm the card payment with the client secret",
	}, nil
}

func (c *Client) QueryStatus(ctx context.Context, checkoutID string) (*gateway.Result, error) {
	if IsSessionID(checkoutID) {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		params.AddExpand("payment_intent")

		session, err := c.backend.GetCheckoutSession(checkoutID, params)
		if err != nil {
			return nil, c.translate("get checkout session", err)
		}
		return sessionResult(session), nil
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := c.backend.GetPaymentIntent(checkoutID, params)
	if err != nil {
		return nil, c.translate("get payment intent", err)
	}
	return intentResult(intent), nil
}

func narrative(req gateway.InitiateRequest) string {
	if req.Narrative != "" {
		return req.Narrative
	}
	return "Car wash booking " + req.Reference
}

func sessionOutcome(s *stripe.CheckoutSession) gateway.Outcome {
	switch {
	case s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return gateway.OutcomeSuccess
	case s.Status == stripe.CheckoutSessionStatusExpired:
		return gateway.OutcomeExpired
	default:
		return gateway.OutcomePending
	}
}

func sessionResult(s *stripe.CheckoutSession) *gateway.Result {
	amount := fromMinor(s.AmountTotal, string(s.Currency))
	res := &gateway.Result{
		CheckoutID:        s.ID,
		ResultCode:        string(s.PaymentStatus),
		ResultDescription: string(s.Status),
		Amount:            &amount,
		Outcome:           sessionOutcome(s),
		PaymentID:         s.Metadata[metadataPaymentID],
	}
	if res.PaymentID == "" {
		res.PaymentID = s.ClientReferenceID
	}
	if s.PaymentIntent != nil {
		res.PaymentIntentID = s.PaymentIntent.ID
		if s.PaymentIntent.LatestCharge != nil {
			res.ReceiptID = s.PaymentIntent.LatestCharge.ID
		}
	}
	return res
}

func intentOutcome(pi *stripe.PaymentIntent) gateway.Outcome {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return gateway.OutcomeSuccess
	case stripe.PaymentIntentStatusProcessing:
		return gateway.OutcomeProcessing
	case stripe.PaymentIntentStatusCanceled:
		return gateway.OutcomeFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// a declined attempt falls back to requires_payment_method and can be retried
		if pi.LastPaymentError != nil {
			return gateway.OutcomeDeclined
		}
		return gateway.OutcomePending
	default:
		return gateway.OutcomePending
	}
}

func intentResult(pi *stripe.PaymentIntent) *gateway.Result {
	amount := fromMinor(pi.Amount, string(pi.Currency))
	res := &gateway.Result{
		CheckoutID:        pi.ID,
		PaymentIntentID:   pi.ID,
		ResultCode:        string(pi.Status),
		ResultDescription: string(pi.Status),
		Amount:            &amount,
		Outcome:           intentOutcome(pi),
		PaymentID:         pi.Metadata[metadataPaymentID],
	}
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		res.ResultDescription = pi.LastPaymentError.Msg
	}
	if pi.Status == stripe.PaymentIntentStatusCanceled && pi.CancellationReason != "" {
		res.ResultDescription = "canceled: " + string(pi.CancellationReason)
	}
	if pi.LatestCharge != nil {
		res.ReceiptID = pi.LatestCharge.ID
	}
	return res
}
