package card

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"carwash-payments/internal/gateway"
	"carwash-payments/pkg/apperror"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const signatureHeader = "Stripe-Signature"

// NormalizeCallback verifies the Stripe-Signature header before reading
// anything else from the payload.
func (c *Client) NormalizeCallback(ctx context.Context, payload []byte, header http.Header) (*gateway.Result, error) {
	if c.cfg.WebhookSecret == "" {
		return nil, apperror.InvalidSignature(errors.New("webhook secret is not configured"))
	}

	event, err := webhook.ConstructEventWithOptions(payload, header.Get(signatureHeader), c.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		c.log.Warn("Rejected webhook signature", zap.Error(err))
		return nil, apperror.InvalidSignature(err)
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, apperror.UnrecognizedPayload(ProviderName, errors.New("event has no data object"))
	}

	var res *gateway.Result
	switch event.Type {
	case "payment_intent.succeeded",
		"payment_intent.payment_failed",
		"payment_intent.processing",
		"payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, apperror.UnrecognizedPayload(ProviderName, err)
		}
		res = intentResult(&pi)
		res.Outcome = intentEventOutcome(event.Type, res.Outcome)

	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, apperror.UnrecognizedPayload(ProviderName, err)
		}
		res = sessionResult(&s)
		res.Outcome = sessionEventOutcome(event.Type, &s)

	default:
		return nil, apperror.UnrecognizedPayload(ProviderName, fmt.Errorf("unhandled event type %s", event.Type))
	}

	if res.CheckoutID == "" {
		return nil, apperror.UnrecognizedPayload(ProviderName, errors.New("event object has no id"))
	}

	res.EventID = event.ID
	res.ResultCode = string(event.Type)
	return res, nil
}

func intentEventOutcome(t stripe.EventType, fallback gateway.Outcome) gateway.Outcome {
	switch t {
	case "payment_intent.succeeded":
		return gateway.OutcomeSuccess
	case "payment_intent.payment_failed":
		// the intent stays usable after a decline unless Stripe gave up on it
		if fallback == gateway.OutcomeFailed {
			return gateway.OutcomeFailed
		}
		return gateway.OutcomeDeclined
	case "payment_intent.canceled":
		return gateway.OutcomeFailed
	case "payment_intent.processing":
		return gateway.OutcomeProcessing
	}
	return fallback
}

func sessionEventOutcome(t stripe.EventType, s *stripe.CheckoutSession) gateway.Outcome {
	switch t {
	case "checkout.session.completed":
		// delayed methods complete the session before the money moves
		if sessionOutcome(s) == gateway.OutcomeSuccess {
			return gateway.OutcomeSuccess
		}
		return gateway.OutcomeProcessing
	case "checkout.session.async_payment_succeeded":
		return gateway.OutcomeSuccess
	case "checkout.session.async_payment_failed":
		return gateway.OutcomeFailed
	default:
		return gateway.OutcomeExpired
	}
}
