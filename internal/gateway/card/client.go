// Package card is the Stripe card payment adapter.
package card

import (
	"errors"
	"net/http"
	"time"

	"carwash-payments/pkg/apperror"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

const ProviderName = "stripe"

type Config struct {
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
	MaxRetries    int64
	// DefaultCurrency is used when a request carries none.
	DefaultCurrency string
}

// backend is the slice of the Stripe API this adapter calls.
type backend interface {
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	NewPaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	NewRefund(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeBackend struct {
	api *client.API
}

func (b *stripeBackend) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return b.api.CheckoutSessions.New(params)
}

func (b *stripeBackend) GetCheckoutSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return b.api.CheckoutSessions.Get(id, params)
}

func (b *stripeBackend) NewPaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return b.api.PaymentIntents.New(params)
}

func (b *stripeBackend) GetPaymentIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return b.api.PaymentIntents.Get(id, params)
}

func (b *stripeBackend) NewRefund(params *stripe.RefundParams) (*stripe.Refund, error) {
	return b.api.Refunds.New(params)
}

type Client struct {
	cfg     Config
	backend backend
	log     *zap.Logger
}

// New builds a client with its own backend so the global stripe.Key is never touched.
func New(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		LeveledLogger:     log.Named("stripe").Sugar(),
		MaxNetworkRetries: stripe.Int64(cfg.MaxRetries),
	}
	api := client.New(cfg.SecretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, &stripe.BackendConfig{HTTPClient: backendConfig.HTTPClient}),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, &stripe.BackendConfig{HTTPClient: backendConfig.HTTPClient}),
	})

	return newWithBackend(cfg, &stripeBackend{api: api}, log)
}

func newWithBackend(cfg Config, b backend, log *zap.Logger) *Client {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "kes"
	}
	return &Client{
		cfg:     cfg,
		backend: b,
		log:     log.With(zap.String("gateway", ProviderName)),
	}
}

func (c *Client) Name() string {
	return ProviderName
}

// translate folds Stripe errors into the engine's error kinds.
func (c *Client) translate(op string, err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		c.log.Warn("Stripe request failed", zap.String("op", op), zap.Error(err))
		return apperror.ProviderUnavailable(ProviderName, err)
	}

	c.log.Warn("Stripe returned an error",
		zap.String("op", op),
		zap.Int("status", se.HTTPStatusCode),
		zap.String("type", string(se.Type)),
		zap.String("code", string(se.Code)),
		zap.String("request_id", se.RequestID),
	)

	switch {
	case se.HTTPStatusCode >= http.StatusInternalServerError,
		se.HTTPStatusCode == http.StatusTooManyRequests,
		se.HTTPStatusCode == http.StatusUnauthorized,
		se.HTTPStatusCode == http.StatusForbidden,
		se.Type == stripe.ErrorTypeAPI:
		return apperror.ProviderUnavailable(ProviderName, se)
	case se.HTTPStatusCode == http.StatusNotFound:
		return apperror.Wrap(apperror.ErrNotFound, "stripe object not found", se)
	default:
		msg := se.Msg
		if msg == "" {
			msg = "card payment rejected"
		}
		return apperror.Wrap(apperror.ErrValidation, msg, se)
	}
}
