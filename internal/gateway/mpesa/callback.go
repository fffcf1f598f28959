package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"carwash-payments/internal/gateway"
	"carwash-payments/pkg/apperror"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type callbackEnvelope struct {
	Body struct {
		StkCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string     `json:"MerchantRequestID"`
	CheckoutRequestID string     `json:"CheckoutRequestID"`
	ResultCode        resultCode `json:"ResultCode"`
	ResultDesc        string     `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []metadataItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type metadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// text renders a metadata value that may be a JSON number or string.
func (m metadataItem) text() string {
	raw := bytes.TrimSpace(m.Value)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	}
	return string(raw)
}

func (c *Client) NormalizeCallback(ctx context.Context, payload []byte, header http.Header) (*gateway.Result, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, apperror.UnrecognizedPayload(ProviderName, err)
	}

	cb := env.Body.StkCallback
	if cb == nil || cb.CheckoutRequestID == "" {
		return nil, apperror.UnrecognizedPayload(ProviderName, errors.New("missing Body.stkCallback.CheckoutRequestID"))
	}

	code := string(cb.ResultCode)
	if code == "" {
		return nil, apperror.UnrecognizedPayload(ProviderName, errors.New("missing ResultCode"))
	}

	result := &gateway.Result{
		CheckoutID:        cb.CheckoutRequestID,
		ResultCode:        code,
		ResultDescription: cb.ResultDesc,
		Outcome:           outcomeFor(code),
		EventID:           "mpesa:" + cb.CheckoutRequestID + ":" + code,
	}

	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			switch item.Name {
			case "Amount":
				if amount, err := decimal.NewFromString(item.text()); err == nil {
					result.Amount = &amount
				}
			case "MpesaReceiptNumber":
				result.ReceiptID = item.text()
			}
		}
	}

	if result.Outcome == gateway.OutcomeSuccess && result.ReceiptID == "" {
		c.log.Warn("Successful callback without receipt number",
			zap.String("checkout_request_id", cb.CheckoutRequestID))
	}

	return result, nil
}
