package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"carwash-payments/internal/gateway"
	"carwash-payments/pkg/apperror"
	"carwash-payments/pkg/utils"

	"go.uber.org/zap"
)

const (
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	timestampLayout = "20060102150405"
	maxNarrative    = 13

	// codeStillProcessing is what Daraja answers a query before the payer acts.
	codeStillProcessing = "500.001.1001"
)

// Result codes documented by Daraja for STK push.
const (
	ResultSuccess           = "0"
	ResultCancelledByPayer  = "1032"
	ResultPayerUnreachable  = "1037"
	ResultRequestInProgress = "4999"
)

// resultCode accepts Daraja's mix of numeric and string codes.
type resultCode string

func (r *resultCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*r = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = resultCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*r = resultCode(n.String())
	return nil
}

// outcomeFor maps a Daraja result code onto the canonical outcome.
func outcomeFor(code string) gateway.Outcome {
	switch code {
	case ResultSuccess:
		return gateway.OutcomeSuccess
	case ResultPayerUnreachable:
		return gateway.OutcomeExpired
	case ResultRequestInProgress, codeStillProcessing:
		return gateway.OutcomeProcessing
	case "":
		return gateway.OutcomePending
	default:
		return gateway.OutcomeFailed
	}
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	ResponseCode        string     `json:"ResponseCode"`
	ResponseDescription string     `json:"ResponseDescription"`
	MerchantRequestID   string     `json:"MerchantRequestID"`
	CheckoutRequestID   string     `json:"CheckoutRequestID"`
	ResultCode          resultCode `json:"ResultCode"`
	ResultDesc          string     `json:"ResultDesc"`
}

// password is base64(shortcode + passkey + timestamp).
func (c *Client) password() (string, string) {
	timestamp := c.now().Format(timestampLayout)
	raw := c.cfg.Shortcode + c.cfg.Passkey + timestamp
	return base64.StdEncoding.EncodeToString([]byte(raw)), timestamp
}

func (c *Client) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	phone, ok := utils.NormalizeKenyanPhone(req.Payer.Phone)
	if !ok {
		return nil, apperror.Validation("phone number must look like 254712345678, 0712345678 or +254712345678")
	}

	amount := req.Amount.Round(0).IntPart()
	if amount < 1 {
		return nil, apperror.Validation("amount must be at least 1")
	}

	narrative := req.Narrative
	if narrative == "" {
		narrative = "Car wash"
	}
	if len(narrative) > maxNarrative {
		narrative = narrative[:maxNarrative]
	}

	password, timestamp := c.password()
	body := stkPushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   narrative,
	}

	var resp stkPushResponse
	if err := c.post(ctx, stkPushPath, body, &resp); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusBadRequest {
				return nil, apperror.Validation(apiErr.Message)
			}
			return nil, apperror.ProviderUnavailable(ProviderName, apiErr)
		}
		return nil, err
	}

	if resp.ResponseCode != ResultSuccess || resp.CheckoutRequestID == "" {
		c.log.Warn("STK push rejected",
			zap.String("response_code", resp.ResponseCode),
			zap.String("description", resp.ResponseDescription),
		)
		return nil, apperror.Validation(strings.TrimSpace("payment request rejected: " + resp.ResponseDescription))
	}

	c.log.Info("STK push accepted",
		zap.String("checkout_request_id", resp.CheckoutRequestID),
		zap.String("merchant_request_id", resp.MerchantRequestID),
		zap.String("payment_id", req.PaymentID.String()),
	)

	return &gateway.InitiateResult{
		CheckoutID: resp.CheckoutRequestID,
		MerchantID: resp.MerchantRequestID,
		Message:    resp.CustomerMessage,
		PayerPhone: phone,
	}, nil
}

func (c *Client) QueryStatus(ctx context.Context, checkoutID string) (*gateway.Result, error) {
	password, timestamp := c.password()
	body := stkQueryRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutID,
	}

	var resp stkQueryResponse
	if err := c.post(ctx, stkQueryPath, body, &resp); err != nil {
		var apiErr *apiError
		if !errors.As(err, &apiErr) {
			return nil, err
		}
		switch {
		case apiErr.Code == codeStillProcessing:
			return &gateway.Result{
				CheckoutID:        checkoutID,
				ResultCode:        apiErr.Code,
				ResultDescription: apiErr.Message,
				Outcome:           gateway.OutcomeProcessing,
			}, nil
		case apiErr.StatusCode == http.StatusBadRequest:
			return nil, apperror.Validation(apiErr.Message)
		default:
			return nil, apperror.ProviderUnavailable(ProviderName, apiErr)
		}
	}

	code := string(resp.ResultCode)
	return &gateway.Result{
		CheckoutID:        checkoutID,
		ResultCode:        code,
		ResultDescription: resp.ResultDesc,
		Outcome:           outcomeFor(code),
		EventID:           "mpesa:" + checkoutID + ":" + code,
	}, nil
}
