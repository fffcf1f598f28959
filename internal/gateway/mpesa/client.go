// Package mpesa is the Safaricom Daraja STK push adapter.
package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"carwash-payments/pkg/apperror"

	"go.uber.org/zap"
)

const (
	SandboxURL    = "https://sandbox.safaricom.co.ke"
	ProductionURL = "https://api.safaricom.co.ke"

	ProviderName    = "mpesa"
	maxResponseBody = 1 << 20
)

type Config struct {
	// Environment is "sandbox" or "production".
	Environment string
	// BaseURL overrides the environment URL.
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if c.Environment == "production" {
		return ProductionURL
	}
	return SandboxURL
}

type Client struct {
	cfg    Config
	http   *http.Client
	tokens *tokenCache
	log    *zap.Logger
	now    func() time.Time
}

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		tokens: &tokenCache{},
		log:    log.With(zap.String("gateway", ProviderName)),
		now:    time.Now,
	}
}

func (c *Client) Name() string {
	return ProviderName
}

// apiError is a non-2xx Daraja reply.
type apiError struct {
	StatusCode int
	Code       string `json:"errorCode"`
	Message    string `json:"errorMessage"`
	RequestID  string `json:"requestId"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("mpesa api %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// post sends an authenticated JSON request and decodes a 200 reply into out.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.baseURL()+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("Daraja request failed", zap.String("path", path), zap.Error(err))
		return apperror.ProviderUnavailable(ProviderName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return apperror.ProviderUnavailable(ProviderName, fmt.Errorf("read %s response: %w", path, err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.invalidate()
		return apperror.ProviderUnavailable(ProviderName, fmt.Errorf("%s rejected access token", path))
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &apiError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		c.log.Warn("Daraja returned an error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("error_code", apiErr.Code),
			zap.String("error_message", apiErr.Message),
		)
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apperror.ProviderUnavailable(ProviderName, fmt.Errorf("decode %s response: %w", path, err))
	}

	return nil
}
