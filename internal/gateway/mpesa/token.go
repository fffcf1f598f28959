package mpesa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"carwash-payments/pkg/apperror"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// refreshSkew renews the token slightly before Daraja expires it.
const refreshSkew = time.Minute

type tokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	group     singleflight.Group
}

func (t *tokenCache) get(now time.Time) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token == "" || !now.Before(t.expiresAt) {
		return "", false
	}
	return t.token, true
}

func (t *tokenCache) set(token string, expiresAt time.Time) {
	t.mu.Lock()
	t.token = token
	t.expiresAt = expiresAt
	t.mu.Unlock()
}

func (t *tokenCache) invalidate() {
	t.mu.Lock()
	t.token = ""
	t.expiresAt = time.Time{}
	t.mu.Unlock()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// accessToken returns a cached OAuth token, fetching at most one at a time.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if token, ok := c.tokens.get(c.now()); ok {
		return token, nil
	}

	v, err, _ := c.tokens.group.Do("token", func() (any, error) {
		if token, ok := c.tokens.get(c.now()); ok {
			return token, nil
		}
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := c.cfg.baseURL() + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("Failed to fetch access token", zap.Error(err))
		return "", apperror.ProviderUnavailable(ProviderName, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode != http.StatusOK {
		c.log.Error("Daraja refused credentials", zap.Int("status", resp.StatusCode))
		return "", apperror.ProviderUnavailable(ProviderName,
			fmt.Errorf("token endpoint returned %d", resp.StatusCode))
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil || tr.AccessToken == "" {
		return "", apperror.ProviderUnavailable(ProviderName, fmt.Errorf("malformed token response"))
	}

	ttl := time.Hour
	if secs, err := strconv.Atoi(tr.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	if ttl > 2*refreshSkew {
		ttl -= refreshSkew
	}

	c.tokens.set(tr.AccessToken, c.now().Add(ttl))
	c.log.Debug("Access token refreshed", zap.Duration("ttl", ttl))

	return tr.AccessToken, nil
}
