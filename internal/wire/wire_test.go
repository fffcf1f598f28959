package wire

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carwash-payments/internal/data/repository"
	"carwash-payments/internal/usecase"
	"carwash-payments/pkg/middleware"
	"carwash-payments/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func testConfig() *utils.Config {
	return &utils.Config{
		App:       utils.AppConfig{Name: "Sparkle Car Wash", AllowedOrigins: "*"},
		JWT:       utils.JWTConfig{Secret: "wire-secret"},
		Payment:   utils.PaymentConfig{Currency: "kes", InvoiceDueDays: 30},
		RateLimit: utils.RateLimitConfig{RPS: 100, Burst: 100},
	}
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	claims := middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wire-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + signed
}

func newTestApp(checks map[string]HealthCheck) *App {
	repo := repository.New(nil, nil, nil, nil, nil)
	return Wiring(repo, testConfig(), usecase.Dependencies{}, checks, zap.NewNop())
}

func TestRouteGuards(t *testing.T) {
	app := newTestApp(nil)

	tests := []struct {
		name   string
		method string
		path   string
		role   string
		want   int
	}{
		{"initialize needs token", http.MethodPost, "/api/payments/initialize", "", http.StatusUnauthorized},
		{"refund needs staff", http.MethodPost, "/api/payments/" + uuid.NewString() + "/refund", utils.RoleCustomer, http.StatusForbidden},
		{"stats needs staff", http.MethodGet, "/api/payments/stats", utils.RoleCustomer, http.StatusForbidden},
		{"booking status needs staff", http.MethodPatch, "/api/bookings/" + uuid.NewString() + "/status", utils.RoleCustomer, http.StatusForbidden},
		{"invoice list needs staff", http.MethodGet, "/api/invoices", utils.RoleCustomer, http.StatusForbidden},
		{"sweep needs admin", http.MethodPatch, "/api/invoices/overdue/update", utils.RoleStaff, http.StatusForbidden},
		{"invoice read needs token", http.MethodGet, "/api/invoices/" + uuid.NewString(), "", http.StatusUnauthorized},
		{"invoice update needs staff", http.MethodPatch, "/api/invoices/" + uuid.NewString(), utils.RoleCustomer, http.StatusForbidden},
		{"invoice paid needs staff", http.MethodPatch, "/api/invoices/" + uuid.NewString() + "/paid", utils.RoleCustomer, http.StatusForbidden},
		{"my invoices needs token", http.MethodGet, "/api/invoices/me", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.role != "" {
				req.Header.Set("Authorization", bearer(t, tt.role))
			}
			rec := httptest.NewRecorder()
			app.Router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandlerValidationBeforeService(t *testing.T) {
	app := newTestApp(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/initialize",
		strings.NewReader(`{"booking_id":"not-a-uuid","payment_method":"mobile_money"}`))
	req.Header.Set("Authorization", bearer(t, utils.RoleCustomer))
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestInvoiceEditsValidatedBeforeService(t *testing.T) {
	app := newTestApp(nil)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"bad due date", "/api/invoices/" + uuid.NewString(), `{"due_date":"next week"}`},
		{"bad payment id", "/api/invoices/" + uuid.NewString() + "/paid", `{"payment_id":"TILL-42"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Authorization", bearer(t, utils.RoleStaff))
			rec := httptest.NewRecorder()
			app.Router.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestCallbacksAreAcknowledged(t *testing.T) {
	app := newTestApp(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/mpesa/callback", strings.NewReader(`garbage`))
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ResultCode":0`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	app := newTestApp(map[string]HealthCheck{"database": up})
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthy status = %d", rec.Code)
	}

	app = newTestApp(map[string]HealthCheck{"database": up, "redis": down})
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"redis":"down"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
