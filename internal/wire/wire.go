// internal/wire/wire.go
package wire

import (
	"context"
	"net/http"
	"time"

	"carwash-payments/internal/adaptor"
	"carwash-payments/internal/data/repository"
	"carwash-payments/internal/usecase"
	"carwash-payments/pkg/middleware"
	"carwash-payments/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// HealthCheck pings one backing service for /health.
type HealthCheck func(ctx context.Context) error

// App holds the wired router and the services the background worker reuses.
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring builds services, handlers and routes.
func Wiring(
	repo *repository.Repository,
	config *utils.Config,
	deps usecase.Dependencies,
	checks map[string]HealthCheck,
	logger *zap.Logger,
) *App {
	service := usecase.NewService(repo, config, deps, logger)
	handler := adaptor.NewHandler(service, config, logger)

	router := setupRouter(handler, checks, config, logger)

	return &App{
		Router:  router,
		Service: service,
	}
}

func setupRouter(
	handler *adaptor.Handler,
	checks map[string]HealthCheck,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(config.App.AllowedOrigins))

	// one bucket per client IP shared by every provider-facing route
	limit := middleware.RateLimit(config.RateLimit.RPS, config.RateLimit.Burst, logger)

	wirePayment(r, handler.Payment, limit, config, logger)
	wireCallback(r, handler.Callback, limit, logger)
	wireBooking(r, handler.Booking, config, logger)
	wireInvoice(r, handler.Invoice, config, logger)

	r.Get("/health", healthHandler(checks, logger))

	return r
}

func authenticate(config *utils.Config, log *zap.Logger) func(http.Handler) http.Handler {
	return middleware.Authenticate(config.JWT.Secret, config.JWT.Issuer, log)
}

func healthHandler(checks map[string]HealthCheck, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := make(map[string]string, len(checks))
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
				status[name] = "down"
				healthy = false
				continue
			}
			status[name] = "up"
		}

		if !healthy {
			utils.ResponseJSON(w, http.StatusServiceUnavailable, false, "unhealthy", status, nil)
			return
		}
		utils.ResponseSuccess(w, "OK", status)
	}
}
