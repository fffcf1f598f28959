// main.go
package main

import (
	"context"
	"log"
	"net/url"
	"time"

	"carwash-payments/cmd"
	"carwash-payments/internal/cache"
	"carwash-payments/internal/data/entity"
	"carwash-payments/internal/data/repository"
	"carwash-payments/internal/events"
	"carwash-payments/internal/gateway"
	"carwash-payments/internal/gateway/card"
	"carwash-payments/internal/gateway/mpesa"
	"carwash-payments/internal/usecase"
	"carwash-payments/internal/wire"
	"carwash-payments/internal/worker"
	"carwash-payments/pkg/database"
	"carwash-payments/pkg/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.Name, config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
		zap.String("mpesa_env", config.MPesa.Environment),
		zap.Bool("worker", config.Worker.Enabled),
	)

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	if config.Database.Migrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}
	}

	rdb, err := cache.NewClient(config.Redis.Addr, config.Redis.Password, config.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	publisher, err := events.NewPublisher(config.RabbitMQ.URL, config.RabbitMQ.Exchange, logger)
	if err != nil {
		logger.Fatal("Failed to connect to rabbitmq", zap.Error(err))
	}
	defer publisher.Close()

	providers := gateway.Registry{
		entity.PaymentMethodMobileMoney: mpesa.New(mpesa.Config{
			Environment:    config.MPesa.Environment,
			ConsumerKey:    config.MPesa.ConsumerKey,
			ConsumerSecret: config.MPesa.ConsumerSecret,
			Shortcode:      config.MPesa.Shortcode,
			Passkey:        config.MPesa.Passkey,
			CallbackURL:    callbackURL(config.MPesa.CallbackURL, config.MPesa.CallbackToken),
			Timeout:        time.Duration(config.MPesa.TimeoutSeconds) * time.Second,
		}, logger),
		entity.PaymentMethodCard: card.New(card.Config{
			SecretKey:       config.Stripe.SecretKey,
			WebhookSecret:   config.Stripe.WebhookSecret,
			Timeout:         time.Duration(config.Stripe.TimeoutSeconds) * time.Second,
			MaxRetries:      int64(config.Stripe.MaxRetries),
			DefaultCurrency: config.Payment.Currency,
		}, logger),
	}

	deps := usecase.Dependencies{
		Providers:  providers,
		Notifier:   publisher,
		Deliveries: cache.NewDeliveryGuard(rdb, time.Duration(config.Redis.DeliveryTTLHours)*time.Hour, logger),
	}

	redisOpt := worker.RedisOpt(config.Redis)
	if config.Worker.Enabled {
		queue := asynq.NewClient(redisOpt)
		defer queue.Close()

		enqueuer := worker.NewEnqueuer(queue, config.Payment.VerifyMaxRetry, logger)
		deps.Notifier = enqueuer
		deps.Verifier = enqueuer
	}

	// Initialize all repositories
	repos := repository.NewRepository(db, logger)

	// Wire all dependencies
	app := wire.Wiring(repos, config, deps, map[string]wire.HealthCheck{
		"database": db.Ping,
		"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	}, logger)

	if config.Worker.Enabled {
		handlers := worker.NewHandlers(app.Service.Payment, app.Service.Invoice, publisher, logger)
		w, err := worker.NewWorker(redisOpt, config.Worker, handlers, logger)
		if err != nil {
			logger.Fatal("Failed to build worker", zap.Error(err))
		}
		if err := w.Start(); err != nil {
			logger.Fatal("Failed to start worker", zap.Error(err))
		}
		defer w.Shutdown()
	}

	// Start server
	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	if err := cmd.APIServer(app.Router, config.App.Port, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}
}

// callbackURL appends the shared callback token the handler checks.
func callbackURL(base, token string) string {
	if token == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
