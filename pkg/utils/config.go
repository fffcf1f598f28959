package utils

import (
	"errors"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	MPesa     MPesaConfig
	Stripe    StripeConfig
	Payment   PaymentConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Worker    WorkerConfig
	RateLimit RateLimitConfig
	Internal  InternalConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
	// AllowedOrigins is a comma separated CORS allow list, "*" allows any.
	AllowedOrigins string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
	Migrate  bool
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type MPesaConfig struct {
	Environment    string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	// CallbackToken is appended to CallbackURL and checked on every callback.
	CallbackToken  string
	TimeoutSeconds int
}

type StripeConfig struct {
	SecretKey      string
	WebhookSecret  string
	TimeoutSeconds int
	MaxRetries     int
}

type PaymentConfig struct {
	Currency           string
	InvoiceDueDays     int
	VerifyDelaySeconds int
	VerifyMaxRetry     int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	QueueDB  int
	// DeliveryTTLHours bounds how long processed webhook ids are remembered.
	DeliveryTTLHours int
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type WorkerConfig struct {
	Enabled     bool
	Concurrency int
	SweepCron   string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type InternalConfig struct {
	// TokenHash is the bcrypt hash of the token the external scheduler presents.
	TokenHash string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "carwash-payments")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("DB_MIGRATE", true)
	viper.SetDefault("MPESA_ENV", "sandbox")
	viper.SetDefault("MPESA_TIMEOUT_SECONDS", 30)
	viper.SetDefault("STRIPE_TIMEOUT_SECONDS", 30)
	viper.SetDefault("STRIPE_MAX_RETRIES", 2)
	viper.SetDefault("PAYMENT_CURRENCY", "kes")
	viper.SetDefault("INVOICE_DUE_DAYS", 30)
	viper.SetDefault("PAYMENT_VERIFY_DELAY_SECONDS", 90)
	viper.SetDefault("PAYMENT_VERIFY_MAX_RETRY", 5)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("REDIS_DELIVERY_TTL_HOURS", 72)
	viper.SetDefault("RABBITMQ_EXCHANGE", "carwash.events")
	viper.SetDefault("WORKER_ENABLED", true)
	viper.SetDefault("WORKER_CONCURRENCY", 10)
	viper.SetDefault("SWEEP_CRON", "@daily")
	viper.SetDefault("RATE_LIMIT_RPS", 5)
	viper.SetDefault("RATE_LIMIT_BURST", 20)

	if err := viper.ReadInConfig(); err != nil {
		// .env is optional in containers where everything comes from the environment
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:           viper.GetString("APP_NAME"),
			Port:           viper.GetString("PORT"),
			Debug:          viper.GetBool("DEBUG"),
			LogPath:        viper.GetString("LOG_PATH"),
			AllowedOrigins: viper.GetString("CORS_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
			Migrate:  viper.GetBool("DB_MIGRATE"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
			Issuer: viper.GetString("JWT_ISSUER"),
		},
		MPesa: MPesaConfig{
			Environment:    viper.GetString("MPESA_ENV"),
			ConsumerKey:    viper.GetString("MPESA_CONSUMER_KEY"),
			ConsumerSecret: viper.GetString("MPESA_CONSUMER_SECRET"),
			Shortcode:      viper.GetString("MPESA_SHORTCODE"),
			Passkey:        viper.GetString("MPESA_PASSKEY"),
			CallbackURL:    viper.GetString("MPESA_CALLBACK_URL"),
			CallbackToken:  viper.GetString("MPESA_CALLBACK_TOKEN"),
			TimeoutSeconds: viper.GetInt("MPESA_TIMEOUT_SECONDS"),
		},
		Stripe: StripeConfig{
			SecretKey:      viper.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret:  viper.GetString("STRIPE_WEBHOOK_SECRET"),
			TimeoutSeconds: viper.GetInt("STRIPE_TIMEOUT_SECONDS"),
			MaxRetries:     viper.GetInt("STRIPE_MAX_RETRIES"),
		},
		Payment: PaymentConfig{
			Currency:           viper.GetString("PAYMENT_CURRENCY"),
			InvoiceDueDays:     viper.GetInt("INVOICE_DUE_DAYS"),
			VerifyDelaySeconds: viper.GetInt("PAYMENT_VERIFY_DELAY_SECONDS"),
			VerifyMaxRetry:     viper.GetInt("PAYMENT_VERIFY_MAX_RETRY"),
		},
		Redis: RedisConfig{
			Addr:             viper.GetString("REDIS_ADDR"),
			Password:         viper.GetString("REDIS_PASSWORD"),
			DB:               viper.GetInt("REDIS_DB"),
			QueueDB:          viper.GetInt("REDIS_QUEUE_DB"),
			DeliveryTTLHours: viper.GetInt("REDIS_DELIVERY_TTL_HOURS"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      viper.GetString("RABBITMQ_URL"),
			Exchange: viper.GetString("RABBITMQ_EXCHANGE"),
		},
		Worker: WorkerConfig{
			Enabled:     viper.GetBool("WORKER_ENABLED"),
			Concurrency: viper.GetInt("WORKER_CONCURRENCY"),
			SweepCron:   viper.GetString("SWEEP_CRON"),
		},
		RateLimit: RateLimitConfig{
			RPS:   viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst: viper.GetInt("RATE_LIMIT_BURST"),
		},
		Internal: InternalConfig{
			TokenHash: viper.GetString("INTERNAL_TOKEN_HASH"),
		},
	}

	return config, nil
}
