package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the API, consumer and mailer processes.
// Values are loaded from environment variables with defaults that let the
// API run locally on in-memory storage with no external services.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	PGDSN         string
	RunMigrations bool
	MigrationsDir string

	RedisAddr        string
	RedisPassword    string
	TrackingCacheTTL time.Duration
	IdempotencyTTL   time.Duration

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string
	MetricsAddr  string

	RabbitMQURL string
	EmailQueue  string

	SMTP SMTPConfig

	JWTSecret     string
	SessionTTL    time.Duration
	AdminEmail    string
	AdminPassword string

	Pricing PricingConfig

	MapboxToken    string
	MapboxEndpoint string
	RouteCacheTTL  time.Duration

	PayPalClientID  string
	PayPalSecret    string
	PayPalEndpoint  string
	PayPalKESPerUSD float64
	StripeAPIKey    string

	LogLevel string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminEmail string
	Timeout    time.Duration
}

// Enabled reports whether outbound email can actually be delivered.
func (c SMTPConfig) Enabled() bool { return c.Host != "" }

type PricingConfig struct {
	PricePerKm     float64
	MinimumPrice   float64
	Currency       string
	CommissionRate float64
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:         ":8080",
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     15 * time.Second,
		IdleTimeout:      120 * time.Second,
		ShutdownTimeout:  15 * time.Second,
		AllowedOrigins:   []string{"*"},
		MigrationsDir:    "migrations",
		TrackingCacheTTL: 30 * time.Second,
		IdempotencyTTL:   24 * time.Hour,
		KafkaTopic:       "order-events",
		KafkaGroup:       "parcel-delivery-consumer",
		MetricsAddr:      ":2112",
		EmailQueue:       "email_jobs",
		SMTP: SMTPConfig{
			Port:    587,
			From:    "Rocs Crew <noreply@rocscrew.co.ke>",
			Timeout: 10 * time.Second,
		},
		SessionTTL: 24 * time.Hour,
		Pricing: PricingConfig{
			PricePerKm:     30,
			MinimumPrice:   200,
			Currency:       "KES",
			CommissionRate: 0.20,
		},
		MapboxEndpoint:  "https://api.mapbox.com",
		RouteCacheTTL:   10 * time.Minute,
		PayPalEndpoint:  "https://api-m.sandbox.paypal.com",
		PayPalKESPerUSD: 130,
		LogLevel:        "info",
	}
}

// LoadServerConfig loads the API configuration, which additionally requires
// the session signing secret.
func LoadServerConfig() (ServerConfig, error) {
	cfg, errs := load()
	if cfg.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("JWT_SECRET is required"))
	} else if len(cfg.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least 32 bytes"))
	}
	if cfg.AdminEmail != "" && cfg.AdminPassword == "" {
		errs = append(errs, fmt.Errorf("ADMIN_PASSWORD is required when ADMIN_EMAIL is set"))
	}
	return cfg, errors.Join(errs...)
}

// LoadWorkerConfig is used by the consumer and mailer, which never touch sessions.
func LoadWorkerConfig() (ServerConfig, error) {
	cfg, errs := load()
	return cfg, errors.Join(errs...)
}

func load() (ServerConfig, []error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitAndTrim(origins)
	}

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")
	setStringFromEnv(&cfg.MigrationsDir, "MIGRATIONS_DIR")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setDurationFromEnv(&cfg.TrackingCacheTTL, "TRACKING_CACHE_TTL", &errs)
	setDurationFromEnv(&cfg.IdempotencyTTL, "IDEMPOTENCY_TTL", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")

	cfg.RabbitMQURL = strings.TrimSpace(os.Getenv("RABBITMQ_URL"))
	setStringFromEnv(&cfg.EmailQueue, "EMAIL_QUEUE")

	setStringFromEnv(&cfg.SMTP.Host, "SMTP_HOST")
	setIntFromEnv(&cfg.SMTP.Port, "SMTP_PORT", &errs)
	setStringFromEnv(&cfg.SMTP.Username, "SMTP_USERNAME")
	cfg.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	setStringFromEnv(&cfg.SMTP.From, "EMAIL_FROM")
	setStringFromEnv(&cfg.SMTP.AdminEmail, "ADMIN_EMAIL")
	setDurationFromEnv(&cfg.SMTP.Timeout, "EMAIL_TIMEOUT", &errs)

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	setDurationFromEnv(&cfg.SessionTTL, "SESSION_TTL", &errs)
	setStringFromEnv(&cfg.AdminEmail, "ADMIN_EMAIL")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")

	setFloatFromEnv(&cfg.Pricing.PricePerKm, "PRICE_PER_KM", &errs)
	setFloatFromEnv(&cfg.Pricing.MinimumPrice, "MINIMUM_PRICE", &errs)
	setStringFromEnv(&cfg.Pricing.Currency, "CURRENCY")
	setFloatFromEnv(&cfg.Pricing.CommissionRate, "RIDER_COMMISSION_RATE", &errs)

	cfg.MapboxToken = os.Getenv("MAPBOX_TOKEN")
	setStringFromEnv(&cfg.MapboxEndpoint, "MAPBOX_ENDPOINT")
	setDurationFromEnv(&cfg.RouteCacheTTL, "ROUTE_CACHE_TTL", &errs)

	cfg.PayPalClientID = os.Getenv("PAYPAL_CLIENT_ID")
	cfg.PayPalSecret = os.Getenv("PAYPAL_SECRET")
	setStringFromEnv(&cfg.PayPalEndpoint, "PAYPAL_ENDPOINT")
	setFloatFromEnv(&cfg.PayPalKESPerUSD, "PAYPAL_KES_PER_USD", &errs)
	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.Pricing.PricePerKm <= 0 || cfg.Pricing.MinimumPrice < 0 {
		errs = append(errs, fmt.Errorf("PRICE_PER_KM must be > 0 and MINIMUM_PRICE >= 0"))
	}
	if cfg.Pricing.CommissionRate < 0 || cfg.Pricing.CommissionRate >= 1 {
		errs = append(errs, fmt.Errorf("RIDER_COMMISSION_RATE must be in [0,1)"))
	}
	if cfg.PayPalKESPerUSD <= 0 {
		errs = append(errs, fmt.Errorf("PAYPAL_KES_PER_USD must be > 0"))
	}
	if cfg.SMTP.Port <= 0 {
		errs = append(errs, fmt.Errorf("SMTP_PORT must be > 0"))
	}

	return cfg, errs
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
