package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/example/parcel-delivery/internal/auth"
	"github.com/example/parcel-delivery/internal/cache"
	"github.com/example/parcel-delivery/internal/config"
	"github.com/example/parcel-delivery/internal/dispatch"
	"github.com/example/parcel-delivery/internal/events"
	httpapi "github.com/example/parcel-delivery/internal/http"
	"github.com/example/parcel-delivery/internal/inbox"
	"github.com/example/parcel-delivery/internal/logging"
	"github.com/example/parcel-delivery/internal/matcher"
	"github.com/example/parcel-delivery/internal/notify"
	"github.com/example/parcel-delivery/internal/orders"
	"github.com/example/parcel-delivery/internal/payments"
	"github.com/example/parcel-delivery/internal/pricing"
	"github.com/example/parcel-delivery/internal/riders"
	"github.com/example/parcel-delivery/internal/routing"
	"github.com/example/parcel-delivery/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel, "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		kv       cache.KV = cache.NewMemory()
		sessions auth.SessionStore
		tracking orders.TrackingCache
		status   orders.StatusReader
		ready    func(context.Context) error
	)
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisClient(ctx, cache.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			return err
		}
		defer rc.Close()
		r := cache.NewRedis(rc)
		kv = r
		sessions = cache.NewRedisSessions(r)
		tracking = cache.NewTrackingCache(r, cfg.TrackingCacheTTL, logger)
		status = cache.NewStatusReader(r)
		ready = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	} else {
		logger.Warn("REDIS_ADDR not set; sessions and idempotency keys are kept in memory")
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("publishing order events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer publisher.Close()

	sender, closeSender, err := emailSender(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSender()
	notifier := notify.NewNotifier(notify.NewRenderer(notify.BrandFor(cfg.Pricing)), sender, cfg.SMTP.AdminEmail, cfg.SMTP.Timeout, logger)
	defer notifier.Wait()

	authSvc := auth.NewService(store, store, auth.NewArgon2Hasher(auth.DefaultParams),
		auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL), sessions, logger)
	if err := authSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return err
	}

	hub := dispatch.NewHub(logger)
	riderSvc := riders.NewService(store, store, authSvc, cfg.Pricing.CommissionRate, logger)
	orderSvc := &orders.Service{
		Store:    store,
		Riders:   riderSvc,
		Policy:   matcher.AreaPolicy{},
		Notifier: notifier,
		Events:   publisher,
		Feed:     hub,
		Cache:    tracking,
		Status:   status,
		Logger:   logger,
	}

	var providers []payments.Provider
	if cfg.PayPalClientID != "" && cfg.PayPalSecret != "" {
		providers = append(providers, payments.NewPayPalProvider(cfg.PayPalEndpoint, cfg.PayPalClientID, cfg.PayPalSecret))
	}
	if cfg.StripeAPIKey != "" {
		providers = append(providers, payments.NewStripeProvider(cfg.StripeAPIKey))
	}

	var geocoder routing.Geocoder
	if cfg.MapboxToken != "" {
		geocoder = routing.NewMapboxClient(cfg.MapboxEndpoint, cfg.MapboxToken)
	}

	api := httpapi.NewServer(httpapi.Deps{
		Orders:   orderSvc,
		Riders:   riderSvc,
		Auth:     authSvc,
		Inbox:    inbox.NewService(store, store, notifier, logger),
		Payments: payments.NewService(store, orderSvc, cfg.Pricing.Currency, cfg.PayPalKESPerUSD, logger, providers...),
		Pricing: pricing.Calculator{
			PerKm:    cfg.Pricing.PricePerKm,
			Minimum:  cfg.Pricing.MinimumPrice,
			Currency: cfg.Pricing.Currency,
		},
		Routes:         routing.NewEstimator(geocoder, routing.NewCache(cfg.RouteCacheTTL), logger),
		Feed:           hub,
		Idempotency:    cache.Idempotency(kv, cfg.IdempotencyTTL, logger),
		AllowedOrigins: cfg.AllowedOrigins,
		Ready:          ready,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("parcel-delivery api listening", "addr", cfg.HTTPAddr, "payment_providers", len(providers), "mapbox", geocoder != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down api")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (storage.Store, func(), error) {
	if cfg.PGDSN == "" {
		logger.Warn("PG_DSN not set; using in-memory storage, data is lost on restart")
		return storage.NewMemoryStore(), func() {}, nil
	}
	ps, err := storage.NewPostgresStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, err
	}
	if cfg.RunMigrations {
		if err := ps.Migrate(ctx, cfg.MigrationsDir, logger); err != nil {
			_ = ps.Close()
			return nil, nil, err
		}
	}
	return ps, func() { _ = ps.Close() }, nil
}

// emailSender prefers the RabbitMQ queue (delivered by cmd/mailer), then direct SMTP,
// and finally a sender that only logs.
func emailSender(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (notify.Sender, func(), error) {
	switch {
	case cfg.RabbitMQURL != "":
		q, err := notify.DialQueue(ctx, cfg.RabbitMQURL, cfg.EmailQueue)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("emails are queued for the mailer", "queue", cfg.EmailQueue)
		return q, func() { _ = q.Close() }, nil
	case cfg.SMTP.Enabled():
		return notify.NewSMTPSender(notify.SMTPConfigFrom(cfg.SMTP)), func() {}, nil
	default:
		logger.Warn("no RABBITMQ_URL or SMTP_HOST; emails will only be logged")
		return notify.LogSender{Log: logger.Warn}, func() {}, nil
	}
}
