package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/parcel-delivery/internal/config"
	"github.com/example/parcel-delivery/internal/logging"
	"github.com/example/parcel-delivery/internal/notify"
)

func main() {
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel, "mailer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("mailer exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) error {
	if cfg.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is required")
	}
	q, err := notify.DialQueue(ctx, cfg.RabbitMQURL, cfg.EmailQueue)
	if err != nil {
		return err
	}
	defer q.Close()

	var sender notify.Sender
	if cfg.SMTP.Enabled() {
		sender = notify.NewSMTPSender(notify.SMTPConfigFrom(cfg.SMTP))
	} else {
		logger.Warn("SMTP_HOST not set; queued emails will only be logged")
		sender = notify.LogSender{Log: logger.Warn}
	}

	for {
		jobs, err := q.Consume(ctx, "mailer")
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down mailer")
				return nil
			}
			return err
		}
		logger.Info("mailer consuming", "queue", cfg.EmailQueue)
		if done := deliver(ctx, jobs, sender, cfg.SMTP.Timeout, logger); done {
			logger.Info("shutting down mailer")
			return nil
		}
		logger.Warn("email queue connection lost; reconnecting")
	}
}

// deliver drains jobs until ctx is done (true) or the channel closes (false).
func deliver(ctx context.Context, jobs <-chan amqp.Delivery, sender notify.Sender, timeout time.Duration, logger *slog.Logger) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case d, ok := <-jobs:
			if !ok {
				return false
			}
			sendCtx, cancel := context.WithTimeout(ctx, timeout)
			err := notify.HandleJob(sendCtx, sender, d.Body, d.Redelivered, d)
			cancel()
			if err != nil {
				logger.Warn("email job failed", "kind", d.Type, "redelivered", d.Redelivered, "error", err)
				continue
			}
			logger.Debug("email delivered", "kind", d.Type)
		}
	}
}
