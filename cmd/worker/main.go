package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/config"
	"github.com/noah-isme/backend-pos/internal/notify"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	prefix := envOrDefault("QUEUE_PREFIX", "")
	visibility := envDuration("QUEUE_VISIBILITY_TIMEOUT", 30*time.Second)

	mailer := newMailer(cfg)
	receipts := notify.ReceiptMailer{Mail: mailer, Enabled: cfg.ReceiptEmailEnabled}

	webhookTimeout := envDuration("WEBHOOK_REQUEST_TIMEOUT", 10*time.Second)
	webhooks := notify.WebhookSender{
		URL:     cfg.WebhookURL,
		Secret:  cfg.WebhookSecret,
		Client:  notify.HTTPClient(int(webhookTimeout / time.Millisecond)),
		Enabled: cfg.WebhookEnabled,
	}

	workers := []queue.Worker{
		{
			R:                 redisClient,
			Prefix:            prefix,
			Kind:              notify.TaskReceiptEmail,
			Concurrency:       cfg.WorkerConcurrency,
			VisibilityTimeout: visibility,
			Handler: func(ctx context.Context, t queue.Task) error {
				return receipts.Handle(ctx, t.Payload)
			},
		},
		{
			R:                 redisClient,
			Prefix:            prefix,
			Kind:              notify.TaskWebhookDelivery,
			Concurrency:       cfg.WorkerConcurrency,
			VisibilityTimeout: visibility,
			Handler: func(ctx context.Context, t queue.Task) error {
				return webhooks.Handle(ctx, t.Payload)
			},
		},
	}

	logger.Info().Int("workers", len(workers)).Msg("worker starting")

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w queue.Worker) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Str("kind", w.Kind).Msg("worker stopped")
			}
		}(w)
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	wg.Wait()
}

func newMailer(cfg *config.Config) common.EmailSender {
	if !cfg.ReceiptEmailEnabled {
		return common.NopEmailSender{}
	}
	// SMTP delivery is configured out of band; the in-memory sender keeps
	// local and CI runs self-contained.
	if cfg.AppEnv == "production" {
		return common.NopEmailSender{}
	}
	return &common.InMemoryEmail{}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(val)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
