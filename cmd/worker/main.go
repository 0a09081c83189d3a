package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/signalworks/storefront/internal/app"
	"github.com/signalworks/storefront/internal/orders"
	"github.com/signalworks/storefront/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	c, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("init services", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("close container", slog.Any("error", err))
		}
	}()

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := c.Renderer.Ping(pingCtx); err != nil {
		logger.Warn("gotenberg unreachable, invoice jobs will retry until it recovers",
			slog.String("url", cfg.GotenbergURL), slog.Any("error", err))
	}
	cancelPing()

	email := jobs.NewEmailDelivery(cfg.EmailServiceURL, logger)
	invoiceJobs := orders.NewInvoiceJobs(c.Orders, logger)

	backfillTask, err := jobs.NewInvoiceBackfillTask(100)
	if err != nil {
		logger.Error("build backfill task", slog.Any("error", err))
		os.Exit(1)
	}

	handlers := append([]jobs.TaskHandler{
		{Type: jobs.TaskTypeSendEmail, Handler: email.HandleSendEmailTask},
	}, invoiceJobs.Handlers()...)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.RedisOpt(),
		Logger:      logger,
		Metrics:     c.JobMetrics,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    handlers,
		Cron: []jobs.CronRegistration{
			{Spec: cfg.InvoiceBackfillCron, Task: backfillTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           c.Metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
