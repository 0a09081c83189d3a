package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/signalworks/storefront/cmd/storefront/cli"
	"github.com/signalworks/storefront/internal/app"
	"github.com/signalworks/storefront/internal/auth"
	"github.com/signalworks/storefront/internal/cart"
	"github.com/signalworks/storefront/internal/catalog"
	"github.com/signalworks/storefront/internal/orders"
	"github.com/signalworks/storefront/internal/quotes"
	"github.com/signalworks/storefront/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobs(ctx, cfg, os.Args[2:]))
	}

	if err := serve(ctx, stop, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	c, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("close container", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(cfg.RedisOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Auth:           auth.NewMiddleware(logger, c.Auth),
		Metrics:        c.Metrics,
		CatalogHandler: catalog.NewHandler(logger, c.Products, c.Stock),
		CartHandler:    cart.NewHandler(c.Cart),
		QuoteHandler:   quotes.NewHandler(logger, c.Quotes),
		OrderHandler:   orders.NewHandler(logger, c.Orders),
		JobHandler:     jobs.NewHandler(inspector, logger),
		InvoiceDir:     c.InvoiceDir(),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// runJobs handles `storefront jobs trigger|stats`.
func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	orderID := fs.String("order", "", "order id for invoice:generate")
	limit := fs.Int("limit", 100, "batch size for invoice:backfill")
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: storefront jobs trigger <task> [-order id] [-limit n] | stats")
		return 2
	}
	command, rest := args[0], args[1:]

	jobsCLI := cli.NewJobsCLI(cfg.RedisOpt())
	defer jobsCLI.Close()

	switch command {
	case "trigger":
		if len(rest) == 0 {
			fmt.Fprintln(os.Stderr, "jobs trigger: task name required")
			return 2
		}
		if err := fs.Parse(rest[1:]); err != nil {
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, rest[0], *orderID, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jobsCLI.InspectQueues(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		cli.PrintStats(os.Stdout, stats)
	default:
		fmt.Fprintf(os.Stderr, "jobs: unknown command %q\n", command)
		return 2
	}
	return 0
}
