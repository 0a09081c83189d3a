package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/signalworks/storefront/internal/auth"
	"github.com/signalworks/storefront/internal/cart"
	"github.com/signalworks/storefront/internal/catalog"
	"github.com/signalworks/storefront/internal/invoice"
	jobmetrics "github.com/signalworks/storefront/internal/jobs"
	"github.com/signalworks/storefront/internal/notify"
	"github.com/signalworks/storefront/internal/observability"
	"github.com/signalworks/storefront/internal/orders"
	"github.com/signalworks/storefront/internal/platform/cache"
	"github.com/signalworks/storefront/internal/platform/db"
	"github.com/signalworks/storefront/internal/quotes"
	"github.com/signalworks/storefront/internal/shared"
	"github.com/signalworks/storefront/jobs"
)

// Container holds the wired services shared by the API and worker processes.
type Container struct {
	Config     *Config
	Logger     *slog.Logger
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	Metrics    *observability.Metrics
	JobMetrics *jobmetrics.Metrics
	Jobs       *jobs.Client
	Auth       *auth.Service

	Products *catalog.Repository
	Stock    *catalog.StockEvents
	Cart     *cart.Store
	Invoices *invoice.Generator
	Renderer *invoice.GotenbergClient
	Notifier *notify.Dispatcher
	Quotes   *quotes.Service
	Orders   *orders.Service

	invoiceDir string
	closers    []func() error
}

// RedisOpt returns the asynq connection options for the configured Redis.
func (c *Config) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr}
}

// NewContainer connects to PostgreSQL and Redis and wires every service.
func NewContainer(ctx context.Context, cfg *Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	pool, err := db.New(ctx, cfg.PGDSN, 0)
	if err != nil {
		return nil, err
	}
	c.Pool = pool
	c.closers = append(c.closers, func() error { pool.Close(); return nil })

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Redis = redisClient
	c.closers = append(c.closers, redisClient.Close)

	c.Metrics = observability.NewMetrics()
	c.JobMetrics = jobmetrics.NewMetrics(c.Metrics.Registerer())
	c.Jobs = jobs.NewClient(cfg.RedisOpt(), c.JobMetrics)
	c.closers = append(c.closers, c.Jobs.Close)
	c.Auth = auth.NewService(cfg.JWTSecret)

	transport, err := c.notifyTransport(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Notifier = notify.NewDispatcher(transport, cfg.AdminEmail, logger, c.Metrics)

	store, err := invoice.NewDiskStore(cfg.InvoiceStorageDir, cfg.InvoiceBaseURL)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.invoiceDir = store.Dir()
	c.Renderer = invoice.NewGotenbergClient(cfg.GotenbergURL)
	c.Invoices, err = invoice.NewGenerator(c.Renderer, store, invoice.Options{
		CompanyName:    cfg.CompanyName,
		CurrencySymbol: cfg.CurrencySymbol,
		Locale:         cfg.InvoiceLocale,
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	c.Products = catalog.NewRepository(pool)
	c.Stock = catalog.NewStockEvents(redisClient)
	c.Cart = cart.NewStore(redisClient, cfg.CartTTL)
	audit := shared.NewAuditLogger(pool)
	quoteRepo := quotes.NewRepository(pool)

	c.Quotes = quotes.NewService(quoteRepo, c.Products, c.Notifier, audit, logger, quotes.ServiceConfig{
		Validity: cfg.QuoteValidity,
		Metrics:  c.Metrics,
	})
	c.Orders = orders.NewService(orders.Dependencies{
		Repo:     orders.NewRepository(pool),
		Signer:   orders.NewSigner(cfg.PaymentSigningSecret),
		Quotes:   quoteRepo,
		Products: c.Products,
		Stock:    c.Stock,
		Invoices: c.Invoices,
		Retrier:  c.Jobs,
		Cart:     c.Cart,
		Notifier: c.Notifier,
		Audit:    audit,
		Metrics:  c.Metrics,
	}, logger, orders.ServiceConfig{InvoiceTimeout: cfg.InvoiceTimeout})
	return c, nil
}

func (c *Container) notifyTransport(ctx context.Context) (notify.Transport, error) {
	switch c.Config.NotifyTransport {
	case "sqs":
		client, err := notify.NewSQSClient(ctx, c.Config.AWSRegion, c.Config.AWSEndpointOverride)
		if err != nil {
			return nil, fmt.Errorf("sqs client: %w", err)
		}
		return notify.NewSQSTransport(client, c.Config.SQSQueueURL), nil
	default:
		return notify.NewQueueTransport(c.Jobs), nil
	}
}

// InvoiceDir is the directory holding generated invoices.
func (c *Container) InvoiceDir() string {
	return c.invoiceDir
}

// Close releases connections in reverse order of acquisition.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
