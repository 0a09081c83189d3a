package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/signalworks/storefront/internal/auth"
	"github.com/signalworks/storefront/internal/cart"
	"github.com/signalworks/storefront/internal/catalog"
	"github.com/signalworks/storefront/internal/observability"
	"github.com/signalworks/storefront/internal/orders"
	"github.com/signalworks/storefront/internal/quotes"
	"github.com/signalworks/storefront/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Auth    *auth.Middleware
	Metrics *observability.Metrics

	CatalogHandler *catalog.Handler
	CartHandler    *cart.Handler
	QuoteHandler   *quotes.Handler
	OrderHandler   *orders.Handler
	JobHandler     *jobs.Handler

	// InvoiceDir is served under /invoices when set.
	InvoiceDir string
}

// NewRouter constructs the chi.Router with storefront defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Auth:    params.Auth,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.CatalogHandler != nil {
		params.CatalogHandler.MountRoutes(r)
	}
	if params.CartHandler != nil {
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			params.CartHandler.MountRoutes(r)
		})
	}
	if params.QuoteHandler != nil {
		params.QuoteHandler.MountRoutes(r)
	}
	if params.OrderHandler != nil {
		params.OrderHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.InvoiceDir != "" {
		fileServer := http.StripPrefix("/invoices/", http.FileServer(http.Dir(params.InvoiceDir)))
		r.Handle("/invoices/*", invoiceCacheHandler(fileServer))
	}

	return r
}

// invoiceCacheHandler lets browsers cache stored invoices for an hour.
func invoiceCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "private, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
