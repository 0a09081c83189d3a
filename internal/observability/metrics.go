package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics of the storefront process.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	quoteTransitions     *prometheus.CounterVec
	ordersPlaced         *prometheus.CounterVec
	checkoutRejections   *prometheus.CounterVec
	invoiceFailures      prometheus.Counter
	notificationFailures *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP and domain metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_quote_transitions_total",
		Help: "Quote status changes by resulting status.",
	}, []string{"status"})
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Orders committed by source (cart or quote).",
	}, []string{"source"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_rejections_total",
		Help: "Checkouts refused by reason.",
	}, []string{"reason"})
	invoices := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_invoice_failures_total",
		Help: "Invoice generations that failed after an order committed.",
	})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_notification_failures_total",
		Help: "Notifications that could not be handed to a transport.",
	}, []string{"event"})
	registry.MustRegister(requests, duration, transitions, placed, rejections, invoices, notifications)
	return &Metrics{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:        requests,
		requestDuration:      duration,
		quoteTransitions:     transitions,
		ordersPlaced:         placed,
		checkoutRejections:   rejections,
		invoiceFailures:      invoices,
		notificationFailures: notifications,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// QuoteTransition counts a quote moving into status.
func (m *Metrics) QuoteTransition(status string) {
	if m == nil {
		return
	}
	m.quoteTransitions.WithLabelValues(status).Inc()
}

// OrderPlaced counts a committed order.
func (m *Metrics) OrderPlaced(source string) {
	if m == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(source).Inc()
}

// CheckoutRejected counts a refused checkout.
func (m *Metrics) CheckoutRejected(reason string) {
	if m == nil {
		return
	}
	m.checkoutRejections.WithLabelValues(reason).Inc()
}

// InvoiceFailed counts a failed post-commit invoice generation.
func (m *Metrics) InvoiceFailed() {
	if m == nil {
		return
	}
	m.invoiceFailures.Inc()
}

// NotificationFailed counts an undeliverable notification.
func (m *Metrics) NotificationFailed(event string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(event).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps streaming handlers working behind the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
