package jobmetrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, registry *prometheus.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	assert.NoError(t, m.Track("invoice:generate").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("invoice:generate").End(boom), boom)
	m.AddEnqueued("mail:send")

	body := scrape(t, registry)
	assert.True(t, strings.Contains(body, `storefront_jobs_total{job="invoice:generate",status="success"} 1`), body)
	assert.True(t, strings.Contains(body, `storefront_jobs_total{job="invoice:generate",status="failure"} 1`), body)
	assert.True(t, strings.Contains(body, `storefront_jobs_failures_total{job="invoice:generate"} 1`), body)
	assert.True(t, strings.Contains(body, `storefront_jobs_enqueued_total{task="mail:send"} 1`), body)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddEnqueued("mail:send")
	err := errors.New("x")
	assert.Equal(t, err, m.Track("job").End(err))
}
