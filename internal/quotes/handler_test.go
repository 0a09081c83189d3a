package quotes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalworks/storefront/internal/shared"
)

func newTestRouter(t *testing.T) (http.Handler, *fixture) {
	t.Helper()
	f := newFixture(t)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc)
	h.now = func() time.Time { return f.now }
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, f
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, actor *shared.Actor) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req = req.WithContext(shared.ContextWithActor(context.Background(), actor))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerQuoteFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/quotes", validRequest(), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created quoteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, StatusPending, created.EffectiveStatus)

	rec = doJSON(t, router, http.MethodPost, "/quotes/"+created.ID+"/respond", map[string]any{"discount_percentage": 10}, buyer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/quotes/"+created.ID+"/respond", map[string]any{"discount_percentage": 10}, staff)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/guest/quotes/"+created.ID+"/status", map[string]any{"email": "wrong@example.com", "status": "accepted"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/guest/quotes/"+created.ID+"/status", map[string]any{"email": "asha@example.com", "status": "accepted"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var accepted quoteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&accepted))
	assert.Equal(t, StatusAccepted, accepted.Status)
	assert.Equal(t, 1800.0, *accepted.QuotedTotal)
}

func TestHandlerMapsErrors(t *testing.T) {
	router, f := newTestRouter(t)
	q := f.create(t, buyer)

	rec := doJSON(t, router, http.MethodGet, "/quotes/"+q.ID, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/quotes", map[string]any{"unexpected": true}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/quotes/"+q.ID+"/status", map[string]any{"status": "accepted"}, buyer)
	assert.Equal(t, http.StatusConflict, rec.Code)

	_, err := f.svc.RespondWithPrice(context.Background(), q.ID, PriceInput{QuotedTotal: ptr(1800.0)}, staff)
	require.NoError(t, err)
	f.now = f.now.Add(DefaultValidity + time.Hour)

	rec = doJSON(t, router, http.MethodGet, "/quotes/"+q.ID, nil, buyer)
	require.Equal(t, http.StatusOK, rec.Code)
	var view quoteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, StatusQuoted, view.Status)
	assert.Equal(t, StatusExpired, view.EffectiveStatus)

	rec = doJSON(t, router, http.MethodPost, "/quotes/"+q.ID+"/status", map[string]any{"status": "accepted"}, buyer)
	assert.Equal(t, http.StatusGone, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/quotes/does-not-exist", nil, staff)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerListsByRole(t *testing.T) {
	router, f := newTestRouter(t)
	f.create(t, buyer)
	f.create(t, other)

	rec := doJSON(t, router, http.MethodGet, "/quotes", nil, buyer)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine struct {
		Quotes []quoteResponse `json:"quotes"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&mine))
	assert.Len(t, mine.Quotes, 1)

	rec = doJSON(t, router, http.MethodGet, "/quotes?status=pending", nil, staff)
	require.Equal(t, http.StatusOK, rec.Code)
	var all struct {
		Quotes []quoteResponse `json:"quotes"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	assert.Len(t, all.Quotes, 2)
}
