package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/signalworks/storefront/internal/platform/httpx"
)

// ProductReader loads products by id.
type ProductReader interface {
	Get(ctx context.Context, id string) (Product, error)
}

// StockSubscriber streams stock changes.
type StockSubscriber interface {
	Subscribe(ctx context.Context) (<-chan StockChange, error)
}

// Handler exposes product reads and the live stock stream.
type Handler struct {
	logger    *slog.Logger
	products  ProductReader
	stock     StockSubscriber
	heartbeat time.Duration
}

// NewHandler builds the catalog handler.
func NewHandler(logger *slog.Logger, products ProductReader, stock StockSubscriber) *Handler {
	return &Handler{logger: logger, products: products, stock: stock, heartbeat: 25 * time.Second}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products/stream", h.streamStock)
	r.Get("/products/{id}", h.getProduct)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) streamStock(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "streaming unsupported")
		return
	}
	ctx := r.Context()
	changes, err := h.stock.Subscribe(ctx)
	if err != nil {
		h.logger.Error("stock subscribe failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "stock stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case change, ok := <-changes:
			if !ok {
				return
			}
			body, err := json.Marshal(change)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: stock\ndata: %s\n\n", body); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
