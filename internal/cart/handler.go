package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/signalworks/storefront/internal/platform/httpx"
	"github.com/signalworks/storefront/internal/shared"
)

// Handler exposes the signed-in buyer's cart.
type Handler struct {
	store *Store
}

// NewHandler builds the cart handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// MountRoutes registers cart routes. Callers wrap the router with a user guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/cart", h.getCart)
	r.Put("/cart/items/{productID}", h.setItem)
	r.Delete("/cart/items/{productID}", h.removeItem)
}

type setItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	items, err := h.store.Items(r.Context(), actor.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) setItem(w http.ResponseWriter, r *http.Request) {
	var req setItemRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if err := h.store.SetQuantity(r.Context(), actor.UserID, chi.URLParam(r, "productID"), req.Quantity); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.getCart(w, r)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if err := h.store.Remove(r.Context(), actor.UserID, chi.URLParam(r, "productID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
