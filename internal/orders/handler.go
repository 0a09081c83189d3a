package orders

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/signalworks/storefront/internal/platform/httpx"
	"github.com/signalworks/storefront/internal/shared"
)

// Handler serves the order HTTP API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the order handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if code, _ := httpx.StatusFor(err); code >= http.StatusInternalServerError {
		h.logger.Error("order request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	order, err := h.service.VerifyAndPlaceOrder(r.Context(), req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListForUser(r.Context(), shared.ActorFromContext(r.Context()), httpx.PageFromQuery(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) fulfillment(w http.ResponseWriter, r *http.Request) {
	var upd FulfillmentUpdate
	if err := httpx.DecodeJSON(w, r, &upd); err != nil {
		h.fail(w, err)
		return
	}
	order, err := h.service.UpdateFulfillment(r.Context(), chi.URLParam(r, "id"), upd, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) invoice(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.RegenerateInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}
