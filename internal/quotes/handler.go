package quotes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/signalworks/storefront/internal/platform/httpx"
	"github.com/signalworks/storefront/internal/shared"
)

// Handler serves the quote HTTP API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	now     func() time.Time
}

// NewHandler builds the quote handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

type quoteResponse struct {
	*Quote
	EffectiveStatus Status `json:"effective_status"`
}

func (h *Handler) view(q *Quote) quoteResponse {
	return quoteResponse{Quote: q, EffectiveStatus: q.EffectiveStatus(h.now())}
}

func (h *Handler) respond(w http.ResponseWriter, status int, q *Quote, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, status, h.view(q))
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if code, _ := httpx.StatusFor(err); code >= http.StatusInternalServerError {
		h.logger.Error("quote request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	q, err := h.service.Create(r.Context(), req, shared.ActorFromContext(r.Context()))
	h.respond(w, http.StatusCreated, q, err)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	page := httpx.PageFromQuery(r)
	var (
		quotes []Quote
		err    error
	)
	if actor.IsStaff() {
		filter := ListFilter{Pagination: page}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status := Status(raw)
			filter.Status = &status
		}
		quotes, err = h.service.List(r.Context(), filter, actor)
	} else {
		quotes, err = h.service.ListForUser(r.Context(), actor, page)
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]quoteResponse, 0, len(quotes))
	for i := range quotes {
		out = append(out, h.view(&quotes[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"quotes": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), shared.ActorFromContext(r.Context()))
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) respondWithPrice(w http.ResponseWriter, r *http.Request) {
	var in PriceInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, err)
		return
	}
	q, err := h.service.RespondWithPrice(r.Context(), chi.URLParam(r, "id"), in, shared.ActorFromContext(r.Context()))
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) updatePrice(w http.ResponseWriter, r *http.Request) {
	var in PriceInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, err)
		return
	}
	q, err := h.service.UpdatePrice(r.Context(), chi.URLParam(r, "id"), in, shared.ActorFromContext(r.Context()))
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			h.fail(w, err)
			return
		}
	}
	q, err := h.service.Reject(r.Context(), chi.URLParam(r, "id"), req.AdminNotes, shared.ActorFromContext(r.Context()))
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	q, err := h.service.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status, shared.ActorFromContext(r.Context()))
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) userMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	q, err := h.service.AppendUserMessage(r.Context(), chi.URLParam(r, "id"), req.Content, shared.ActorFromContext(r.Context()))
	h.respond(w, http.StatusCreated, q, err)
}

func (h *Handler) adminMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	q, err := h.service.AppendAdminMessage(r.Context(), chi.URLParam(r, "id"), req.Content, shared.ActorFromContext(r.Context()))
	h.respond(w, http.StatusCreated, q, err)
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	q, err := h.service.SetConversationStatus(r.Context(), chi.URLParam(r, "id"), req.Status, shared.ActorFromContext(r.Context()))
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), shared.ActorFromContext(r.Context())); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) guestGet(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	q, err := h.service.GetForGuest(r.Context(), chi.URLParam(r, "id"), req.Email)
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) guestStatus(w http.ResponseWriter, r *http.Request) {
	var req guestStatusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	q, err := h.service.GuestSetStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.Email)
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) guestMessage(w http.ResponseWriter, r *http.Request) {
	var req guestMessageRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	q, err := h.service.AppendGuestMessage(r.Context(), chi.URLParam(r, "id"), req.Content, req.Email)
	h.respond(w, http.StatusCreated, q, err)
}
