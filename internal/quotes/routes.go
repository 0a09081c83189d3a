package quotes

import (
	"github.com/go-chi/chi/v5"

	"github.com/signalworks/storefront/internal/auth"
)

// MountRoutes registers quote routes. Anonymous callers may create quotes
// and use the guest endpoints; everything else needs a bearer identity.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/quotes", h.create)
	r.Post("/guest/quotes/{id}", h.guestGet)
	r.Post("/guest/quotes/{id}/status", h.guestStatus)
	r.Post("/guest/quotes/{id}/messages", h.guestMessage)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Get("/quotes", h.list)
		r.Get("/quotes/{id}", h.get)
		r.Post("/quotes/{id}/status", h.setStatus)
		r.Post("/quotes/{id}/messages", h.userMessage)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireStaff)
		r.Post("/quotes/{id}/respond", h.respondWithPrice)
		r.Post("/quotes/{id}/price", h.updatePrice)
		r.Post("/quotes/{id}/reject", h.reject)
		r.Post("/quotes/{id}/admin-messages", h.adminMessage)
		r.Post("/quotes/{id}/conversation", h.conversation)
		r.Delete("/quotes/{id}", h.delete)
	})
}
