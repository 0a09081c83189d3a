package orders

import (
	"github.com/go-chi/chi/v5"

	"github.com/signalworks/storefront/internal/auth"
)

// MountRoutes registers order routes. Checkout and reads need a buyer
// identity; fulfillment and invoice regeneration are staff only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Post("/orders/verify", h.verify)
		r.Get("/orders", h.list)
		r.Get("/orders/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireStaff)
		r.Patch("/orders/{id}/fulfillment", h.fulfillment)
		r.Post("/orders/{id}/invoice", h.invoice)
	})
}
