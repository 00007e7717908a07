package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all analytics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Post("/optimize", h.HandleOptimize)
		r.Get("/models", h.HandleGetModels)
		r.Get("/universe", h.HandleGetUniverse)
	})
}
