package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Events
		r.Post("/events", h.RecordEvent)
		r.Get("/events", h.QueryEvents)
		r.Get("/events/{id}/replay", h.NativeReplay)

		// Sessions
		r.Get("/sessions/{id}/events", h.ListSessionEvents)
		r.Get("/sessions/{id}/cost", h.SessionCost)
		r.Get("/sessions/{id}/replay", h.ReplaySession)
		r.Post("/sessions/{id}/whatif", h.WhatIf)
		r.Post("/sessions/{id}/scenarios", h.CompareScenarios)

		// Agents
		r.Get("/agents/{id}/stats", h.AgentStats)
		r.Get("/agents/{id}/events", h.AgentEventsByTimeRange)
	})
}
