package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/device", s.handleDevice)

		r.Route("/variables", func(r chi.Router) {
			r.Get("/", s.handleListVariables)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetVariable)
				r.Put("/", s.handleSetVariable)
				r.Get("/history", s.handleGetVariableHistory)
			})
		})
	})

	// WebSocket endpoint, path from config (default /ws)
	r.Get(s.wsCfg.Path, s.handleWebSocket)

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleDevice returns the identity of the ventilation unit and when it was
// last heard from.
func (s *Server) handleDevice(w http.ResponseWriter, _ *http.Request) {
	identity := s.coord.Identity()

	var lastSeen string
	if t := s.coord.LastSeen(); !t.IsZero() {
		lastSeen = t.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mac":          identity.MAC,
		"display_name": identity.DisplayName,
		"last_seen":    lastSeen,
	})
}
