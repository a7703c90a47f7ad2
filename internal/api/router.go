package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via ticket or bearer token, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/schema", func(r chi.Router) {
				r.Get("/", s.handleGetSchema)
				r.Post("/migrations", s.handleMigrate)
				r.Post("/reset", s.handleReset)
			})

			r.Route("/cache/{key}", func(r chi.Router) {
				r.Get("/", s.handleGetCacheEntry)
				r.Put("/", s.handleMarkCached)
				r.Delete("/", s.handleRemoveCached)
			})

			r.Get("/metrics", s.handleMetrics)
		})
	})

	return r
}

// handleHealth returns the server health status.
// A destroyed or unreadable session reports 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version, err := s.store.SchemaVersion(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "unavailable",
			"version": s.version,
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.version,
		"session_id":     s.store.ID(),
		"schema_version": version,
	})
}
