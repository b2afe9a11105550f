package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metrics != nil {
		r.Handle(s.metricsPath, s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Route("/triggers", func(r chi.Router) {
			r.Get("/", s.handleListTriggers)
			r.Get("/{id}", s.handleGetTrigger)
			r.Post("/{id}/enable", s.handleSetTriggerEnabled(true))
			r.Post("/{id}/disable", s.handleSetTriggerEnabled(false))
		})

		r.Route("/modules", func(r chi.Router) {
			r.Get("/", s.handleListModules)
			r.Get("/{id}", s.handleGetModule)
			r.Post("/{id}/enable", s.handleSetModuleEnabled(true))
			r.Post("/{id}/disable", s.handleSetModuleEnabled(false))
		})

		r.Get("/allow", s.handleGetAllow)
		r.Put("/allow", s.handleSetAllow)

		r.Post("/annotations", s.handleProcessAnnotation)
		r.Post("/signals/{name}", s.handleSignal)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":         "ok",
		"version":        s.version,
		"allow_triggers": s.engine.Allowed(),
	}
	if s.mqtt != nil {
		resp["mqtt_connected"] = s.mqtt.IsConnected()
	}
	writeJSON(w, http.StatusOK, resp)
}
