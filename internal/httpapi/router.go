package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the read endpoints. metrics may be nil to leave /metrics out.
func NewRouter(h *Handlers, metrics http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Get("/health", h.Health)

	r.Route("/logs", func(r chi.Router) {
		r.Get("/", h.GetAll)
		r.Get("/stats", h.GetStats)
		r.Get("/backend-stats", h.GetBackendStats)
		r.Get("/search", h.Search)
		r.Get("/service/{service}", h.GetByService)
		r.Get("/level/{level}", h.GetByLevel)
	})

	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	return r
}
