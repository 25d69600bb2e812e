package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Log-Tools/logging-pipeline/internal/logging"
	"github.com/Log-Tools/logging-pipeline/internal/model"
	"github.com/Log-Tools/logging-pipeline/internal/query"
	"github.com/Log-Tools/logging-pipeline/internal/sink"
	"github.com/Log-Tools/logging-pipeline/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// QueryService is the read side exposed over HTTP
type QueryService interface {
	GetAll() []model.LogRecord
	GetByService(service string) []model.LogRecord
	GetByLevel(level string) []model.LogRecord
	GetStats() store.Stats
	GetBackendStats(ctx context.Context) sink.BackendStats
	Search(ctx context.Context, text string) (*sink.SearchResult, error)
}

// HealthFunc reports component status for /health. A non-nil error marks
// the service unhealthy.
type HealthFunc func() (map[string]string, error)

type Handlers struct {
	queries QueryService
	health  HealthFunc
	logger  zerolog.Logger
}

func NewHandlers(queries QueryService, health HealthFunc, logger zerolog.Logger) *Handlers {
	return &Handlers{
		queries: queries,
		health:  health,
		logger:  logging.Component(logger, "http"),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func (h *Handlers) GetAll(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.queries.GetAll())
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.queries.GetStats())
}

func (h *Handlers) GetBackendStats(w http.ResponseWriter, r *http.Request) {
	// Degraded stats are still a valid answer
	h.writeJSON(w, http.StatusOK, h.queries.GetBackendStats(r.Context()))
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	result, err := h.queries.Search(r.Context(), r.URL.Query().Get("q"))
	switch {
	case errors.Is(err, query.ErrInvalidQuery):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case err != nil:
		h.logger.Error().Err(err).Msg("Search failed")
		h.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		h.writeJSON(w, http.StatusOK, result)
	}
}

func (h *Handlers) GetByService(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.queries.GetByService(chi.URLParam(r, "service")))
}

func (h *Handlers) GetByLevel(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.queries.GetByLevel(chi.URLParam(r, "level")))
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}
	if h.health == nil {
		h.writeJSON(w, http.StatusOK, body)
		return
	}

	components, err := h.health()
	for k, v := range components {
		body[k] = v
	}
	if err != nil {
		body["status"] = "unavailable"
		body["error"] = err.Error()
		h.writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	h.writeJSON(w, http.StatusOK, body)
}
