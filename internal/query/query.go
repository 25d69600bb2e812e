package query

import (
	"context"
	"errors"
	"strings"

	"github.com/Log-Tools/logging-pipeline/events"
	"github.com/Log-Tools/logging-pipeline/internal/logging"
	"github.com/Log-Tools/logging-pipeline/internal/model"
	"github.com/Log-Tools/logging-pipeline/internal/sink"
	"github.com/Log-Tools/logging-pipeline/internal/store"
	"github.com/rs/zerolog"
)

// ErrInvalidQuery is returned for a search without any text
var ErrInvalidQuery = errors.New("search query is required")

// DefaultSearchLimit caps in-memory search results when no backend is configured
const DefaultSearchLimit = 100

// Reader is the read side of the recent-history store
type Reader interface {
	All() []model.LogRecord
	ByService(service string) []model.LogRecord
	ByLevel(level events.Level) []model.LogRecord
	Filter(match func(model.LogRecord) bool) []model.LogRecord
	Stats() store.Stats
}

// Searcher is the search backend
type Searcher interface {
	Search(ctx context.Context, text string) (*sink.SearchResult, error)
	Stats(ctx context.Context) sink.BackendStats
}

// Service answers read queries from the recent store and the search backend
type Service struct {
	reader   Reader
	searcher Searcher
	logger   zerolog.Logger
}

// NewService creates a query service. searcher may be nil when the search
// backend is disabled; Search then falls back to the recent store.
func NewService(reader Reader, searcher Searcher, logger zerolog.Logger) *Service {
	return &Service{
		reader:   reader,
		searcher: searcher,
		logger:   logging.Component(logger, "query"),
	}
}

// SearchEnabled reports whether a search backend is configured
func (s *Service) SearchEnabled() bool {
	return s.searcher != nil
}

// GetAll returns every retained record, newest first
func (s *Service) GetAll() []model.LogRecord {
	return s.reader.All()
}

// GetByService returns retained records of one service, newest first
func (s *Service) GetByService(service string) []model.LogRecord {
	return s.reader.ByService(service)
}

// GetByLevel returns retained records with the given level, newest first.
// Known levels are matched case-insensitively; any other level must match
// exactly as it was sent.
func (s *Service) GetByLevel(level string) []model.LogRecord {
	if parsed := events.ParseLevel(level); parsed.Known() {
		return s.reader.ByLevel(parsed)
	}
	return s.reader.ByLevel(events.Level(level))
}

// GetStats summarizes the recent store
func (s *Service) GetStats() store.Stats {
	return s.reader.Stats()
}

// GetBackendStats aggregates over everything indexed in the search backend.
// It never fails: problems are reported in the Error field.
func (s *Service) GetBackendStats(ctx context.Context) sink.BackendStats {
	if s.searcher == nil {
		return sink.BackendStats{Error: "search backend disabled"}
	}
	return s.searcher.Stats(ctx)
}

// Search runs a free-text query. Empty text is rejected with ErrInvalidQuery
// and backend failures are returned as is.
func (s *Service) Search(ctx context.Context, text string) (*sink.SearchResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrInvalidQuery
	}
	if s.searcher == nil {
		return s.searchRecent(text), nil
	}

	result, err := s.searcher.Search(ctx, text)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("query", text).Int64("total", result.Total).Msg("Search completed")
	return result, nil
}

// searchRecent matches text against the fields the backend searches
func (s *Service) searchRecent(text string) *sink.SearchResult {
	needle := strings.ToLower(text)
	hits := s.reader.Filter(func(r model.LogRecord) bool {
		for _, field := range []string{r.Service, r.Action, r.Message(), string(r.Level)} {
			if strings.Contains(strings.ToLower(field), needle) {
				return true
			}
		}
		return false
	})

	total := int64(len(hits))
	if len(hits) > DefaultSearchLimit {
		hits = hits[:DefaultSearchLimit]
	}
	return &sink.SearchResult{Total: total, Hits: hits}
}
