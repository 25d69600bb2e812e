package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Log-Tools/logging-pipeline/internal/model"
)

// SearchFields are the document fields free-text queries match against
var SearchFields = []string{"service", "action", "message", "level"}

// SearchResult holds matching records, newest first
type SearchResult struct {
	Total int64             `json:"total"`
	Hits  []model.LogRecord `json:"hits"`
}

// Bucket is one term aggregation bucket
type Bucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// TimeBucket is one date histogram bucket
type TimeBucket struct {
	Start time.Time `json:"start"`
	Count int64     `json:"count"`
}

// BackendStats is the aggregated view computed by the search backend. When
// the backend cannot be queried, Error explains why and the rest is empty.
type BackendStats struct {
	TotalLogs     int64        `json:"totalLogs"`
	LogsByService []Bucket     `json:"logsByService"`
	LogsByLevel   []Bucket     `json:"logsByLevel"`
	Timeline      []TimeBucket `json:"timeline"`
	Error         string       `json:"error,omitempty"`
}

// Degraded reports whether the stats carry an error instead of data
func (b BackendStats) Degraded() bool {
	return b.Error != ""
}

type termsAggregation struct {
	Buckets []struct {
		Key      string `json:"key"`
		DocCount int64  `json:"doc_count"`
	} `json:"buckets"`
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Source model.Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		Services termsAggregation `json:"services"`
		Levels   termsAggregation `json:"levels"`
		Timeline struct {
			Buckets []struct {
				Key      int64 `json:"key"`
				DocCount int64 `json:"doc_count"`
			} `json:"buckets"`
		} `json:"timeline"`
	} `json:"aggregations"`
}

func (s *Sink) searchBody(text string) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": SearchFields,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"timestamp": map[string]interface{}{"order": "desc"}},
		},
		"size": s.opts.SearchSize,
	})
}

func (s *Sink) statsBody() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"size":             0,
		"track_total_hits": true,
		"aggs": map[string]interface{}{
			"services": map[string]interface{}{
				"terms": map[string]interface{}{"field": "service"},
			},
			"levels": map[string]interface{}{
				"terms": map[string]interface{}{"field": "level"},
			},
			"timeline": map[string]interface{}{
				"date_histogram": map[string]interface{}{
					"field":             "timestamp",
					"calendar_interval": s.opts.HistogramInterval,
				},
			},
		},
	})
}

// Search runs a free-text query across SearchFields, newest first. Backend
// failures are returned wrapped in ErrBackend.
func (s *Sink) Search(ctx context.Context, text string) (*SearchResult, error) {
	body, err := s.searchBody(text)
	if err != nil {
		return nil, fmt.Errorf("failed to build search query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	raw, err := s.backend.Search(ctx, IndexPattern(s.opts.IndexPrefix, s.opts.DatePartitioned), body)
	if err != nil {
		s.logger.Error().Err(err).Str("query", text).Msg("Search failed")
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode search response: %v", ErrBackend, err)
	}

	result := &SearchResult{
		Total: resp.Hits.Total.Value,
		Hits:  make([]model.LogRecord, 0, len(resp.Hits.Hits)),
	}
	for _, hit := range resp.Hits.Hits {
		record := hit.Source.Record()
		if record.ID == "" {
			record.ID = hit.ID
		}
		result.Hits = append(result.Hits, record)
	}
	return result, nil
}

// Stats aggregates counts by service, by level and over time. It never
// returns an error; failures produce a degraded BackendStats.
func (s *Sink) Stats(ctx context.Context) BackendStats {
	body, err := s.statsBody()
	if err != nil {
		return BackendStats{Error: fmt.Sprintf("failed to build stats query: %v", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	raw, err := s.backend.Search(ctx, IndexPattern(s.opts.IndexPrefix, s.opts.DatePartitioned), body)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to get OpenSearch statistics")
		return BackendStats{Error: "could not retrieve statistics from OpenSearch: " + err.Error()}
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return BackendStats{Error: "could not decode statistics from OpenSearch: " + err.Error()}
	}

	stats := BackendStats{
		TotalLogs:     resp.Hits.Total.Value,
		LogsByService: make([]Bucket, 0, len(resp.Aggregations.Services.Buckets)),
		LogsByLevel:   make([]Bucket, 0, len(resp.Aggregations.Levels.Buckets)),
		Timeline:      make([]TimeBucket, 0, len(resp.Aggregations.Timeline.Buckets)),
	}
	for _, b := range resp.Aggregations.Services.Buckets {
		stats.LogsByService = append(stats.LogsByService, Bucket{Key: b.Key, Count: b.DocCount})
	}
	for _, b := range resp.Aggregations.Levels.Buckets {
		stats.LogsByLevel = append(stats.LogsByLevel, Bucket{Key: b.Key, Count: b.DocCount})
	}
	for _, b := range resp.Aggregations.Timeline.Buckets {
		stats.Timeline = append(stats.Timeline, TimeBucket{Start: time.UnixMilli(b.Key).UTC(), Count: b.DocCount})
	}
	return stats
}
