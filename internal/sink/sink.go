package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Log-Tools/logging-pipeline/internal/config"
	"github.com/Log-Tools/logging-pipeline/internal/model"
	"github.com/rs/zerolog"
)

// ErrBackend wraps failures of the search backend surfaced to query callers
var ErrBackend = errors.New("search backend error")

// Metrics receives sink outcomes
type Metrics interface {
	IncrementIndexed()
	IncrementIndexFailures()
	IncrementDropped()
}

type nopMetrics struct{}

func (nopMetrics) IncrementIndexed()       {}
func (nopMetrics) IncrementIndexFailures() {}
func (nopMetrics) IncrementDropped()       {}

// Options tune index naming and request handling
type Options struct {
	IndexPrefix       string
	TemplateName      string
	DatePartitioned   bool
	RequestTimeout    time.Duration
	Workers           int
	QueueSize         int
	SearchSize        int
	HistogramInterval string
}

// OptionsFromConfig maps the opensearch config section to sink options
func OptionsFromConfig(cfg config.OpenSearchConfig) Options {
	return Options{
		IndexPrefix:       cfg.IndexPrefix,
		TemplateName:      cfg.TemplateName,
		DatePartitioned:   cfg.IsDatePartitioned(),
		RequestTimeout:    cfg.RequestTimeout,
		Workers:           cfg.Workers,
		QueueSize:         cfg.QueueSize,
		SearchSize:        cfg.SearchSize,
		HistogramInterval: cfg.HistogramInterval,
	}
}

func (o *Options) applyDefaults() {
	if o.IndexPrefix == "" {
		o.IndexPrefix = "microservices-logs"
	}
	if o.TemplateName == "" {
		o.TemplateName = o.IndexPrefix
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 5 * time.Second
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.SearchSize <= 0 {
		o.SearchSize = 100
	}
	if o.HistogramInterval == "" {
		o.HistogramInterval = "hour"
	}
}

// Sink forwards records to the search backend without ever blocking or
// failing the ingestion path. Index enqueues onto a bounded queue drained by
// a fixed set of workers; a full queue drops the record.
type Sink struct {
	backend Backend
	opts    Options
	logger  zerolog.Logger
	metrics Metrics

	queue     chan model.LogRecord
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once

	knownIndices sync.Map
}

// New assembles a sink. Pass nil metrics to disable instrumentation.
func New(backend Backend, opts Options, logger zerolog.Logger, metrics Metrics) *Sink {
	opts.applyDefaults()
	if metrics == nil {
		metrics = nopMetrics{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sink{
		backend: backend,
		opts:    opts,
		logger:  logger.With().Str("component", "sink").Logger(),
		metrics: metrics,
		queue:   make(chan model.LogRecord, opts.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start checks backend health, ensures the index exists and launches the
// index workers. Backend problems are logged; the sink keeps accepting records.
func (s *Sink) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		pingCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
		if err := s.backend.Ping(pingCtx); err != nil {
			s.logger.Error().Err(err).Msg("OpenSearch is not reachable, records will be retried per request")
		} else {
			s.logger.Info().Msg("OpenSearch connected")
		}
		cancel()

		if err := s.EnsureIndex(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Failed to ensure index")
		}

		for i := 0; i < s.opts.Workers; i++ {
			s.wg.Add(1)
			go s.worker(i + 1)
		}
		s.logger.Info().Int("workers", s.opts.Workers).Int("queue_size", s.opts.QueueSize).
			Str("index_pattern", IndexPattern(s.opts.IndexPrefix, s.opts.DatePartitioned)).
			Msg("Search sink started")
	})
}

// EnsureIndex installs the index template and creates the current index if
// missing. Safe to call repeatedly.
func (s *Sink) EnsureIndex(ctx context.Context) error {
	if s.opts.DatePartitioned {
		tctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
		err := s.backend.PutIndexTemplate(tctx, s.opts.TemplateName, IndexTemplateBody(s.opts.IndexPrefix))
		cancel()
		if err != nil {
			return fmt.Errorf("failed to put index template: %w", err)
		}
	}
	return s.ensureIndex(ctx, IndexName(s.opts.IndexPrefix, s.opts.DatePartitioned, time.Now()))
}

func (s *Sink) ensureIndex(ctx context.Context, index string) error {
	if _, ok := s.knownIndices.Load(index); ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	exists, err := s.backend.IndexExists(ctx, index)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", index, err)
	}
	if !exists {
		if err := s.backend.CreateIndex(ctx, index, IndexBody()); err != nil {
			return fmt.Errorf("failed to create index %s: %w", index, err)
		}
		s.logger.Info().Str("index", index).Msg("Index created")
	}
	s.knownIndices.Store(index, struct{}{})
	return nil
}

// Index submits a record for indexing and returns immediately
func (s *Sink) Index(record model.LogRecord) {
	if s.ctx.Err() != nil {
		s.metrics.IncrementDropped()
		return
	}
	select {
	case s.queue <- record:
	default:
		s.metrics.IncrementDropped()
		s.logger.Warn().Str("id", record.ID).Str("service", record.Service).
			Msg("Sink queue full, record not indexed")
	}
}

func (s *Sink) worker(workerID int) {
	defer s.wg.Done()
	for {
		if s.ctx.Err() != nil {
			return
		}
		select {
		case <-s.ctx.Done():
			return
		case record := <-s.queue:
			// Each request is bounded by RequestTimeout and is not cut short by Close
			if err := s.indexRecord(context.Background(), record); err != nil {
				s.metrics.IncrementIndexFailures()
				s.logger.Error().Err(err).Int("worker", workerID).Str("id", record.ID).
					Msg("Failed to index log in OpenSearch")
				continue
			}
			s.metrics.IncrementIndexed()
		}
	}
}

func (s *Sink) indexRecord(ctx context.Context, record model.LogRecord) error {
	index := IndexName(s.opts.IndexPrefix, s.opts.DatePartitioned, record.Timestamp)
	if err := s.ensureIndex(ctx, index); err != nil {
		// Indexing can still succeed through the template
		s.logger.Warn().Err(err).Str("index", index).Msg("Index check failed")
	}

	body, err := json.Marshal(record.ToDocument())
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	return s.backend.IndexDocument(ctx, index, record.ID, body)
}

// Close stops the workers once their current request returns. Queued
// records are abandoned.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.logger.Info().Int("abandoned", len(s.queue)).Msg("Search sink stopped")
	})
}
