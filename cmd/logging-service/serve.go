package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/Log-Tools/logging-pipeline/internal/config"
	"github.com/Log-Tools/logging-pipeline/internal/consumer"
	"github.com/Log-Tools/logging-pipeline/internal/httpapi"
	"github.com/Log-Tools/logging-pipeline/internal/logging"
	"github.com/Log-Tools/logging-pipeline/internal/metrics"
	"github.com/Log-Tools/logging-pipeline/internal/query"
	"github.com/Log-Tools/logging-pipeline/internal/sink"
	"github.com/Log-Tools/logging-pipeline/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Consume log topics and serve the read API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runServe(cfg)
	},
}

func runServe(cfg *config.Config) error {
	logger := logging.New(cfg.Logging)
	logger.Info().
		Str("brokers", cfg.Kafka.Brokers).
		Strs("topics", cfg.Kafka.Topics).
		Str("group", cfg.Kafka.ConsumerGroup).
		Int("capacity", cfg.Store.MaxCapacity).
		Bool("opensearch", cfg.OpenSearch.IsEnabled()).
		Msg("Starting logging service")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	recent := store.New(cfg.Store.MaxCapacity,
		store.WithRecentCount(cfg.Store.RecentCount),
		store.WithSizeObserver(collector.SetStoreSize))

	// Interfaces stay nil when OpenSearch is disabled
	var (
		indexer  consumer.Indexer
		searcher query.Searcher
	)
	if cfg.OpenSearch.IsEnabled() {
		searchSink, err := newSink(ctx, cfg, logger, collector)
		if err != nil {
			return err
		}
		defer searchSink.Close()
		indexer = searchSink
		searcher = searchSink
	}

	svc, err := consumer.NewServiceWithConfig(cfg, nil, recent, indexer, collector, logger)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	queries := query.NewService(recent, searcher, logger)
	health := func() (map[string]string, error) {
		state := svc.State()
		status := map[string]string{
			"consumer": state.String(),
			"records":  strconv.Itoa(recent.Size()),
		}
		if state != consumer.StateRunning {
			return status, fmt.Errorf("consumer is %s", state)
		}
		return status, nil
	}

	var metricsHandler http.Handler
	if cfg.Metrics.IsEnabled() {
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}
	server := httpapi.NewServer(cfg.HTTP.Address,
		httpapi.NewRouter(httpapi.NewHandlers(queries, health, logger), metricsHandler),
		logging.Component(logger, "http"))

	// Coordinate the consumer and the HTTP server; either failing stops both
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := svc.Run(ctx); err != nil {
			errChan <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx); err != nil {
			errChan <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	case runErr = <-errChan:
		logger.Error().Err(runErr).Msg("Service error")
	}
	cancel()

	wg.Wait()
	logger.Info().Int("records", recent.Size()).Msg("Logging service stopped")
	return runErr
}

func newSink(ctx context.Context, cfg *config.Config, logger zerolog.Logger, m sink.Metrics) (*sink.Sink, error) {
	backend, err := sink.NewOpenSearchBackend(cfg.OpenSearch)
	if err != nil {
		return nil, err
	}
	s := sink.New(backend, sink.OptionsFromConfig(cfg.OpenSearch), logger, m)
	s.Start(ctx)
	return s, nil
}
