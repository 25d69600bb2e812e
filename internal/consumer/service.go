package consumer

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Log-Tools/logging-pipeline/events"
	"github.com/Log-Tools/logging-pipeline/internal/config"
	"github.com/Log-Tools/logging-pipeline/internal/model"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog"
)

var (
	// ErrAlreadyStarted is returned by Run when the service is not disconnected
	ErrAlreadyStarted = errors.New("consumer already started")
	// ErrNotRunning is returned by Stop when there is nothing to stop
	ErrNotRunning = errors.New("consumer not running")
	// ErrClosed is returned by Run once the Kafka consumer has been closed
	ErrClosed = errors.New("consumer closed")
)

// workerBuffer is the number of messages queued per partition worker
const workerBuffer = 10

type nopIndexer struct{}

func (nopIndexer) Index(model.LogRecord) {}

type nopMetrics struct{}

func (nopMetrics) IncrementMessagesConsumed(string)      {}
func (nopMetrics) IncrementRecordsStored(string)         {}
func (nopMetrics) IncrementDecodeErrors(string)          {}
func (nopMetrics) RecordProcessingLatency(time.Duration) {}

// Service consumes the log topics under one consumer group and turns every
// decodable message into exactly one stored and indexed record
type Service struct {
	kafka    config.KafkaConfig
	workers  int
	consumer Consumer
	store    Appender
	sink     Indexer
	metrics  MetricsCollector
	logger   zerolog.Logger
	now      func() time.Time

	mu     sync.Mutex
	state  State
	closed bool
	cancel context.CancelFunc
	done   chan struct{}

	processedCount int64
	storedCount    int64
	decodeErrors   int64
}

// Assembles a consumer service with all dependencies injected for testability.
// sink and metrics may be nil.
func NewService(
	cfg *config.Config,
	consumer Consumer,
	store Appender,
	sink Indexer,
	metrics MetricsCollector,
	logger zerolog.Logger,
) *Service {
	if sink == nil {
		sink = nopIndexer{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	workers := cfg.Processing.MaxConcurrency
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		kafka:    cfg.Kafka,
		workers:  workers,
		consumer: consumer,
		store:    store,
		sink:     sink,
		metrics:  metrics,
		logger:   logger.With().Str("component", "consumer").Logger(),
		now:      time.Now,
		state:    StateDisconnected,
	}
}

// Builds the production Kafka consumer from configuration
func NewServiceWithConfig(
	cfg *config.Config,
	factory KafkaClientFactory,
	store Appender,
	sink Indexer,
	metrics MetricsCollector,
	logger zerolog.Logger,
) (*Service, error) {
	if factory == nil {
		factory = &DefaultKafkaClientFactory{}
	}
	consumer, err := factory.CreateConsumer(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	return NewService(cfg, consumer, store, sink, metrics, logger), nil
}

// State returns the current lifecycle phase
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) setState(state State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()
	s.logger.Debug().Stringer("from", prev).Stringer("to", state).Msg("Consumer state changed")
}

// Run connects, subscribes to every configured topic and processes messages
// until ctx is cancelled or Stop is called. Connect and subscribe failures
// are returned; the service is then back in StateDisconnected. The Kafka
// consumer is closed when Run returns, so later calls return ErrClosed.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateConnecting
	done := s.done
	s.mu.Unlock()
	defer close(done)
	defer cancel()

	s.logger.Info().Str("brokers", s.kafka.Brokers).Msg("Connecting to Kafka")
	if err := s.connect(); err != nil {
		s.shutdownClient()
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}

	if err := s.consumer.SubscribeTopics(s.kafka.Topics, nil); err != nil {
		s.shutdownClient()
		return fmt.Errorf("failed to subscribe to topics %s: %w", strings.Join(s.kafka.Topics, ","), err)
	}
	s.setState(StateSubscribed)
	s.logger.Info().Strs("topics", s.kafka.Topics).Str("group", s.kafka.ConsumerGroup).
		Msg("Subscribed to log topics")

	channels := make([]chan *kafka.Message, s.workers)
	var wg sync.WaitGroup
	for i := range channels {
		channels[i] = make(chan *kafka.Message, workerBuffer)
		wg.Add(1)
		go s.partitionWorker(ctx, &wg, i+1, channels[i])
	}

	s.setState(StateRunning)
	s.logger.Info().Int("workers", s.workers).Msg("Consumer started, waiting for messages...")

	runErr := s.poll(ctx, channels)

	s.setState(StateDisconnecting)
	for _, ch := range channels {
		close(ch)
	}
	wg.Wait()
	s.shutdownClient()

	s.logger.Info().
		Int64("processed", atomic.LoadInt64(&s.processedCount)).
		Int64("stored", atomic.LoadInt64(&s.storedCount)).
		Int64("decode_errors", atomic.LoadInt64(&s.decodeErrors)).
		Msg("Consumer stopped")
	return runErr
}

// Stop cancels a running service and waits for Run to return
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.state == StateDisconnected || s.cancel == nil {
		s.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// connect verifies that the brokers answer and every topic exists
func (s *Service) connect() error {
	for _, topic := range s.kafka.Topics {
		topic := topic
		metadata, err := s.consumer.GetMetadata(&topic, false, s.kafka.MetadataTimeoutMs)
		if err != nil {
			return fmt.Errorf("metadata request for topic %s failed: %w", topic, err)
		}
		tm, ok := metadata.Topics[topic]
		if !ok {
			return fmt.Errorf("topic %s not found", topic)
		}
		if tm.Error.Code() != kafka.ErrNoError {
			return fmt.Errorf("topic %s: %w", topic, tm.Error)
		}
		s.logger.Debug().Str("topic", topic).Int("partitions", len(tm.Partitions)).Msg("Topic available")
	}
	return nil
}

func (s *Service) shutdownClient() {
	if err := s.consumer.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to close Kafka consumer")
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.setState(StateDisconnected)
}

// poll reads messages and routes each to the worker owning its partition
func (s *Service) poll(ctx context.Context, channels []chan *kafka.Message) error {
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Context cancelled, stopping consumer")
			return nil
		default:
		}

		msg, err := s.consumer.ReadMessage(s.kafka.PollTimeoutMs)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) {
				if kerr.Code() == kafka.ErrTimedOut {
					continue // Timeout is expected, not an error
				}
				if kerr.IsFatal() {
					return fmt.Errorf("fatal consumer error: %w", err)
				}
			}
			s.logger.Warn().Err(err).Msg("Failed to read message")
			continue
		}

		ch := channels[workerFor(msg.TopicPartition, len(channels))]
		select {
		case ch <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

// workerFor maps a partition to a worker so each partition is handled sequentially
func workerFor(tp kafka.TopicPartition, workers int) int {
	h := fnv.New32a()
	if tp.Topic != nil {
		h.Write([]byte(*tp.Topic))
	}
	h.Write([]byte{':'})
	h.Write([]byte(strconv.FormatInt(int64(tp.Partition), 10)))
	return int(h.Sum32() % uint32(workers))
}

func (s *Service) partitionWorker(ctx context.Context, wg *sync.WaitGroup, workerID int, messages <-chan *kafka.Message) {
	defer wg.Done()
	s.logger.Debug().Int("worker", workerID).Msg("Worker started")
	defer s.logger.Debug().Int("worker", workerID).Msg("Worker stopped")

	for msg := range messages {
		// Queued messages are left uncommitted once shutdown begins
		if ctx.Err() != nil {
			continue
		}
		s.processMessage(workerID, msg)
	}
}

// processMessage decodes one message, appends the record and hands it to the sink
func (s *Service) processMessage(workerID int, msg *kafka.Message) {
	startTime := time.Now()
	topic := topicOf(msg)

	s.metrics.IncrementMessagesConsumed(topic)
	processed := atomic.AddInt64(&s.processedCount, 1)
	if processed%1000 == 0 {
		s.logger.Info().
			Int64("processed", processed).
			Int64("stored", atomic.LoadInt64(&s.storedCount)).
			Int64("decode_errors", atomic.LoadInt64(&s.decodeErrors)).
			Int("worker", workerID).
			Msg("Statistics")
	}

	logMsg, err := events.DecodeLogMessage(msg.Value)
	if err != nil {
		s.metrics.IncrementDecodeErrors(topic)
		atomic.AddInt64(&s.decodeErrors, 1)
		s.logger.Warn().Err(err).
			Str("topic", topic).
			Int32("partition", msg.TopicPartition.Partition).
			Int64("offset", int64(msg.TopicPartition.Offset)).
			Msg("Skipping malformed message")
		s.storeOffset(msg)
		return
	}

	record := model.NewLogRecord(logMsg, s.now())
	s.store.Append(record)
	s.metrics.IncrementRecordsStored(topic)
	atomic.AddInt64(&s.storedCount, 1)

	s.sink.Index(record)

	s.metrics.RecordProcessingLatency(time.Since(startTime))
	s.logger.Debug().Str("id", record.ID).Str("service", record.Service).Str("action", record.Action).
		Str("topic", topic).Msg("Log stored")
	s.storeOffset(msg)
}

func (s *Service) storeOffset(msg *kafka.Message) {
	if err := s.consumer.StoreMessage(msg); err != nil {
		s.logger.Warn().Err(err).Str("topic", topicOf(msg)).
			Int32("partition", msg.TopicPartition.Partition).
			Msg("Failed to store offset")
	}
}

func topicOf(msg *kafka.Message) string {
	if msg.TopicPartition.Topic == nil {
		return ""
	}
	return *msg.TopicPartition.Topic
}
