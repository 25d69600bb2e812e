package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Log-Tools/logging-pipeline/events"
	"github.com/Log-Tools/logging-pipeline/internal/config"
	"github.com/Log-Tools/logging-pipeline/internal/logging"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog"
)

// Producer defines the interface for Kafka producer operations
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Close()
}

// ProducerFactory defines the interface for creating Kafka producers
type ProducerFactory interface {
	CreateProducer(cfg config.KafkaConfig) (Producer, error)
}

// DefaultProducerFactory provides the production Kafka producer
type DefaultProducerFactory struct{}

func (f *DefaultProducerFactory) CreateProducer(cfg config.KafkaConfig) (Producer, error) {
	kafkaConfig := kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "all",
	}
	if cfg.ClientID != "" {
		kafkaConfig["client.id"] = cfg.ClientID + "-emitter"
	}

	// Add custom configuration
	for key, value := range cfg.ProducerConfig {
		kafkaConfig[key] = value
	}

	producer, err := kafka.NewProducer(&kafkaConfig)
	if err != nil {
		return nil, err
	}
	return producer, nil
}

// Emitter publishes log messages on behalf of business services. Publishing
// is asynchronous; delivery failures are reported through the logger.
type Emitter struct {
	producer       Producer
	topic          string
	flushTimeoutMs int
	logger         zerolog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New wraps producer and starts draining its delivery reports
func New(producer Producer, topic string, flushTimeoutMs int, logger zerolog.Logger) *Emitter {
	e := &Emitter{
		producer:       producer,
		topic:          topic,
		flushTimeoutMs: flushTimeoutMs,
		logger:         logging.Component(logger, "emitter"),
	}
	e.wg.Add(1)
	go e.handleProducerEvents()
	return e
}

// NewFromConfig creates the producer with factory (nil for the default one)
// and publishes to the configured emit topic
func NewFromConfig(cfg *config.Config, factory ProducerFactory, logger zerolog.Logger) (*Emitter, error) {
	if factory == nil {
		factory = &DefaultProducerFactory{}
	}
	producer, err := factory.CreateProducer(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return New(producer, cfg.Kafka.EmitTopic, cfg.Kafka.FlushTimeoutMs, logger), nil
}

// Topic returns the destination topic
func (e *Emitter) Topic() string {
	return e.topic
}

// LogAction records that service performed action. data may be nil, a
// json.RawMessage or any JSON-serializable value. An empty level means INFO.
// Failures are logged and never returned to the caller.
func (e *Emitter) LogAction(ctx context.Context, service, action string, data interface{}, level events.Level) {
	msg, err := NewMessage(service, action, data, level)
	if err == nil {
		err = e.Emit(ctx, msg)
	}
	if err != nil {
		e.logger.Error().Err(err).Str("service", service).Str("action", action).
			Msg("Failed to send log to Kafka")
	}
}

// NewMessage builds a validated message from loosely typed input
func NewMessage(service, action string, data interface{}, level events.Level) (*events.LogMessage, error) {
	if level == "" {
		level = events.LevelInfo
	}
	msg := &events.LogMessage{Service: service, Action: action, Level: level}

	switch v := data.(type) {
	case nil:
	case json.RawMessage:
		msg.Data = v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal log data: %w", err)
		}
		msg.Data = raw
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// Emit enqueues msg for delivery. Messages are keyed by service so one
// service's logs land on one partition in order.
func (e *Emitter) Emit(ctx context.Context, msg *events.LogMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := msg.Encode()
	if err != nil {
		return err
	}

	kafkaMsg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &e.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(msg.Service),
		Value: value,
		Headers: []kafka.Header{
			{Key: events.HeaderService, Value: []byte(msg.Service)},
			{Key: events.HeaderLevel, Value: []byte(msg.Level)},
			{Key: events.HeaderContentType, Value: []byte(events.ContentTypeJSON)},
		},
	}

	if err := e.producer.Produce(kafkaMsg, nil); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", e.topic, err)
	}
	return nil
}

// handleProducerEvents logs delivery reports until the producer is closed
func (e *Emitter) handleProducerEvents() {
	defer e.wg.Done()
	for event := range e.producer.Events() {
		switch ev := event.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				e.logger.Error().Err(ev.TopicPartition.Error).Str("key", string(ev.Key)).
					Msg("Failed to deliver log message")
			} else {
				e.logger.Debug().Str("topic", *ev.TopicPartition.Topic).
					Int32("partition", ev.TopicPartition.Partition).
					Int64("offset", int64(ev.TopicPartition.Offset)).
					Msg("Log message delivered")
			}
		case kafka.Error:
			e.logger.Error().Err(ev).Msg("Producer error")
		}
	}
}

// Flush waits for outstanding deliveries and returns how many are still pending
func (e *Emitter) Flush() int {
	return e.producer.Flush(e.flushTimeoutMs)
}

// Close flushes pending messages and shuts the producer down
func (e *Emitter) Close() {
	e.closeOnce.Do(func() {
		if remaining := e.Flush(); remaining > 0 {
			e.logger.Warn().Int("pending", remaining).Msg("Producer closed with undelivered messages")
		}
		e.producer.Close()
		e.wg.Wait()
	})
}
