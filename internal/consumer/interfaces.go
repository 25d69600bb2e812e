package consumer

import (
	"time"

	"github.com/Log-Tools/logging-pipeline/internal/config"
	"github.com/Log-Tools/logging-pipeline/internal/model"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Consumer defines the interface for Kafka consumer operations
type Consumer interface {
	GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error)
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	ReadMessage(timeoutMs int) (*kafka.Message, error)
	StoreMessage(message *kafka.Message) error
	Close() error
}

// Appender receives every decoded record. Implementations must be safe for
// concurrent use.
type Appender interface {
	Append(record model.LogRecord)
}

// Indexer forwards records to secondary storage. Index must not block.
type Indexer interface {
	Index(record model.LogRecord)
}

// MetricsCollector defines the interface for collecting processing metrics
type MetricsCollector interface {
	IncrementMessagesConsumed(topic string)
	IncrementRecordsStored(topic string)
	IncrementDecodeErrors(topic string)
	RecordProcessingLatency(d time.Duration)
}

// KafkaClientFactory defines the interface for creating Kafka consumers
type KafkaClientFactory interface {
	CreateConsumer(cfg config.KafkaConfig) (Consumer, error)
}
