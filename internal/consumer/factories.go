package consumer

import (
	"time"

	"github.com/Log-Tools/logging-pipeline/internal/config"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// DefaultKafkaClientFactory provides production Kafka client implementations
type DefaultKafkaClientFactory struct{}

// CreateConsumer builds a group consumer. Offsets are stored explicitly
// after a message is handled and committed in the background.
func (f *DefaultKafkaClientFactory) CreateConsumer(cfg config.KafkaConfig) (Consumer, error) {
	kafkaConfig := kafka.ConfigMap{
		"bootstrap.servers":        cfg.Brokers,
		"group.id":                 cfg.ConsumerGroup,
		"auto.offset.reset":        "earliest",
		"enable.auto.commit":       true,
		"enable.auto.offset.store": false,
	}
	if cfg.ClientID != "" {
		kafkaConfig["client.id"] = cfg.ClientID
	}

	// Add custom configuration
	for key, value := range cfg.ConsumerConfig {
		kafkaConfig[key] = value
	}

	consumer, err := kafka.NewConsumer(&kafkaConfig)
	if err != nil {
		return nil, err
	}

	return &KafkaConsumerWrapper{consumer}, nil
}

// KafkaConsumerWrapper wraps the confluent-kafka-go consumer to implement our Consumer interface
type KafkaConsumerWrapper struct {
	*kafka.Consumer
}

func (w *KafkaConsumerWrapper) ReadMessage(timeoutMs int) (*kafka.Message, error) {
	return w.Consumer.ReadMessage(time.Duration(timeoutMs) * time.Millisecond)
}

func (w *KafkaConsumerWrapper) StoreMessage(message *kafka.Message) error {
	_, err := w.Consumer.StoreMessage(message)
	return err
}
