package provision

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"gopkg.in/yaml.v3"
)

// TopicSpec represents configuration for a single Kafka topic read from YAML
type TopicSpec struct {
	Partitions        int                    `yaml:"partitions"`
	ReplicationFactor int                    `yaml:"replication_factor"`
	CleanupPolicy     string                 `yaml:"cleanup.policy"`
	Other             map[string]interface{} `yaml:",inline"`
}

// TopicFile is the layout of configs/kafka_topics.yaml
type TopicFile struct {
	Topics map[string]TopicSpec `yaml:"topics"`
}

// TopicAdmin is the subset of the Kafka admin client used for provisioning
type TopicAdmin interface {
	CreateTopics(ctx context.Context, topics []kafka.TopicSpecification, options ...kafka.CreateTopicsAdminOption) ([]kafka.TopicResult, error)
}

// MetadataClient looks up cluster metadata
type MetadataClient interface {
	GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error)
}

// TopicSummary is the outcome of CreateTopics
type TopicSummary struct {
	Created  []string
	Existing []string
	Failed   map[string]error
}

// LoadTopicFile reads and parses a topic definition file
func LoadTopicFile(path string) (*TopicFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}

	var tf TopicFile
	if err := yaml.Unmarshal(content, &tf); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return &tf, nil
}

// Names returns the defined topic names, sorted
func (f *TopicFile) Names() []string {
	names := make([]string, 0, len(f.Topics))
	for name := range f.Topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Missing returns the required topics the file does not define
func (f *TopicFile) Missing(required []string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := f.Topics[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Specifications converts the file into admin requests, sorted by topic name
func (f *TopicFile) Specifications() []kafka.TopicSpecification {
	specs := make([]kafka.TopicSpecification, 0, len(f.Topics))
	for _, name := range f.Names() {
		t := f.Topics[name]

		partitions := t.Partitions
		if partitions <= 0 {
			partitions = 1
		}
		replication := t.ReplicationFactor
		if replication <= 0 {
			replication = 1
		}

		cfg := map[string]string{}
		if t.CleanupPolicy != "" {
			cfg["cleanup.policy"] = t.CleanupPolicy
		}
		for k, v := range t.Other {
			cfg[k] = fmt.Sprint(v)
		}

		specs = append(specs, kafka.TopicSpecification{
			Topic:             name,
			NumPartitions:     partitions,
			ReplicationFactor: replication,
			Config:            cfg,
		})
	}
	return specs
}

// CreateTopics creates every topic. Topics that already exist count as success.
func CreateTopics(ctx context.Context, admin TopicAdmin, specs []kafka.TopicSpecification, timeout time.Duration) (*TopicSummary, error) {
	results, err := admin.CreateTopics(ctx, specs, kafka.SetAdminOperationTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("CreateTopics request failed: %w", err)
	}

	summary := &TopicSummary{Failed: make(map[string]error)}
	for _, res := range results {
		switch res.Error.Code() {
		case kafka.ErrNoError:
			summary.Created = append(summary.Created, res.Topic)
		case kafka.ErrTopicAlreadyExists:
			summary.Existing = append(summary.Existing, res.Topic)
		default:
			summary.Failed[res.Topic] = res.Error
		}
	}
	return summary, nil
}

// CheckTopics verifies the brokers answer and every topic exists. It returns
// the partition count per topic.
func CheckTopics(client MetadataClient, topics []string, timeoutMs int) (map[string]int, error) {
	metadata, err := client.GetMetadata(nil, true, timeoutMs)
	if err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}

	partitions := make(map[string]int, len(topics))
	for _, topic := range topics {
		tm, ok := metadata.Topics[topic]
		if !ok {
			return partitions, fmt.Errorf("topic %s not found", topic)
		}
		if tm.Error.Code() != kafka.ErrNoError {
			return partitions, fmt.Errorf("topic %s: %w", topic, tm.Error)
		}
		partitions[topic] = len(tm.Partitions)
	}
	return partitions, nil
}
