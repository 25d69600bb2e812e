package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/Log-Tools/logging-pipeline/internal/config"
	"github.com/Log-Tools/logging-pipeline/internal/provision"
	"github.com/Log-Tools/logging-pipeline/internal/sink"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify Kafka topics and OpenSearch are reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		kafkaErr := checkKafka(cfg)
		searchErr := checkOpenSearch(cmd.Context(), cfg)
		if kafkaErr != nil {
			return kafkaErr
		}
		return searchErr
	},
}

func checkKafka(cfg *config.Config) error {
	fmt.Printf("Kafka brokers: %s\n", cfg.Kafka.Brokers)

	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": cfg.Kafka.Brokers})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	partitions, err := provision.CheckTopics(admin, cfg.Kafka.Topics, cfg.Kafka.MetadataTimeoutMs)
	topics := make([]string, 0, len(partitions))
	for topic := range partitions {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for _, topic := range topics {
		fmt.Printf("  ✓ %s (%d partitions)\n", topic, partitions[topic])
	}
	if err != nil {
		fmt.Printf("  ✗ %v\n", err)
		return fmt.Errorf("kafka check failed: %w", err)
	}
	return nil
}

func checkOpenSearch(ctx context.Context, cfg *config.Config) error {
	if !cfg.OpenSearch.IsEnabled() {
		fmt.Println("OpenSearch: disabled")
		return nil
	}
	fmt.Printf("OpenSearch: %v\n", cfg.OpenSearch.Addresses)

	backend, err := sink.NewOpenSearchBackend(cfg.OpenSearch)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.OpenSearch.RequestTimeout)
	defer cancel()

	if err := backend.Ping(ctx); err != nil {
		fmt.Printf("  ✗ %v\n", err)
		return fmt.Errorf("opensearch check failed: %w", err)
	}
	fmt.Println("  ✓ cluster healthy")

	pattern := sink.IndexPattern(cfg.OpenSearch.IndexPrefix, cfg.OpenSearch.IsDatePartitioned())
	fmt.Printf("  index pattern: %s\n", pattern)
	return nil
}
