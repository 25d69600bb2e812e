package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/Log-Tools/logging-pipeline/events"
	"github.com/Log-Tools/logging-pipeline/internal/config"
	"github.com/Log-Tools/logging-pipeline/internal/logging"
	"github.com/Log-Tools/logging-pipeline/internal/provision"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

func main() {
	var (
		brokerList = flag.String("brokers", "localhost:9092", "Comma-separated list of bootstrap brokers")
		configPath = flag.String("config", "configs/kafka_topics.yaml", "Path to kafka_topics.yaml")
		verbose    = flag.Bool("verbose", false, "Show detailed topic configurations")
		dryRun     = flag.Bool("dry-run", false, "Show what would be created without actually creating topics")
	)
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	logger := logging.New(config.LoggingConfig{Level: level, Format: "console"})

	tf, err := provision.LoadTopicFile(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load topic definitions")
	}
	if len(tf.Topics) == 0 {
		logger.Warn().Str("file", *configPath).Msg("No topics defined")
		return
	}
	if missing := tf.Missing(events.DefaultTopics()); len(missing) > 0 {
		logger.Warn().Strs("topics", missing).Msg("Log topics consumed by the logging service are not defined")
	}

	specs := tf.Specifications()
	for _, spec := range specs {
		logger.Debug().Str("topic", spec.Topic).Int("partitions", spec.NumPartitions).
			Int("replication", spec.ReplicationFactor).Interface("config", spec.Config).
			Msg("Configuring topic")
	}

	if *dryRun {
		fmt.Printf("Dry run mode - would create/verify %d topic(s):\n", len(specs))
		for _, spec := range specs {
			fmt.Printf("   %s (partitions: %d, replication: %d)\n", spec.Topic, spec.NumPartitions, spec.ReplicationFactor)
		}
		return
	}

	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": *brokerList})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create admin client")
	}
	defer admin.Close()

	logger.Debug().Str("brokers", *brokerList).Msg("Connecting to Kafka brokers")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	summary, err := provision.CreateTopics(ctx, admin, specs, 30*time.Second)
	if err != nil {
		logger.Fatal().Err(err).Msg("Topic creation failed")
	}

	for _, topic := range summary.Created {
		logger.Info().Str("topic", topic).Msg("Created topic")
	}
	for _, topic := range summary.Existing {
		logger.Info().Str("topic", topic).Msg("Topic already exists")
	}
	failed := make([]string, 0, len(summary.Failed))
	for topic := range summary.Failed {
		failed = append(failed, topic)
	}
	sort.Strings(failed)
	for _, topic := range failed {
		logger.Error().Err(summary.Failed[topic]).Str("topic", topic).Msg("Failed to create topic")
	}

	fmt.Printf("Summary: %d created, %d existing, %d failed\n", len(summary.Created), len(summary.Existing), len(failed))
	if len(failed) > 0 {
		os.Exit(1)
	}
}
