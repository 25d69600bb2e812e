package main

import (
	"fmt"
	"os"

	"github.com/Log-Tools/logging-pipeline/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	kafkaBrokers string
	logLevel     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "logging-service",
	Short: "Collect service logs from Kafka into a recent store and OpenSearch",
	Long: `Consumes JSON log messages from the user-logs and create-user-logs topics,
keeps the most recent records in memory, forwards every record to OpenSearch and
serves read queries over HTTP.

Configuration is read from an optional YAML file and LOGSVC_ environment
variables (nested keys separated by "__", e.g. LOGSVC_KAFKA__BROKERS).

Examples:
  # Run the service
  logging-service serve --config configs/config.yaml

  # Publish a test log message
  logging-service emit --service user-service --action getUsers --data '{"count":2}'

  # Verify Kafka topics and OpenSearch are reachable
  logging-service check`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&kafkaBrokers, "brokers", "", "Kafka brokers (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(serveCmd, emitCmd, checkCmd)
}

// loadConfig loads configuration and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if kafkaBrokers != "" {
		cfg.Kafka.Brokers = kafkaBrokers
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
