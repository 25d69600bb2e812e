package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/Log-Tools/logging-pipeline/events"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore, e.g. LOGSVC_KAFKA__CONSUMER_GROUP.
const EnvPrefix = "LOGSVC_"

// Config represents the complete configuration for the logging service
type Config struct {
	Kafka      KafkaConfig      `yaml:"kafka"`
	Store      StoreConfig      `yaml:"store"`
	OpenSearch OpenSearchConfig `yaml:"opensearch"`
	Processing ProcessingConfig `yaml:"processing"`
	Logging    LoggingConfig    `yaml:"logging"`
	HTTP       HTTPConfig       `yaml:"http"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// KafkaConfig defines Kafka connection settings
type KafkaConfig struct {
	Brokers        string                 `yaml:"brokers" validate:"required"`
	ClientID       string                 `yaml:"client_id"`
	ConsumerGroup  string                 `yaml:"consumer_group" validate:"required"`
	Topics         []string               `yaml:"topics" validate:"min=2,dive,required"`
	EmitTopic      string                 `yaml:"emit_topic"`
	ConsumerConfig map[string]interface{} `yaml:"consumer_config"`
	ProducerConfig map[string]interface{} `yaml:"producer_config"`
	PollTimeoutMs  int                    `yaml:"poll_timeout_ms" validate:"gt=0"`
	FlushTimeoutMs int                    `yaml:"flush_timeout_ms" validate:"gt=0"`
	// MetadataTimeoutMs bounds the topic metadata lookups done while connecting
	MetadataTimeoutMs int `yaml:"metadata_timeout_ms" validate:"gt=0"`
}

// StoreConfig defines the in-memory recent-history store
type StoreConfig struct {
	MaxCapacity int `yaml:"max_capacity" validate:"gt=0"`
	RecentCount int `yaml:"recent_count" validate:"gt=0"`
}

// OpenSearchConfig defines the search backend the sink forwards records to
type OpenSearchConfig struct {
	Enabled           *bool         `yaml:"enabled"`
	Addresses         []string      `yaml:"addresses" validate:"min=1,dive,url"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	IndexPrefix       string        `yaml:"index_prefix" validate:"required"`
	DatePartitioned   *bool         `yaml:"date_partitioned"`
	TemplateName      string        `yaml:"template_name" validate:"required"`
	RequestTimeout    time.Duration `yaml:"request_timeout" validate:"gt=0"`
	Workers           int           `yaml:"workers" validate:"gt=0"`
	QueueSize         int           `yaml:"queue_size" validate:"gt=0"`
	SearchSize        int           `yaml:"search_size" validate:"gt=0,lte=10000"`
	HistogramInterval string        `yaml:"histogram_interval" validate:"oneof=minute hour day week month"`
}

// IsEnabled reports whether records are forwarded to OpenSearch
func (c OpenSearchConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// IsDatePartitioned reports whether one index per UTC day is used
func (c OpenSearchConfig) IsDatePartitioned() bool {
	return c.DatePartitioned == nil || *c.DatePartitioned
}

// ProcessingConfig defines message processing settings
type ProcessingConfig struct {
	// MaxConcurrency is the number of partition workers. Messages from one
	// partition always go to the same worker.
	MaxConcurrency int `yaml:"max_concurrency" validate:"gt=0"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// HTTPConfig defines the read API listener
type HTTPConfig struct {
	Address string `yaml:"address" validate:"required"`
}

// MetricsConfig toggles the /metrics endpoint
type MetricsConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports whether prometheus metrics are exposed
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// LoadConfig reads the optional YAML file, applies LOGSVC_ environment
// overrides and defaults, then validates the result
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := applyEnvOverrides(&config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	setDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// listKeys are split on commas when given through the environment
var listKeys = map[string]bool{
	"kafka.topics":         true,
	"opensearch.addresses": true,
}

func applyEnvOverrides(config *Config) error {
	k := koanf.New(".")
	provider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		if listKeys[key] {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return key, parts
		}
		return key, value
	})
	if err := k.Load(provider, nil); err != nil {
		return err
	}
	if len(k.Keys()) == 0 {
		return nil
	}
	return k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "yaml"})
}

// setDefaults applies default values for optional configuration fields
func setDefaults(config *Config) {
	// Kafka defaults
	if config.Kafka.Brokers == "" {
		config.Kafka.Brokers = "localhost:9092"
	}
	if config.Kafka.ClientID == "" {
		config.Kafka.ClientID = "logging-service-consumer"
	}
	if config.Kafka.ConsumerGroup == "" {
		config.Kafka.ConsumerGroup = "logging-service-group"
	}
	if len(config.Kafka.Topics) == 0 {
		config.Kafka.Topics = events.DefaultTopics()
	}
	if config.Kafka.EmitTopic == "" {
		config.Kafka.EmitTopic = events.TopicUserLogs
	}
	if config.Kafka.PollTimeoutMs == 0 {
		config.Kafka.PollTimeoutMs = 1000
	}
	if config.Kafka.FlushTimeoutMs == 0 {
		config.Kafka.FlushTimeoutMs = 5000
	}
	if config.Kafka.MetadataTimeoutMs == 0 {
		config.Kafka.MetadataTimeoutMs = 10000
	}

	// Store defaults
	if config.Store.MaxCapacity == 0 {
		config.Store.MaxCapacity = 1000
	}
	if config.Store.RecentCount == 0 {
		config.Store.RecentCount = 10
	}

	// OpenSearch defaults
	if len(config.OpenSearch.Addresses) == 0 {
		config.OpenSearch.Addresses = []string{"http://localhost:9200"}
	}
	if config.OpenSearch.IndexPrefix == "" {
		config.OpenSearch.IndexPrefix = "microservices-logs"
	}
	if config.OpenSearch.TemplateName == "" {
		config.OpenSearch.TemplateName = config.OpenSearch.IndexPrefix
	}
	if config.OpenSearch.RequestTimeout == 0 {
		config.OpenSearch.RequestTimeout = 5 * time.Second
	}
	if config.OpenSearch.Workers == 0 {
		config.OpenSearch.Workers = 4
	}
	if config.OpenSearch.QueueSize == 0 {
		config.OpenSearch.QueueSize = 1024
	}
	if config.OpenSearch.SearchSize == 0 {
		config.OpenSearch.SearchSize = 100
	}
	if config.OpenSearch.HistogramInterval == "" {
		config.OpenSearch.HistogramInterval = "hour"
	}

	// Processing defaults
	if config.Processing.MaxConcurrency == 0 {
		config.Processing.MaxConcurrency = 4
	}

	// Logging defaults
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "console"
	}

	if config.HTTP.Address == "" {
		config.HTTP.Address = ":3003"
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML key so messages match the config file
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			issues := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				issues = append(issues, describe(fe))
			}
			return errors.New(strings.Join(issues, "; "))
		}
		return err
	}

	seen := make(map[string]bool, len(c.Kafka.Topics))
	for _, topic := range c.Kafka.Topics {
		if seen[topic] {
			return fmt.Errorf("kafka.topics contains duplicate topic '%s'", topic)
		}
		seen[topic] = true
	}

	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("invalid %s '%v'. Valid values: %s", field, fe.Value(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed '%s' validation", field, fe.Tag())
	}
}
