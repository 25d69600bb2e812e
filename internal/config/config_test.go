package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_ValidConfig(t *testing.T) {
	configContent := `
kafka:
  brokers: "kafka-1:9092,kafka-2:9092"
  client_id: "logging-test"
  consumer_group: "logging-service-group"
  topics: ["user-logs", "create-user-logs", "audit-logs"]
  consumer_config:
    session.timeout.ms: 6000
  poll_timeout_ms: 250

store:
  max_capacity: 500
  recent_count: 5

opensearch:
  enabled: true
  addresses: ["http://opensearch:9200"]
  index_prefix: "svc-logs"
  date_partitioned: false
  request_timeout: 2s
  workers: 2
  queue_size: 64
  search_size: 50
  histogram_interval: "day"

processing:
  max_concurrency: 6

logging:
  level: "debug"
  format: "json"

http:
  address: ":8080"

metrics:
  enabled: false
`
	config, err := LoadConfig(createTempConfigFile(t, configContent))

	require.NoError(t, err)
	assert.Equal(t, "kafka-1:9092,kafka-2:9092", config.Kafka.Brokers)
	assert.Equal(t, "logging-test", config.Kafka.ClientID)
	assert.Equal(t, []string{"user-logs", "create-user-logs", "audit-logs"}, config.Kafka.Topics)
	assert.Equal(t, 6000, config.Kafka.ConsumerConfig["session.timeout.ms"])
	assert.Equal(t, 250, config.Kafka.PollTimeoutMs)
	assert.Equal(t, 500, config.Store.MaxCapacity)
	assert.Equal(t, 5, config.Store.RecentCount)
	assert.True(t, config.OpenSearch.IsEnabled())
	assert.False(t, config.OpenSearch.IsDatePartitioned())
	assert.Equal(t, "svc-logs", config.OpenSearch.IndexPrefix)
	assert.Equal(t, "svc-logs", config.OpenSearch.TemplateName)
	assert.Equal(t, 2*time.Second, config.OpenSearch.RequestTimeout)
	assert.Equal(t, 2, config.OpenSearch.Workers)
	assert.Equal(t, 64, config.OpenSearch.QueueSize)
	assert.Equal(t, 50, config.OpenSearch.SearchSize)
	assert.Equal(t, "day", config.OpenSearch.HistogramInterval)
	assert.Equal(t, 6, config.Processing.MaxConcurrency)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, ":8080", config.HTTP.Address)
	assert.False(t, config.Metrics.IsEnabled())
}

func TestLoadConfig_WithDefaults(t *testing.T) {
	config, err := LoadConfig("")

	require.NoError(t, err)
	assert.Equal(t, "localhost:9092", config.Kafka.Brokers)
	assert.Equal(t, "logging-service-group", config.Kafka.ConsumerGroup)
	assert.Equal(t, []string{"user-logs", "create-user-logs"}, config.Kafka.Topics)
	assert.Equal(t, "user-logs", config.Kafka.EmitTopic)
	assert.Equal(t, 1000, config.Kafka.PollTimeoutMs)
	assert.Equal(t, 5000, config.Kafka.FlushTimeoutMs)
	assert.Equal(t, 1000, config.Store.MaxCapacity)
	assert.Equal(t, 10, config.Store.RecentCount)
	assert.True(t, config.OpenSearch.IsEnabled())
	assert.True(t, config.OpenSearch.IsDatePartitioned())
	assert.Equal(t, []string{"http://localhost:9200"}, config.OpenSearch.Addresses)
	assert.Equal(t, "microservices-logs", config.OpenSearch.IndexPrefix)
	assert.Equal(t, 5*time.Second, config.OpenSearch.RequestTimeout)
	assert.Equal(t, 100, config.OpenSearch.SearchSize)
	assert.Equal(t, "hour", config.OpenSearch.HistogramInterval)
	assert.Equal(t, 4, config.Processing.MaxConcurrency)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "console", config.Logging.Format)
	assert.Equal(t, ":3003", config.HTTP.Address)
	assert.True(t, config.Metrics.IsEnabled())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	configContent := `
kafka:
  brokers: "file-broker:9092"
  topics: ["a", "b"]
store:
  max_capacity: 10
`
	t.Setenv("LOGSVC_KAFKA__BROKERS", "env-broker:9092")
	t.Setenv("LOGSVC_KAFKA__TOPICS", "user-logs, create-user-logs, billing-logs")
	t.Setenv("LOGSVC_STORE__MAX_CAPACITY", "2000")
	t.Setenv("LOGSVC_OPENSEARCH__ENABLED", "false")
	t.Setenv("LOGSVC_OPENSEARCH__REQUEST_TIMEOUT", "750ms")
	t.Setenv("LOGSVC_LOGGING__LEVEL", "warn")

	config, err := LoadConfig(createTempConfigFile(t, configContent))

	require.NoError(t, err)
	assert.Equal(t, "env-broker:9092", config.Kafka.Brokers)
	assert.Equal(t, []string{"user-logs", "create-user-logs", "billing-logs"}, config.Kafka.Topics)
	assert.Equal(t, 2000, config.Store.MaxCapacity)
	assert.False(t, config.OpenSearch.IsEnabled())
	assert.Equal(t, 750*time.Millisecond, config.OpenSearch.RequestTimeout)
	assert.Equal(t, "warn", config.Logging.Level)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name: "single topic",
			config: `
kafka:
  topics: ["user-logs"]
`,
			wantErr: "kafka.topics must have at least 2 entries",
		},
		{
			name: "empty topic name",
			config: `
kafka:
  topics: ["user-logs", ""]
`,
			wantErr: "kafka.topics[1] is required",
		},
		{
			name: "duplicate topic",
			config: `
kafka:
  topics: ["user-logs", "user-logs"]
`,
			wantErr: "duplicate topic 'user-logs'",
		},
		{
			name: "invalid log level",
			config: `
logging:
  level: "verbose"
`,
			wantErr: "invalid logging.level 'verbose'",
		},
		{
			name: "invalid histogram interval",
			config: `
opensearch:
  histogram_interval: "fortnight"
`,
			wantErr: "invalid opensearch.histogram_interval 'fortnight'",
		},
		{
			name: "negative capacity",
			config: `
store:
  max_capacity: -1
`,
			wantErr: "store.max_capacity must be greater than 0",
		},
		{
			name: "bad opensearch address",
			config: `
opensearch:
  addresses: ["not a url"]
`,
			wantErr: "opensearch.addresses[0] failed 'url' validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(createTempConfigFile(t, tt.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_FileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = LoadConfig(createTempConfigFile(t, "kafka: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config YAML")
}
