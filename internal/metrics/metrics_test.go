package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.IncrementMessagesConsumed("user-logs")
	c.IncrementMessagesConsumed("user-logs")
	c.IncrementMessagesConsumed("create-user-logs")
	c.IncrementRecordsStored("user-logs")
	c.IncrementDecodeErrors("create-user-logs")
	c.IncrementIndexed()
	c.IncrementIndexFailures()
	c.IncrementDropped()
	c.IncrementDropped()
	c.SetStoreSize(42)
	c.RecordProcessingLatency(2 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.messagesConsumed.WithLabelValues("user-logs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messagesConsumed.WithLabelValues("create-user-logs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messagesStored.WithLabelValues("user-logs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.decodeErrors.WithLabelValues("create-user-logs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sinkIndexed))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sinkFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.sinkDropped))
	assert.Equal(t, 42.0, testutil.ToFloat64(c.storeSize))

	count, err := testutil.GatherAndCount(reg, "logging_service_processing_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector(prometheus.NewRegistry())
		NewCollector(prometheus.NewRegistry())
	})
}
