package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "logging_service"

// Collector holds the prometheus instruments shared by the consumer, the
// store and the search sink
type Collector struct {
	messagesConsumed   *prometheus.CounterVec
	messagesStored     *prometheus.CounterVec
	decodeErrors       *prometheus.CounterVec
	processingDuration prometheus.Histogram
	storeSize          prometheus.Gauge
	sinkIndexed        prometheus.Counter
	sinkFailures       prometheus.Counter
	sinkDropped        prometheus.Counter
}

// NewCollector registers all instruments on reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		messagesConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "The total number of messages read from Kafka",
		}, []string{"topic"}),
		messagesStored: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_stored_total",
			Help:      "The total number of decoded records appended to the recent store",
		}, []string{"topic"}),
		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "The total number of malformed messages skipped",
		}, []string{"topic"}),
		processingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Time taken to decode and store one message",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		storeSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_records",
			Help:      "Number of records currently held in the recent store",
		}),
		sinkIndexed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_indexed_total",
			Help:      "The total number of records indexed in OpenSearch",
		}),
		sinkFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_index_failures_total",
			Help:      "The total number of failed index requests",
		}),
		sinkDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_dropped_total",
			Help:      "The total number of records dropped because the sink queue was full",
		}),
	}
}

func (c *Collector) IncrementMessagesConsumed(topic string) {
	c.messagesConsumed.WithLabelValues(topic).Inc()
}

func (c *Collector) IncrementRecordsStored(topic string) {
	c.messagesStored.WithLabelValues(topic).Inc()
}

func (c *Collector) IncrementDecodeErrors(topic string) {
	c.decodeErrors.WithLabelValues(topic).Inc()
}

func (c *Collector) RecordProcessingLatency(d time.Duration) {
	c.processingDuration.Observe(d.Seconds())
}

// SetStoreSize is passed to the store as its size observer
func (c *Collector) SetStoreSize(n int) {
	c.storeSize.Set(float64(n))
}

func (c *Collector) IncrementIndexed() {
	c.sinkIndexed.Inc()
}

func (c *Collector) IncrementIndexFailures() {
	c.sinkFailures.Inc()
}

func (c *Collector) IncrementDropped() {
	c.sinkDropped.Inc()
}
