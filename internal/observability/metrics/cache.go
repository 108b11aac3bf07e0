package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics contains Prometheus metrics for result cache backends.
type CacheMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewCacheMetrics creates and registers new cache metrics.
func NewCacheMetrics(registry *prometheus.Registry) (*CacheMetrics, error) {
	m := &CacheMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CacheMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpulse_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"backend", "operation", "result"}, // result: hit, miss, success, error
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "parkpulse_cache_operation_duration_seconds",
			Help: "Time taken by cache operations",
			// 1ms to ~1s
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		},
		[]string{"backend", "operation"},
	)
}

// Describe implements the Collector interface
func (m *CacheMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *CacheMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
}

// RecordOperation records a cache operation with its result.
func (m *CacheMetrics) RecordOperation(backend, operation, result string, duration time.Duration) {
	m.operationsTotal.WithLabelValues(backend, operation, result).Inc()
	m.operationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}
