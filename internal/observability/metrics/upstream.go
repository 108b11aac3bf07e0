package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics contains Prometheus metrics for the queue-times feed client.
type UpstreamMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
}

// NewUpstreamMetrics creates and registers new upstream metrics.
func NewUpstreamMetrics(registry *prometheus.Registry) (*UpstreamMetrics, error) {
	m := &UpstreamMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *UpstreamMetrics) initMetrics() {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpulse_upstream_requests_total",
			Help: "Total number of requests to the queue-times feed",
		},
		[]string{"endpoint", "status_code"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "parkpulse_upstream_request_duration_seconds",
			Help: "Time taken by queue-times feed requests",
			// 10ms to ~10s
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount10),
		},
		[]string{"endpoint"},
	)

	m.retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpulse_upstream_retries_total",
			Help: "Total number of retried feed requests",
		},
		[]string{"endpoint"},
	)

	m.breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parkpulse_upstream_circuit_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)
}

// Describe implements the Collector interface
func (m *UpstreamMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestsTotal.Describe(ch)
	m.requestDuration.Describe(ch)
	m.retriesTotal.Describe(ch)
	m.breakerState.Describe(ch)
}

// Collect implements the Collector interface
func (m *UpstreamMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requestsTotal.Collect(ch)
	m.requestDuration.Collect(ch)
	m.retriesTotal.Collect(ch)
	m.breakerState.Collect(ch)
}

// RecordRequest records a completed feed request.
func (m *UpstreamMetrics) RecordRequest(endpoint, statusCode string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(endpoint, statusCode).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRetry records a retried feed request.
func (m *UpstreamMetrics) RecordRetry(endpoint string) {
	m.retriesTotal.WithLabelValues(endpoint).Inc()
}

// SetBreakerState records the current circuit breaker state.
func (m *UpstreamMetrics) SetBreakerState(breaker string, state int) {
	m.breakerState.WithLabelValues(breaker).Set(float64(state))
}
