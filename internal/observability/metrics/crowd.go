package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CrowdMetrics contains Prometheus metrics for crowd level computations.
type CrowdMetrics struct {
	computationsTotal   *prometheus.CounterVec
	computationDuration *prometheus.HistogramVec
	levels              prometheus.Histogram
	baselineCache       *prometheus.CounterVec
}

// NewCrowdMetrics creates and registers new crowd metrics.
func NewCrowdMetrics(registry *prometheus.Registry) (*CrowdMetrics, error) {
	m := &CrowdMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CrowdMetrics) initMetrics() {
	m.computationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpulse_crowd_computations_total",
			Help: "Total number of crowd level computations",
		},
		[]string{"mode", "outcome"}, // outcome: computed or the default-result reason
	)

	m.computationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "parkpulse_crowd_computation_duration_seconds",
			Help: "Time taken by crowd level computations",
			// 1ms to ~1s
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"mode"},
	)

	m.levels = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parkpulse_crowd_level",
		Help:    "Distribution of computed crowd levels",
		Buckets: prometheus.LinearBuckets(0, CrowdLevelBucketWidth, CrowdLevelBucketCount),
	})

	m.baselineCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpulse_crowd_baseline_cache_total",
			Help: "Baseline cache lookups by result",
		},
		[]string{"result"}, // result: hit, miss
	)
}

// Describe implements the Collector interface
func (m *CrowdMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.computationsTotal.Describe(ch)
	m.computationDuration.Describe(ch)
	m.levels.Describe(ch)
	m.baselineCache.Describe(ch)
}

// Collect implements the Collector interface
func (m *CrowdMetrics) Collect(ch chan<- prometheus.Metric) {
	m.computationsTotal.Collect(ch)
	m.computationDuration.Collect(ch)
	m.levels.Collect(ch)
	m.baselineCache.Collect(ch)
}

// RecordComputation records one crowd level computation.
func (m *CrowdMetrics) RecordComputation(mode, outcome string, level int, duration time.Duration) {
	m.computationsTotal.WithLabelValues(mode, outcome).Inc()
	m.computationDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.levels.Observe(float64(level))
}

// RecordBaselineCache records a baseline cache lookup.
func (m *CrowdMetrics) RecordBaselineCache(hit bool) {
	result := ResultMiss
	if hit {
		result = ResultHit
	}
	m.baselineCache.WithLabelValues(result).Inc()
}
