package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains Prometheus metrics for catalog sync and sampling runs.
type IngestMetrics struct {
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	catalogRows      *prometheus.CounterVec
	samplesTotal     *prometheus.CounterVec
	parksFailed      prometheus.Counter
	lastRunSamples   prometheus.Gauge
	ridesDeactivated prometheus.Counter
}

// NewIngestMetrics creates and registers new ingest metrics.
func NewIngestMetrics(registry *prometheus.Registry) (*IngestMetrics, error) {
	m := &IngestMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *IngestMetrics) initMetrics() {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpulse_ingest_runs_total",
			Help: "Total number of ingest runs",
		},
		[]string{"operation", "status"}, // operation: catalog_sync, sample_run
	)

	m.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "parkpulse_ingest_run_duration_seconds",
			Help: "Time taken by ingest runs",
			// 100ms to ~100s
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount12),
		},
		[]string{"operation"},
	)

	m.catalogRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpulse_catalog_rows_written_total",
			Help: "Total number of catalog rows written by synchronization",
		},
		[]string{"kind"}, // kind: groups, parks
	)

	m.samplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpulse_samples_total",
			Help: "Total number of sampled wait times by outcome",
		},
		[]string{"result"}, // result: inserted, duplicate
	)

	m.parksFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parkpulse_sample_parks_failed_total",
		Help: "Total number of parks that failed during sampling",
	})

	m.lastRunSamples = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parkpulse_sample_last_run_new_samples",
		Help: "Number of new samples stored by the most recent sampling run",
	})

	m.ridesDeactivated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parkpulse_rides_deactivated_total",
		Help: "Total number of rides marked inactive after disappearing from the feed",
	})
}

// Describe implements the Collector interface
func (m *IngestMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.runsTotal.Describe(ch)
	m.runDuration.Describe(ch)
	m.catalogRows.Describe(ch)
	m.samplesTotal.Describe(ch)
	m.parksFailed.Describe(ch)
	m.lastRunSamples.Describe(ch)
	m.ridesDeactivated.Describe(ch)
}

// Collect implements the Collector interface
func (m *IngestMetrics) Collect(ch chan<- prometheus.Metric) {
	m.runsTotal.Collect(ch)
	m.runDuration.Collect(ch)
	m.catalogRows.Collect(ch)
	m.samplesTotal.Collect(ch)
	m.parksFailed.Collect(ch)
	m.lastRunSamples.Collect(ch)
	m.ridesDeactivated.Collect(ch)
}

// RecordRun records the outcome and duration of an ingest run.
func (m *IngestMetrics) RecordRun(operation, status string, duration time.Duration) {
	m.runsTotal.WithLabelValues(operation, status).Inc()
	m.runDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCatalogRows records catalog rows written for a kind.
func (m *IngestMetrics) RecordCatalogRows(kind string, n int) {
	m.catalogRows.WithLabelValues(kind).Add(float64(n))
}

// RecordSampleRun records the totals of a sampling run.
func (m *IngestMetrics) RecordSampleRun(newSamples, duplicates, parksFailed int) {
	m.samplesTotal.WithLabelValues("inserted").Add(float64(newSamples))
	m.samplesTotal.WithLabelValues("duplicate").Add(float64(duplicates))
	m.parksFailed.Add(float64(parksFailed))
	m.lastRunSamples.Set(float64(newSamples))
}

// RecordRidesDeactivated records rides flipped to inactive.
func (m *IngestMetrics) RecordRidesDeactivated(n int64) {
	m.ridesDeactivated.Add(float64(n))
}
