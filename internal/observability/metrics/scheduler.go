package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics contains Prometheus metrics for scheduled jobs.
type SchedulerMetrics struct {
	jobRunsTotal *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobRunning   *prometheus.GaugeVec
}

// NewSchedulerMetrics creates and registers new scheduler metrics.
func NewSchedulerMetrics(registry *prometheus.Registry) (*SchedulerMetrics, error) {
	m := &SchedulerMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SchedulerMetrics) initMetrics() {
	m.jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpulse_job_runs_total",
			Help: "Total number of scheduled job invocations",
		},
		[]string{"job", "status"}, // status: success, error, skipped
	)

	m.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "parkpulse_job_duration_seconds",
			Help: "Time taken by scheduled jobs",
			// 1s to ~9 hours
			Buckets: prometheus.ExponentialBuckets(BucketStart1s, BucketFactor2, BucketCount15),
		},
		[]string{"job"},
	)

	m.jobRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parkpulse_job_running",
			Help: "Whether a job is currently running (1) or idle (0)",
		},
		[]string{"job"},
	)
}

// Describe implements the Collector interface
func (m *SchedulerMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.jobRunsTotal.Describe(ch)
	m.jobDuration.Describe(ch)
	m.jobRunning.Describe(ch)
}

// Collect implements the Collector interface
func (m *SchedulerMetrics) Collect(ch chan<- prometheus.Metric) {
	m.jobRunsTotal.Collect(ch)
	m.jobDuration.Collect(ch)
	m.jobRunning.Collect(ch)
}

// RecordJobStart marks a job as running.
func (m *SchedulerMetrics) RecordJobStart(job string) {
	m.jobRunning.WithLabelValues(job).Set(1)
}

// RecordJobEnd records a finished job run.
func (m *SchedulerMetrics) RecordJobEnd(job, status string, duration time.Duration) {
	m.jobRunning.WithLabelValues(job).Set(0)
	m.jobRunsTotal.WithLabelValues(job, status).Inc()
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordJobSkipped records an invocation skipped because the job was already running.
func (m *SchedulerMetrics) RecordJobSkipped(job string) {
	m.jobRunsTotal.WithLabelValues(job, StatusSkipped).Inc()
}
