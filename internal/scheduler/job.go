// Package scheduler runs the ingestion jobs on fixed intervals under a
// suture supervisor. Each job carries a guard so a run never overlaps
// another run of the same job.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tphakala/parkpulse/internal/errors"
	"github.com/tphakala/parkpulse/internal/logging"
	"github.com/tphakala/parkpulse/internal/observability/metrics"
)

const serviceName = "scheduler"

var (
	schedulerLogger   *slog.Logger
	schedulerLevelVar = new(slog.LevelVar)
)

func init() {
	schedulerLevelVar.Set(slog.LevelInfo)
	schedulerLogger = logging.NewServiceLogger(serviceName, schedulerLevelVar)
}

// RunFunc is the body of a job.
type RunFunc func(ctx context.Context) error

// Job is a named unit of work with a re-entrancy guard.
type Job struct {
	name    string
	run     RunFunc
	running atomic.Bool
	metrics *metrics.SchedulerMetrics
}

// JobOption configures a Job.
type JobOption func(*Job)

// WithJobMetrics enables job metrics.
func WithJobMetrics(m *metrics.SchedulerMetrics) JobOption {
	return func(j *Job) {
		j.metrics = m
	}
}

// NewJob creates a job.
func NewJob(name string, run RunFunc, opts ...JobOption) *Job {
	j := &Job{name: name, run: run}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Name returns the job name.
func (j *Job) Name() string {
	return j.name
}

// Running reports whether a run is in progress.
func (j *Job) Running() bool {
	return j.running.Load()
}

// TryRun runs the job unless a run is already in progress, in which case it
// returns ran=false without waiting. A panic in the job is recovered and
// returned as an error.
func (j *Job) TryRun(ctx context.Context) (ran bool, err error) {
	if !j.running.CompareAndSwap(false, true) {
		schedulerLogger.Info("Job skipped, already running", "job", j.name)
		if j.metrics != nil {
			j.metrics.RecordJobSkipped(j.name)
		}
		return false, nil
	}
	defer j.running.Store(false)

	start := time.Now()
	if j.metrics != nil {
		j.metrics.RecordJobStart(j.name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("job %s panicked: %v", j.name, r).
				Component(serviceName).
				Category(errors.CategoryJobQueue).
				Context("job", j.name).
				Build()
		}
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
			schedulerLogger.Error("Job failed",
				"job", j.name,
				"error", err,
				"duration_ms", time.Since(start).Milliseconds())
		} else {
			schedulerLogger.Debug("Job completed",
				"job", j.name,
				"duration_ms", time.Since(start).Milliseconds())
		}
		if j.metrics != nil {
			j.metrics.RecordJobEnd(j.name, status, time.Since(start))
		}
	}()

	schedulerLogger.Debug("Job started", "job", j.name)
	return true, j.run(ctx)
}
