package scheduler

import (
	"context"
	"time"
)

// TickerService runs a job every interval. It implements suture.Service.
type TickerService struct {
	job        *Job
	interval   time.Duration
	runOnStart bool
}

// NewTickerService creates a service running job every interval, and once
// immediately when runOnStart is set.
func NewTickerService(job *Job, interval time.Duration, runOnStart bool) *TickerService {
	return &TickerService{
		job:        job,
		interval:   interval,
		runOnStart: runOnStart,
	}
}

// Serve runs the ticker loop until ctx is done.
func (s *TickerService) Serve(ctx context.Context) error {
	schedulerLogger.Info("Job loop started",
		"job", s.job.Name(),
		"interval", s.interval.String(),
		"run_on_start", s.runOnStart)

	if s.runOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			schedulerLogger.Info("Job loop stopped", "job", s.job.Name())
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs the job once. Errors are logged by the job and do not stop the loop.
func (s *TickerService) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, _ = s.job.TryRun(ctx)
}

// String implements fmt.Stringer; suture uses it in log messages.
func (s *TickerService) String() string {
	return "job:" + s.job.Name()
}
