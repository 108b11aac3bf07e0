package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
	"github.com/tphakala/parkpulse/internal/errors"
)

// Config holds supervisor settings.
type Config struct {
	FailureThreshold float64       // failures before backoff
	FailureDecay     float64       // seconds for failures to decay
	FailureBackoff   time.Duration // wait once the threshold is exceeded
	ShutdownTimeout  time.Duration // per service stop budget
}

// DefaultConfig returns suture's defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Scheduler supervises job loops and other long running services.
type Scheduler struct {
	root *suture.Supervisor
	jobs map[string]*Job
}

// New creates a scheduler. Supervisor events are logged through logger, or
// the scheduler service logger when nil.
func New(logger *slog.Logger, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay <= 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if logger == nil {
		logger = schedulerLogger
	}

	handler := &sutureslog.Handler{Logger: logger}
	root := suture.New("parkpulse", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})

	return &Scheduler{
		root: root,
		jobs: make(map[string]*Job),
	}
}

// AddJob schedules job every interval. A non-positive interval is rejected.
func (s *Scheduler) AddJob(job *Job, interval time.Duration, runOnStart bool) error {
	if interval <= 0 {
		return errors.Newf("job %s: interval must be positive, got %s", job.Name(), interval).
			Component(serviceName).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if _, dup := s.jobs[job.Name()]; dup {
		return errors.Newf("job %s already scheduled", job.Name()).
			Component(serviceName).
			Category(errors.CategoryConflict).
			Build()
	}
	s.jobs[job.Name()] = job
	s.root.Add(NewTickerService(job, interval, runOnStart))
	return nil
}

// AddService supervises an arbitrary service, such as the HTTP server.
func (s *Scheduler) AddService(svc suture.Service) suture.ServiceToken {
	return s.root.Add(svc)
}

// Job returns a scheduled job by name.
func (s *Scheduler) Job(name string) (*Job, bool) {
	j, ok := s.jobs[name]
	return j, ok
}

// Serve runs all services until ctx is canceled.
func (s *Scheduler) Serve(ctx context.Context) error {
	schedulerLogger.Info("Scheduler started", "jobs", len(s.jobs))
	err := s.root.Serve(ctx)
	schedulerLogger.Info("Scheduler stopped")
	return err
}

// ServeBackground runs Serve in a goroutine. The channel receives its result.
func (s *Scheduler) ServeBackground(ctx context.Context) <-chan error {
	return s.root.ServeBackground(ctx)
}
