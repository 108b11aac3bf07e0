// Package sampler records ride wait times from the upstream feed for every
// park in the catalog.
package sampler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tphakala/parkpulse/internal/cache"
	"github.com/tphakala/parkpulse/internal/conf"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"github.com/tphakala/parkpulse/internal/datastore/repository"
	"github.com/tphakala/parkpulse/internal/errors"
	"github.com/tphakala/parkpulse/internal/logging"
	"github.com/tphakala/parkpulse/internal/observability/metrics"
	"github.com/tphakala/parkpulse/internal/queuetimes"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName = "sampler"

	DefaultBatchSize  = 10
	DefaultBatchDelay = time.Second
	DefaultPageSize   = 100
	DefaultLatestTTL  = 10 * time.Minute
)

var (
	samplerLogger   *slog.Logger
	samplerLevelVar = new(slog.LevelVar)
)

func init() {
	samplerLevelVar.Set(slog.LevelInfo)
	samplerLogger = logging.NewServiceLogger(serviceName, samplerLevelVar)
}

// QueueTimesSource fetches the wait time document of one park.
type QueueTimesSource interface {
	FetchQueueTimes(ctx context.Context, parkExternalID int) (*queuetimes.QueueTimes, error)
}

// Result summarizes one sampling run.
type Result struct {
	NewSamples        int
	SkippedDuplicates int
	ParksFailed       int
	ParksSampled      int
	RidesDeactivated  int64
	Errors            []error
}

func (r *Result) merge(o *parkOutcome) {
	r.NewSamples += o.newSamples
	r.SkippedDuplicates += o.duplicates
	r.RidesDeactivated += o.deactivated
	r.Errors = append(r.Errors, o.errs...)
	if o.failed {
		r.ParksFailed++
	} else {
		r.ParksSampled++
	}
}

// Config holds sampler settings.
type Config struct {
	BatchSize  int           // parks fetched concurrently
	BatchDelay time.Duration // pause between batches
	PageSize   int           // parks loaded per catalog page
	LatestTTL  time.Duration // TTL of latest-sample cache entries
}

// ConfigFromSettings builds a Config from sampler settings.
func ConfigFromSettings(s *conf.SamplerSettings) Config {
	if s == nil {
		return Config{}.withDefaults()
	}
	return Config{
		BatchSize:  s.BatchSize,
		BatchDelay: s.BatchDelay,
		PageSize:   s.PageSize,
		LatestTTL:  s.LatestTTL,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	switch {
	case c.BatchSize <= 0:
		c.BatchSize = DefaultBatchSize
	case c.BatchSize < conf.MinSamplerBatchSize:
		c.BatchSize = conf.MinSamplerBatchSize
	case c.BatchSize > conf.MaxSamplerBatchSize:
		c.BatchSize = conf.MaxSamplerBatchSize
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.LatestTTL <= 0 {
		c.LatestTTL = DefaultLatestTTL
	}
	return c
}

// Sampler polls the feed for every catalog park and stores new samples.
type Sampler struct {
	config  Config
	feed    QueueTimesSource
	catalog repository.CatalogRepository
	samples repository.QueueTimeRepository
	cache   cache.Cache
	metrics *metrics.IngestMetrics
	now     func() time.Time
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithCache enables the latest-sample cache projection.
func WithCache(c cache.Cache) Option {
	return func(s *Sampler) {
		s.cache = c
	}
}

// WithMetrics enables sampling metrics.
func WithMetrics(m *metrics.IngestMetrics) Option {
	return func(s *Sampler) {
		s.metrics = m
	}
}

// New creates a sampler.
func New(cfg Config, feed QueueTimesSource, catalog repository.CatalogRepository, samples repository.QueueTimeRepository, opts ...Option) *Sampler {
	s := &Sampler{
		config:  cfg.withDefaults(),
		feed:    feed,
		catalog: catalog,
		samples: samples,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SampleAll samples every catalog park in batches. A park that fails is
// counted and its error collected; it never stops the run. The returned error
// is non-nil only when the catalog cannot be listed or ctx ends.
func (s *Sampler) SampleAll(ctx context.Context) (Result, error) {
	runID := uuid.NewString()
	logger := samplerLogger.With("run_id", runID)
	start := time.Now()

	var result Result
	var runErr error

	defer func() {
		if s.metrics == nil {
			return
		}
		status := metrics.StatusSuccess
		if runErr != nil {
			status = metrics.StatusError
		}
		s.metrics.RecordRun(metrics.OpSampleRun, status, time.Since(start))
		s.metrics.RecordSampleRun(result.NewSamples, result.SkippedDuplicates, result.ParksFailed)
		s.metrics.RecordRidesDeactivated(result.RidesDeactivated)
	}()

	logger.Info("Sampling run started",
		"batch_size", s.config.BatchSize,
		"batch_delay", s.config.BatchDelay)

	var (
		pending []*entities.Park
		afterID uint
		batches int
	)
	for {
		page, err := s.catalog.ListParks(ctx, afterID, s.config.PageSize)
		if err != nil {
			logger.Error("Failed to list parks", "after_id", afterID, "error", err)
			runErr = errors.New(err).
				Component(serviceName).
				Category(errors.CategoryDatabase).
				Context("operation", "list_parks").
				Context("run_id", runID).
				Build()
			return result, runErr
		}
		if len(page) > 0 {
			afterID = page[len(page)-1].ID
			pending = append(pending, page...)
		}
		last := len(page) < s.config.PageSize

		for len(pending) >= s.config.BatchSize || (last && len(pending) > 0) {
			n := min(s.config.BatchSize, len(pending))
			batch := pending[:n]
			pending = pending[n:]

			if batches > 0 {
				if err := sleepContext(ctx, s.config.BatchDelay); err != nil {
					runErr = cancelled(err, runID)
					return result, runErr
				}
			}
			s.runBatch(ctx, logger, batch, &result)
			batches++
		}

		if last {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		runErr = cancelled(err, runID)
		return result, runErr
	}

	logger.Info("Sampling run completed",
		"parks_sampled", result.ParksSampled,
		"parks_failed", result.ParksFailed,
		"new_samples", result.NewSamples,
		"skipped_duplicates", result.SkippedDuplicates,
		"rides_deactivated", result.RidesDeactivated,
		"batches", batches,
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

// runBatch samples the parks of one batch concurrently and merges the outcomes.
func (s *Sampler) runBatch(ctx context.Context, logger *slog.Logger, batch []*entities.Park, result *Result) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for _, park := range batch {
		g.Go(func() error {
			outcome := s.samplePark(ctx, park)
			if outcome.failed {
				logger.Warn("Park sampling failed",
					"park_id", park.ID,
					"park_external_id", park.ExternalID,
					"error", outcome.errs[0])
			}
			mu.Lock()
			result.merge(outcome)
			mu.Unlock()
			// failures are collected per park, never returned
			return nil
		})
	}
	_ = g.Wait()
}

func cancelled(err error, runID string) error {
	return errors.New(err).
		Component(serviceName).
		Category(errors.CategoryCancellation).
		Context("operation", "sample_all").
		Context("run_id", runID).
		Build()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
