// Package app assembles the ParkPulse components from settings.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/tphakala/parkpulse/internal/cache"
	"github.com/tphakala/parkpulse/internal/catalog"
	"github.com/tphakala/parkpulse/internal/conf"
	"github.com/tphakala/parkpulse/internal/crowd"
	"github.com/tphakala/parkpulse/internal/datastore"
	"github.com/tphakala/parkpulse/internal/datastore/repository"
	"github.com/tphakala/parkpulse/internal/errors"
	"github.com/tphakala/parkpulse/internal/httpserver"
	"github.com/tphakala/parkpulse/internal/logging"
	"github.com/tphakala/parkpulse/internal/observability"
	"github.com/tphakala/parkpulse/internal/queuetimes"
	"github.com/tphakala/parkpulse/internal/sampler"
	"github.com/tphakala/parkpulse/internal/scheduler"
)

const (
	serviceName = "app"

	JobCatalog = "catalog-sync"
	JobSampler = "queue-time-sampler"
)

var (
	appLogger   *slog.Logger
	appLevelVar = new(slog.LevelVar)
)

func init() {
	appLevelVar.Set(slog.LevelInfo)
	appLogger = logging.NewServiceLogger(serviceName, appLevelVar)
}

// App holds the wired components.
type App struct {
	Settings     *conf.Settings
	Store        *datastore.Store
	Cache        cache.Cache
	Metrics      *observability.Metrics
	Feed         *queuetimes.Client
	CatalogRepo  repository.CatalogRepository
	SampleRepo   repository.QueueTimeRepository
	Synchronizer *catalog.Synchronizer
	Sampler      *sampler.Sampler
	Crowd        *crowd.Engine
}

// New opens the store and cache and builds every component.
func New(ctx context.Context, settings *conf.Settings) (*App, error) {
	if settings == nil {
		return nil, errors.Newf("settings are nil").
			Component(serviceName).
			Category(errors.CategoryConfiguration).
			Build()
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, errors.New(err).
			Component(serviceName).
			Category(errors.CategorySystem).
			Context("operation", "init_metrics").
			Build()
	}

	store, err := datastore.Open(settings)
	if err != nil {
		return nil, err
	}

	c, err := cache.New(ctx, &settings.Cache)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	c = cache.WithMetrics(c, m.Cache)

	feed := queuetimes.NewClient(
		queuetimes.ConfigFromSettings(&settings.Upstream),
		queuetimes.WithMetrics(m.Upstream),
	)

	catalogRepo := repository.NewCatalogRepository(store.DB)
	sampleRepo := repository.NewQueueTimeRepository(store.DB)

	a := &App{
		Settings:    settings,
		Store:       store,
		Cache:       c,
		Metrics:     m,
		Feed:        feed,
		CatalogRepo: catalogRepo,
		SampleRepo:  sampleRepo,
		Synchronizer: catalog.NewSynchronizer(feed, catalogRepo,
			catalog.WithBatchSize(settings.Catalog.BatchSize),
			catalog.WithMetrics(m.Ingest)),
		Sampler: sampler.New(sampler.ConfigFromSettings(&settings.Sampler), feed, catalogRepo, sampleRepo,
			sampler.WithCache(c),
			sampler.WithMetrics(m.Ingest)),
		Crowd: crowd.NewEngine(crowd.ConfigFromSettings(&settings.Crowd), catalogRepo, sampleRepo,
			crowd.WithCache(c),
			crowd.WithMetrics(m.Crowd)),
	}

	appLogger.Info("Application initialized",
		"database", store.Dialect(),
		"cache", c.Backend(),
		"upstream", settings.Upstream.BaseURL)
	return a, nil
}

// Scheduler builds the supervisor with the catalog and sampler jobs, and
// the HTTP server when enabled.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	s := scheduler.New(nil, scheduler.DefaultConfig())

	catalogJob := scheduler.NewJob(JobCatalog, func(ctx context.Context) error {
		_, _, err := a.Synchronizer.SyncCatalog(ctx)
		return err
	}, scheduler.WithJobMetrics(a.Metrics.Scheduler))

	samplerJob := scheduler.NewJob(JobSampler, func(ctx context.Context) error {
		res, err := a.Sampler.SampleAll(ctx)
		if err == nil && res.ParksFailed > 0 {
			appLogger.Warn("Sampling run finished with failed parks",
				"parks_failed", res.ParksFailed,
				"errors", len(res.Errors))
		}
		return err
	}, scheduler.WithJobMetrics(a.Metrics.Scheduler))

	if err := s.AddJob(catalogJob, a.Settings.Catalog.Interval, a.Settings.Catalog.RunOnStart); err != nil {
		return nil, err
	}
	if err := s.AddJob(samplerJob, a.Settings.Sampler.Interval, a.Settings.Sampler.RunOnStart); err != nil {
		return nil, err
	}

	if a.Settings.Server.Enabled {
		s.AddService(a.HTTPServer())
	}
	return s, nil
}

// HTTPServer builds the operational HTTP server.
func (a *App) HTTPServer() *httpserver.Server {
	return httpserver.New(a.Settings.Server.Listen, a.Crowd, a.CatalogRepo,
		httpserver.WithMetrics(a.Metrics),
		httpserver.WithCrowdTimeout(a.Settings.Crowd.Timeout),
		httpserver.WithDatabasePing(a.pingDatabase))
}

func (a *App) pingDatabase(ctx context.Context) error {
	sqlDB, err := a.Store.DB.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Close releases the cache and the store.
func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
