// Package crowd computes how busy a park is now relative to its own history.
//
// The current signal is the mean wait of the busiest open rides. The
// reference is a high percentile of hourly average waits of the same rides
// over a trailing window. Results never carry errors: every failure degrades
// to a default result with a diagnostic reason.
package crowd

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/tphakala/parkpulse/internal/cache"
	"github.com/tphakala/parkpulse/internal/conf"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"github.com/tphakala/parkpulse/internal/datastore/repository"
	"github.com/tphakala/parkpulse/internal/errors"
	"github.com/tphakala/parkpulse/internal/logging"
	"github.com/tphakala/parkpulse/internal/observability/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	serviceName = "crowd"

	DefaultWindowDays = 730
	DefaultPercentile = 95.0
	DefaultMinBuckets = 10
	DefaultCacheTTL   = 4 * time.Hour
	DefaultTimeout    = 5 * time.Second

	minTopRides   = 3
	topRideShare  = 0.3
	outcomeResult = "computed"
)

var (
	crowdLogger   *slog.Logger
	crowdLevelVar = new(slog.LevelVar)
)

func init() {
	crowdLevelVar.Set(slog.LevelInfo)
	crowdLogger = logging.NewServiceLogger(serviceName, crowdLevelVar)
}

// Config holds engine settings.
type Config struct {
	WindowDays int           // trailing history window
	Percentile float64       // baseline percentile, 0-100
	MinBuckets int           // minimum hourly buckets for a baseline
	CacheTTL   time.Duration // TTL of cached baselines
	Timeout    time.Duration // default budget in timeout mode
}

// ConfigFromSettings builds a Config from crowd settings.
func ConfigFromSettings(s *conf.CrowdSettings) Config {
	if s == nil {
		return Config{}.withDefaults()
	}
	return Config{
		WindowDays: s.WindowDays,
		Percentile: s.Percentile,
		MinBuckets: s.MinBuckets,
		CacheTTL:   s.CacheTTL,
		Timeout:    s.Timeout,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.WindowDays <= 0 {
		c.WindowDays = DefaultWindowDays
	}
	if c.Percentile <= 0 || c.Percentile > 100 {
		c.Percentile = DefaultPercentile
	}
	if c.MinBuckets <= 0 {
		c.MinBuckets = DefaultMinBuckets
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// ParkRef identifies the park to compute.
type ParkRef struct {
	ID   uint
	Name string
}

// RefFromPark returns the reference of a stored park.
func RefFromPark(p *entities.Park) ParkRef {
	return ParkRef{ID: p.ID, Name: p.Name}
}

// Engine computes crowd levels.
type Engine struct {
	config  Config
	catalog repository.CatalogRepository
	samples repository.QueueTimeRepository
	cache   cache.Cache
	metrics *metrics.CrowdMetrics
	flight  singleflight.Group
	now     func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCache enables baseline caching and latest-sample lookups.
func WithCache(c cache.Cache) EngineOption {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithMetrics enables computation metrics.
func WithMetrics(m *metrics.CrowdMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a crowd level engine.
func NewEngine(cfg Config, catalog repository.CatalogRepository, samples repository.QueueTimeRepository, opts ...EngineOption) *Engine {
	e := &Engine{
		config:  cfg.withDefaults(),
		catalog: catalog,
		samples: samples,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Option configures one computation.
type Option func(*computeOptions)

type computeOptions struct {
	latest  map[uint]cache.LatestSample
	rideIDs []uint // active rides already loaded by the caller
	haveIDs bool
	timeout time.Duration
	bounded bool
}

// withActiveRides supplies the active ride ids of the park.
func withActiveRides(ids []uint) Option {
	return func(o *computeOptions) {
		o.rideIDs = ids
		o.haveIDs = true
	}
}

// WithLatestSamples supplies the latest sample per ride, skipping the
// latest-sample lookup. Rides of other parks in the map are ignored.
func WithLatestSamples(latest map[uint]cache.LatestSample) Option {
	return func(o *computeOptions) {
		if latest == nil {
			latest = map[uint]cache.LatestSample{}
		}
		o.latest = latest
	}
}

// WithTimeout bounds the computation. A zero or negative d uses the
// configured default.
func WithTimeout(d time.Duration) Option {
	return func(o *computeOptions) {
		o.bounded = true
		o.timeout = d
	}
}

// ComputeCrowdLevel computes the crowd level of park.
func (e *Engine) ComputeCrowdLevel(ctx context.Context, park ParkRef, opts ...Option) Result {
	var o computeOptions
	for _, opt := range opts {
		opt(&o)
	}

	mode := metrics.ModeSingle
	if o.latest != nil {
		mode = metrics.ModeBatch
	}
	if o.bounded {
		mode = metrics.ModeTimeout
	}

	start := time.Now()
	var res Result
	if o.bounded {
		res = e.computeBounded(ctx, park, &o)
	} else {
		res = e.compute(ctx, park, &o)
	}

	if e.metrics != nil {
		outcome := outcomeResult
		if res.Reason != "" {
			outcome = res.Reason
		}
		e.metrics.RecordComputation(mode, outcome, res.Level, time.Since(start))
	}
	return res
}

// ComputeForPark computes the crowd level of one park with live latest samples.
func (e *Engine) ComputeForPark(ctx context.Context, parkID uint) Result {
	return e.ComputeCrowdLevel(ctx, ParkRef{ID: parkID})
}

// ComputeWithTimeout computes the crowd level of one park within d.
func (e *Engine) ComputeWithTimeout(ctx context.Context, parkID uint, d time.Duration) Result {
	return e.ComputeCrowdLevel(ctx, ParkRef{ID: parkID}, WithTimeout(d))
}

// ComputeBatch computes the crowd levels of many parks, loading the latest
// samples of all their rides with one query.
func (e *Engine) ComputeBatch(ctx context.Context, parks []ParkRef) map[uint]Result {
	results := make(map[uint]Result, len(parks))
	if len(parks) == 0 {
		return results
	}

	var all []uint
	active := make(map[uint][]uint, len(parks))
	for _, p := range parks {
		ids, err := e.catalog.ActiveRideIDs(ctx, p.ID)
		if err != nil {
			crowdLogger.Warn("Failed to load active rides for batch",
				"park_id", p.ID,
				"error", e.storeError(err, "active_ride_ids"))
			results[p.ID] = defaultResult(p.ID, e.now().UTC(), reasonFor(err))
			continue
		}
		active[p.ID] = ids
		all = append(all, ids...)
	}

	latest, err := e.samples.LatestForRides(ctx, all)
	if err != nil {
		crowdLogger.Warn("Failed to load latest samples for batch",
			"parks", len(parks),
			"error", e.storeError(err, "latest_for_rides"))
		at := e.now().UTC()
		for _, p := range parks {
			if _, ok := active[p.ID]; ok {
				results[p.ID] = defaultResult(p.ID, at, ReasonStoreError)
			}
		}
		return results
	}

	projected := make(map[uint]cache.LatestSample, len(latest))
	for id, s := range latest {
		projected[id] = toLatest(s)
	}
	for _, p := range parks {
		ids, ok := active[p.ID]
		if !ok {
			continue
		}
		results[p.ID] = e.ComputeCrowdLevel(ctx, p, WithLatestSamples(projected), withActiveRides(ids))
	}
	return results
}

// computeBounded runs the computation in a goroutine and gives up after the
// budget. The goroutine is not interrupted; its result is discarded.
func (e *Engine) computeBounded(ctx context.Context, park ParkRef, o *computeOptions) Result {
	budget := o.timeout
	if budget <= 0 {
		budget = e.config.Timeout
	}

	done := make(chan Result, 1)
	go func() {
		done <- e.compute(context.WithoutCancel(ctx), park, o)
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case res := <-done:
		return res
	case <-timer.C:
		crowdLogger.Warn("Crowd level computation timed out",
			"park_id", park.ID,
			"budget_ms", budget.Milliseconds())
		return defaultResult(park.ID, e.now().UTC(), ReasonTimeout)
	case <-ctx.Done():
		return defaultResult(park.ID, e.now().UTC(), ReasonCanceled)
	}
}

// openRide is an open ride with its current wait.
type openRide struct {
	id   uint
	wait int
}

func (e *Engine) compute(ctx context.Context, park ParkRef, o *computeOptions) Result {
	now := e.now().UTC()
	logger := crowdLogger.With("park_id", park.ID)

	var err error
	rideIDs := o.rideIDs
	if !o.haveIDs {
		rideIDs, err = e.catalog.ActiveRideIDs(ctx, park.ID)
		if err != nil {
			logger.Warn("Failed to load active rides", "error", e.storeError(err, "active_ride_ids"))
			return defaultResult(park.ID, now, reasonFor(err))
		}
	}

	latest := o.latest
	if latest == nil {
		latest, err = e.latestSamples(ctx, rideIDs)
		if err != nil {
			logger.Warn("Failed to load latest samples", "error", e.storeError(err, "latest_for_rides"))
			return defaultResult(park.ID, now, reasonFor(err))
		}
	}

	open := make([]openRide, 0, len(rideIDs))
	for _, id := range rideIDs {
		if s, ok := latest[id]; ok && s.IsOpen {
			open = append(open, openRide{id: id, wait: s.WaitTime})
		}
	}
	if len(open) == 0 {
		logger.Debug("No open rides")
		return defaultResult(park.ID, now, ReasonNoOpenRides)
	}

	selected := selectTopRides(open)
	avg := currentAverage(selected)

	ids := make([]uint, len(selected))
	for i, r := range selected {
		ids[i] = r.id
	}
	slices.Sort(ids)

	stats, err := e.history(ctx, ids, now)
	if err != nil {
		logger.Warn("Historical scan failed", "error", e.storeError(err, "history"))
		return defaultResult(park.ID, now, reasonFor(err))
	}

	level := 0
	if stats.Baseline > 0 {
		level = int(math.Round(avg / stats.Baseline * 100))
	}

	res := Result{
		ParkID:             park.ID,
		Level:              level,
		Label:              LabelFor(level),
		RidesUsed:          len(selected),
		TotalRides:         len(open),
		HistoricalBaseline: stats.Baseline,
		CurrentAverage:     avg,
		Confidence:         stats.Confidence,
		CalculatedAt:       now,
	}
	if stats.Baseline == 0 {
		res.Reason = ReasonInsufficientHistory
	}

	logger.Debug("Crowd level computed",
		"level", res.Level,
		"label", res.Label,
		"rides_used", res.RidesUsed,
		"total_rides", res.TotalRides,
		"baseline", res.HistoricalBaseline,
		"current_average", res.CurrentAverage,
		"confidence", res.Confidence)
	return res
}

// latestSamples returns the latest sample per ride, preferring the cache
// projection and querying the store for the rest.
func (e *Engine) latestSamples(ctx context.Context, rideIDs []uint) (map[uint]cache.LatestSample, error) {
	out := make(map[uint]cache.LatestSample, len(rideIDs))
	missing := rideIDs

	if e.cache != nil {
		missing = make([]uint, 0, len(rideIDs))
		for _, id := range rideIDs {
			var s cache.LatestSample
			found, err := cache.GetJSON(ctx, e.cache, cache.LatestRideKey(id), &s)
			if err != nil || !found {
				missing = append(missing, id)
				continue
			}
			out[id] = s
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	stored, err := e.samples.LatestForRides(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, s := range stored {
		out[id] = toLatest(s)
	}
	return out, nil
}

// selectTopRides returns the busiest K rides, K = max(3, ceil(0.3*N)),
// ordered by wait descending and ride id ascending.
func selectTopRides(open []openRide) []openRide {
	sorted := slices.Clone(open)
	slices.SortFunc(sorted, func(a, b openRide) int {
		if a.wait != b.wait {
			return b.wait - a.wait
		}
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	k := max(minTopRides, int(math.Ceil(topRideShare*float64(len(sorted)))))
	return sorted[:min(k, len(sorted))]
}

// currentAverage is the mean wait of rides with a positive wait.
func currentAverage(rides []openRide) float64 {
	sum, n := 0, 0
	for _, r := range rides {
		if r.wait > 0 {
			sum += r.wait
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func toLatest(s *entities.QueueTimeSample) cache.LatestSample {
	return cache.LatestSample{
		RideID:      s.RideID,
		WaitTime:    s.WaitTime,
		IsOpen:      s.IsOpen,
		LastUpdated: s.LastUpdated,
	}
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	default:
		return ReasonStoreError
	}
}

func (e *Engine) storeError(err error, operation string) error {
	return errors.New(err).
		Component(serviceName).
		Category(errors.CategoryAnalytics).
		Context("operation", operation).
		Build()
}

func (e *Engine) recordCache(hit bool) {
	if e.metrics != nil {
		e.metrics.RecordBaselineCache(hit)
	}
}
