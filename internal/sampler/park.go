package sampler

import (
	"context"
	"time"

	"github.com/tphakala/parkpulse/internal/cache"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"github.com/tphakala/parkpulse/internal/datastore/repository"
	"github.com/tphakala/parkpulse/internal/errors"
	"github.com/tphakala/parkpulse/internal/logging"
	"github.com/tphakala/parkpulse/internal/observability/metrics"
	"github.com/tphakala/parkpulse/internal/queuetimes"
)

// parkOutcome is the result of sampling one park.
type parkOutcome struct {
	newSamples  int
	duplicates  int
	deactivated int64
	failed      bool
	errs        []error
}

// ParkResult is the exported view of a single park sampling pass.
type ParkResult struct {
	NewSamples        int
	SkippedDuplicates int
	RidesDeactivated  int64
	Failed            bool
	Errors            []error
}

// SamplePark samples a single park and reports the outcome.
func (s *Sampler) SamplePark(ctx context.Context, park *entities.Park) ParkResult {
	o := s.samplePark(ctx, park)
	return ParkResult{
		NewSamples:        o.newSamples,
		SkippedDuplicates: o.duplicates,
		RidesDeactivated:  o.deactivated,
		Failed:            o.failed,
		Errors:            o.errs,
	}
}

// samplePark fetches the park document, reconciles its areas and rides, and
// stores samples not seen before.
func (s *Sampler) samplePark(ctx context.Context, park *entities.Park) *parkOutcome {
	start := time.Now()
	out := &parkOutcome{}
	defer func() {
		if s.metrics == nil {
			return
		}
		status := metrics.StatusSuccess
		if out.failed {
			status = metrics.StatusError
		}
		s.metrics.RecordRun(metrics.OpParkSample, status, time.Since(start))
	}()

	doc, err := s.feed.FetchQueueTimes(ctx, park.ExternalID)
	if err != nil {
		out.fail(s.parkError(err, park, "fetch_queue_times"))
		return out
	}

	st, err := s.loadParkState(ctx, park.ID)
	if err != nil {
		out.fail(s.parkError(err, park, "load_park_state"))
		return out
	}

	seen := make([]uint, 0, doc.RideCount())
	for i := range doc.Lands {
		land := &doc.Lands[i]
		areaID, err := st.area(ctx, s.catalog, park.ID, land)
		if err != nil {
			out.fail(s.parkError(err, park, "upsert_theme_area"))
			return out
		}
		for j := range land.Rides {
			if id, ok := s.recordRide(ctx, st, park, &land.Rides[j], &areaID, out); ok {
				seen = append(seen, id)
			}
		}
	}
	for i := range doc.Rides {
		if id, ok := s.recordRide(ctx, st, park, &doc.Rides[i], nil, out); ok {
			seen = append(seen, id)
		}
	}

	// an empty document says nothing about which rides still exist
	if doc.RideCount() > 0 {
		n, err := s.catalog.DeactivateMissingRides(ctx, park.ID, seen)
		if err != nil {
			out.errs = append(out.errs, s.parkError(err, park, "deactivate_rides"))
		} else if n > 0 {
			samplerLogger.Info("Rides deactivated",
				"park_id", park.ID,
				"park_external_id", park.ExternalID,
				"count", n)
			out.deactivated = n
		}
	}

	samplerLogger.Debug("Park sampled",
		"park_id", park.ID,
		"park_external_id", park.ExternalID,
		"rides", len(seen),
		"new_samples", out.newSamples,
		"duplicates", out.duplicates,
		"duration_ms", time.Since(start).Milliseconds())
	return out
}

// recordRide upserts the ride and stores its sample. It returns the ride id
// and whether the ride row is known. A ride whose upsert failed is still
// reported by its stored id so that it is not deactivated.
func (s *Sampler) recordRide(ctx context.Context, st *parkState, park *entities.Park, r *queuetimes.Ride, areaID *uint, out *parkOutcome) (uint, bool) {
	ride, err := st.ride(ctx, s.catalog, park.ID, r, areaID)
	if err != nil {
		out.errs = append(out.errs, errors.New(err).
			Component(serviceName).
			Category(errors.CategoryDatabase).
			Context("operation", "upsert_ride").
			Context("park_id", park.ID).
			Context("ride_external_id", r.ID).
			Build())
		if known, ok := st.rides[r.ID]; ok {
			return known.ID, true
		}
		return 0, false
	}

	lastUpdated, ok := r.LastUpdatedTime()
	if !ok {
		samplerLogger.Debug("Sample skipped, missing or invalid last_updated",
			"ride_id", ride.ID,
			"last_updated", r.LastUpdated)
		return ride.ID, true
	}

	isOpen, waitTime, ok := r.Status()
	if !ok {
		samplerLogger.Debug("Sample skipped, missing is_open or wait_time",
			"ride_id", ride.ID,
			"is_open_present", r.IsOpen != nil,
			"wait_time_present", r.WaitTime != nil)
		return ride.ID, true
	}

	sample := &entities.QueueTimeSample{
		RideID:      ride.ID,
		WaitTime:    max(0, waitTime),
		IsOpen:      isOpen,
		LastUpdated: lastUpdated,
		RecordedAt:  s.now(),
	}
	inserted, err := s.samples.InsertIfAbsent(ctx, sample)
	if err != nil {
		out.errs = append(out.errs, errors.New(err).
			Component(serviceName).
			Category(errors.CategoryDatabase).
			Context("operation", "insert_sample").
			Context("ride_id", ride.ID).
			Build())
		return ride.ID, true
	}
	if !inserted {
		out.duplicates++
		return ride.ID, true
	}

	out.newSamples++
	samplerLogger.Log(ctx, logging.LevelTrace, "Sample recorded",
		"ride_id", ride.ID,
		"wait_time", sample.WaitTime,
		"is_open", sample.IsOpen)
	s.publishLatest(ctx, sample)
	return ride.ID, true
}

// publishLatest writes the latest-sample projection unless the cache already
// holds a newer observation of the ride. Cache failures are logged only.
func (s *Sampler) publishLatest(ctx context.Context, sample *entities.QueueTimeSample) {
	if s.cache == nil {
		return
	}
	latest := cache.LatestSample{
		RideID:      sample.RideID,
		WaitTime:    sample.WaitTime,
		IsOpen:      sample.IsOpen,
		LastUpdated: repository.NormalizeTime(sample.LastUpdated),
	}
	key := cache.LatestRideKey(sample.RideID)

	var cached cache.LatestSample
	if found, err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil && found &&
		cached.LastUpdated.After(latest.LastUpdated) {
		samplerLogger.Debug("Latest sample projection is newer, not replaced",
			"ride_id", sample.RideID,
			"cached", cached.LastUpdated,
			"sample", latest.LastUpdated)
		return
	}

	if err := cache.SetJSON(ctx, s.cache, key, latest, s.config.LatestTTL); err != nil {
		samplerLogger.Warn("Failed to cache latest sample",
			"ride_id", sample.RideID,
			"error", err)
	}
}

func (s *Sampler) parkError(err error, park *entities.Park, operation string) error {
	category := errors.CategoryDatabase
	var ee *errors.EnhancedError
	switch {
	case errors.As(err, &ee):
		category = ee.Category
	case errors.Is(err, context.DeadlineExceeded):
		category = errors.CategoryTimeout
	case errors.Is(err, context.Canceled):
		category = errors.CategoryCancellation
	}
	return errors.New(err).
		Component(serviceName).
		Category(category).
		Context("operation", operation).
		Context("park_id", park.ID).
		Context("park_external_id", park.ExternalID).
		Build()
}

func (o *parkOutcome) fail(err error) {
	o.failed = true
	o.errs = append(o.errs, err)
}
