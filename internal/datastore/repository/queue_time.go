package repository

import (
	"context"
	"time"

	"github.com/tphakala/parkpulse/internal/datastore/entities"
)

// CoverageStats summarizes the qualifying samples of a ride set.
type CoverageStats struct {
	First time.Time // oldest qualifying sample
	Last  time.Time // newest qualifying sample
	Count int64     // number of qualifying samples
}

// QueueTimeRepository provides access to the queue_time_samples table.
// Qualifying samples for history queries are open with a positive wait time.
type QueueTimeRepository interface {
	// InsertIfAbsent stores the sample unless one with the same
	// (ride_id, last_updated, wait_time) exists. Returns whether a row was inserted.
	InsertIfAbsent(ctx context.Context, sample *entities.QueueTimeSample) (bool, error)

	// LatestForRide returns the most recent sample of a ride.
	// Returns ErrSampleNotFound if the ride has none.
	LatestForRide(ctx context.Context, rideID uint) (*entities.QueueTimeSample, error)

	// LatestForRides returns the most recent sample per ride.
	// Rides without samples are absent from the map.
	LatestForRides(ctx context.Context, rideIDs []uint) (map[uint]*entities.QueueTimeSample, error)

	// HourlyAverages returns the average wait of qualifying samples of the ride
	// set per hour bucket since the given time, one value per non-empty bucket.
	HourlyAverages(ctx context.Context, rideIDs []uint, since time.Time) ([]float64, error)

	// CoverageStats returns the time span and count of qualifying samples of
	// the ride set since the given time.
	CoverageStats(ctx context.Context, rideIDs []uint, since time.Time) (CoverageStats, error)
}

// NormalizeTime converts t to UTC truncated to whole seconds, the form in
// which sample timestamps are stored.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
