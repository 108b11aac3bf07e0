package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tphakala/parkpulse/internal/datastore"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// queueTimeRepository implements QueueTimeRepository.
type queueTimeRepository struct {
	db      *gorm.DB
	dialect string
}

// NewQueueTimeRepository creates a new QueueTimeRepository.
func NewQueueTimeRepository(db *gorm.DB) QueueTimeRepository {
	return &queueTimeRepository{
		db:      db,
		dialect: db.Dialector.Name(),
	}
}

// InsertIfAbsent inserts with ON CONFLICT DO NOTHING on the dedup key.
func (r *queueTimeRepository) InsertIfAbsent(ctx context.Context, sample *entities.QueueTimeSample) (bool, error) {
	if sample == nil || sample.RideID == 0 || sample.WaitTime < 0 || sample.LastUpdated.IsZero() {
		return false, ErrInvalidInput
	}

	sample.LastUpdated = NormalizeTime(sample.LastUpdated)
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = time.Now()
	}
	sample.RecordedAt = NormalizeTime(sample.RecordedAt)

	result := r.db.WithContext(ctx).Table(tableSamples).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "ride_id"}, {Name: "last_updated"}, {Name: "wait_time"},
			},
			DoNothing: true,
		}).
		Create(sample)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// LatestForRide returns the newest sample of one ride.
func (r *queueTimeRepository) LatestForRide(ctx context.Context, rideID uint) (*entities.QueueTimeSample, error) {
	var sample entities.QueueTimeSample
	err := r.db.WithContext(ctx).Table(tableSamples).
		Where("ride_id = ?", rideID).
		Order("last_updated DESC, id DESC").
		First(&sample).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSampleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// LatestForRides joins each ride's max(last_updated) back to the sample row.
// Ties on last_updated keep the row with the highest id.
func (r *queueTimeRepository) LatestForRides(ctx context.Context, rideIDs []uint) (map[uint]*entities.QueueTimeSample, error) {
	result := make(map[uint]*entities.QueueTimeSample, len(rideIDs))
	for _, chunk := range chunks(rideIDs, idBatchSize) {
		latest := r.db.Table(tableSamples).
			Select("ride_id, MAX(last_updated) AS max_updated").
			Where("ride_id IN ?", chunk).
			Group("ride_id")

		var rows []*entities.QueueTimeSample
		err := r.db.WithContext(ctx).Table(tableSamples+" AS s").
			Select("s.*").
			Joins("JOIN (?) AS m ON s.ride_id = m.ride_id AND s.last_updated = m.max_updated", latest).
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if cur, ok := result[row.RideID]; ok && cur.ID > row.ID {
				continue
			}
			result[row.RideID] = row
		}
	}
	return result, nil
}

// HourlyAverages groups qualifying samples by hour bucket.
func (r *queueTimeRepository) HourlyAverages(ctx context.Context, rideIDs []uint, since time.Time) ([]float64, error) {
	if len(rideIDs) == 0 {
		return nil, nil
	}

	bucket := datastore.HourBucketExpr(r.dialect, "last_updated")
	var rows []struct {
		AvgWait float64
	}
	err := r.db.WithContext(ctx).Table(tableSamples).
		Select("AVG(wait_time) AS avg_wait").
		Where("ride_id IN ? AND is_open = ? AND wait_time > 0 AND last_updated >= ?",
			rideIDs, true, NormalizeTime(since)).
		Group(bucket).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	averages := make([]float64, 0, len(rows))
	for _, row := range rows {
		averages = append(averages, row.AvgWait)
	}
	return averages, nil
}

// CoverageStats reads the count and the first and last qualifying timestamps.
func (r *queueTimeRepository) CoverageStats(ctx context.Context, rideIDs []uint, since time.Time) (CoverageStats, error) {
	var stats CoverageStats
	if len(rideIDs) == 0 {
		return stats, nil
	}

	qualifying := func() *gorm.DB {
		return r.db.WithContext(ctx).Table(tableSamples).
			Where("ride_id IN ? AND is_open = ? AND wait_time > 0 AND last_updated >= ?",
				rideIDs, true, NormalizeTime(since))
	}

	if err := qualifying().Count(&stats.Count).Error; err != nil {
		return stats, err
	}
	if stats.Count == 0 {
		return stats, nil
	}

	var first, last entities.QueueTimeSample
	if err := qualifying().Order("last_updated ASC").Limit(1).Find(&first).Error; err != nil {
		return stats, err
	}
	if err := qualifying().Order("last_updated DESC").Limit(1).Find(&last).Error; err != nil {
		return stats, err
	}
	stats.First = first.LastUpdated.UTC()
	stats.Last = last.LastUpdated.UTC()
	return stats, nil
}
