package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
)

func TestInsertIfAbsent_DuplicateSuppression(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	repo := NewQueueTimeRepository(db)
	ctx := context.Background()
	park := seedPark(t, db, 1)
	rides := seedRides(t, db, park.ID, 1)

	sample := func(wait int) *entities.QueueTimeSample {
		return &entities.QueueTimeSample{RideID: rides[0], WaitTime: wait, IsOpen: true, LastUpdated: baseTime}
	}

	inserted, err := repo.InsertIfAbsent(ctx, sample(15))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertIfAbsent(ctx, sample(15))
	require.NoError(t, err)
	assert.False(t, inserted, "same (ride, lastUpdated, waitTime) must be reported as a duplicate")

	// A different wait time at the same timestamp is a distinct sample.
	inserted, err = repo.InsertIfAbsent(ctx, sample(20))
	require.NoError(t, err)
	assert.True(t, inserted)

	var count int64
	require.NoError(t, db.Model(&entities.QueueTimeSample{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestInsertIfAbsent_NormalizesTimestamps(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	repo := NewQueueTimeRepository(db)
	ctx := context.Background()
	park := seedPark(t, db, 1)
	rides := seedRides(t, db, park.ID, 1)

	helsinki := time.FixedZone("EEST", 3*3600)
	local := baseTime.In(helsinki).Add(400 * time.Millisecond)

	inserted, err := repo.InsertIfAbsent(ctx, &entities.QueueTimeSample{RideID: rides[0], WaitTime: 5, IsOpen: true, LastUpdated: local})
	require.NoError(t, err)
	require.True(t, inserted)

	// Same instant expressed in UTC is a duplicate.
	inserted, err = repo.InsertIfAbsent(ctx, &entities.QueueTimeSample{RideID: rides[0], WaitTime: 5, IsOpen: true, LastUpdated: baseTime})
	require.NoError(t, err)
	assert.False(t, inserted)

	latest, err := repo.LatestForRide(ctx, rides[0])
	require.NoError(t, err)
	assert.True(t, latest.LastUpdated.Equal(baseTime))
	assert.False(t, latest.RecordedAt.IsZero())
}

func TestInsertIfAbsent_RejectsInvalidInput(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	repo := NewQueueTimeRepository(db)
	ctx := context.Background()

	tests := []struct {
		name   string
		sample *entities.QueueTimeSample
	}{
		{"nil", nil},
		{"no ride", &entities.QueueTimeSample{WaitTime: 1, LastUpdated: baseTime}},
		{"negative wait", &entities.QueueTimeSample{RideID: 1, WaitTime: -1, LastUpdated: baseTime}},
		{"zero timestamp", &entities.QueueTimeSample{RideID: 1, WaitTime: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.InsertIfAbsent(ctx, tt.sample)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestLatestForRides(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	repo := NewQueueTimeRepository(db)
	ctx := context.Background()
	park := seedPark(t, db, 1)
	rides := seedRides(t, db, park.ID, 3)

	insert := func(ride uint, offset time.Duration, wait int, open bool) {
		_, err := repo.InsertIfAbsent(ctx, &entities.QueueTimeSample{
			RideID: ride, WaitTime: wait, IsOpen: open, LastUpdated: baseTime.Add(offset),
		})
		require.NoError(t, err)
	}
	insert(rides[0], 0, 10, true)
	insert(rides[0], 5*time.Minute, 25, true)
	insert(rides[1], 0, 40, false)

	latest, err := repo.LatestForRides(ctx, rides)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, 25, latest[rides[0]].WaitTime)
	assert.False(t, latest[rides[1]].IsOpen)
	assert.NotContains(t, latest, rides[2])

	_, err = repo.LatestForRide(ctx, rides[2])
	require.ErrorIs(t, err, ErrSampleNotFound)

	empty, err := repo.LatestForRides(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHourlyAverages_BucketsQualifyingSamples(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	repo := NewQueueTimeRepository(db)
	ctx := context.Background()
	park := seedPark(t, db, 1)
	rides := seedRides(t, db, park.ID, 2)

	insert := func(ride uint, at time.Time, wait int, open bool) {
		inserted, err := repo.InsertIfAbsent(ctx, &entities.QueueTimeSample{
			RideID: ride, WaitTime: wait, IsOpen: open, LastUpdated: at,
		})
		require.NoError(t, err)
		require.True(t, inserted)
	}

	// Hour 10: two rides, average 20.
	insert(rides[0], baseTime.Add(5*time.Minute), 10, true)
	insert(rides[1], baseTime.Add(35*time.Minute), 30, true)
	// Closed and zero-wait samples never qualify.
	insert(rides[0], baseTime.Add(40*time.Minute), 90, false)
	insert(rides[1], baseTime.Add(45*time.Minute), 0, true)
	// Hour 11: one sample.
	insert(rides[0], baseTime.Add(70*time.Minute), 50, true)
	// Outside the window.
	insert(rides[0], baseTime.Add(-48*time.Hour), 99, true)

	since := baseTime.Add(-time.Hour)
	averages, err := repo.HourlyAverages(ctx, rides, since)
	require.NoError(t, err)
	assert.ElementsMatch(t, []float64{20, 50}, averages)

	stats, err := repo.CoverageStats(ctx, rides, since)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Count)
	assert.True(t, stats.First.Equal(baseTime.Add(5*time.Minute)), "first: %v", stats.First)
	assert.True(t, stats.Last.Equal(baseTime.Add(70*time.Minute)), "last: %v", stats.Last)

	none, err := repo.CoverageStats(ctx, rides, baseTime.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, none.Count)
	assert.True(t, none.First.IsZero())
}
