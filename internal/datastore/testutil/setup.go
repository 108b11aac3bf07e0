package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tphakala/parkpulse/internal/datastore"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"github.com/tphakala/parkpulse/internal/datastore/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// TestStore bundles an in-memory store with its repositories.
type TestStore struct {
	Store       *datastore.Store
	DB          *gorm.DB
	CatalogRepo repository.CatalogRepository
	SampleRepo  repository.QueueTimeRepository

	t *testing.T
}

// SetupTestStore opens a migrated in-memory SQLite store.
// The store is closed through t.Cleanup.
func SetupTestStore(t *testing.T) *TestStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// every query must see the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := datastore.NewFromDB(db)
	require.NoError(t, store.Migrate())

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestStore{
		Store:       store,
		DB:          db,
		CatalogRepo: repository.NewCatalogRepository(db),
		SampleRepo:  repository.NewQueueTimeRepository(db),
		t:           t,
	}
}

// SeedPark creates a park with the given external id.
func (ts *TestStore) SeedPark(externalID int, name string) *entities.Park {
	ts.t.Helper()
	park := &entities.Park{
		ExternalID: externalID,
		Name:       name,
		Country:    "Finland",
		Continent:  "Europe",
		Timezone:   "Europe/Helsinki",
	}
	require.NoError(ts.t, ts.DB.Create(park).Error)
	return park
}

// SeedRides creates n active rides in the park with external ids starting at firstExternalID.
func (ts *TestStore) SeedRides(parkID uint, firstExternalID, n int) []uint {
	ts.t.Helper()
	ids := make([]uint, 0, n)
	for i := range n {
		ride := &entities.Ride{
			ExternalID: firstExternalID + i,
			ParkID:     parkID,
			Name:       "Ride",
			IsActive:   true,
		}
		require.NoError(ts.t, ts.DB.Create(ride).Error)
		ids = append(ids, ride.ID)
	}
	return ids
}

// SeedSample stores one sample directly.
func (ts *TestStore) SeedSample(rideID uint, at time.Time, wait int, open bool) {
	ts.t.Helper()
	sample := &entities.QueueTimeSample{
		RideID:      rideID,
		WaitTime:    wait,
		IsOpen:      open,
		LastUpdated: repository.NormalizeTime(at),
		RecordedAt:  repository.NormalizeTime(at),
	}
	require.NoError(ts.t, ts.DB.Create(sample).Error)
}

// SeedHourlyHistory stores one open sample per ride per hour, starting at
// start and going back hours-1 hours, with the wait returned by waitAt.
func (ts *TestStore) SeedHourlyHistory(rideIDs []uint, start time.Time, hours int, waitAt func(hour int, rideID uint) int) {
	ts.t.Helper()
	samples := make([]*entities.QueueTimeSample, 0, len(rideIDs)*hours)
	for h := range hours {
		at := repository.NormalizeTime(start.Add(-time.Duration(h) * time.Hour))
		for _, id := range rideIDs {
			samples = append(samples, &entities.QueueTimeSample{
				RideID:      id,
				WaitTime:    waitAt(h, id),
				IsOpen:      true,
				LastUpdated: at,
				RecordedAt:  at,
			})
		}
	}
	require.NoError(ts.t, ts.DB.CreateInBatches(samples, 500).Error)
}

// CountSamples returns the number of stored samples.
func (ts *TestStore) CountSamples() int64 {
	ts.t.Helper()
	var n int64
	require.NoError(ts.t, ts.DB.Model(&entities.QueueTimeSample{}).Count(&n).Error)
	return n
}
