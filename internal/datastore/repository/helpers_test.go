package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a migrated in-memory SQLite database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(entities.All()...))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// seedPark creates a park with the given external id.
func seedPark(t *testing.T, db *gorm.DB, externalID int) *entities.Park {
	t.Helper()
	park := &entities.Park{ExternalID: externalID, Name: "Park", Country: "Finland", Timezone: "Europe/Helsinki"}
	require.NoError(t, db.Create(park).Error)
	return park
}

// seedRides creates n active rides in the park.
func seedRides(t *testing.T, db *gorm.DB, parkID uint, n int) []uint {
	t.Helper()
	ids := make([]uint, 0, n)
	for i := range n {
		ride := &entities.Ride{ExternalID: 1000 + i, ParkID: parkID, Name: "Ride", IsActive: true}
		require.NoError(t, db.Create(ride).Error)
		ids = append(ids, ride.ID)
	}
	return ids
}

var baseTime = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
