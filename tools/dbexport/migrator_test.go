package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/parkpulse/internal/datastore"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
)

// seedSource creates a SQLite store with one park, two rides and samples.
func seedSource(t *testing.T, path string) {
	t.Helper()
	cfg := Config{SQLitePath: path}
	store, err := datastore.Open(cfg.SourceSettings())
	require.NoError(t, err)
	defer store.Close()

	group := &entities.ParkGroup{ExternalID: 1, Name: "Operator"}
	require.NoError(t, store.DB.Create(group).Error)
	park := &entities.Park{ExternalID: 10, Name: "Adventure Park", GroupID: &group.ID, Timezone: "Europe/Helsinki"}
	require.NoError(t, store.DB.Create(park).Error)
	area := &entities.ThemeArea{ExternalID: 100, ParkID: park.ID, Name: "Frontier"}
	require.NoError(t, store.DB.Create(area).Error)

	rides := []entities.Ride{
		{ExternalID: 1000, ParkID: park.ID, ThemeAreaID: &area.ID, Name: "Coaster", IsActive: true},
		{ExternalID: 1001, ParkID: park.ID, Name: "Carousel", IsActive: true},
	}
	require.NoError(t, store.DB.Create(&rides).Error)
	require.NoError(t, store.DB.Model(&rides[1]).Update("is_active", false).Error)

	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	var samples []entities.QueueTimeSample
	for i := range 12 {
		for _, r := range rides {
			samples = append(samples, entities.QueueTimeSample{
				RideID:      r.ID,
				LastUpdated: base.Add(time.Duration(i) * 5 * time.Minute),
				WaitTime:    5 * i,
				IsOpen:      true,
				RecordedAt:  base.Add(time.Duration(i) * 5 * time.Minute),
			})
		}
	}
	require.NoError(t, store.DB.Create(&samples).Error)
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &Config{
		SQLitePath:   filepath.Join(dir, "source.db"),
		TargetType:   datastore.DialectSQLite,
		TargetSQLite: filepath.Join(dir, "target.db"),
		BatchSize:    7,
	}
	seedSource(t, cfg.SQLitePath)
	return cfg
}

func TestMigratorCopiesAllTables(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Load())

	var out bytes.Buffer
	m, err := NewMigrator(cfg, &out)
	require.NoError(t, err)
	defer m.Close()

	stats, err := m.Run(t.Context())
	require.NoError(t, err)
	require.Len(t, stats.Tables, len(tableSteps))

	migrated, skipped, errs := stats.Totals()
	assert.Equal(t, int64(1+1+1+2+24), migrated)
	assert.Zero(t, skipped)
	assert.Zero(t, errs)

	require.NoError(t, NewVerifier(m.source.DB, m.target.DB, &out).Verify(t.Context()))

	var park entities.Park
	require.NoError(t, m.target.DB.First(&park, "external_id = ?", 10).Error)
	require.NotNil(t, park.GroupID)
	assert.Equal(t, "Europe/Helsinki", park.Timezone)

	var carousel entities.Ride
	require.NoError(t, m.target.DB.First(&carousel, "external_id = ?", 1001).Error)
	assert.False(t, carousel.IsActive)
}

func TestMigratorRerunSkipsExistingRows(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Load())

	var out bytes.Buffer
	m, err := NewMigrator(cfg, &out)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Run(t.Context())
	require.NoError(t, err)

	stats, err := m.Run(t.Context())
	require.NoError(t, err)
	migrated, skipped, _ := stats.Totals()
	assert.Zero(t, migrated)
	assert.Equal(t, int64(29), skipped)
}

func TestMigratorCleanEmptiesTargetFirst(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Load())

	var out bytes.Buffer
	m, err := NewMigrator(cfg, &out)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Run(t.Context())
	require.NoError(t, err)

	m.cfg.Clean = true
	stats, err := m.Run(t.Context())
	require.NoError(t, err)
	migrated, skipped, _ := stats.Totals()
	assert.Equal(t, int64(29), migrated)
	assert.Zero(t, skipped)
}

func TestVerifierDetectsMissingRows(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Load())

	var out bytes.Buffer
	m, err := NewMigrator(cfg, &out)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Run(t.Context())
	require.NoError(t, err)
	require.NoError(t, m.target.DB.Exec("DELETE FROM queue_time_samples WHERE id = 1").Error)

	err = NewVerifier(m.source.DB, m.target.DB, &out).Verify(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count verification failed")
}

func TestConfigLoadValidation(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.db")
	seedSource(t, source)

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"missing source", Config{SQLitePath: filepath.Join(dir, "nope.db"), TargetType: "mysql", Host: "h", Database: "d", BatchSize: 10}, "not found"},
		{"unknown target", Config{SQLitePath: source, TargetType: "oracle", BatchSize: 10}, "unsupported target"},
		{"mysql without host", Config{SQLitePath: source, TargetType: "mysql", Database: "d", BatchSize: 10}, "--host"},
		{"same file", Config{SQLitePath: source, TargetType: "sqlite", TargetSQLite: source, BatchSize: 10}, "same file"},
		{"zero batch", Config{SQLitePath: source, TargetType: "mysql", Host: "h", Database: "d"}, "at least 1"},
		{"huge batch", Config{SQLitePath: source, TargetType: "mysql", Host: "h", Database: "d", BatchSize: maxBatchSize + 1}, "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTargetSettingsAndSanitizedTarget(t *testing.T) {
	cfg := &Config{TargetType: "postgres", Host: "db", User: "pp", Pass: "secret", Database: "parkpulse"}

	s := cfg.TargetSettings()
	assert.Equal(t, "postgres", s.Database.Type)
	assert.Equal(t, "5432", s.Database.Postgres.Port)
	assert.NotContains(t, cfg.SanitizedTarget(), "secret")
}
