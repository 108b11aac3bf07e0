//go:build integration

package datastore_test

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/tphakala/parkpulse/internal/conf"
	"github.com/tphakala/parkpulse/internal/datastore"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"github.com/tphakala/parkpulse/internal/datastore/repository"
)

func skipIfNoDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

func TestMySQLStore_SampleDedupAndHourlyBuckets(t *testing.T) {
	skipIfNoDocker(t)
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("parkpulse"),
		tcmysql.WithUsername("parkpulse"),
		tcmysql.WithPassword("secret"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Database.Type = datastore.DialectMySQL
	settings.Database.MySQL = conf.MySQLSettings{
		Username: "parkpulse",
		Password: "secret",
		Database: "parkpulse",
		Host:     host,
		Port:     port.Port(),
	}

	store, err := datastore.Open(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	catalog := repository.NewCatalogRepository(store.DB)
	samples := repository.NewQueueTimeRepository(store.DB)

	_, err = catalog.UpsertParks(ctx, []*entities.Park{{ExternalID: 1, Name: "Park"}}, 10)
	require.NoError(t, err)
	park, err := catalog.GetParkByExternalID(ctx, 1)
	require.NoError(t, err)
	ride, err := catalog.UpsertRide(ctx, &entities.Ride{ExternalID: 9, ParkID: park.ID, Name: "Ride", IsActive: true})
	require.NoError(t, err)

	at := time.Date(2025, 6, 1, 10, 15, 0, 0, time.UTC)
	inserted, err := samples.InsertIfAbsent(ctx, &entities.QueueTimeSample{RideID: ride.ID, WaitTime: 30, IsOpen: true, LastUpdated: at})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = samples.InsertIfAbsent(ctx, &entities.QueueTimeSample{RideID: ride.ID, WaitTime: 30, IsOpen: true, LastUpdated: at})
	require.NoError(t, err)
	assert.False(t, inserted)

	averages, err := samples.HourlyAverages(ctx, []uint{ride.ID}, at.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []float64{30}, averages)

	latest, err := samples.LatestForRides(ctx, []uint{ride.ID})
	require.NoError(t, err)
	require.Contains(t, latest, ride.ID)
	assert.True(t, latest[ride.ID].LastUpdated.Equal(at))
}
