package repository

import (
	"context"

	"github.com/tphakala/parkpulse/internal/datastore/entities"
)

// RowCounts holds table sizes for diagnostics.
type RowCounts struct {
	Groups     int64
	Parks      int64
	ThemeAreas int64
	Rides      int64
	Samples    int64
}

// CatalogRepository provides access to park groups, parks, theme areas and rides.
type CatalogRepository interface {
	// UpsertGroups inserts or updates groups keyed by external id in batches.
	// Groups whose stored name already matches are not written.
	// Returns the number of rows written.
	UpsertGroups(ctx context.Context, groups []*entities.ParkGroup, batchSize int) (int, error)

	// GroupIDsByExternalID resolves external group ids to surrogate ids.
	// Unknown ids are absent from the returned map.
	GroupIDsByExternalID(ctx context.Context, externalIDs []int) (map[int]uint, error)

	// UpsertParks inserts or updates parks keyed by external id in batches.
	// Parks whose stored catalog fields already match are not written.
	// Returns the number of rows written.
	UpsertParks(ctx context.Context, parks []*entities.Park, batchSize int) (int, error)

	// ListParks returns up to limit parks with id greater than afterID, ordered by id.
	ListParks(ctx context.Context, afterID uint, limit int) ([]*entities.Park, error)

	// GetPark retrieves a park by surrogate id.
	// Returns ErrParkNotFound if not found.
	GetPark(ctx context.Context, id uint) (*entities.Park, error)

	// GetParkByExternalID retrieves a park by upstream id.
	// Returns ErrParkNotFound if not found.
	GetParkByExternalID(ctx context.Context, externalID int) (*entities.Park, error)

	// UpsertThemeArea creates the area or updates its name.
	UpsertThemeArea(ctx context.Context, parkID uint, externalID int, name string) (*entities.ThemeArea, error)

	// UpsertRide creates the ride keyed by (ExternalID, ParkID) or updates
	// its name, area and active flag.
	UpsertRide(ctx context.Context, ride *entities.Ride) (*entities.Ride, error)

	// ListThemeAreas returns all areas of a park.
	ListThemeAreas(ctx context.Context, parkID uint) ([]*entities.ThemeArea, error)

	// ListRides returns all rides of a park, active or not.
	ListRides(ctx context.Context, parkID uint) ([]*entities.Ride, error)

	// ActiveRideIDs returns the ids of the active rides of a park, ordered by id.
	ActiveRideIDs(ctx context.Context, parkID uint) ([]uint, error)

	// DeactivateMissingRides marks active rides of the park that are not in
	// seenIDs as inactive. Returns the number of rides deactivated.
	DeactivateMissingRides(ctx context.Context, parkID uint, seenIDs []uint) (int64, error)

	// CountRows returns the size of each catalog and sample table.
	CountRows(ctx context.Context) (RowCounts, error)
}
