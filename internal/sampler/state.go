package sampler

import (
	"context"

	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"github.com/tphakala/parkpulse/internal/datastore/repository"
	"github.com/tphakala/parkpulse/internal/queuetimes"
)

// parkState caches the stored areas and rides of one park for a sampling
// pass so unchanged rows are not rewritten.
type parkState struct {
	areas map[int]*entities.ThemeArea // by external id
	rides map[int]*entities.Ride      // by external id
}

func (s *Sampler) loadParkState(ctx context.Context, parkID uint) (*parkState, error) {
	areas, err := s.catalog.ListThemeAreas(ctx, parkID)
	if err != nil {
		return nil, err
	}
	rides, err := s.catalog.ListRides(ctx, parkID)
	if err != nil {
		return nil, err
	}

	st := &parkState{
		areas: make(map[int]*entities.ThemeArea, len(areas)),
		rides: make(map[int]*entities.Ride, len(rides)),
	}
	for _, a := range areas {
		st.areas[a.ExternalID] = a
	}
	for _, r := range rides {
		st.rides[r.ExternalID] = r
	}
	return st, nil
}

// area returns the id of the land's theme area, creating or renaming it when needed.
func (st *parkState) area(ctx context.Context, repo repository.CatalogRepository, parkID uint, land *queuetimes.Land) (uint, error) {
	if a, ok := st.areas[land.ID]; ok && a.Name == land.Name {
		return a.ID, nil
	}
	a, err := repo.UpsertThemeArea(ctx, parkID, land.ID, land.Name)
	if err != nil {
		return 0, err
	}
	st.areas[land.ID] = a
	return a.ID, nil
}

// ride returns the stored ride, creating or updating it when its name, area
// or active flag differ from the feed.
func (st *parkState) ride(ctx context.Context, repo repository.CatalogRepository, parkID uint, r *queuetimes.Ride, areaID *uint) (*entities.Ride, error) {
	if existing, ok := st.rides[r.ID]; ok &&
		existing.IsActive &&
		existing.Name == r.Name &&
		sameArea(existing.ThemeAreaID, areaID) {
		return existing, nil
	}

	stored, err := repo.UpsertRide(ctx, &entities.Ride{
		ExternalID:  r.ID,
		ParkID:      parkID,
		ThemeAreaID: areaID,
		Name:        r.Name,
		IsActive:    true,
	})
	if err != nil {
		return nil, err
	}
	st.rides[r.ID] = stored
	return stored, nil
}

func sameArea(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
