package repository

import (
	"context"
	"errors"

	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultUpsertBatchSize = 200

// catalogRepository implements CatalogRepository.
type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

// UpsertGroups writes new or renamed groups.
func (r *catalogRepository) UpsertGroups(ctx context.Context, groups []*entities.ParkGroup, batchSize int) (int, error) {
	if len(groups) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = defaultUpsertBatchSize
	}

	externalIDs := make([]int, 0, len(groups))
	for _, g := range groups {
		externalIDs = append(externalIDs, g.ExternalID)
	}

	existing := make(map[int]*entities.ParkGroup, len(groups))
	for _, chunk := range chunks(externalIDs, idBatchSize) {
		var rows []*entities.ParkGroup
		if err := r.db.WithContext(ctx).Table(tableParkGroups).
			Where("external_id IN ?", chunk).
			Find(&rows).Error; err != nil {
			return 0, err
		}
		for _, row := range rows {
			existing[row.ExternalID] = row
		}
	}

	changed := make([]*entities.ParkGroup, 0, len(groups))
	seen := make(map[int]struct{}, len(groups))
	for _, g := range groups {
		if _, dup := seen[g.ExternalID]; dup {
			continue
		}
		seen[g.ExternalID] = struct{}{}
		if cur, ok := existing[g.ExternalID]; ok && cur.Name == g.Name {
			continue
		}
		changed = append(changed, &entities.ParkGroup{ExternalID: g.ExternalID, Name: g.Name})
	}
	if len(changed) == 0 {
		return 0, nil
	}

	err := r.db.WithContext(ctx).Table(tableParkGroups).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).
		CreateInBatches(changed, batchSize).Error
	if err != nil {
		return 0, err
	}
	return len(changed), nil
}

// GroupIDsByExternalID resolves external ids in chunks.
func (r *catalogRepository) GroupIDsByExternalID(ctx context.Context, externalIDs []int) (map[int]uint, error) {
	result := make(map[int]uint, len(externalIDs))
	type idPair struct {
		ID         uint
		ExternalID int
	}
	for _, chunk := range chunks(externalIDs, idBatchSize) {
		var rows []idPair
		if err := r.db.WithContext(ctx).Table(tableParkGroups).
			Select("id, external_id").
			Where("external_id IN ?", chunk).
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			result[row.ExternalID] = row.ID
		}
	}
	return result, nil
}

// UpsertParks writes new parks and parks whose catalog fields changed.
func (r *catalogRepository) UpsertParks(ctx context.Context, parks []*entities.Park, batchSize int) (int, error) {
	if len(parks) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = defaultUpsertBatchSize
	}

	externalIDs := make([]int, 0, len(parks))
	for _, p := range parks {
		externalIDs = append(externalIDs, p.ExternalID)
	}

	existing := make(map[int]*entities.Park, len(parks))
	for _, chunk := range chunks(externalIDs, idBatchSize) {
		var rows []*entities.Park
		if err := r.db.WithContext(ctx).Table(tableParks).
			Where("external_id IN ?", chunk).
			Find(&rows).Error; err != nil {
			return 0, err
		}
		for _, row := range rows {
			existing[row.ExternalID] = row
		}
	}

	changed := make([]*entities.Park, 0, len(parks))
	seen := make(map[int]struct{}, len(parks))
	for _, p := range parks {
		if _, dup := seen[p.ExternalID]; dup {
			continue
		}
		seen[p.ExternalID] = struct{}{}
		if cur, ok := existing[p.ExternalID]; ok && cur.SameCatalogFields(p) {
			continue
		}
		changed = append(changed, &entities.Park{
			ExternalID: p.ExternalID,
			Name:       p.Name,
			Country:    p.Country,
			Continent:  p.Continent,
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			Timezone:   p.Timezone,
			GroupID:    p.GroupID,
		})
	}
	if len(changed) == 0 {
		return 0, nil
	}

	err := r.db.WithContext(ctx).Table(tableParks).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "country", "continent", "latitude", "longitude",
				"timezone", "group_id", "updated_at",
			}),
		}).
		CreateInBatches(changed, batchSize).Error
	if err != nil {
		return 0, err
	}
	return len(changed), nil
}

// ListParks pages through parks by surrogate id.
func (r *catalogRepository) ListParks(ctx context.Context, afterID uint, limit int) ([]*entities.Park, error) {
	if limit <= 0 {
		return nil, ErrInvalidInput
	}
	var parks []*entities.Park
	err := r.db.WithContext(ctx).Table(tableParks).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&parks).Error
	return parks, err
}

// GetPark retrieves a park by id.
func (r *catalogRepository) GetPark(ctx context.Context, id uint) (*entities.Park, error) {
	var park entities.Park
	err := r.db.WithContext(ctx).Table(tableParks).First(&park, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrParkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &park, nil
}

// GetParkByExternalID retrieves a park by upstream id.
func (r *catalogRepository) GetParkByExternalID(ctx context.Context, externalID int) (*entities.Park, error) {
	var park entities.Park
	err := r.db.WithContext(ctx).Table(tableParks).
		Where("external_id = ?", externalID).
		First(&park).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrParkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &park, nil
}

// UpsertThemeArea retrieves, renames or creates an area.
func (r *catalogRepository) UpsertThemeArea(ctx context.Context, parkID uint, externalID int, name string) (*entities.ThemeArea, error) {
	if parkID == 0 {
		return nil, ErrInvalidInput
	}

	var area entities.ThemeArea
	err := r.db.WithContext(ctx).Table(tableThemeAreas).
		Where("external_id = ? AND park_id = ?", externalID, parkID).
		First(&area).Error
	switch {
	case err == nil:
		if area.Name == name {
			return &area, nil
		}
		if err := r.db.WithContext(ctx).Model(&area).Update("name", name).Error; err != nil {
			return nil, err
		}
		return &area, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	area = entities.ThemeArea{ExternalID: externalID, ParkID: parkID, Name: name}
	result := r.db.WithContext(ctx).Table(tableThemeAreas).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&area)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return nil, result.Error
	}
	if result.Error == nil && result.RowsAffected > 0 {
		return &area, nil
	}

	// Another writer created it first.
	area = entities.ThemeArea{}
	if err := r.db.WithContext(ctx).Table(tableThemeAreas).
		Where("external_id = ? AND park_id = ?", externalID, parkID).
		First(&area).Error; err != nil {
		return nil, err
	}
	return &area, nil
}

// UpsertRide retrieves, updates or creates a ride.
func (r *catalogRepository) UpsertRide(ctx context.Context, ride *entities.Ride) (*entities.Ride, error) {
	if ride == nil || ride.ParkID == 0 {
		return nil, ErrInvalidInput
	}

	var existing entities.Ride
	err := r.db.WithContext(ctx).Table(tableRides).
		Where("external_id = ? AND park_id = ?", ride.ExternalID, ride.ParkID).
		First(&existing).Error
	switch {
	case err == nil:
		return r.updateRide(ctx, &existing, ride)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	created := entities.Ride{
		ExternalID:  ride.ExternalID,
		ParkID:      ride.ParkID,
		ThemeAreaID: ride.ThemeAreaID,
		Name:        ride.Name,
		IsActive:    true,
	}
	result := r.db.WithContext(ctx).Table(tableRides).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&created)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return nil, result.Error
	}
	if result.Error == nil && result.RowsAffected > 0 {
		if !ride.IsActive {
			return r.updateRide(ctx, &created, ride)
		}
		return &created, nil
	}

	// Another writer created it first.
	existing = entities.Ride{}
	if err := r.db.WithContext(ctx).Table(tableRides).
		Where("external_id = ? AND park_id = ?", ride.ExternalID, ride.ParkID).
		First(&existing).Error; err != nil {
		return nil, err
	}
	return r.updateRide(ctx, &existing, ride)
}

// updateRide writes the mutable ride fields when they differ from the stored row.
func (r *catalogRepository) updateRide(ctx context.Context, existing, incoming *entities.Ride) (*entities.Ride, error) {
	if existing.Name == incoming.Name &&
		existing.IsActive == incoming.IsActive &&
		sameAreaID(existing.ThemeAreaID, incoming.ThemeAreaID) {
		return existing, nil
	}
	err := r.db.WithContext(ctx).Model(existing).Updates(map[string]any{
		"name":          incoming.Name,
		"theme_area_id": incoming.ThemeAreaID,
		"is_active":     incoming.IsActive,
	}).Error
	if err != nil {
		return nil, err
	}
	existing.Name = incoming.Name
	existing.ThemeAreaID = incoming.ThemeAreaID
	existing.IsActive = incoming.IsActive
	return existing, nil
}

// ListThemeAreas returns all areas of a park.
func (r *catalogRepository) ListThemeAreas(ctx context.Context, parkID uint) ([]*entities.ThemeArea, error) {
	var areas []*entities.ThemeArea
	err := r.db.WithContext(ctx).Table(tableThemeAreas).
		Where("park_id = ?", parkID).
		Order("id ASC").
		Find(&areas).Error
	return areas, err
}

// ListRides returns all rides of a park.
func (r *catalogRepository) ListRides(ctx context.Context, parkID uint) ([]*entities.Ride, error) {
	var rides []*entities.Ride
	err := r.db.WithContext(ctx).Table(tableRides).
		Where("park_id = ?", parkID).
		Order("id ASC").
		Find(&rides).Error
	return rides, err
}

// ActiveRideIDs returns ids of the park's active rides.
func (r *catalogRepository) ActiveRideIDs(ctx context.Context, parkID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Table(tableRides).
		Where("park_id = ? AND is_active = ?", parkID, true).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// DeactivateMissingRides flips is_active for rides absent from seenIDs.
func (r *catalogRepository) DeactivateMissingRides(ctx context.Context, parkID uint, seenIDs []uint) (int64, error) {
	active, err := r.ActiveRideIDs(ctx, parkID)
	if err != nil {
		return 0, err
	}

	seen := make(map[uint]struct{}, len(seenIDs))
	for _, id := range seenIDs {
		seen[id] = struct{}{}
	}
	missing := make([]uint, 0)
	for _, id := range active {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}

	var total int64
	for _, chunk := range chunks(missing, idBatchSize) {
		result := r.db.WithContext(ctx).Table(tableRides).
			Where("park_id = ? AND id IN ?", parkID, chunk).
			Update("is_active", false)
		if result.Error != nil {
			return total, result.Error
		}
		total += result.RowsAffected
	}
	return total, nil
}

// CountRows counts rows in every table.
func (r *catalogRepository) CountRows(ctx context.Context) (RowCounts, error) {
	var counts RowCounts
	targets := []struct {
		table string
		dest  *int64
	}{
		{tableParkGroups, &counts.Groups},
		{tableParks, &counts.Parks},
		{tableThemeAreas, &counts.ThemeAreas},
		{tableRides, &counts.Rides},
		{tableSamples, &counts.Samples},
	}
	for _, t := range targets {
		if err := r.db.WithContext(ctx).Table(t.table).Count(t.dest).Error; err != nil {
			return counts, err
		}
	}
	return counts, nil
}

func sameAreaID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
