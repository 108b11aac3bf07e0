// Package catalog reconciles the park catalog with the upstream parks document.
package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"github.com/tphakala/parkpulse/internal/datastore/repository"
	"github.com/tphakala/parkpulse/internal/errors"
	"github.com/tphakala/parkpulse/internal/logging"
	"github.com/tphakala/parkpulse/internal/observability/metrics"
	"github.com/tphakala/parkpulse/internal/queuetimes"
)

const (
	serviceName      = "catalog"
	DefaultBatchSize = 200
)

var (
	catalogLogger   *slog.Logger
	catalogLevelVar = new(slog.LevelVar)
)

func init() {
	catalogLevelVar.Set(slog.LevelInfo)
	catalogLogger = logging.NewServiceLogger(serviceName, catalogLevelVar)
}

// ParksSource fetches the upstream parks document.
type ParksSource interface {
	FetchParks(ctx context.Context) ([]queuetimes.ParkGroup, error)
}

// Synchronizer writes the upstream groups and parks into the catalog store.
type Synchronizer struct {
	source    ParksSource
	repo      repository.CatalogRepository
	batchSize int
	metrics   *metrics.IngestMetrics
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithBatchSize sets the number of rows per upsert statement.
func WithBatchSize(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithMetrics enables sync metrics.
func WithMetrics(m *metrics.IngestMetrics) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// NewSynchronizer creates a catalog synchronizer.
func NewSynchronizer(source ParksSource, repo repository.CatalogRepository, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source:    source,
		repo:      repo,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncCatalog fetches the parks document and upserts its groups and parks.
// It returns the number of group and park rows actually written; a second
// run against an unchanged document writes nothing. Any upstream or store
// failure fails the whole run.
func (s *Synchronizer) SyncCatalog(ctx context.Context) (groupsWritten, parksWritten int, err error) {
	runID := uuid.NewString()
	logger := catalogLogger.With("run_id", runID)
	start := time.Now()

	defer func() {
		if s.metrics == nil {
			return
		}
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
		}
		s.metrics.RecordRun(metrics.OpCatalogSync, status, time.Since(start))
		if err == nil {
			s.metrics.RecordCatalogRows(metrics.KindGroups, groupsWritten)
			s.metrics.RecordCatalogRows(metrics.KindParks, parksWritten)
		}
	}()

	logger.Info("Catalog sync started")

	doc, err := s.source.FetchParks(ctx)
	if err != nil {
		logger.Error("Failed to fetch parks document", "error", err)
		return 0, 0, s.wrap(err, errors.CategoryNetwork, "fetch_parks", runID)
	}

	groups, parks, groupOf := flatten(doc)
	logger.Debug("Parks document decoded",
		"groups", len(groups),
		"parks", len(parks))

	groupsWritten, err = s.repo.UpsertGroups(ctx, groups, s.batchSize)
	if err != nil {
		logger.Error("Failed to upsert park groups", "error", err)
		return 0, 0, s.wrap(err, errors.CategoryDatabase, "upsert_groups", runID)
	}

	externalIDs := make([]int, 0, len(groups))
	for _, g := range groups {
		externalIDs = append(externalIDs, g.ExternalID)
	}
	groupIDs, err := s.repo.GroupIDsByExternalID(ctx, externalIDs)
	if err != nil {
		logger.Error("Failed to resolve park group ids", "error", err)
		return groupsWritten, 0, s.wrap(err, errors.CategoryDatabase, "resolve_groups", runID)
	}

	for _, p := range parks {
		if id, ok := groupIDs[groupOf[p.ExternalID]]; ok {
			p.GroupID = &id
		}
	}

	parksWritten, err = s.repo.UpsertParks(ctx, parks, s.batchSize)
	if err != nil {
		logger.Error("Failed to upsert parks", "error", err)
		return groupsWritten, 0, s.wrap(err, errors.CategoryDatabase, "upsert_parks", runID)
	}

	logger.Info("Catalog sync completed",
		"groups_written", groupsWritten,
		"parks_written", parksWritten,
		"groups_total", len(groups),
		"parks_total", len(parks),
		"duration_ms", time.Since(start).Milliseconds())
	return groupsWritten, parksWritten, nil
}

func (s *Synchronizer) wrap(err error, category errors.ErrorCategory, operation, runID string) error {
	// keep the original category of enhanced upstream errors, e.g. file-parsing
	var ee *errors.EnhancedError
	if errors.As(err, &ee) && category == errors.CategoryNetwork {
		category = ee.Category
	}
	return errors.New(err).
		Component(serviceName).
		Category(category).
		Context("operation", operation).
		Context("run_id", runID).
		Build()
}

// flatten converts the feed document into catalog entities. groupOf maps a
// park external id to the external id of its group. When an id appears more
// than once the first occurrence wins.
func flatten(doc []queuetimes.ParkGroup) (groups []*entities.ParkGroup, parks []*entities.Park, groupOf map[int]int) {
	groupOf = make(map[int]int)
	seenGroups := make(map[int]struct{}, len(doc))

	for i := range doc {
		g := &doc[i]
		if _, dup := seenGroups[g.ID]; !dup {
			seenGroups[g.ID] = struct{}{}
			groups = append(groups, &entities.ParkGroup{ExternalID: g.ID, Name: g.Name})
		}
		for j := range g.Parks {
			p := &g.Parks[j]
			if _, dup := groupOf[p.ID]; dup {
				continue
			}
			groupOf[p.ID] = g.ID
			parks = append(parks, &entities.Park{
				ExternalID: p.ID,
				Name:       p.Name,
				Country:    p.Country,
				Continent:  p.Continent,
				Latitude:   p.Latitude.Float64(),
				Longitude:  p.Longitude.Float64(),
				Timezone:   p.Timezone,
			})
		}
	}
	return groups, parks, groupOf
}
