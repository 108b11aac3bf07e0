package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tphakala/parkpulse/internal/datastore"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migrator copies every ParkPulse table from a source store to a target
// store, preserving primary keys.
type Migrator struct {
	cfg    Config
	out    io.Writer
	source *datastore.Store
	target *datastore.Store
}

// MigrationStats tracks migration statistics.
type MigrationStats struct {
	StartTime time.Time
	EndTime   time.Time
	Tables    []TableStats
}

// TableStats tracks per-table migration statistics.
type TableStats struct {
	Name     string
	Migrated int64
	Skipped  int64
	Errors   int64
	Duration time.Duration
}

// Totals sums the per-table counters.
func (s *MigrationStats) Totals() (migrated, skipped, errs int64) {
	for _, t := range s.Tables {
		migrated += t.Migrated
		skipped += t.Skipped
		errs += t.Errors
	}
	return migrated, skipped, errs
}

// Print writes the migration summary to w.
func (s *MigrationStats) Print(w io.Writer) {
	fmt.Fprintln(w, "\n=== Migration Summary ===")
	fmt.Fprintf(w, "Duration: %s\n\n", s.EndTime.Sub(s.StartTime).Round(time.Millisecond))

	fmt.Fprintf(w, "%-20s %10s %10s %10s %12s\n", "Table", "Migrated", "Skipped", "Errors", "Duration")
	fmt.Fprintln(w, strings.Repeat("-", 66))
	for _, t := range s.Tables {
		fmt.Fprintf(w, "%-20s %10d %10d %10d %12s\n",
			t.Name, t.Migrated, t.Skipped, t.Errors, t.Duration.Round(time.Millisecond))
	}
	migrated, skipped, errs := s.Totals()
	fmt.Fprintln(w, strings.Repeat("-", 66))
	fmt.Fprintf(w, "%-20s %10d %10d %10d\n", "TOTAL", migrated, skipped, errs)
}

// NewMigrator opens both stores. The target schema is migrated on open.
func NewMigrator(cfg *Config, out io.Writer) (*Migrator, error) {
	source, err := datastore.Open(cfg.SourceSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to open source database: %w", err)
	}

	target, err := datastore.Open(cfg.TargetSettings())
	if err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("failed to open target database: %w", err)
	}

	return &Migrator{cfg: *cfg, out: out, source: source, target: target}, nil
}

// Close closes both database connections.
func (m *Migrator) Close() {
	if m.source != nil {
		_ = m.source.Close()
	}
	if m.target != nil {
		_ = m.target.Close()
	}
}

// tableStep copies one table.
type tableStep struct {
	table string
	copy  func(ctx context.Context, m *Migrator, table string) (*TableStats, error)
}

// tableSteps lists the tables parents first.
var tableSteps = []tableStep{
	{"park_groups", copyTable[entities.ParkGroup]},
	{"parks", copyTable[entities.Park]},
	{"theme_areas", copyTable[entities.ThemeArea]},
	{"rides", copyTable[entities.Ride]},
	{"queue_time_samples", copyTable[entities.QueueTimeSample]},
}

// Run copies every table in dependency order.
func (m *Migrator) Run(ctx context.Context) (*MigrationStats, error) {
	stats := &MigrationStats{StartTime: time.Now()}

	if m.cfg.Clean {
		if err := m.cleanTables(ctx); err != nil {
			return nil, fmt.Errorf("failed to clean tables: %w", err)
		}
	}

	for _, step := range tableSteps {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		tableStats, err := step.copy(ctx, m, step.table)
		if err != nil {
			return stats, fmt.Errorf("failed to migrate %s: %w", step.table, err)
		}
		stats.Tables = append(stats.Tables, *tableStats)
	}

	if m.target.Dialect() == datastore.DialectPostgres {
		if err := m.resetSequences(ctx); err != nil {
			return stats, fmt.Errorf("failed to reset sequences: %w", err)
		}
	}

	stats.EndTime = time.Now()
	return stats, nil
}

// cleanTables empties the target, children first.
func (m *Migrator) cleanTables(ctx context.Context) error {
	fmt.Fprintln(m.out, "Cleaning target tables...")
	for i := len(tableSteps) - 1; i >= 0; i-- {
		table := tableSteps[i].table
		if err := m.target.DB.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("could not clean table %s: %w", table, err)
		}
		if m.cfg.Verbose {
			fmt.Fprintf(m.out, "  Cleaned: %s\n", table)
		}
	}
	return nil
}

// resetSequences moves Postgres id sequences past the copied ids.
func (m *Migrator) resetSequences(ctx context.Context) error {
	for _, step := range tableSteps {
		table := step.table
		q := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE(MAX(id), 1)) FROM %s", table, table)
		if err := m.target.DB.WithContext(ctx).Exec(q).Error; err != nil {
			return fmt.Errorf("table %s: %w", table, err)
		}
	}
	return nil
}

// copyTable copies one table in batches. Rows already present in the target
// are skipped, so reruns are idempotent.
func copyTable[T any](ctx context.Context, m *Migrator, tableName string) (*TableStats, error) {
	start := time.Now()
	stats := &TableStats{Name: tableName}

	fmt.Fprintf(m.out, "Migrating %s...\n", tableName)

	var sourceCount int64
	if err := m.source.DB.WithContext(ctx).Model(new(T)).Count(&sourceCount).Error; err != nil {
		return stats, fmt.Errorf("failed to count source records: %w", err)
	}
	if sourceCount == 0 {
		fmt.Fprintf(m.out, "  %s: no records to migrate\n", tableName)
		stats.Duration = time.Since(start)
		return stats, nil
	}

	var processed int64
	batchNum := 0
	target := m.target.DB.WithContext(ctx)

	err := m.source.DB.WithContext(ctx).Model(new(T)).
		FindInBatches(new([]T), m.cfg.BatchSize, func(tx *gorm.DB, _ int) error {
			batchNum++
			records := tx.Statement.Dest.(*[]T)

			// Select("*") keeps zero values such as inactive rides.
			result := target.Select("*").Omit(clause.Associations).
				Clauses(clause.OnConflict{DoNothing: true}).
				Create(records)
			if result.Error != nil {
				stats.Errors += int64(len(*records))
				fmt.Fprintf(m.out, "  Batch %d error: %v\n", batchNum, result.Error)
				return nil //nolint:nilerr // a failed batch is counted, the copy continues
			}

			stats.Migrated += result.RowsAffected
			stats.Skipped += int64(len(*records)) - result.RowsAffected
			processed += int64(len(*records))

			if m.cfg.Verbose || batchNum%10 == 0 {
				fmt.Fprintf(m.out, "  %s: %d/%d (%.1f%%)\n", tableName, processed, sourceCount,
					float64(processed)/float64(sourceCount)*100)
			}
			return nil
		}).Error
	if err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	fmt.Fprintf(m.out, "  %s: completed (%d migrated, %d skipped, %d errors) in %s\n",
		tableName, stats.Migrated, stats.Skipped, stats.Errors, stats.Duration.Round(time.Millisecond))

	return stats, nil
}
