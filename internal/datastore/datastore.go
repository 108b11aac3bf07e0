// Package datastore opens the relational store backing the park catalog and
// the wait-time history. SQLite, MySQL and PostgreSQL are supported through
// GORM; the schema is managed with AutoMigrate.
package datastore

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/tphakala/parkpulse/internal/conf"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"github.com/tphakala/parkpulse/internal/errors"
	"github.com/tphakala/parkpulse/internal/logging"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Dialect names as reported by gorm.Dialector.Name().
const (
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

const serviceName = "datastore"

var (
	datastoreLogger   *slog.Logger
	datastoreLevelVar = new(slog.LevelVar)
)

func init() {
	datastoreLevelVar.Set(slog.LevelInfo)
	datastoreLogger = logging.NewServiceLogger(serviceName, datastoreLevelVar)
}

// Store wraps the GORM handle together with the dialect it was opened with.
type Store struct {
	DB      *gorm.DB
	dialect string
}

// Open connects to the database selected in settings and migrates the schema.
func Open(settings *conf.Settings) (*Store, error) {
	if settings == nil {
		return nil, errors.Newf("settings are nil").
			Component(serviceName).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.Debug {
		datastoreLevelVar.Set(slog.LevelDebug)
	}

	dialector, location, err := dialectorFor(&settings.Database)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logging.NewGormLogger(datastoreLogger, settings.Database.SlowThreshold),
		TranslateError: true,
	})
	if err != nil {
		datastoreLogger.Error("Failed to open database",
			"type", settings.Database.Type,
			"location", location,
			"error", err)
		return nil, errors.New(err).
			Component(serviceName).
			Category(errors.CategoryDatabase).
			Context("type", settings.Database.Type).
			Context("location", location).
			Build()
	}

	store := &Store{DB: db, dialect: db.Dialector.Name()}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}

	datastoreLogger.Info("Database opened",
		"type", store.dialect,
		"location", location,
		"duration_ms", time.Since(start).Milliseconds())
	return store, nil
}

// NewFromDB wraps an already opened GORM handle. The schema is not migrated.
func NewFromDB(db *gorm.DB) *Store {
	return &Store{DB: db, dialect: db.Dialector.Name()}
}

// dialectorFor builds the GORM dialector and a log-safe location string.
func dialectorFor(cfg *conf.DatabaseSettings) (gorm.Dialector, string, error) {
	switch cfg.Type {
	case DialectSQLite, "":
		path := cfg.SQLite.Path
		if path == "" {
			path = "parkpulse.db"
		}
		if path != ":memory:" {
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, "", errors.New(err).
						Component(serviceName).
						Category(errors.CategoryFileIO).
						Context("path", dir).
						Build()
				}
			}
		}
		dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", path)
		return sqlite.Open(dsn), path, nil

	case DialectMySQL:
		m := cfg.MySQL
		port := m.Port
		if port == "" {
			port = "3306"
		}
		dc := mysqldriver.NewConfig()
		dc.User = m.Username
		dc.Passwd = m.Password
		dc.Net = "tcp"
		dc.Addr = net.JoinHostPort(m.Host, port)
		dc.DBName = m.Database
		dc.ParseTime = true
		dc.Loc = time.UTC
		dc.Params = map[string]string{"charset": "utf8mb4"}
		return mysql.Open(dc.FormatDSN()), fmt.Sprintf("%s/%s", dc.Addr, m.Database), nil

	case DialectPostgres:
		p := cfg.Postgres
		sslMode := p.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			p.Host, p.Port, p.Username, p.Password, p.Database, sslMode)
		return postgres.Open(dsn), fmt.Sprintf("%s:%s/%s", p.Host, p.Port, p.Database), nil

	default:
		return nil, "", errors.Newf("unsupported database type %q", cfg.Type).
			Component(serviceName).
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// Migrate creates or updates the schema for all entities.
func (s *Store) Migrate() error {
	start := time.Now()
	if err := s.DB.AutoMigrate(entities.All()...); err != nil {
		datastoreLogger.Error("Schema migration failed", "dialect", s.dialect, "error", err)
		return errors.New(err).
			Component(serviceName).
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("dialect", s.dialect).
			Timing("auto_migrate", time.Since(start)).
			Build()
	}
	datastoreLogger.Debug("Schema migrated", "dialect", s.dialect, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Dialect returns the dialect name of the underlying connection.
func (s *Store) Dialect() string {
	return s.dialect
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component(serviceName).
			Category(errors.CategoryState).
			Build()
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return errors.New(err).
			Component(serviceName).
			Category(errors.CategoryDatabase).
			Context("operation", "get_sql_db").
			Build()
	}
	if err := sqlDB.Close(); err != nil {
		datastoreLogger.Error("Failed to close database", "error", err)
		return errors.New(err).
			Component(serviceName).
			Category(errors.CategoryDatabase).
			Context("operation", "close").
			Build()
	}
	datastoreLogger.Debug("Database connection closed")
	return nil
}

// HourBucketExpr returns the SQL expression truncating column to an hour
// bucket key of the form "YYYY-MM-DD HH" for the given dialect.
func HourBucketExpr(dialect, column string) string {
	switch dialect {
	case DialectMySQL:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d %%H')", column)
	case DialectPostgres:
		return fmt.Sprintf("to_char(date_trunc('hour', %s), 'YYYY-MM-DD HH24')", column)
	default:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H', %s)", column)
	}
}
