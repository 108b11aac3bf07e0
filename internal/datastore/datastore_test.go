package datastore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/parkpulse/internal/conf"
	"github.com/tphakala/parkpulse/internal/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
)

func TestOpen_SQLiteMigratesSchema(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Database.Type = DialectSQLite
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "data", "parkpulse.db")

	store, err := Open(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assert.Equal(t, DialectSQLite, store.Dialect())
	for _, table := range []string{"park_groups", "parks", "theme_areas", "rides", "queue_time_samples"} {
		assert.True(t, store.DB.Migrator().HasTable(table), "missing table %s", table)
	}
	assert.True(t, store.DB.Migrator().HasIndex("queue_time_samples", "idx_sample_dedup"))
	assert.True(t, store.DB.Migrator().HasIndex("queue_time_samples", "idx_sample_ride_time"))
}

func TestOpen_RejectsUnknownType(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Database.Type = "oracle"

	_, err := Open(settings)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = Open(nil)
	require.Error(t, err)
}

func TestClose_Uninitialized(t *testing.T) {
	t.Parallel()
	var s *Store
	require.Error(t, s.Close())
}

func TestHourBucketExpr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		dialect string
		want    string
	}{
		{DialectSQLite, "strftime('%Y-%m-%d %H', last_updated)"},
		{DialectMySQL, "DATE_FORMAT(last_updated, '%Y-%m-%d %H')"},
		{DialectPostgres, "to_char(date_trunc('hour', last_updated), 'YYYY-MM-DD HH24')"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, HourBucketExpr(tt.dialect, "last_updated"))
		})
	}
}

func TestDialectorFor_ServerDatabases(t *testing.T) {
	t.Parallel()

	t.Run("mysql", func(t *testing.T) {
		t.Parallel()
		cfg := &conf.DatabaseSettings{Type: DialectMySQL}
		cfg.MySQL = conf.MySQLSettings{Username: "pp", Password: "p@ss", Database: "parkpulse", Host: "db.local"}

		d, location, err := dialectorFor(cfg)
		require.NoError(t, err)
		md, ok := d.(*mysql.Dialector)
		require.True(t, ok)
		assert.Contains(t, md.DSN, "tcp(db.local:3306)/parkpulse")
		assert.Contains(t, md.DSN, "parseTime=true")
		assert.Equal(t, "db.local:3306/parkpulse", location)
		assert.NotContains(t, location, "p@ss")
	})

	t.Run("postgres", func(t *testing.T) {
		t.Parallel()
		cfg := &conf.DatabaseSettings{Type: DialectPostgres}
		cfg.Postgres = conf.PostgresSettings{Username: "pp", Password: "secret", Database: "parkpulse", Host: "pg", Port: "5433"}

		d, location, err := dialectorFor(cfg)
		require.NoError(t, err)
		pd, ok := d.(*postgres.Dialector)
		require.True(t, ok)
		assert.Contains(t, pd.DSN, "sslmode=disable")
		assert.Equal(t, "pg:5433/parkpulse", location)
	})
}
