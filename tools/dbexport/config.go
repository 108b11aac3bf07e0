package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"github.com/tphakala/parkpulse/internal/conf"
	"github.com/tphakala/parkpulse/internal/datastore"
)

const maxBatchSize = 10000

// Config holds the configuration for the export tool.
type Config struct {
	// Source database
	SQLitePath string

	// Target database
	TargetType   string
	TargetSQLite string
	Host         string
	Port         int
	User         string
	Pass         string
	Database     string
	SSLMode      string

	// Export options
	BatchSize  int
	Clean      bool
	SkipVerify bool
	Verbose    bool

	// Config file path for fallback
	ConfigPath string
}

// Load validates the configuration, falling back to config.yaml for
// anything the flags left empty.
func (c *Config) Load() error {
	if c.SQLitePath == "" || c.TargetType == "" {
		if err := c.loadFromConfigFile(); err != nil && c.SQLitePath == "" {
			return fmt.Errorf("--sqlite-path is required (or provide config.yaml): %w", err)
		}
	}

	if _, err := os.Stat(c.SQLitePath); os.IsNotExist(err) {
		return fmt.Errorf("SQLite database not found: %s", c.SQLitePath)
	}

	switch c.TargetType {
	case datastore.DialectMySQL, datastore.DialectPostgres:
		if c.Host == "" || c.Database == "" {
			return fmt.Errorf("target %s needs --host and --database", c.TargetType)
		}
	case datastore.DialectSQLite:
		if c.TargetSQLite == "" {
			return fmt.Errorf("target sqlite needs --target-sqlite-path")
		}
		if sameFile(c.TargetSQLite, c.SQLitePath) {
			return fmt.Errorf("source and target are the same file: %s", c.SQLitePath)
		}
	default:
		return fmt.Errorf("unsupported target type %q (mysql, postgres or sqlite)", c.TargetType)
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("batch-size must be at least 1")
	}
	if c.BatchSize > maxBatchSize {
		return fmt.Errorf("batch-size too large (max %d)", maxBatchSize)
	}

	return nil
}

// loadFromConfigFile reads the database section of a ParkPulse config.yaml.
func (c *Config) loadFromConfigFile() error {
	v := viper.New()

	configPath := c.ConfigPath
	if configPath == "" {
		found, err := conf.FindConfigFile()
		if err != nil {
			return err
		}
		configPath = found
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if c.SQLitePath == "" {
		c.SQLitePath = v.GetString("database.sqlite.path")
	}

	// The configured database is the target unless it is the SQLite source.
	if c.TargetType == "" {
		switch t := v.GetString("database.type"); t {
		case datastore.DialectMySQL, datastore.DialectPostgres:
			c.TargetType = t
			c.Host = v.GetString("database." + t + ".host")
			c.Port = v.GetInt("database." + t + ".port")
			c.User = v.GetString("database." + t + ".username")
			c.Pass = v.GetString("database." + t + ".password")
			c.Database = v.GetString("database." + t + ".database")
			c.SSLMode = v.GetString("database.postgres.sslmode")
		}
	}

	return nil
}

// SourceSettings returns the settings opening the source store.
func (c *Config) SourceSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Database.Type = datastore.DialectSQLite
	s.Database.SQLite.Path = c.SQLitePath
	return s
}

// TargetSettings returns the settings opening the target store.
func (c *Config) TargetSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Database.Type = c.TargetType
	switch c.TargetType {
	case datastore.DialectSQLite:
		s.Database.SQLite.Path = c.TargetSQLite
	case datastore.DialectMySQL:
		s.Database.MySQL = conf.MySQLSettings{
			Username: c.User,
			Password: c.Pass,
			Database: c.Database,
			Host:     c.Host,
			Port:     c.portOr(3306),
		}
	case datastore.DialectPostgres:
		s.Database.Postgres = conf.PostgresSettings{
			Username: c.User,
			Password: c.Pass,
			Database: c.Database,
			Host:     c.Host,
			Port:     c.portOr(5432),
			SSLMode:  c.SSLMode,
		}
	}
	return s
}

func (c *Config) portOr(def int) string {
	if c.Port > 0 {
		return strconv.Itoa(c.Port)
	}
	return strconv.Itoa(def)
}

// SanitizedTarget describes the target without credentials.
func (c *Config) SanitizedTarget() string {
	if c.TargetType == datastore.DialectSQLite {
		return "sqlite:" + c.TargetSQLite
	}
	user := c.User
	if c.Pass != "" {
		user += ":****"
	}
	return fmt.Sprintf("%s://%s@%s:%d/%s", c.TargetType, user, c.Host, c.Port, c.Database)
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return absA == absB
}
