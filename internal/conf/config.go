// Package conf holds ParkPulse settings. Values come from config.yaml,
// PARKPULSE_* environment variables and command line flags, in increasing
// order of precedence, all merged through viper.
package conf

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"github.com/tphakala/parkpulse/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool         // true to enable file logging
	Path     string       // directory for per-service log files
	Rotation RotationType // Type of log rotation
	MaxSize  int64        // Max size in bytes for RotationSize
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// UpstreamSettings configures the queue-times feed client.
type UpstreamSettings struct {
	BaseURL    string        // feed root, e.g. https://queue-times.com
	UserAgent  string        // User-Agent header sent with every request
	Timeout    time.Duration // per request timeout
	RateLimit  float64       // requests per second across all calls
	Burst      int           // limiter burst size
	MaxRetries int           // attempts per request on retryable failures
	RetryDelay time.Duration // base delay between attempts
}

// SQLiteSettings configures the embedded database.
type SQLiteSettings struct {
	Path string // database file path
}

// MySQLSettings configures a MySQL server connection.
type MySQLSettings struct {
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// PostgresSettings configures a PostgreSQL server connection.
type PostgresSettings struct {
	Username string
	Password string
	Database string
	Host     string
	Port     string
	SSLMode  string
}

// DatabaseSettings selects and configures the relational store.
type DatabaseSettings struct {
	Type          string        // sqlite, mysql or postgres
	SlowThreshold time.Duration // queries slower than this are logged at warn
	SQLite        SQLiteSettings
	MySQL         MySQLSettings
	Postgres      PostgresSettings
}

// BadgerSettings configures the persistent cache backend.
type BadgerSettings struct {
	Path     string // directory for badger files
	InMemory bool   // run badger without touching disk
}

// NATSSettings configures the distributed cache backend.
type NATSSettings struct {
	URL    string // nats server url
	Bucket string // JetStream key-value bucket name
}

// CacheSettings selects the result cache backend.
type CacheSettings struct {
	Backend         string        // memory, badger or nats
	DefaultTTL      time.Duration // TTL applied when callers pass zero
	CleanupInterval time.Duration // expired entry sweep interval for the memory backend
	Badger          BadgerSettings
	NATS            NATSSettings
}

// CatalogSettings configures the catalog synchronization job.
type CatalogSettings struct {
	Interval   time.Duration // time between scheduled syncs
	RunOnStart bool          // run a sync immediately when the scheduler starts
	BatchSize  int           // rows per upsert statement
}

// SamplerSettings configures the queue-time sampling job.
type SamplerSettings struct {
	Interval   time.Duration // time between scheduled sampling runs
	RunOnStart bool          // run a sampling pass immediately when the scheduler starts
	BatchSize  int           // parks fetched concurrently per batch (3-20)
	BatchDelay time.Duration // pause between batches
	PageSize   int           // parks loaded from the catalog per page
	LatestTTL  time.Duration // TTL of the latest-sample cache projection
}

// CrowdSettings configures the crowd level engine.
type CrowdSettings struct {
	WindowDays int           // trailing history window in days
	Percentile float64       // baseline percentile, 0-100
	MinBuckets int           // minimum hourly buckets for a baseline
	CacheTTL   time.Duration // TTL of cached baselines
	Timeout    time.Duration // default budget for timeout-bounded computations
}

// ServerSettings configures the operational HTTP server.
type ServerSettings struct {
	Enabled bool
	Listen  string // host:port
}

// SentrySettings configures optional error telemetry.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// Settings contains all configuration options for ParkPulse.
type Settings struct {
	Debug bool // true to enable debug mode

	Main struct {
		Name string    // instance name used in logs and telemetry
		Log  LogConfig // file logging
	}

	Upstream UpstreamSettings
	Database DatabaseSettings
	Cache    CacheSettings
	Catalog  CatalogSettings
	Sampler  SamplerSettings
	Crowd    CrowdSettings
	Server   ServerSettings
	Sentry   SentrySettings
}

var (
	settingsMu sync.RWMutex
	current    *Settings
)

// Load reads config.yaml and the environment into a new Settings, validates
// it and makes it the current instance. A missing config.yaml is created
// from the embedded defaults in the first search directory.
func Load() (*Settings, error) {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	if err := readConfig(); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_settings").
			Build()
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	current = settings
	return settings, nil
}

func readConfig() error {
	dirs, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	for _, dir := range dirs {
		viper.AddConfigPath(dir)
	}

	setDefaultConfig()
	if err := bindEnvVars(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	err = viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &notFound):
		return writeDefaultConfig(filepath.Join(dirs[0], configFileName))
	default:
		return errors.New(err).
			Category(errors.CategoryFileParsing).
			Context("operation", "read_config").
			Build()
	}
}

// writeDefaultConfig installs the embedded config.yaml at path and reads it.
func writeDefaultConfig(path string) error {
	data, err := configFiles.ReadFile(configFileName)
	if err == nil {
		err = os.MkdirAll(filepath.Dir(path), 0o755)
	}
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "write_default_config").
			Build()
	}

	fmt.Println("Created default config file at:", path)
	return viper.ReadInConfig()
}

// GetSettings returns the settings installed by Load, or nil.
func GetSettings() *Settings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return current
}

// SetTestSettings installs settings without reading any file.
func SetTestSettings(settings *Settings) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	current = settings
}
