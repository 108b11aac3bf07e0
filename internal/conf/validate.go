// validate.go: settings validation.

package conf

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
)

// Sampler batch size bounds
const (
	MinSamplerBatchSize = 3
	MaxSamplerBatchSize = 20
)

var (
	validDatabaseTypes = []string{"sqlite", "mysql", "postgres"}
	validCacheBackends = []string{"memory", "badger", "nats"}
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		func(s *Settings) error { return validateLogSettings(&s.Main.Log) },
		func(s *Settings) error { return validateUpstreamSettings(&s.Upstream) },
		func(s *Settings) error { return validateDatabaseSettings(&s.Database) },
		func(s *Settings) error { return validateCacheSettings(&s.Cache) },
		func(s *Settings) error { return validateCatalogSettings(&s.Catalog) },
		func(s *Settings) error { return validateSamplerSettings(&s.Sampler) },
		func(s *Settings) error { return validateCrowdSettings(&s.Crowd) },
		func(s *Settings) error { return validateServerSettings(&s.Server) },
		func(s *Settings) error { return validateSentrySettings(&s.Sentry) },
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}

	return nil
}

func validateLogSettings(settings *LogConfig) error {
	switch settings.Rotation {
	case RotationDaily, RotationWeekly, RotationSize, "":
	default:
		return fmt.Errorf("main.log.rotation must be daily, weekly or size, got %q", settings.Rotation)
	}
	if settings.Rotation == RotationSize && settings.MaxSize <= 0 {
		return fmt.Errorf("main.log.maxsize must be positive for size rotation")
	}
	return nil
}

func validateUpstreamSettings(settings *UpstreamSettings) error {
	var errs []string

	u, err := url.Parse(settings.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("upstream.baseurl must be an absolute URL, got %q", settings.BaseURL))
	}
	if settings.Timeout <= 0 {
		errs = append(errs, "upstream.timeout must be positive")
	}
	if settings.RateLimit <= 0 {
		errs = append(errs, "upstream.ratelimit must be positive")
	}
	if settings.Burst < 1 {
		errs = append(errs, "upstream.burst must be at least 1")
	}
	if settings.MaxRetries < 1 {
		errs = append(errs, "upstream.maxretries must be at least 1")
	}
	if settings.RetryDelay < 0 {
		errs = append(errs, "upstream.retrydelay must not be negative")
	}

	return joinErrors("upstream", errs)
}

func validateDatabaseSettings(settings *DatabaseSettings) error {
	var errs []string

	switch settings.Type {
	case "sqlite":
		if settings.SQLite.Path == "" {
			errs = append(errs, "database.sqlite.path is required")
		}
	case "mysql":
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" {
			errs = append(errs, "database.mysql.host and database.mysql.database are required")
		}
	case "postgres":
		if settings.Postgres.Host == "" || settings.Postgres.Database == "" {
			errs = append(errs, "database.postgres.host and database.postgres.database are required")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.type must be one of %s, got %q", strings.Join(validDatabaseTypes, ", "), settings.Type))
	}

	return joinErrors("database", errs)
}

func validateCacheSettings(settings *CacheSettings) error {
	var errs []string

	if !slices.Contains(validCacheBackends, settings.Backend) {
		errs = append(errs, fmt.Sprintf("cache.backend must be one of %s, got %q", strings.Join(validCacheBackends, ", "), settings.Backend))
	}
	if settings.DefaultTTL <= 0 {
		errs = append(errs, "cache.defaultttl must be positive")
	}
	if settings.Backend == "badger" && !settings.Badger.InMemory && settings.Badger.Path == "" {
		errs = append(errs, "cache.badger.path is required unless cache.badger.inmemory is set")
	}
	if settings.Backend == "nats" {
		if settings.NATS.URL == "" {
			errs = append(errs, "cache.nats.url is required for the nats backend")
		}
		if settings.NATS.Bucket == "" {
			errs = append(errs, "cache.nats.bucket is required for the nats backend")
		}
	}

	return joinErrors("cache", errs)
}

func validateCatalogSettings(settings *CatalogSettings) error {
	var errs []string
	if settings.Interval <= 0 {
		errs = append(errs, "catalog.interval must be positive")
	}
	if settings.BatchSize < 1 {
		errs = append(errs, "catalog.batchsize must be at least 1")
	}
	return joinErrors("catalog", errs)
}

func validateSamplerSettings(settings *SamplerSettings) error {
	var errs []string

	if settings.Interval <= 0 {
		errs = append(errs, "sampler.interval must be positive")
	}
	if settings.BatchSize < MinSamplerBatchSize || settings.BatchSize > MaxSamplerBatchSize {
		errs = append(errs, fmt.Sprintf("sampler.batchsize must be between %d and %d, got %d",
			MinSamplerBatchSize, MaxSamplerBatchSize, settings.BatchSize))
	}
	if settings.BatchDelay < 0 {
		errs = append(errs, "sampler.batchdelay must not be negative")
	}
	if settings.PageSize < settings.BatchSize {
		errs = append(errs, "sampler.pagesize must be at least sampler.batchsize")
	}
	if settings.LatestTTL <= 0 {
		errs = append(errs, "sampler.latestttl must be positive")
	}

	return joinErrors("sampler", errs)
}

func validateCrowdSettings(settings *CrowdSettings) error {
	var errs []string

	if settings.WindowDays < 1 {
		errs = append(errs, "crowd.windowdays must be at least 1")
	}
	if settings.Percentile <= 0 || settings.Percentile > 100 {
		errs = append(errs, fmt.Sprintf("crowd.percentile must be in (0, 100], got %g", settings.Percentile))
	}
	if settings.MinBuckets < 1 {
		errs = append(errs, "crowd.minbuckets must be at least 1")
	}
	if settings.CacheTTL <= 0 {
		errs = append(errs, "crowd.cachettl must be positive")
	}
	if settings.Timeout <= 0 {
		errs = append(errs, "crowd.timeout must be positive")
	}

	return joinErrors("crowd", errs)
}

func validateServerSettings(settings *ServerSettings) error {
	if !settings.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("server.listen must be host:port, got %q: %w", settings.Listen, err)
	}
	return nil
}

func validateSentrySettings(settings *SentrySettings) error {
	if settings.Enabled && settings.DSN == "" {
		return fmt.Errorf("sentry.dsn is required when sentry is enabled")
	}
	return nil
}

// joinErrors folds a section's messages into one error
func joinErrors(section string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s settings: %s", section, strings.Join(errs, "; "))
}
