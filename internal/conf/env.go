// env.go: PARKPULSE_* environment variable bindings.
package conf

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "PARKPULSE_DEBUG", validateEnvBool},

		// Upstream feed
		{"upstream.baseurl", "PARKPULSE_UPSTREAM_BASEURL", validateEnvURL},
		{"upstream.timeout", "PARKPULSE_UPSTREAM_TIMEOUT", validateEnvDuration},
		{"upstream.ratelimit", "PARKPULSE_UPSTREAM_RATELIMIT", validateEnvPositiveFloat},

		// Database
		{"database.type", "PARKPULSE_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.sqlite.path", "PARKPULSE_DATABASE_SQLITE_PATH", nil},
		{"database.mysql.host", "PARKPULSE_DATABASE_MYSQL_HOST", nil},
		{"database.mysql.port", "PARKPULSE_DATABASE_MYSQL_PORT", validateEnvPort},
		{"database.mysql.username", "PARKPULSE_DATABASE_MYSQL_USERNAME", nil},
		{"database.mysql.password", "PARKPULSE_DATABASE_MYSQL_PASSWORD", nil},
		{"database.mysql.database", "PARKPULSE_DATABASE_MYSQL_DATABASE", nil},
		{"database.postgres.host", "PARKPULSE_DATABASE_POSTGRES_HOST", nil},
		{"database.postgres.port", "PARKPULSE_DATABASE_POSTGRES_PORT", validateEnvPort},
		{"database.postgres.username", "PARKPULSE_DATABASE_POSTGRES_USERNAME", nil},
		{"database.postgres.password", "PARKPULSE_DATABASE_POSTGRES_PASSWORD", nil},
		{"database.postgres.database", "PARKPULSE_DATABASE_POSTGRES_DATABASE", nil},

		// Cache
		{"cache.backend", "PARKPULSE_CACHE_BACKEND", validateEnvCacheBackend},
		{"cache.badger.path", "PARKPULSE_CACHE_BADGER_PATH", nil},
		{"cache.nats.url", "PARKPULSE_CACHE_NATS_URL", validateEnvURL},

		// Jobs
		{"sampler.batchsize", "PARKPULSE_SAMPLER_BATCHSIZE", validateEnvSamplerBatchSize},
		{"sampler.interval", "PARKPULSE_SAMPLER_INTERVAL", validateEnvDuration},
		{"catalog.interval", "PARKPULSE_CATALOG_INTERVAL", validateEnvDuration},

		// Server and telemetry
		{"server.listen", "PARKPULSE_SERVER_LISTEN", nil},
		{"sentry.enabled", "PARKPULSE_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "PARKPULSE_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// Environment variable validation functions

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f, TRUE/FALSE, T/F", value)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url must include scheme and host, got '%s'", value)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvPositiveFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f <= 0 {
		return fmt.Errorf("value must be positive, got %g", f)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	if !slices.Contains(validDatabaseTypes, value) {
		return fmt.Errorf("must be one of: %s", strings.Join(validDatabaseTypes, ", "))
	}
	return nil
}

func validateEnvCacheBackend(value string) error {
	if !slices.Contains(validCacheBackends, value) {
		return fmt.Errorf("must be one of: %s", strings.Join(validCacheBackends, ", "))
	}
	return nil
}

func validateEnvSamplerBatchSize(value string) error {
	size, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid batch size: %w", err)
	}
	if size < MinSamplerBatchSize || size > MaxSamplerBatchSize {
		return fmt.Errorf("batch size must be between %d and %d, got %d", MinSamplerBatchSize, MaxSamplerBatchSize, size)
	}
	return nil
}
