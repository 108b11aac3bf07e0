// Package cache provides the result cache used for latest-sample projections
// and crowd baselines. Backends are selected by configuration: an in-process
// memory cache, a persistent badger store, or a NATS JetStream key-value
// bucket shared between instances.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/tphakala/parkpulse/internal/conf"
	"github.com/tphakala/parkpulse/internal/errors"
	"github.com/tphakala/parkpulse/internal/logging"
	"github.com/tphakala/parkpulse/internal/observability/metrics"
)

// Backend names accepted in cache.backend.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendNATS   = "nats"
)

const (
	serviceName       = "cache"
	fallbackTTL       = 10 * time.Minute
	fallbackSweepTime = 5 * time.Minute
)

var (
	cacheLogger   *slog.Logger
	cacheLevelVar = new(slog.LevelVar)
)

func init() {
	cacheLevelVar.Set(slog.LevelInfo)
	cacheLogger = logging.NewServiceLogger(serviceName, cacheLevelVar)
}

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.NewStd("cache is closed")

// Cache stores opaque values with a per-entry TTL.
// A ttl of zero or less uses the backend's default TTL.
type Cache interface {
	// Get returns the value and true, or false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Close releases backend resources.
	Close() error
	// Backend returns the backend name.
	Backend() string
}

// New creates the cache backend selected in settings.
func New(ctx context.Context, settings *conf.CacheSettings) (Cache, error) {
	if settings == nil {
		return nil, errors.Newf("cache settings are nil").
			Component(serviceName).
			Category(errors.CategoryConfiguration).
			Build()
	}

	defaultTTL := settings.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = fallbackTTL
	}

	var (
		c   Cache
		err error
	)
	switch settings.Backend {
	case BackendMemory, "":
		sweep := settings.CleanupInterval
		if sweep <= 0 {
			sweep = fallbackSweepTime
		}
		c = NewMemory(defaultTTL, sweep)
	case BackendBadger:
		c, err = NewBadger(settings.Badger.Path, settings.Badger.InMemory, defaultTTL)
	case BackendNATS:
		c, err = NewNATS(ctx, settings.NATS.URL, settings.NATS.Bucket, defaultTTL)
	default:
		return nil, errors.Newf("unsupported cache backend %q", settings.Backend).
			Component(serviceName).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		return nil, err
	}

	cacheLogger.Info("Cache initialized", "backend", c.Backend(), "default_ttl", defaultTTL)
	return c, nil
}

// GetJSON reads key and decodes it into dest. Returns false on a miss.
// An entry that fails to decode is deleted and reported as a miss.
func GetJSON(ctx context.Context, c Cache, key string, dest any) (bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		cacheLogger.Warn("Dropping undecodable cache entry", "key", key, "backend", c.Backend(), "error", err)
		_ = c.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON encodes value as JSON and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.New(err).
			Component(serviceName).
			Category(errors.CategoryCache).
			Context("operation", "marshal").
			Context("key", key).
			Build()
	}
	return c.Set(ctx, key, data, ttl)
}

// backendError wraps a backend failure with cache context.
func backendError(err error, backend, operation string) error {
	return errors.New(err).
		Component(serviceName).
		Category(errors.CategoryCache).
		Context("backend", backend).
		Context("operation", operation).
		Build()
}

// instrumented records every operation of the wrapped cache.
type instrumented struct {
	Cache
	metrics *metrics.CacheMetrics
}

// WithMetrics wraps c so that each operation is recorded in m.
// A nil m returns c unchanged.
func WithMetrics(c Cache, m *metrics.CacheMetrics) Cache {
	if m == nil {
		return c
	}
	return &instrumented{Cache: c, metrics: m}
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	v, ok, err := i.Cache.Get(ctx, key)
	result := metrics.ResultMiss
	switch {
	case err != nil:
		result = metrics.StatusError
	case ok:
		result = metrics.ResultHit
	}
	i.metrics.RecordOperation(i.Backend(), metrics.OpCacheGet, result, time.Since(start))
	return v, ok, err
}

func (i *instrumented) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := i.Cache.Set(ctx, key, value, ttl)
	i.metrics.RecordOperation(i.Backend(), metrics.OpCacheSet, statusOf(err), time.Since(start))
	return err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.Cache.Delete(ctx, key)
	i.metrics.RecordOperation(i.Backend(), metrics.OpCacheDelete, statusOf(err), time.Since(start))
	return err
}

func (i *instrumented) Clear(ctx context.Context) error {
	start := time.Now()
	err := i.Cache.Clear(ctx)
	i.metrics.RecordOperation(i.Backend(), metrics.OpCacheClear, statusOf(err), time.Since(start))
	return err
}

func statusOf(err error) string {
	if err != nil {
		return metrics.StatusError
	}
	return metrics.StatusSuccess
}
