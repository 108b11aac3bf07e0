// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation type constants used across metrics.
const (
	// OpCatalogSync represents catalog synchronization runs.
	OpCatalogSync = "catalog_sync"
	// OpSampleRun represents queue-time sampling runs.
	OpSampleRun = "sample_run"
	// OpParkSample represents sampling of a single park.
	OpParkSample = "park_sample"
	// OpCrowdCompute represents crowd level computations.
	OpCrowdCompute = "crowd_compute"
	// OpBaseline represents historical baseline queries.
	OpBaseline = "baseline"
	// OpCacheGet represents cache get operations.
	OpCacheGet = "cache_get"
	// OpCacheSet represents cache set operations.
	OpCacheSet = "cache_set"
	// OpCacheDelete represents cache delete operations.
	OpCacheDelete = "cache_delete"
	// OpCacheClear represents cache clear operations.
	OpCacheClear = "cache_clear"
)

// Label value constants used for metric labels.
const (
	// StatusSuccess marks a successful operation.
	StatusSuccess = "success"
	// StatusError marks a failed operation.
	StatusError = "error"
	// StatusSkipped marks an operation that did not run.
	StatusSkipped = "skipped"

	// ResultHit is the cache result label for hits.
	ResultHit = "hit"
	// ResultMiss is the cache result label for misses.
	ResultMiss = "miss"

	// KindGroups is the row kind label for park groups.
	KindGroups = "groups"
	// KindParks is the row kind label for parks.
	KindParks = "parks"

	// ModeSingle is the crowd computation mode for one park.
	ModeSingle = "single"
	// ModeBatch is the crowd computation mode with preloaded samples.
	ModeBatch = "batch"
	// ModeTimeout is the crowd computation mode bounded by a deadline.
	ModeTimeout = "timeout"
)

// Histogram bucket configuration constants.
// These define the base values and factors for exponential bucket generation.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart100ms is the starting bucket for 100ms histograms (100ms to ~100s range).
	BucketStart100ms = 0.1
	// BucketStart1s is the starting bucket for 1s histograms (1s to ~9 hours range).
	BucketStart1s = 1.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15

	// CrowdLevelBucketWidth is the width of each crowd level histogram bucket.
	CrowdLevelBucketWidth = 25.0
	// CrowdLevelBucketCount covers levels 0 to 275.
	CrowdLevelBucketCount = 12
)

// Time and conversion constants.
const (
	// ShutdownTimeout is the timeout for graceful shutdown operations.
	ShutdownTimeout = 5 * time.Second
)
