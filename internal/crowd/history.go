package crowd

import (
	"context"
	"math"
	"time"

	"github.com/tphakala/parkpulse/internal/cache"
)

// baselineStats is the cached outcome of the historical scans of one ride set.
type baselineStats struct {
	Baseline   float64 `json:"baseline"`
	Confidence int     `json:"confidence"`
	Buckets    int     `json:"buckets"`
	Samples    int64   `json:"samples"`
}

const (
	minConfidence  = 10
	maxConfidence  = 100
	coverageWeight = 0.7
	densityWeight  = 0.3
	hoursPerDay    = 24
	percentToRatio = 100
)

// history returns the baseline and confidence of the ride set, from the cache
// when present. Concurrent misses for the same key share one scan.
func (e *Engine) history(ctx context.Context, rideIDs []uint, now time.Time) (baselineStats, error) {
	key := cache.CrowdBaselineKey(now, rideIDs)

	if e.cache != nil {
		var cached baselineStats
		found, err := cache.GetJSON(ctx, e.cache, key, &cached)
		if err != nil {
			crowdLogger.Warn("Baseline cache read failed, computing uncached", "key", key, "error", err)
		} else if found {
			e.recordCache(true)
			return cached, nil
		}
		e.recordCache(false)
	}

	// the scan is shared, so one caller giving up must not fail the others
	scanCtx := context.WithoutCancel(ctx)
	v, err, shared := e.flight.Do(key, func() (any, error) {
		stats, err := e.scanHistory(scanCtx, rideIDs, now)
		if err != nil {
			return baselineStats{}, err
		}
		if e.cache != nil {
			if err := cache.SetJSON(scanCtx, e.cache, key, stats, e.config.CacheTTL); err != nil {
				crowdLogger.Warn("Failed to cache baseline", "key", key, "error", err)
			}
		}
		return stats, nil
	})
	if err != nil {
		return baselineStats{}, err
	}
	if shared {
		crowdLogger.Debug("Baseline scan shared with concurrent caller", "key", key)
	}
	return v.(baselineStats), nil
}

// scanHistory runs the bucket and coverage queries over the trailing window.
func (e *Engine) scanHistory(ctx context.Context, rideIDs []uint, now time.Time) (baselineStats, error) {
	start := time.Now()
	since := now.Add(-time.Duration(e.config.WindowDays) * hoursPerDay * time.Hour)

	buckets, err := e.samples.HourlyAverages(ctx, rideIDs, since)
	if err != nil {
		return baselineStats{}, err
	}
	coverage, err := e.samples.CoverageStats(ctx, rideIDs, since)
	if err != nil {
		return baselineStats{}, err
	}

	stats := baselineStats{
		Buckets: len(buckets),
		Samples: coverage.Count,
	}
	if len(buckets) >= e.config.MinBuckets {
		stats.Baseline = Percentile(buckets, e.config.Percentile)
	}
	stats.Confidence = confidence(coverage.First, coverage.Last, coverage.Count, len(rideIDs), e.config.WindowDays)

	crowdLogger.Debug("Historical scan completed",
		"rides", len(rideIDs),
		"buckets", stats.Buckets,
		"samples", stats.Samples,
		"baseline", stats.Baseline,
		"confidence", stats.Confidence,
		"duration_ms", time.Since(start).Milliseconds())
	return stats, nil
}

// confidence scores how well the history backs a computation, from 10 to 100.
// Coverage is the span of history relative to the window; density is the
// sample count relative to one sample per ride per hour.
func confidence(first, last time.Time, count int64, rides, windowDays int) int {
	if count == 0 || rides == 0 || windowDays <= 0 {
		return minConfidence
	}

	days := last.Sub(first).Hours() / hoursPerDay
	coverage := min(percentToRatio, days/float64(windowDays)*percentToRatio)
	expected := float64(windowDays) * hoursPerDay * float64(rides)
	density := min(percentToRatio, float64(count)/expected*percentToRatio)

	score := int(math.Round(coverageWeight*coverage + densityWeight*density))
	return min(max(score, minConfidence), maxConfidence)
}
