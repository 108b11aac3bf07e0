package cache

import (
	"strconv"
	"strings"
	"time"
)

const (
	latestRidePrefix    = "latest:ride:"
	crowdBaselinePrefix = "crowd:baseline:"
)

// LatestSample is the cached projection of the newest stored sample of a ride.
type LatestSample struct {
	RideID      uint      `json:"ride_id"`
	WaitTime    int       `json:"wait_time"`
	IsOpen      bool      `json:"is_open"`
	LastUpdated time.Time `json:"last_updated"`
}

// LatestRideKey returns the key of the latest-sample projection of a ride.
func LatestRideKey(rideID uint) string {
	return latestRidePrefix + strconv.FormatUint(uint64(rideID), 10)
}

// CrowdBaselineKey returns the key of a cached crowd baseline for the given
// UTC day and ride set. rideIDs must be sorted ascending.
func CrowdBaselineKey(day time.Time, rideIDs []uint) string {
	var b strings.Builder
	b.WriteString(crowdBaselinePrefix)
	b.WriteString(day.UTC().Format(time.DateOnly))
	b.WriteByte(':')
	for i, id := range rideIDs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	return b.String()
}
