// Package entities defines the GORM entity models for park catalog and
// wait-time telemetry.
//
// # Catalog Entities
//
//   - ParkGroup: operator groups from the upstream feed (e.g. a resort chain)
//   - Park: individual parks, keyed by the upstream park id
//   - ThemeArea: lands within a park, unique per (external_id, park_id)
//   - Ride: attractions, unique per (external_id, park_id)
//
// # Time-Series Entities
//
//   - QueueTimeSample: immutable wait-time observation. The unique index
//     idx_sample_dedup on (ride_id, last_updated, wait_time) is the
//     deduplication key enforced at write time.
//
// External ids come from the upstream feed and are only unique within their
// scope; every table also carries a surrogate primary key.
package entities
