package entities

import "time"

// QueueTimeSample is one immutable wait-time observation for a ride.
// LastUpdated is the feed's timestamp, RecordedAt the ingestion time; both UTC.
type QueueTimeSample struct {
	ID          uint      `gorm:"primaryKey"`
	RideID      uint      `gorm:"not null;uniqueIndex:idx_sample_dedup,priority:1;index:idx_sample_ride_time,priority:1"`
	LastUpdated time.Time `gorm:"not null;uniqueIndex:idx_sample_dedup,priority:2;index:idx_sample_ride_time,priority:2"`
	WaitTime    int       `gorm:"not null;uniqueIndex:idx_sample_dedup,priority:3"`
	IsOpen      bool      `gorm:"not null"`
	RecordedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (QueueTimeSample) TableName() string {
	return "queue_time_samples"
}

// All returns every entity in migration order.
func All() []any {
	return []any{
		&ParkGroup{},
		&Park{},
		&ThemeArea{},
		&Ride{},
		&QueueTimeSample{},
	}
}
