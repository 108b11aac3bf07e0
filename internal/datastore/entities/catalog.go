package entities

import "time"

// ParkGroup is an operator group owning one or more parks.
type ParkGroup struct {
	ID         uint      `gorm:"primaryKey"`
	ExternalID int       `gorm:"uniqueIndex;not null"`
	Name       string    `gorm:"size:255;not null"`
	Parks      []Park    `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (ParkGroup) TableName() string {
	return "park_groups"
}

// Park is a single theme park.
type Park struct {
	ID         uint   `gorm:"primaryKey"`
	ExternalID int    `gorm:"uniqueIndex;not null"`
	Name       string `gorm:"size:255;not null"`
	Country    string `gorm:"size:100;index"`
	Continent  string `gorm:"size:100"`
	Latitude   float64
	Longitude  float64
	Timezone   string      `gorm:"size:64"`
	GroupID    *uint       `gorm:"index"`
	ThemeAreas []ThemeArea `gorm:"foreignKey:ParkID;constraint:OnDelete:CASCADE"`
	Rides      []Ride      `gorm:"foreignKey:ParkID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time   `gorm:"autoCreateTime"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (Park) TableName() string {
	return "parks"
}

// SameCatalogFields reports whether the feed-owned fields of two parks match.
func (p *Park) SameCatalogFields(other *Park) bool {
	return p.Name == other.Name &&
		p.Country == other.Country &&
		p.Continent == other.Continent &&
		p.Latitude == other.Latitude &&
		p.Longitude == other.Longitude &&
		p.Timezone == other.Timezone &&
		equalUintPtr(p.GroupID, other.GroupID)
}

// ThemeArea is a land inside a park.
type ThemeArea struct {
	ID         uint      `gorm:"primaryKey"`
	ExternalID int       `gorm:"uniqueIndex:idx_area_ext_park;not null"`
	ParkID     uint      `gorm:"uniqueIndex:idx_area_ext_park;not null"`
	Name       string    `gorm:"size:255;not null"`
	Rides      []Ride    `gorm:"foreignKey:ThemeAreaID;constraint:OnDelete:SET NULL"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (ThemeArea) TableName() string {
	return "theme_areas"
}

// Ride is an attraction inside a park. IsActive is cleared when the ride
// disappears from the feed; its samples are kept.
type Ride struct {
	ID          uint              `gorm:"primaryKey"`
	ExternalID  int               `gorm:"uniqueIndex:idx_ride_ext_park;not null"`
	ParkID      uint              `gorm:"uniqueIndex:idx_ride_ext_park;not null;index:idx_ride_park_active,priority:1"`
	ThemeAreaID *uint             `gorm:"index"`
	Name        string            `gorm:"size:255;not null"`
	IsActive    bool              `gorm:"not null;default:true;index:idx_ride_park_active,priority:2"`
	Samples     []QueueTimeSample `gorm:"foreignKey:RideID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time         `gorm:"autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (Ride) TableName() string {
	return "rides"
}

func equalUintPtr(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
