package model

import (
	"time"

	"github.com/dhconnelly/rtreego"
	"gorm.io/gorm"
)

// POIStatus represents the interaction state of a point of interest
type POIStatus int

const (
	POIStatusUndiscovered POIStatus = iota
	POIStatusDiscovered
	POIStatusLooted
)

// DangerLevel scales the loot quality and trigger feedback of a POI
type DangerLevel int

const (
	DangerLevelLow DangerLevel = iota
	DangerLevelMedium
	DangerLevelHigh
)

// POIPG model for PostgreSQL storage
type POIPG struct {
	ID            string      `gorm:"primaryKey"`
	Name          string      `gorm:"size:255;not null"`
	Category      string      `gorm:"size:50;not null"`
	Lat           float64     `gorm:"not null"`
	Lng           float64     `gorm:"not null"`
	TriggerRadius float64     `gorm:"not null"`
	Danger        DangerLevel `gorm:"not null"`

	UpdatedAt time.Time      `gorm:"column:updated_at"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// TableName overrides the table name
func (POIPG) TableName() string {
	return "pois"
}

// POI in-memory model. Coordinate and radius are read-only; Status is the
// only field a session mutates (discovered -> looted on scavenge).
type POI struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Category      string      `json:"category"`
	Coordinate    GeoPoint    `json:"coordinate"`
	TriggerRadius float64     `json:"trigger_radius"`
	Danger        DangerLevel `json:"danger"`
	Status        POIStatus   `json:"status"`
}

// POIFromPG creates a POI from POIPG.
func POIFromPG(pg *POIPG) *POI {
	return &POI{
		ID:            pg.ID,
		Name:          pg.Name,
		Category:      pg.Category,
		Coordinate:    GeoPoint{Latitude: pg.Lat, Longitude: pg.Lng},
		TriggerRadius: pg.TriggerRadius,
		Danger:        pg.Danger,
		Status:        POIStatusUndiscovered,
	}
}

// ToPG converts the POI to its PostgreSQL form.
func (p *POI) ToPG() *POIPG {
	return &POIPG{
		ID:            p.ID,
		Name:          p.Name,
		Category:      p.Category,
		Lat:           p.Coordinate.Latitude,
		Lng:           p.Coordinate.Longitude,
		TriggerRadius: p.TriggerRadius,
		Danger:        p.Danger,
	}
}

// POISpatial wraps a POI for R-tree indexing.
type POISpatial struct {
	POI *POI
}

// Bounds implements the rtreego.Spatial interface
func (s *POISpatial) Bounds() rtreego.Rect {
	// Points get a degenerate-but-valid rect around the coordinate
	rect, _ := rtreego.NewRect(
		rtreego.Point{s.POI.Coordinate.Longitude, s.POI.Coordinate.Latitude},
		[]float64{0.0001, 0.0001},
	)
	return rect
}
