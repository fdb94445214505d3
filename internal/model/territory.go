package model

import (
	"encoding/json"
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"gorm.io/gorm"
)

// TerritoryPG model for PostgreSQL storage. The ring is stored as a JSON
// array of [lon, lat] pairs, first == last.
type TerritoryPG struct {
	ID        string  `gorm:"primaryKey"`
	OwnerID   string  `gorm:"size:64;not null;index;uniqueIndex:idx_owner_started,priority:1"`
	Ring      string  `gorm:"type:text;not null"`
	AreaM2    float64 `gorm:"not null"`
	StartedAt time.Time `gorm:"not null;uniqueIndex:idx_owner_started,priority:2"`

	UpdatedAt time.Time      `gorm:"column:updated_at"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// TableName overrides the table name
func (TerritoryPG) TableName() string {
	return "territories"
}

// Territory in-memory model. Immutable once loaded; collision checks only
// ever read it.
type Territory struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Ring      []GeoPoint `json:"ring"`
	AreaM2    float64   `json:"area_m2"`
	StartedAt time.Time `json:"started_at"`
	CreatedAt time.Time `json:"created_at"`

	// Cached geometry for quick checks
	Polygon     *orb.Polygon `json:"-"`
	BoundingBox *orb.Bound   `json:"-"`
}

// BuildGeometry fills the cached orb polygon and bounding box from the ring.
func (t *Territory) BuildGeometry() {
	ring := make(orb.Ring, len(t.Ring))
	for i, p := range t.Ring {
		ring[i] = orb.Point{p.Longitude, p.Latitude}
	}
	polygon := orb.Polygon{ring}
	bound := polygon.Bound()
	t.Polygon = &polygon
	t.BoundingBox = &bound
}

// TerritoryFromPG creates a Territory from TerritoryPG.
func TerritoryFromPG(pg *TerritoryPG) (*Territory, error) {
	var pairs [][2]float64
	if err := json.Unmarshal([]byte(pg.Ring), &pairs); err != nil {
		return nil, err
	}

	ring := make([]GeoPoint, len(pairs))
	for i, pair := range pairs {
		ring[i] = GeoPoint{Latitude: pair[1], Longitude: pair[0]}
	}

	t := &Territory{
		ID:        pg.ID,
		OwnerID:   pg.OwnerID,
		Ring:      ring,
		AreaM2:    pg.AreaM2,
		StartedAt: pg.StartedAt,
		CreatedAt: pg.CreatedAt,
	}
	t.BuildGeometry()
	return t, nil
}

// ToPG converts the in-memory territory to its PostgreSQL form.
func (t *Territory) ToPG() (*TerritoryPG, error) {
	pairs := make([][2]float64, len(t.Ring))
	for i, p := range t.Ring {
		pairs[i] = [2]float64{p.Longitude, p.Latitude}
	}
	ringJSON, err := json.Marshal(pairs)
	if err != nil {
		return nil, err
	}

	return &TerritoryPG{
		ID:        t.ID,
		OwnerID:   t.OwnerID,
		Ring:      string(ringJSON),
		AreaM2:    t.AreaM2,
		StartedAt: t.StartedAt,
		CreatedAt: t.CreatedAt,
	}, nil
}

// TerritorySpatial wraps a territory for R-tree indexing.
type TerritorySpatial struct {
	Territory *Territory
}

// Bounds implements the rtreego.Spatial interface
func (s *TerritorySpatial) Bounds() rtreego.Rect {
	// Convert orb.Bound to rtreego.Rect format
	minX, minY := s.Territory.BoundingBox.Min[0], s.Territory.BoundingBox.Min[1]
	maxX, maxY := s.Territory.BoundingBox.Max[0], s.Territory.BoundingBox.Max[1]

	rect, _ := rtreego.NewRect(
		rtreego.Point{minX, minY},
		[]float64{maxX - minX, maxY - minY},
	)

	return rect
}
