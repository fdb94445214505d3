package model

import (
	"time"
)

// GeoPoint is an immutable geographic coordinate (WGS-84 degrees).
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate lies in the representable range.
func (p GeoPoint) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// TimedPoint is a single raw sample from the location source.
// Speed is the device-reported speed in m/s; negative means unknown.
// Accuracy is the horizontal accuracy radius in meters.
type TimedPoint struct {
	GeoPoint
	Timestamp time.Time `json:"timestamp"`
	Speed     float64   `json:"speed"`
	Accuracy  float64   `json:"accuracy"`
}

// Path is the ordered sequence of accepted points of a walked route.
// Append-only while tracking; cleared on session reset.
type Path []GeoPoint

// Origin returns the first point of the path.
func (p Path) Origin() (GeoPoint, bool) {
	if len(p) == 0 {
		return GeoPoint{}, false
	}
	return p[0], true
}

// Last returns the most recent point of the path.
func (p Path) Last() (GeoPoint, bool) {
	if len(p) == 0 {
		return GeoPoint{}, false
	}
	return p[len(p)-1], true
}

// Clone returns an independent copy for handing outside the owning session.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}
