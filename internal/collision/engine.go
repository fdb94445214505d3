package collision

import (
	"math"

	"terraclaim/internal/geo"
	"terraclaim/internal/model"
)

// CollisionKind classifies how a candidate point or path conflicts with a
// foreign territory.
type CollisionKind int

const (
	KindNone CollisionKind = iota
	KindPointInTerritory
	KindPathCrossesBoundary
)

func (k CollisionKind) String() string {
	switch k {
	case KindPointInTerritory:
		return "point_in_territory"
	case KindPathCrossesBoundary:
		return "path_crosses_boundary"
	default:
		return "none"
	}
}

// WarningLevel is the graduated proximity classification, monotonically
// determined by distance to the nearest foreign territory.
type WarningLevel int

const (
	LevelSafe WarningLevel = iota
	LevelCaution
	LevelWarning
	LevelDanger
	LevelViolation
)

func (l WarningLevel) String() string {
	switch l {
	case LevelCaution:
		return "caution"
	case LevelWarning:
		return "warning"
	case LevelDanger:
		return "danger"
	case LevelViolation:
		return "violation"
	default:
		return "safe"
	}
}

// Distance tiers in meters for the graduated warnings. The caution bound is
// inclusive: exactly 100 m still classifies caution, safe starts strictly
// beyond it.
const (
	CautionDistanceMeters = 100
	WarningDistanceMeters = 50
	DangerDistanceMeters  = 25
)

// CollisionResult is the transient outcome of a single check. Recomputed on
// every call, never persisted.
type CollisionResult struct {
	HasCollision    bool          `json:"has_collision"`
	Kind            CollisionKind `json:"kind"`
	Message         string        `json:"message"`
	NearestDistance float64       `json:"nearest_distance_m"`
	WarningLevel    WarningLevel  `json:"warning_level"`
}

// PointInPolygon applies the even-odd ray-casting rule. Rings with fewer
// than 3 vertices never contain anything. An edge is counted when exactly
// one endpoint is strictly above the ray, so a ray through a shared vertex
// toggles once instead of twice.
func PointInPolygon(point model.GeoPoint, ring []model.GeoPoint) bool {
	if len(ring) < 3 {
		return false
	}

	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		pi, pj := ring[i], ring[j]
		if (pi.Latitude > point.Latitude) != (pj.Latitude > point.Latitude) {
			crossLng := (pj.Longitude-pi.Longitude)*(point.Latitude-pi.Latitude)/
				(pj.Latitude-pi.Latitude) + pi.Longitude
			if point.Longitude < crossLng {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// SegmentsIntersect reports whether segments a1-a2 and b1-b2 cross, using
// the counter-clockwise orientation predicate on the two endpoint pairs.
// Collinear overlap is not detected; the warning tiers absorb the gap.
func SegmentsIntersect(a1, a2, b1, b2 model.GeoPoint) bool {
	d1 := ccw(a1, b1, b2)
	d2 := ccw(a2, b1, b2)
	d3 := ccw(b1, a1, a2)
	d4 := ccw(b2, a1, a2)
	return d1 != d2 && d3 != d4
}

func ccw(a, b, c model.GeoPoint) bool {
	return (c.Latitude-a.Latitude)*(b.Longitude-a.Longitude) >
		(b.Latitude-a.Latitude)*(c.Longitude-a.Longitude)
}

// CheckPointCollision reports whether the point lies inside any territory
// not owned by excludingOwner.
func CheckPointCollision(point model.GeoPoint, territories []*model.Territory, excludingOwner string) CollisionResult {
	for _, t := range territories {
		if t.OwnerID == excludingOwner {
			continue
		}
		if PointInPolygon(point, t.Ring) {
			return CollisionResult{
				HasCollision: true,
				Kind:         KindPointInTerritory,
				Message:      "You are inside territory owned by another player",
				WarningLevel: LevelViolation,
			}
		}
	}
	return CollisionResult{Kind: KindNone, WarningLevel: LevelSafe}
}

// CheckPathCrossing tests every consecutive path edge against every edge of
// every foreign territory ring, and each edge endpoint for containment.
// First match wins.
func CheckPathCrossing(path model.Path, territories []*model.Territory, excludingOwner string) CollisionResult {
	for i := 1; i < len(path); i++ {
		a1, a2 := path[i-1], path[i]
		for _, t := range territories {
			if t.OwnerID == excludingOwner {
				continue
			}
			ring := t.Ring
			for j := 1; j < len(ring); j++ {
				if SegmentsIntersect(a1, a2, ring[j-1], ring[j]) {
					return CollisionResult{
						HasCollision: true,
						Kind:         KindPathCrossesBoundary,
						Message:      "Your path crosses another player's boundary",
						WarningLevel: LevelViolation,
					}
				}
			}
			if PointInPolygon(a2, ring) {
				return CollisionResult{
					HasCollision: true,
					Kind:         KindPointInTerritory,
					Message:      "Your path enters territory owned by another player",
					WarningLevel: LevelViolation,
				}
			}
		}
	}
	return CollisionResult{Kind: KindNone, WarningLevel: LevelSafe}
}

// NearestDistance returns the minimum great-circle distance in meters from
// the point to any vertex of any foreign territory. Vertex-only on purpose:
// the warning thresholds were tuned against this approximation, and true
// point-to-edge distance would shift every tier boundary.
func NearestDistance(point model.GeoPoint, territories []*model.Territory, excludingOwner string) float64 {
	nearest := math.Inf(1)
	for _, t := range territories {
		if t.OwnerID == excludingOwner {
			continue
		}
		for _, v := range t.Ring {
			if d := geo.Distance(point, v); d < nearest {
				nearest = d
			}
		}
	}
	return nearest
}

// Classify is the primary entry point for an active claim: a hard violation
// short-circuits, otherwise the path endpoint's nearest distance maps onto
// the graduated warning tiers. Pure given its inputs; safe to call
// concurrently against a snapshot that is replaced between calls.
func Classify(path model.Path, territories []*model.Territory, excludingOwner string) CollisionResult {
	if crossing := CheckPathCrossing(path, territories, excludingOwner); crossing.HasCollision {
		return crossing
	}

	endpoint, ok := path.Last()
	if !ok {
		return CollisionResult{Kind: KindNone, NearestDistance: math.Inf(1), WarningLevel: LevelSafe}
	}

	nearest := NearestDistance(endpoint, territories, excludingOwner)
	level, message := levelForDistance(nearest)
	return CollisionResult{
		Kind:            KindNone,
		Message:         message,
		NearestDistance: nearest,
		WarningLevel:    level,
	}
}

// levelForDistance maps a nearest-territory distance onto the warning tiers.
func levelForDistance(nearest float64) (WarningLevel, string) {
	switch {
	case nearest < DangerDistanceMeters:
		return LevelDanger, "Danger: another player's territory is right next to you"
	case nearest < WarningDistanceMeters:
		return LevelWarning, "Warning: approaching another player's territory"
	case nearest <= CautionDistanceMeters:
		return LevelCaution, "Caution: another player's territory is nearby"
	default:
		return LevelSafe, ""
	}
}
