package geo

import (
	"math"
	"testing"

	"terraclaim/internal/model"
)

// One degree of latitude on the sphere used by the distance functions.
const metersPerDegreeLat = math.Pi * earthRadiusMeters / 180

func TestHaversineDistanceZero(t *testing.T) {
	if d := HaversineDistance(52.52, 13.405, 52.52, 13.405); d != 0 {
		t.Errorf("distance to itself = %v, want 0", d)
	}
}

func TestHaversineDistanceOneDegreeLat(t *testing.T) {
	got := HaversineDistance(52.0, 13.405, 53.0, 13.405)
	if math.Abs(got-metersPerDegreeLat) > 50 {
		t.Errorf("one degree of latitude = %v m, want about %v m", got, metersPerDegreeLat)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := model.GeoPoint{Latitude: 52.52, Longitude: 13.405}
	b := model.GeoPoint{Latitude: 52.53, Longitude: 13.415}
	if d1, d2 := Distance(a, b), Distance(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance not symmetric: %v vs %v", d1, d2)
	}
}

func TestRingAreaDegenerate(t *testing.T) {
	if a := RingArea(nil); a != 0 {
		t.Errorf("empty ring area = %v, want 0", a)
	}
	two := []model.GeoPoint{{Latitude: 1, Longitude: 1}, {Latitude: 2, Longitude: 2}}
	if a := RingArea(two); a != 0 {
		t.Errorf("two-point ring area = %v, want 0", a)
	}
}

func TestRingAreaSquare(t *testing.T) {
	// Roughly 100m x 100m near the equator, not explicitly closed.
	const step = 100 / metersPerDegreeLat
	ring := []model.GeoPoint{
		{Latitude: 0, Longitude: 0},
		{Latitude: 0, Longitude: step},
		{Latitude: step, Longitude: step},
		{Latitude: step, Longitude: 0},
	}

	got := RingArea(ring)
	if got < 9000 || got > 11000 {
		t.Errorf("square area = %v m2, want about 10000", got)
	}

	// Winding direction must not flip the sign.
	reversed := []model.GeoPoint{ring[3], ring[2], ring[1], ring[0]}
	if a := RingArea(reversed); math.Abs(a-got) > 1 {
		t.Errorf("reversed winding area = %v, want %v", a, got)
	}
}

func TestBoundingBox(t *testing.T) {
	points := []model.GeoPoint{
		{Latitude: 10, Longitude: 20},
		{Latitude: -5, Longitude: 25},
		{Latitude: 7, Longitude: 15},
	}

	b := BoundingBox(points)
	if b.Min[0] != 15 || b.Max[0] != 25 {
		t.Errorf("longitude bound = [%v, %v], want [15, 25]", b.Min[0], b.Max[0])
	}
	if b.Min[1] != -5 || b.Max[1] != 10 {
		t.Errorf("latitude bound = [%v, %v], want [-5, 10]", b.Min[1], b.Max[1])
	}
}
