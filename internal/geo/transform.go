package geo

import (
	"math"

	"terraclaim/internal/model"
)

// Conversion from WGS-84 satellite coordinates to the GCJ-02 frame used by
// map and places providers inside mainland China. The distortion polynomial
// is the published reference algorithm and must not be re-derived: both sides
// of a comparison have to agree bit-for-bit on where a point lands.

const (
	// Krasovsky 1940 ellipsoid
	semiMajorAxis = 6378245.0
	eccentricity2 = 0.00669342162296594323
)

// InTransformRegion reports whether the point falls inside the bounding box
// where the GCJ-02 offset applies. Outside it, coordinates pass through
// unchanged.
func InTransformRegion(p model.GeoPoint) bool {
	return p.Longitude >= 72.004 && p.Longitude <= 137.8347 &&
		p.Latitude >= 0.8293 && p.Latitude <= 55.8271
}

// ToLocalProjection converts a WGS-84 coordinate to the provider projection.
// Pure function; returns the input unchanged outside the affected region.
func ToLocalProjection(p model.GeoPoint) model.GeoPoint {
	if !InTransformRegion(p) {
		return p
	}

	dLat := transformLat(p.Longitude-105.0, p.Latitude-35.0)
	dLng := transformLng(p.Longitude-105.0, p.Latitude-35.0)

	radLat := p.Latitude / 180.0 * math.Pi
	magic := math.Sin(radLat)
	magic = 1 - eccentricity2*magic*magic
	sqrtMagic := math.Sqrt(magic)

	dLat = (dLat * 180.0) / ((semiMajorAxis * (1 - eccentricity2)) / (magic * sqrtMagic) * math.Pi)
	dLng = (dLng * 180.0) / (semiMajorAxis / sqrtMagic * math.Cos(radLat) * math.Pi)

	return model.GeoPoint{
		Latitude:  p.Latitude + dLat,
		Longitude: p.Longitude + dLng,
	}
}

// ToLocalProjectionAll maps a sequence with the per-element rule, preserving
// order.
func ToLocalProjectionAll(points []model.GeoPoint) []model.GeoPoint {
	out := make([]model.GeoPoint, len(points))
	for i, p := range points {
		out[i] = ToLocalProjection(p)
	}
	return out
}

func transformLat(x, y float64) float64 {
	ret := -100.0 + 2.0*x + 3.0*y + 0.2*y*y + 0.1*x*y + 0.2*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(y*math.Pi) + 40.0*math.Sin(y/3.0*math.Pi)) * 2.0 / 3.0
	ret += (160.0*math.Sin(y/12.0*math.Pi) + 320.0*math.Sin(y*math.Pi/30.0)) * 2.0 / 3.0
	return ret
}

func transformLng(x, y float64) float64 {
	ret := 300.0 + x + 2.0*y + 0.1*x*x + 0.1*x*y + 0.1*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(x*math.Pi) + 40.0*math.Sin(x/3.0*math.Pi)) * 2.0 / 3.0
	ret += (150.0*math.Sin(x/12.0*math.Pi) + 300.0*math.Sin(x/30.0*math.Pi)) * 2.0 / 3.0
	return ret
}
