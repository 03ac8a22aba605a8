package common

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"math"
)

// ManhattanDegrees is |Δlat| + |Δlng|, in degrees.
// It is not a distance. It is only good for ranking candidates
// that are already near each other, which is all nearest-point lookups need.
func ManhattanDegrees(a, b orb.Point) float64 {
	return math.Abs(a.Lat()-b.Lat()) + math.Abs(a.Lon()-b.Lon())
}

// Heading returns the initial great-circle bearing from a to b,
// normalized to [0, 360). Identical points have heading 0.
func Heading(a, b orb.Point) float64 {
	if a.Equal(b) {
		return 0
	}
	h := math.Mod(geo.Bearing(a, b)+360, 360)
	if h == 360 {
		h = 0
	}
	return h
}

// HaversineKm returns the haversine distance between a and b in kilometers.
func HaversineKm(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b) / 1000
}

// ValidLatLng reports whether lat/lng are finite and within WGS84 bounds.
func ValidLatLng(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
