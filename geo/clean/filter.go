package clean

import (
	"github.com/paulmach/orb/geo"
	"github.com/rotblauer/trailplay/common"
	"github.com/rotblauer/trailplay/types/locpoint"
)

// FilterValidCoordinates filters out points with non-finite or out-of-range coordinates.
func FilterValidCoordinates(p locpoint.LocationPoint) bool {
	return common.ValidLatLng(p.Lat, p.Lng)
}

// FilterLive filters out tracking gap markers.
func FilterLive(p locpoint.LocationPoint) bool {
	return !p.IsGap()
}

// MinGap drops points closer than meters to the last kept point.
// The first and last points, and key-flagged points, are always kept.
// A non-positive meters disables the filter.
func MinGap(points []locpoint.LocationPoint, meters float64) []locpoint.LocationPoint {
	if meters <= 0 || len(points) <= 2 {
		return points
	}
	out := make([]locpoint.LocationPoint, 0, len(points))
	out = append(out, points[0])
	last := points[0].Point()
	for i := 1; i < len(points)-1; i++ {
		p := points[i]
		if !p.IsKey() && geo.DistanceHaversine(last, p.Point()) < meters {
			continue
		}
		out = append(out, p)
		last = p.Point()
	}
	return append(out, points[len(points)-1])
}
