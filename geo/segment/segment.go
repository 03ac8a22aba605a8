// Package segment splits a trail into drawable runs around tracking gaps.
package segment

import (
	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/types/locpoint"
)

// Segments is a trail decomposed around its gap markers.
// Active runs are at least 2 points long.
// Each gap edge joins the last live point before a gap marker to the marker.
type Segments struct {
	Active [][]locpoint.LocationPoint  `json:"active"`
	Gaps   [][2]locpoint.LocationPoint `json:"gaps"`
}

// Segment scans points once, in order.
//
// A gap marker closes the current run, which is kept only if it has at least
// 2 points, and records a gap edge when a live point precedes the marker in that run.
// A trailing run is closed the same way.
// When the scan yields nothing drawable but there are at least 2 points,
// the whole trail is one active run: real data is never silently discarded.
func Segment(points []locpoint.LocationPoint) Segments {
	s := Segments{
		Active: [][]locpoint.LocationPoint{},
		Gaps:   [][2]locpoint.LocationPoint{},
	}
	var run []locpoint.LocationPoint
	closeRun := func() {
		if len(run) >= 2 {
			s.Active = append(s.Active, run)
		}
		run = nil
	}
	for _, p := range points {
		if !p.IsGap() {
			run = append(run, p)
			continue
		}
		if len(run) > 0 {
			s.Gaps = append(s.Gaps, [2]locpoint.LocationPoint{run[len(run)-1], p})
		}
		closeRun()
	}
	closeRun()

	if len(s.Active) == 0 && len(s.Gaps) == 0 && len(points) >= 2 {
		whole := make([]locpoint.LocationPoint, len(points))
		copy(whole, points)
		s.Active = append(s.Active, whole)
	}
	return s
}

// ActivePoints counts the points across all active runs.
func (s Segments) ActivePoints() int {
	n := 0
	for _, run := range s.Active {
		n += len(run)
	}
	return n
}

// LineStrings returns the active runs as line geometries.
func (s Segments) LineStrings() []orb.LineString {
	out := make([]orb.LineString, 0, len(s.Active))
	for _, run := range s.Active {
		out = append(out, locpoint.LineString(run))
	}
	return out
}

// GapLines returns the distinct gap edges as two-point line geometries.
// Repeated markers produce repeated edges; only the first is kept.
func (s Segments) GapLines() []orb.LineString {
	out := make([]orb.LineString, 0, len(s.Gaps))
	seen := map[[2]orb.Point]bool{}
	for _, g := range s.Gaps {
		k := [2]orb.Point{g[0].Point(), g[1].Point()}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, orb.LineString{k[0], k[1]})
	}
	return out
}
