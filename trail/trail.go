package trail

import (
	"github.com/rotblauer/trailplay/conceptual"
	"github.com/rotblauer/trailplay/types/locpoint"
	"slices"
	"time"
)

// Trail is the ordered breadcrumbs of one route.
type Trail struct {
	RouteID conceptual.RouteID       `json:"routeId"`
	Points  []locpoint.LocationPoint `json:"points"`
}

func (t *Trail) Len() int {
	return len(t.Points)
}

// Playable reports whether the trail has enough points to animate.
func (t *Trail) Playable() bool {
	return len(t.Points) >= 2
}

// Sort returns a copy of points ordered by timestamp.
// The sort is stable. Points with unparsed timestamps keep their relative
// order and go after every parseable one.
func Sort(points []locpoint.LocationPoint) []locpoint.LocationPoint {
	type keyed struct {
		p  locpoint.LocationPoint
		t  time.Time
		ok bool
	}
	ks := make([]keyed, len(points))
	for i, p := range points {
		t, err := p.Time()
		ks[i] = keyed{p: p, t: t, ok: err == nil}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int {
		switch {
		case a.ok && b.ok:
			return a.t.Compare(b.t)
		case a.ok:
			return -1
		case b.ok:
			return 1
		}
		return 0
	})
	out := make([]locpoint.LocationPoint, len(ks))
	for i, k := range ks {
		out[i] = k.p
	}
	return out
}

// Group splits points into sorted trails, one per route,
// in order of each route's first appearance.
func Group(points []locpoint.LocationPoint) []*Trail {
	var out []*Trail
	index := map[conceptual.RouteID]*Trail{}
	for _, p := range points {
		id := p.RouteID.OrDefault()
		t, ok := index[id]
		if !ok {
			t = &Trail{RouteID: id}
			index[id] = t
			out = append(out, t)
		}
		t.Points = append(t.Points, p)
	}
	for _, t := range out {
		t.Points = Sort(t.Points)
	}
	return out
}

// Routes lists route IDs in order of first appearance.
func Routes(points []locpoint.LocationPoint) []conceptual.RouteID {
	seen := map[conceptual.RouteID]bool{}
	var out []conceptual.RouteID
	for _, p := range points {
		id := p.RouteID.OrDefault()
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Find returns the trail for a route, or nil.
func Find(trails []*Trail, id conceptual.RouteID) *Trail {
	for _, t := range trails {
		if t.RouteID == id {
			return t
		}
	}
	return nil
}

// Query selects points. Zero values match everything.
// Start and End are inclusive.
type Query struct {
	RouteID conceptual.RouteID
	Start   time.Time
	End     time.Time
}

func (q Query) timeBound() bool {
	return !q.Start.IsZero() || !q.End.IsZero()
}

// Match reports whether p satisfies the query.
// Points with unparsed timestamps never match a time-bound query.
func (q Query) Match(p locpoint.LocationPoint) bool {
	if !q.RouteID.IsEmpty() && p.RouteID.OrDefault() != q.RouteID {
		return false
	}
	if !q.timeBound() {
		return true
	}
	t, err := p.Time()
	if err != nil {
		return false
	}
	if !q.Start.IsZero() && t.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && t.After(q.End) {
		return false
	}
	return true
}

// Filter returns the points matching q, in input order.
func Filter(points []locpoint.LocationPoint, q Query) []locpoint.LocationPoint {
	out := make([]locpoint.LocationPoint, 0, len(points))
	for _, p := range points {
		if q.Match(p) {
			out = append(out, p)
		}
	}
	return out
}
