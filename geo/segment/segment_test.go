package segment

import (
	"github.com/rotblauer/trailplay/types/locpoint"
	"testing"
)

func live(id int) locpoint.LocationPoint {
	return locpoint.LocationPoint{ID: id, Lat: float64(id), Lng: float64(id), Flag: locpoint.FlagNormal}
}

func off(id int) locpoint.LocationPoint {
	p := live(id)
	p.LocationProvider = locpoint.ProviderOff
	return p
}

func runIDs(run []locpoint.LocationPoint) []int {
	out := make([]int, len(run))
	for i, p := range run {
		out[i] = p.ID
	}
	return out
}

func TestSegment_NoGaps(t *testing.T) {
	s := Segment([]locpoint.LocationPoint{live(1), live(2), live(3), live(4)})
	if len(s.Active) != 1 || len(s.Active[0]) != 4 {
		t.Fatalf("expected one segment of 4 points, got %v", s.Active)
	}
	if len(s.Gaps) != 0 {
		t.Errorf("expected no gaps, got %d", len(s.Gaps))
	}
}

func TestSegment_Bracketed(t *testing.T) {
	// A(OFF) B C D(OFF) E
	s := Segment([]locpoint.LocationPoint{off(1), live(2), live(3), off(4), live(5)})
	if len(s.Active) != 1 {
		t.Fatalf("expected 1 active segment, got %d", len(s.Active))
	}
	if got := runIDs(s.Active[0]); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("expected active {B,C}, got %v", got)
	}
	if len(s.Gaps) != 1 || s.Gaps[0][0].ID != 3 || s.Gaps[0][1].ID != 4 {
		t.Errorf("expected gap edge [C,D], got %v", s.Gaps)
	}
}

func TestSegment_SingleLivePointBetweenMarkers(t *testing.T) {
	// A(OFF) B C(OFF)
	s := Segment([]locpoint.LocationPoint{off(1), live(2), off(3)})
	if len(s.Active) != 0 {
		t.Errorf("expected zero active segments, got %v", s.Active)
	}
	if len(s.Gaps) != 1 || s.Gaps[0][0].ID != 2 || s.Gaps[0][1].ID != 3 {
		t.Errorf("expected one gap edge [B,C], got %v", s.Gaps)
	}
}

func TestSegment_Fallback(t *testing.T) {
	// Only markers: nothing drawable, but the data is real.
	s := Segment([]locpoint.LocationPoint{off(1), off(2), off(3)})
	if len(s.Active) != 1 || len(s.Active[0]) != 3 {
		t.Errorf("expected whole-trail fallback, got %v", s.Active)
	}
}

func TestSegment_Small(t *testing.T) {
	for _, in := range [][]locpoint.LocationPoint{nil, {live(1)}, {off(1)}} {
		s := Segment(in)
		if len(s.Active) != 0 || len(s.Gaps) != 0 {
			t.Errorf("%v: expected nothing, got %+v", in, s)
		}
	}
}

func TestSegment_MultipleRuns(t *testing.T) {
	s := Segment([]locpoint.LocationPoint{live(1), live(2), off(3), live(4), live(5), live(6)})
	if len(s.Active) != 2 || s.ActivePoints() != 5 {
		t.Fatalf("expected 2 runs with 5 points, got %v", s.Active)
	}
	if len(s.LineStrings()) != 2 || len(s.GapLines()) != 1 {
		t.Errorf("unexpected geometry counts")
	}
}

func TestSegments_GapLinesDistinct(t *testing.T) {
	s := Segments{Gaps: [][2]locpoint.LocationPoint{{live(1), off(2)}, {live(1), off(2)}, {live(3), off(4)}}}
	if got := len(s.GapLines()); got != 2 {
		t.Errorf("expected 2 distinct gap lines, got %d", got)
	}
}
