package roadsnap

import (
	"github.com/rotblauer/trailplay/types/locpoint"
	"testing"
)

func genPoints(n int) []locpoint.LocationPoint {
	out := make([]locpoint.LocationPoint, n)
	for i := range out {
		out[i] = locpoint.LocationPoint{
			ID:   i + 1,
			Lat:  45 + float64(i)*0.001,
			Lng:  -93 - float64(i)*0.001,
			Flag: locpoint.FlagNormal,
		}
	}
	return out
}

func TestBatches_250x100(t *testing.T) {
	points := genPoints(250)
	batches := Batches(points, 100)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	for i := 1; i < len(batches); i++ {
		prev := batches[i-1]
		if prev[len(prev)-1].ID != batches[i][0].ID {
			t.Errorf("batch %d does not overlap its predecessor by one point", i)
		}
	}
	for _, b := range batches {
		if len(b) > 100 {
			t.Errorf("batch exceeds cap: %d", len(b))
		}
	}

	// Concatenate, dropping duplicated boundary points.
	var stitched []locpoint.LocationPoint
	for _, b := range batches {
		if len(stitched) > 0 && stitched[len(stitched)-1].ID == b[0].ID {
			b = b[1:]
		}
		stitched = append(stitched, b...)
	}
	if len(stitched) < 250-2 {
		t.Errorf("stitched length %d < %d", len(stitched), 248)
	}
	if stitched[0].Point() != points[0].Point() || stitched[len(stitched)-1].Point() != points[249].Point() {
		t.Error("endpoints not preserved")
	}
}

func TestBatches_Edges(t *testing.T) {
	if got := Batches(genPoints(1), 10); len(got) != 0 {
		t.Errorf("expected no batches for 1 point, got %d", len(got))
	}
	if got := Batches(genPoints(10), 10); len(got) != 1 || len(got[0]) != 10 {
		t.Errorf("expected one full batch, got %v", got)
	}
	// 11 points, size 10: [0..9], [9..10]
	got := Batches(genPoints(11), 10)
	if len(got) != 2 || len(got[1]) != 2 {
		t.Errorf("expected a 2-point tail batch, got %d batches", len(got))
	}
	// Size below 2 is raised to 2.
	if got := Batches(genPoints(4), 1); len(got) != 3 {
		t.Errorf("expected 3 pair batches, got %d", len(got))
	}
}

func TestSample_PreservesEssentials(t *testing.T) {
	points := genPoints(300)
	points[57].Flag = locpoint.FlagCheckIn
	points[140].Flag = locpoint.FlagVisit
	points[299-1].Flag = locpoint.FlagCheckOut

	got := Sample(points, 50)
	if len(got) > 50 {
		t.Fatalf("sample exceeds budget: %d", len(got))
	}
	if got[0].ID != 1 || got[len(got)-1].ID != 300 {
		t.Error("first/last not preserved")
	}
	want := map[int]bool{58: false, 141: false, 299: false}
	for i, p := range got {
		if _, ok := want[p.ID]; ok {
			want[p.ID] = true
		}
		if i > 0 && got[i-1].ID >= p.ID {
			t.Fatalf("sample reordered at %d", i)
		}
	}
	for id, found := range want {
		if !found {
			t.Errorf("key point %d dropped", id)
		}
	}
}

func TestSample_Stride(t *testing.T) {
	// 12 points: 10 intermediates, 3 slots => stride 4 => ids 2, 6, 10.
	got := Sample(genPoints(12), 5)
	wantIDs := []int{1, 2, 6, 10, 12}
	if len(got) != len(wantIDs) {
		t.Fatalf("expected %d points, got %d", len(wantIDs), len(got))
	}
	for i, p := range got {
		if p.ID != wantIDs[i] {
			t.Errorf("index %d: got %d want %d", i, p.ID, wantIDs[i])
		}
	}
}

func TestSample_TooManyKeys(t *testing.T) {
	points := genPoints(20)
	for i := range points {
		points[i].Flag = locpoint.FlagVisit
	}
	got := Sample(points, 6)
	if len(got) != 6 || got[0].ID != 1 || got[5].ID != 20 {
		t.Errorf("unexpected thinning %v", got)
	}
}

func TestSample_Short(t *testing.T) {
	points := genPoints(5)
	if got := Sample(points, 10); len(got) != 5 {
		t.Errorf("expected input unchanged, got %d", len(got))
	}
}
