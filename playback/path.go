package playback

import (
	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/common"
	"github.com/rotblauer/trailplay/types/locpoint"
	"math"
)

// SourceKind says where a path's coordinates came from.
type SourceKind int

const (
	KindStraight SourceKind = iota
	KindSnapped
)

func (k SourceKind) String() string {
	if k == KindSnapped {
		return "snapped"
	}
	return "straight"
}

func (k SourceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// PathSource is either the raw points joined by straight lines, or
// a road-snapped geometry. The only transition is Straight to Snapped.
type PathSource struct {
	kind   SourceKind
	coords orb.LineString
}

func Straight(coords orb.LineString) PathSource {
	return PathSource{kind: KindStraight, coords: coords}
}

func Snapped(coords orb.LineString) PathSource {
	return PathSource{kind: KindSnapped, coords: coords}
}

func (s PathSource) Kind() SourceKind {
	return s.kind
}

func (s PathSource) Coords() orb.LineString {
	return s.coords
}

func (s PathSource) Len() int {
	return len(s.coords)
}

// Upgrade returns the snapped source replacing s.
// It refuses when s is already snapped or the geometry is empty.
func (s PathSource) Upgrade(coords orb.LineString) (PathSource, bool) {
	if s.kind == KindSnapped || len(coords) == 0 {
		return s, false
	}
	return Snapped(coords), true
}

// Path is what the engine animates: a source geometry plus the breadcrumbs
// it was made from, for timestamp lookup.
type Path struct {
	Source PathSource
	Points []locpoint.LocationPoint
}

// NewPath returns the straight-line path through points.
func NewPath(points []locpoint.LocationPoint) *Path {
	return &Path{Source: Straight(locpoint.LineString(points)), Points: points}
}

func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return p.Source.Len()
}

func (p *Path) At(i int) orb.Point {
	return p.Source.coords[i]
}

// Heading is the bearing from coordinate i to the next one.
// The last coordinate keeps the heading of the step that reached it.
func (p *Path) Heading(i int) float64 {
	n := p.Len()
	switch {
	case n < 2:
		return 0
	case i < n-1:
		return common.Heading(p.At(i), p.At(i+1))
	default:
		return common.Heading(p.At(n-2), p.At(n-1))
	}
}

// Traveled is the path up to and including coordinate i.
func (p *Path) Traveled(i int) orb.LineString {
	return p.Source.coords[:i+1]
}

// Nearest returns the breadcrumb nearest coordinate i.
// Nearness is |Δlat|+|Δlng|, which is enough to pick a timestamp to show.
func (p *Path) Nearest(i int) (locpoint.LocationPoint, bool) {
	if len(p.Points) == 0 || i < 0 || i >= p.Len() {
		return locpoint.LocationPoint{}, false
	}
	if p.Source.kind == KindStraight && len(p.Points) == p.Len() {
		return p.Points[i], true
	}
	at := p.At(i)
	best, bestD := 0, common.ManhattanDegrees(at, p.Points[0].Point())
	for j := 1; j < len(p.Points); j++ {
		if d := common.ManhattanDegrees(at, p.Points[j].Point()); d < bestD {
			best, bestD = j, d
		}
	}
	return p.Points[best], true
}

// Upgrade returns a new path with snapped coordinates and the same points.
func (p *Path) Upgrade(coords orb.LineString) (*Path, bool) {
	src, ok := p.Source.Upgrade(coords)
	if !ok {
		return p, false
	}
	return &Path{Source: src, Points: p.Points}, true
}

// MapIndex carries a position across paths of different lengths, keeping
// its fraction of the way along.
func MapIndex(index, oldLen, newLen int) int {
	if newLen <= 1 || oldLen <= 1 {
		return 0
	}
	i := int(math.Round(float64(index) / float64(oldLen-1) * float64(newLen-1)))
	return max(0, min(i, newLen-1))
}
