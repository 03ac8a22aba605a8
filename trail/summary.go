package trail

import (
	"fmt"
	"github.com/montanaflynn/stats"
	"github.com/rotblauer/trailplay/common"
	"github.com/rotblauer/trailplay/conceptual"
	"github.com/rotblauer/trailplay/types/locpoint"
	"github.com/shopspring/decimal"
	"time"
)

type Waypoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteSummary is the per-route digest served alongside query results.
type RouteSummary struct {
	Waypoints   []Waypoint            `json:"waypoints"`
	TotalPoints int                   `json:"totalPoints"`
	Distance    string                `json:"totalDistance"` // km, 2 decimals
	StartTime   string                `json:"startTime"`
	EndTime     string                `json:"endTime"`
	Duration    string                `json:"duration"`
	Flags       map[locpoint.Flag]int `json:"flags"`
}

// DistanceKm sums the haversine lengths of consecutive legs.
func DistanceKm(points []locpoint.LocationPoint) float64 {
	var km float64
	for i := 1; i < len(points); i++ {
		km += common.HaversineKm(points[i-1].Point(), points[i].Point())
	}
	return km
}

// FormatDuration renders d as whole hours and minutes, eg. "1h 5m".
func FormatDuration(d time.Duration) string {
	mins := int64(d / time.Minute)
	return fmt.Sprintf("%dh %dm", mins/60, mins%60)
}

func elapsed(first, last locpoint.LocationPoint) time.Duration {
	a, err := first.Time()
	if err != nil {
		return 0
	}
	b, err := last.Time()
	if err != nil {
		return 0
	}
	return b.Sub(a)
}

// Summarize digests a trail. An empty trail yields a zero summary.
func Summarize(t *Trail) RouteSummary {
	s := RouteSummary{
		Waypoints: make([]Waypoint, 0, len(t.Points)),
		Flags:     map[locpoint.Flag]int{},
		Distance:  decimal.Zero.StringFixed(2),
		Duration:  FormatDuration(0),
	}
	if len(t.Points) == 0 {
		return s
	}
	for _, p := range t.Points {
		s.Waypoints = append(s.Waypoints, Waypoint{Lat: p.Lat, Lng: p.Lng})
		s.Flags[p.Flag]++
	}
	first, last := t.Points[0], t.Points[len(t.Points)-1]
	s.TotalPoints = len(t.Points)
	s.Distance = decimal.NewFromFloat(DistanceKm(t.Points)).StringFixed(2)
	s.StartTime = first.Timestamp
	s.EndTime = last.Timestamp
	s.Duration = FormatDuration(elapsed(first, last))
	return s
}

// Summaries digests every trail, keyed by route.
func Summaries(trails []*Trail) map[conceptual.RouteID]RouteSummary {
	out := make(map[conceptual.RouteID]RouteSummary, len(trails))
	for _, t := range trails {
		out[t.RouteID] = Summarize(t)
	}
	return out
}

// Stats describes the sampling of a trail.
type Stats struct {
	RouteID        conceptual.RouteID    `json:"routeId"`
	Points         int                   `json:"points"`
	Unparsed       int                   `json:"unparsed"`
	GapMarkers     int                   `json:"gapMarkers"`
	KeyPoints      int                   `json:"keyPoints"`
	Flags          map[locpoint.Flag]int `json:"flags"`
	DistanceKm     float64               `json:"distanceKm"`
	Elapsed        time.Duration         `json:"elapsed"`
	IntervalMean   time.Duration         `json:"intervalMean"`
	IntervalMedian time.Duration         `json:"intervalMedian"`
	IntervalMax    time.Duration         `json:"intervalMax"`
}

// Inspect computes sampling statistics for a trail.
// Intervals are measured between consecutive points with parseable timestamps.
func Inspect(t *Trail) Stats {
	st := Stats{
		RouteID: t.RouteID,
		Points:  len(t.Points),
		Flags:   map[locpoint.Flag]int{},
	}
	intervals := make([]float64, 0, len(t.Points))
	var prev time.Time
	for _, p := range t.Points {
		st.Flags[p.Flag]++
		if p.IsGap() {
			st.GapMarkers++
		}
		if p.IsKey() {
			st.KeyPoints++
		}
		pt, err := p.Time()
		if err != nil {
			st.Unparsed++
			continue
		}
		if !prev.IsZero() {
			intervals = append(intervals, pt.Sub(prev).Seconds())
		}
		prev = pt
	}
	st.DistanceKm = common.DecimalToFixed(DistanceKm(t.Points), 3)
	if len(t.Points) > 0 {
		st.Elapsed = elapsed(t.Points[0], t.Points[len(t.Points)-1])
	}
	if len(intervals) == 0 {
		return st
	}

	statsMustFloat := func(fn func() (float64, error)) float64 {
		out, _ := fn()
		return out
	}
	data := stats.Float64Data(intervals)
	seconds := func(f float64) time.Duration {
		return time.Duration(f * float64(time.Second)).Round(time.Millisecond)
	}
	st.IntervalMean = seconds(statsMustFloat(data.Mean))
	st.IntervalMedian = seconds(statsMustFloat(data.Median))
	st.IntervalMax = seconds(statsMustFloat(data.Max))
	return st
}
