package flat

import (
	"github.com/rotblauer/trailplay/conceptual"
	"github.com/rotblauer/trailplay/types/locpoint"
	"math/rand"
	"time"
)

var (
	SampleRoutes    = []conceptual.RouteID{"Sandeep", "Rupesh"}
	SampleBaseTime  = time.Date(2026, 1, 12, 9, 20, 0, 0, time.UTC)
	SampleBaseLat   = 21.0894
	SampleBaseLng   = 79.0910
	SamplePerRoute  = 20
	SampleSpacing   = 30 * time.Second
	SampleJitterDeg = 0.01
)

// SamplePoints generates demo trails: SamplePerRoute points per route,
// SampleSpacing apart, jittered around the base coordinate.
func SamplePoints(rng *rand.Rand) []locpoint.LocationPoint {
	out := make([]locpoint.LocationPoint, 0, len(SampleRoutes)*SamplePerRoute)
	for _, route := range SampleRoutes {
		for i := 0; i < SamplePerRoute; i++ {
			out = append(out, locpoint.LocationPoint{
				ID:        len(out) + 1,
				Lat:       SampleBaseLat + (rng.Float64()-0.5)*SampleJitterDeg,
				Lng:       SampleBaseLng + (rng.Float64()-0.5)*SampleJitterDeg,
				RouteID:   route,
				Timestamp: locpoint.FormatTime(SampleBaseTime.Add(time.Duration(i) * SampleSpacing)),
				Flag:      locpoint.FlagNormal,
			})
		}
	}
	return out
}

// ReplaceWithSample overwrites the store with generated demo trails.
func (s *Store) ReplaceWithSample(rng *rand.Rand) (int, error) {
	points := SamplePoints(rng)
	return len(points), s.Replace(MessageSample, points)
}
