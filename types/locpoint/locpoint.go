package locpoint

import (
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/common"
	"github.com/rotblauer/trailplay/conceptual"
	"strings"
	"time"
)

// TimeLayout is the canonical timestamp layout: UTC, millisecond precision,
// the same shape a browser's Date.toISOString produces.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// ProviderOff is the locationProvider value marking a tracking gap.
const ProviderOff = "OFF"

type Flag string

const (
	FlagCheckIn  Flag = "check_in"
	FlagCheckOut Flag = "check_out"
	FlagVisit    Flag = "visit"
	FlagNormal   Flag = "normal"
)

// Flags lists every valid flag, key flags first.
var Flags = []Flag{FlagCheckIn, FlagCheckOut, FlagVisit, FlagNormal}

// ParseFlag coerces anything outside the flag set to FlagNormal.
func ParseFlag(s string) Flag {
	switch f := Flag(s); f {
	case FlagCheckIn, FlagCheckOut, FlagVisit, FlagNormal:
		return f
	}
	return FlagNormal
}

// IsKey reports whether points with this flag must survive down-sampling.
func (f Flag) IsKey() bool {
	return f == FlagCheckIn || f == FlagCheckOut || f == FlagVisit
}

// LocationPoint is a single breadcrumb.
// Timestamp is kept as a string because normalization is lossy:
// an unparseable input timestamp is preserved verbatim.
type LocationPoint struct {
	ID               int                `json:"id"`
	Lat              float64            `json:"lat"`
	Lng              float64            `json:"lng"`
	Address          string             `json:"address"`
	RouteID          conceptual.RouteID `json:"routeId"`
	Timestamp        string             `json:"timestamp"`
	Flag             Flag               `json:"flag"`
	LocationProvider string             `json:"locationProvider,omitempty"`
}

// Point returns the point as an orb.Point (x,y::lng,lat).
func (p LocationPoint) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// Time parses the timestamp.
func (p LocationPoint) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, p.Timestamp)
}

// HasTime reports whether the timestamp is parseable.
func (p LocationPoint) HasTime() bool {
	_, err := p.Time()
	return err == nil
}

// IsGap reports whether the point marks tracking as OFF.
func (p LocationPoint) IsGap() bool {
	return strings.EqualFold(strings.TrimSpace(p.LocationProvider), ProviderOff)
}

// IsKey reports whether the point carries a key flag.
func (p LocationPoint) IsKey() bool {
	return p.Flag.IsKey()
}

func (p LocationPoint) String() string {
	return fmt.Sprintf("%s#%d [%v,%v] %s %s",
		p.RouteID, p.ID,
		common.DecimalToFixed(p.Lat, common.GPSPrecision5),
		common.DecimalToFixed(p.Lng, common.GPSPrecision5),
		p.Timestamp, p.Flag)
}

// LineString returns the points' coordinates in order.
func LineString(points []LocationPoint) orb.LineString {
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = p.Point()
	}
	return ls
}

// FormatTime formats t in the canonical layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
