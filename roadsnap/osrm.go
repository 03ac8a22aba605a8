package roadsnap

import (
	"context"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/params"
	"github.com/rotblauer/trailplay/types/locpoint"
	"net/url"
)

// OSRM is the OSRM map-matching service (match/v1).
type OSRM struct {
	httpProvider
	RadiusMeters float64
}

func (o *OSRM) Name() string { return params.ProviderOSRM }

func (o *OSRM) Match(ctx context.Context, points []locpoint.LocationPoint) (orb.LineString, error) {
	q := url.Values{}
	q.Set("overview", "full")
	q.Set("geometries", "geojson")
	q.Set("gaps", "split")
	if o.RadiusMeters > 0 {
		q.Set("radiuses", repeat(formatFloat(o.RadiusMeters), len(points), ";"))
	}
	u := fmt.Sprintf("%s/match/v1/%s/%s?%s", o.baseURL, o.profile,
		joinPoints(points, lngLat, ";"), q.Encode())

	res, err := o.getJSON(ctx, o.Name(), u)
	if err != nil {
		return nil, err
	}
	return matchings(o.Name(), res)
}
