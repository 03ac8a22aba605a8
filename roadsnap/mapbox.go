package roadsnap

import (
	"context"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/params"
	"github.com/rotblauer/trailplay/types/locpoint"
	"github.com/tidwall/gjson"
	"net/url"
)

// Mapbox is the Mapbox Map Matching API (matching/v5).
type Mapbox struct {
	httpProvider
	RadiusMeters float64
}

func (m *Mapbox) Name() string { return params.ProviderMapbox }

func (m *Mapbox) Match(ctx context.Context, points []locpoint.LocationPoint) (orb.LineString, error) {
	q := url.Values{}
	q.Set("geometries", "geojson")
	q.Set("overview", "full")
	if m.RadiusMeters > 0 {
		q.Set("radiuses", repeat(formatFloat(m.RadiusMeters), len(points), ";"))
	}
	q.Set("access_token", m.apiKey)
	u := fmt.Sprintf("%s/matching/v5/mapbox/%s/%s?%s", m.baseURL, m.profile,
		joinPoints(points, lngLat, ";"), q.Encode())

	res, err := m.getJSON(ctx, m.Name(), u)
	if err != nil {
		return nil, err
	}
	return matchings(m.Name(), res)
}

// matchings reads an OSRM-style match response: code "Ok" and
// one or more matchings, each with a GeoJSON LineString geometry.
// Split matchings are concatenated in order.
func matchings(provider string, res gjson.Result) (orb.LineString, error) {
	if code := res.Get("code").String(); code != "Ok" {
		return nil, &ProviderError{Provider: provider, Code: code, Message: res.Get("message").String(), Err: ErrNoRoute}
	}
	var ls orb.LineString
	res.Get("matchings").ForEach(func(_, m gjson.Result) bool {
		ls = lngLatPairs(m.Get("geometry.coordinates"), ls)
		return true
	})
	if len(ls) < 2 {
		return nil, &ProviderError{Provider: provider, Err: ErrEmptyGeometry}
	}
	return ls, nil
}
