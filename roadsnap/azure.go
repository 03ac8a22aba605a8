package roadsnap

import (
	"context"
	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/params"
	"github.com/rotblauer/trailplay/types/locpoint"
	"github.com/tidwall/gjson"
	"net/url"
)

// Azure is the Azure Maps Route Directions API.
type Azure struct {
	httpProvider
}

func (a *Azure) Name() string { return params.ProviderAzure }

func (a *Azure) Match(ctx context.Context, points []locpoint.LocationPoint) (orb.LineString, error) {
	q := url.Values{}
	q.Set("api-version", "1.0")
	q.Set("subscription-key", a.apiKey)
	q.Set("query", joinPoints(points, latLng, ":"))
	q.Set("travelMode", a.profile)
	q.Set("routeRepresentation", "polyline")
	u := a.baseURL + "/route/directions/json?" + q.Encode()

	res, err := a.getJSON(ctx, a.Name(), u)
	if err != nil {
		return nil, err
	}
	return routeLegPoints(a.Name(), res)
}

// routeLegPoints reads routes[0].legs[].points[{latitude, longitude}],
// the response shape shared by Azure Maps and TomTom.
func routeLegPoints(provider string, res gjson.Result) (orb.LineString, error) {
	route := res.Get("routes.0")
	if !route.Exists() {
		return nil, &ProviderError{Provider: provider,
			Message: firstString(res, "error.message", "detailedError.message"), Err: ErrNoRoute}
	}
	var ls orb.LineString
	route.Get("legs").ForEach(func(_, leg gjson.Result) bool {
		pts := leg.Get("points")
		// Consecutive legs share their joining point.
		if len(ls) > 0 {
			if first := pts.Get("0"); first.Exists() {
				p := orb.Point{first.Get("longitude").Float(), first.Get("latitude").Float()}
				if ls[len(ls)-1].Equal(p) {
					ls = ls[:len(ls)-1]
				}
			}
		}
		ls = latLngObjects(pts, ls)
		return true
	})
	if len(ls) < 2 {
		return nil, &ProviderError{Provider: provider, Err: ErrEmptyGeometry}
	}
	return ls, nil
}
