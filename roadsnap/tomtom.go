package roadsnap

import (
	"context"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/params"
	"github.com/rotblauer/trailplay/types/locpoint"
	"net/url"
)

// TomTom is the TomTom Routing API (calculateRoute).
type TomTom struct {
	httpProvider
}

func (t *TomTom) Name() string { return params.ProviderTomTom }

func (t *TomTom) Match(ctx context.Context, points []locpoint.LocationPoint) (orb.LineString, error) {
	q := url.Values{}
	q.Set("key", t.apiKey)
	q.Set("travelMode", t.profile)
	q.Set("routeRepresentation", "polyline")
	u := fmt.Sprintf("%s/routing/1/calculateRoute/%s/json?%s", t.baseURL,
		url.PathEscape(joinPoints(points, latLng, ":")), q.Encode())

	res, err := t.getJSON(ctx, t.Name(), u)
	if err != nil {
		return nil, err
	}
	return routeLegPoints(t.Name(), res)
}
