package roadsnap

import (
	"context"
	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/params"
	"github.com/rotblauer/trailplay/types/locpoint"
	"github.com/tidwall/gjson"
	"github.com/twpayne/go-polyline"
	"net/url"
)

// Google is the Google Directions API, with intermediate points as pass-through waypoints.
type Google struct {
	httpProvider
}

func (g *Google) Name() string { return params.ProviderGoogle }

func (g *Google) Match(ctx context.Context, points []locpoint.LocationPoint) (orb.LineString, error) {
	q := url.Values{}
	q.Set("origin", latLng(points[0]))
	q.Set("destination", latLng(points[len(points)-1]))
	if len(points) > 2 {
		q.Set("waypoints", joinPoints(points[1:len(points)-1], func(p locpoint.LocationPoint) string {
			return "via:" + latLng(p)
		}, "|"))
	}
	q.Set("mode", g.profile)
	q.Set("key", g.apiKey)
	u := g.baseURL + "/maps/api/directions/json?" + q.Encode()

	res, err := g.getJSON(ctx, g.Name(), u)
	if err != nil {
		return nil, err
	}
	if status := res.Get("status").String(); status != "OK" {
		return nil, &ProviderError{Provider: g.Name(), Code: status,
			Message: res.Get("error_message").String(), Err: ErrNoRoute}
	}

	route := res.Get("routes.0")
	var ls orb.LineString
	var decodeErr error
	route.Get("legs").ForEach(func(_, leg gjson.Result) bool {
		leg.Get("steps").ForEach(func(_, step gjson.Result) bool {
			ls, decodeErr = appendPolyline(ls, step.Get("polyline.points").String())
			return decodeErr == nil
		})
		return decodeErr == nil
	})
	if decodeErr != nil || len(ls) < 2 {
		ls, decodeErr = appendPolyline(nil, route.Get("overview_polyline.points").String())
	}
	if decodeErr != nil {
		return nil, &ProviderError{Provider: g.Name(), Message: "bad polyline", Err: decodeErr}
	}
	if len(ls) < 2 {
		return nil, &ProviderError{Provider: g.Name(), Err: ErrEmptyGeometry}
	}
	return ls, nil
}

// appendPolyline decodes a Google encoded polyline ([lat, lng] pairs)
// and appends it, skipping a first point that repeats the last.
func appendPolyline(ls orb.LineString, encoded string) (orb.LineString, error) {
	if encoded == "" {
		return ls, nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return ls, err
	}
	part := make(orb.LineString, len(coords))
	for i, c := range coords {
		part[i] = orb.Point{c[1], c[0]}
	}
	return appendDistinct(ls, part), nil
}
