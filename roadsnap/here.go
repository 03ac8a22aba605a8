package roadsnap

import (
	"context"
	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/params"
	"github.com/rotblauer/trailplay/types/locpoint"
	"github.com/tidwall/gjson"
	"net/url"
)

// HERE is the HERE Routing API v8.
type HERE struct {
	httpProvider
}

func (h *HERE) Name() string { return params.ProviderHERE }

func (h *HERE) Match(ctx context.Context, points []locpoint.LocationPoint) (orb.LineString, error) {
	q := url.Values{}
	q.Set("origin", latLng(points[0]))
	q.Set("destination", latLng(points[len(points)-1]))
	for _, p := range points[1 : len(points)-1] {
		q.Add("via", latLng(p))
	}
	q.Set("transportMode", h.profile)
	q.Set("return", "polyline")
	q.Set("apiKey", h.apiKey)
	u := h.baseURL + "/v8/routes?" + q.Encode()

	res, err := h.getJSON(ctx, h.Name(), u)
	if err != nil {
		return nil, err
	}
	route := res.Get("routes.0")
	if !route.Exists() {
		return nil, &ProviderError{Provider: h.Name(), Message: firstString(res, "title", "notices.0.title"), Err: ErrNoRoute}
	}

	var (
		ls        orb.LineString
		decodeErr error
	)
	route.Get("sections").ForEach(func(_, sec gjson.Result) bool {
		part, err := decodeFlexPolyline(sec.Get("polyline").String())
		if err != nil {
			decodeErr = err
			return false
		}
		ls = appendDistinct(ls, part)
		return true
	})
	if decodeErr != nil {
		return nil, &ProviderError{Provider: h.Name(), Message: "bad polyline", Err: decodeErr}
	}
	if len(ls) < 2 {
		return nil, &ProviderError{Provider: h.Name(), Err: ErrEmptyGeometry}
	}
	return ls, nil
}
