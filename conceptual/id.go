package conceptual

// DefaultRouteID is used for points that arrive without a route.
const DefaultRouteID RouteID = "default_route"

type RouteID string

func (r RouteID) String() string {
	return string(r)
}

func (r RouteID) IsEmpty() bool {
	return r == ""
}

// OrDefault returns the route, or DefaultRouteID when it is empty.
func (r RouteID) OrDefault() RouteID {
	if r.IsEmpty() {
		return DefaultRouteID
	}
	return r
}
