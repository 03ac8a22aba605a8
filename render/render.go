// Package render turns playback state into map drawing commands.
// A MapRenderer is whatever draws them: an in-memory GeoJSON document,
// a websocket to a browser map, or a log.
package render

import (
	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/types/locpoint"
)

// Layer names a group of drawn features that can be cleared together.
type Layer string

const (
	LayerMarkers  Layer = "markers"
	LayerActive   Layer = "active"
	LayerGaps     Layer = "gaps"
	LayerSnapped  Layer = "snapped"
	LayerTraveled Layer = "traveled"
	LayerCursor   Layer = "cursor"
)

// Layers lists every layer in drawing order, bottom first.
var Layers = []Layer{LayerActive, LayerGaps, LayerSnapped, LayerTraveled, LayerMarkers, LayerCursor}

// AllLayers, given to Clear, clears everything.
const AllLayers Layer = ""

type Marker struct {
	Layer     Layer         `json:"layer"`
	Position  orb.Point     `json:"position"`
	Label     string        `json:"label,omitempty"`
	Flag      locpoint.Flag `json:"flag,omitempty"`
	Timestamp string        `json:"timestamp,omitempty"`
	Heading   float64       `json:"heading"`
}

// MarkerFor returns a marker for a breadcrumb.
func MarkerFor(layer Layer, p locpoint.LocationPoint) Marker {
	return Marker{
		Layer:     layer,
		Position:  p.Point(),
		Label:     p.Address,
		Flag:      p.Flag,
		Timestamp: p.Timestamp,
	}
}

// MapRenderer is the drawing capability a map front end provides.
// DrawPath adds a line to a layer; it does not replace the layer's contents.
type MapRenderer interface {
	AddMarker(m Marker) error
	DrawPath(layer Layer, ls orb.LineString) error
	PanTo(p orb.Point) error
	Clear(layer Layer) error
}
