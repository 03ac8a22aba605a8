package render

import (
	"encoding/json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"sync"
)

// GeoJSON keeps drawn layers in memory and exports them as a FeatureCollection.
// It is safe for concurrent use.
type GeoJSON struct {
	mu     sync.Mutex
	layers map[Layer][]*geojson.Feature
	center orb.Point
}

func NewGeoJSON() *GeoJSON {
	return &GeoJSON{layers: map[Layer][]*geojson.Feature{}}
}

func (g *GeoJSON) AddMarker(m Marker) error {
	f := geojson.NewFeature(m.Position)
	f.Properties["layer"] = string(m.Layer)
	f.Properties["heading"] = m.Heading
	if m.Label != "" {
		f.Properties["label"] = m.Label
	}
	if m.Flag != "" {
		f.Properties["flag"] = string(m.Flag)
	}
	if m.Timestamp != "" {
		f.Properties["timestamp"] = m.Timestamp
	}
	g.add(m.Layer, f)
	return nil
}

func (g *GeoJSON) DrawPath(layer Layer, ls orb.LineString) error {
	if len(ls) == 0 {
		return nil
	}
	cp := make(orb.LineString, len(ls))
	copy(cp, ls)
	f := geojson.NewFeature(cp)
	f.Properties["layer"] = string(layer)
	g.add(layer, f)
	return nil
}

func (g *GeoJSON) PanTo(p orb.Point) error {
	g.mu.Lock()
	g.center = p
	g.mu.Unlock()
	return nil
}

func (g *GeoJSON) Clear(layer Layer) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if layer == AllLayers {
		g.layers = map[Layer][]*geojson.Feature{}
		return nil
	}
	delete(g.layers, layer)
	return nil
}

func (g *GeoJSON) add(layer Layer, f *geojson.Feature) {
	g.mu.Lock()
	g.layers[layer] = append(g.layers[layer], f)
	g.mu.Unlock()
}

// Center is the last panned-to point.
func (g *GeoJSON) Center() orb.Point {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.center
}

// Features returns the features drawn on one layer.
func (g *GeoJSON) Features(layer Layer) []*geojson.Feature {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*geojson.Feature, len(g.layers[layer]))
	copy(out, g.layers[layer])
	return out
}

// FeatureCollection returns every layer's features in drawing order.
func (g *GeoJSON) FeatureCollection() *geojson.FeatureCollection {
	g.mu.Lock()
	defer g.mu.Unlock()
	fc := geojson.NewFeatureCollection()
	for _, l := range Layers {
		fc.Features = append(fc.Features, g.layers[l]...)
	}
	return fc
}

func (g *GeoJSON) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.FeatureCollection())
}
