package cache

import (
	"fmt"
	"github.com/hashicorp/golang-lru/v2"
	"github.com/jellydator/ttlcache/v3"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/conceptual"
	"github.com/rotblauer/trailplay/types/locpoint"
	"time"
)

// ingestKey is the part of a point that identifies a re-post.
// The ID is positional and excluded.
type ingestKey struct {
	Lat       float64
	Lng       float64
	RouteID   conceptual.RouteID
	Timestamp string
	Flag      locpoint.Flag
	Provider  string
}

// PointKey hashes the identifying fields of a point.
func PointKey(p locpoint.LocationPoint) (string, error) {
	hash, err := hashstructure.Hash(ingestKey{
		Lat: p.Lat, Lng: p.Lng, RouteID: p.RouteID.OrDefault(),
		Timestamp: p.Timestamp, Flag: p.Flag, Provider: p.LocationProvider,
	}, hashstructure.FormatV2, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", hash), nil
}

// Dedupe remembers the last size distinct points seen.
// It is safe for concurrent use.
type Dedupe struct {
	c *lru.Cache[string, struct{}]
}

func NewDedupe(size int) *Dedupe {
	if size < 1 {
		size = 1
	}
	c, _ := lru.New[string, struct{}](size)
	return &Dedupe{c: c}
}

// Pass reports whether p is new, and marks it seen.
func (d *Dedupe) Pass(p locpoint.LocationPoint) bool {
	key, err := PointKey(p)
	if err != nil {
		return false
	}
	// ContainsOrAdd is atomic; concurrent identical posts let exactly one through.
	seen, _ := d.c.ContainsOrAdd(key, struct{}{})
	return !seen
}

// Forget unmarks p, eg. when it could not be stored after passing.
func (d *Dedupe) Forget(p locpoint.LocationPoint) {
	if key, err := PointKey(p); err == nil {
		d.c.Remove(key)
	}
}

// Purge forgets every point.
func (d *Dedupe) Purge() {
	d.c.Purge()
}

// NewDedupePassLRUFunc returns a filter that passes a point only the first time
// it is seen among the last size distinct points.
func NewDedupePassLRUFunc(size int) func(locpoint.LocationPoint) bool {
	return NewDedupe(size).Pass
}

// GeometryKey identifies a provider request by provider name, travel profile and coordinates.
func GeometryKey(provider, profile string, coords orb.LineString) (uint64, error) {
	return hashstructure.Hash(struct {
		Provider string
		Profile  string
		Coords   [][2]float64
	}{provider, profile, toPairs(coords)}, hashstructure.FormatV2, nil)
}

func toPairs(ls orb.LineString) [][2]float64 {
	out := make([][2]float64, len(ls))
	for i, p := range ls {
		out[i] = [2]float64(p)
	}
	return out
}

// GeometryCache remembers provider geometries for a while.
type GeometryCache struct {
	c *ttlcache.Cache[uint64, orb.LineString]
}

// NewGeometryCache returns a cache whose entries expire after ttl.
// A non-positive ttl returns nil; a nil cache never hits.
func NewGeometryCache(ttl time.Duration) *GeometryCache {
	if ttl <= 0 {
		return nil
	}
	c := ttlcache.New[uint64, orb.LineString](
		ttlcache.WithTTL[uint64, orb.LineString](ttl),
		ttlcache.WithDisableTouchOnHit[uint64, orb.LineString](),
	)
	go c.Start()
	return &GeometryCache{c: c}
}

func (g *GeometryCache) Get(key uint64) (orb.LineString, bool) {
	if g == nil {
		return nil, false
	}
	item := g.c.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (g *GeometryCache) Set(key uint64, ls orb.LineString) {
	if g == nil {
		return
	}
	g.c.Set(key, ls, ttlcache.DefaultTTL)
}

func (g *GeometryCache) Len() int {
	if g == nil {
		return 0
	}
	return g.c.Len()
}

// Stop ends the expiry loop.
func (g *GeometryCache) Stop() {
	if g == nil {
		return
	}
	g.c.Stop()
}
