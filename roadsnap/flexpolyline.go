package roadsnap

import (
	"errors"
	"math"
	"strings"

	"github.com/paulmach/orb"
)

var errFlexPolyline = errors.New("invalid flexible polyline")

const flexAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// decodeFlexPolyline decodes a HERE flexible polyline into [lng, lat] points.
// A third dimension, if present, is read and discarded.
func decodeFlexPolyline(s string) (orb.LineString, error) {
	d := flexDecoder{s: s}
	version, err := d.uvarint()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, errFlexPolyline
	}
	header, err := d.uvarint()
	if err != nil {
		return nil, err
	}
	precision := int(header & 15)
	thirdDim := (header >> 4) & 7
	factor := math.Pow10(precision)

	var (
		ls       orb.LineString
		lat, lng int64
	)
	for !d.done() {
		dlat, err := d.varint()
		if err != nil {
			return nil, err
		}
		dlng, err := d.varint()
		if err != nil {
			return nil, err
		}
		if thirdDim != 0 {
			if _, err := d.varint(); err != nil {
				return nil, err
			}
		}
		lat += dlat
		lng += dlng
		ls = append(ls, orb.Point{float64(lng) / factor, float64(lat) / factor})
	}
	return ls, nil
}

type flexDecoder struct {
	s   string
	pos int
}

func (d *flexDecoder) done() bool {
	return d.pos >= len(d.s)
}

func (d *flexDecoder) uvarint() (uint64, error) {
	var (
		result uint64
		shift  uint
	)
	for {
		if d.done() || shift > 63 {
			return 0, errFlexPolyline
		}
		v := strings.IndexByte(flexAlphabet, d.s[d.pos])
		if v < 0 {
			return 0, errFlexPolyline
		}
		d.pos++
		result |= uint64(v&0x1f) << shift
		if v&0x20 == 0 {
			return result, nil
		}
		shift += 5
	}
}

func (d *flexDecoder) varint() (int64, error) {
	u, err := d.uvarint()
	if err != nil {
		return 0, err
	}
	if u&1 == 1 {
		return ^int64(u >> 1), nil
	}
	return int64(u >> 1), nil
}
