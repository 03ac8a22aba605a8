package roadsnap

import (
	"github.com/rotblauer/trailplay/types/locpoint"
	"math"
	"slices"
)

// Batches partitions points into request-sized windows of at most size points.
// Each window starts at its predecessor's last point, so stitched results
// are continuous across boundaries. Windows shorter than 2 points are skipped.
func Batches(points []locpoint.LocationPoint, size int) [][]locpoint.LocationPoint {
	if size < 2 {
		size = 2
	}
	if len(points) < 2 {
		return nil
	}
	var out [][]locpoint.LocationPoint
	step := size - 1
	for start := 0; start < len(points)-1; start += step {
		end := min(start+size, len(points))
		if end-start < 2 {
			break
		}
		out = append(out, points[start:end])
	}
	return out
}

// Sample down-samples points to at most limit points.
//
// The first point, the last point, and key-flagged points are always kept.
// Remaining slots go to every stride-th other intermediate point, where
// stride = ceil(intermediates / slots). The result keeps input order.
// If key points alone exceed limit, they are thinned evenly.
func Sample(points []locpoint.LocationPoint, limit int) []locpoint.LocationPoint {
	if limit < 2 {
		limit = 2
	}
	n := len(points)
	if n <= limit {
		return points
	}

	keep := make([]bool, n)
	keep[0], keep[n-1] = true, true

	var keys, others []int
	for i := 1; i < n-1; i++ {
		if points[i].IsKey() {
			keys = append(keys, i)
		} else {
			others = append(others, i)
		}
	}

	slots := limit - 2
	if len(keys) > slots {
		for _, i := range spread(keys, slots) {
			keep[i] = true
		}
	} else {
		for _, i := range keys {
			keep[i] = true
		}
		slots -= len(keys)
		if slots > 0 && len(others) > 0 {
			stride := int(math.Ceil(float64(len(others)) / float64(slots)))
			for j := 0; j < len(others) && slots > 0; j += stride {
				keep[others[j]] = true
				slots--
			}
		}
	}

	out := make([]locpoint.LocationPoint, 0, limit)
	for i, k := range keep {
		if k {
			out = append(out, points[i])
		}
	}
	return out
}

// spread picks k evenly spaced elements of xs.
func spread(xs []int, k int) []int {
	if k <= 0 {
		return nil
	}
	if k >= len(xs) {
		return slices.Clone(xs)
	}
	out := make([]int, 0, k)
	for j := 0; j < k; j++ {
		out = append(out, xs[j*len(xs)/k])
	}
	return out
}
