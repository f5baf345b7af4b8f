package facematch

import "math"

// EuclideanDistance returns the L2 distance between a and b.
// Vectors of different length are infinitely far apart.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Nearest returns the index and distance of the record closest to query.
// Ties resolve to the lowest index. An empty slice yields (-1, +Inf).
func Nearest(query Encoding, records []Record) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for i, r := range records {
		if d := EuclideanDistance(query, r.Encoding); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}
