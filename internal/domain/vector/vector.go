// Package vector holds the pure similarity math for the search core.
package vector

import "math"

// Cosine returns the cosine similarity between a and b in [-1, 1].
//
// Nil vectors, mismatched lengths and zero-magnitude vectors all score 0
// rather than erroring: one malformed product embedding must never abort a
// whole search batch.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
