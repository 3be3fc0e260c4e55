package utils

import "math"

// NormalizeL2 scales the vector in place to unit L2 norm, so inner products
// over normalized vectors equal cosine similarity. A zero vector stays zero.
func NormalizeL2(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
