package semantic

import "math"

// Pure vector operations underlying the drift metrics. All functions expect
// both slices to have the same length; the Calculator guarantees that by
// sourcing every pair from a single embeddings provider.

// Dot returns the dot product of a and b.
func Dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm returns the L2 norm of a.
func Norm(a []float64) float64 {
	var sum float64
	for _, v := range a {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. When either vector has zero norm the angle is undefined; the
// documented policy is to return 0, the neutral value, rather than NaN.
func CosineSimilarity(a, b []float64) float64 {
	normA := Norm(a)
	normB := Norm(b)
	if normA == 0 || normB == 0 {
		return 0
	}
	return Dot(a, b) / (normA * normB)
}

// CosineDistance returns 1 - CosineSimilarity(a, b), in [0, 2]: 0 for
// identical direction, 2 for exactly opposite direction. Under the zero-norm
// policy a degenerate pair yields 1, the midpoint.
func CosineDistance(a, b []float64) float64 {
	return 1 - CosineSimilarity(a, b)
}

// EuclideanDistance returns the L2 distance between a and b, in [0, ∞).
func EuclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// ManhattanDistance returns the L1 distance between a and b, in [0, ∞).
func ManhattanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

// isZero reports whether every element of a is exactly zero. Used to flag the
// degenerate cosine case distinctly instead of letting it pass as a normal
// result.
func isZero(a []float64) bool {
	for _, v := range a {
		if v != 0 {
			return false
		}
	}
	return true
}
