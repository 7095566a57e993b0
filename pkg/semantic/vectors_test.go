package semantic_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/asif-amar/semdrift/pkg/semantic"
)

// TestCosineSimilarity_KnownValues verifies the cosine against hand-computed
// angles: parallel, orthogonal, and opposite vectors.
func TestCosineSimilarity_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"parallel", []float64{1, 0}, []float64{2, 0}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 3}, 0},
		{"opposite", []float64{1, 2}, []float64{-1, -2}, -1},
		{"45 degrees", []float64{1, 0}, []float64{1, 1}, math.Sqrt2 / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := semantic.CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// TestCosineDistance_Complement verifies that distance is exactly the
// complement of similarity for the same pair.
func TestCosineDistance_Complement(t *testing.T) {
	a := []float64{0.3, -1.7, 2.2}
	b := []float64{-0.9, 0.4, 1.1}
	dist := semantic.CosineDistance(a, b)
	sim := semantic.CosineSimilarity(a, b)
	if dist != 1-sim {
		t.Errorf("CosineDistance = %v, want exactly 1 - %v", dist, sim)
	}
}

// TestEuclideanDistance_KnownValues checks the 3-4-5 triangle.
func TestEuclideanDistance_KnownValues(t *testing.T) {
	a := []float64{0, 0}
	b := []float64{3, 4}
	if got := semantic.EuclideanDistance(a, b); got != 5 {
		t.Errorf("EuclideanDistance = %v, want 5", got)
	}
}

// TestManhattanDistance_KnownValues checks a simple L1 sum.
func TestManhattanDistance_KnownValues(t *testing.T) {
	a := []float64{1, -2, 3}
	b := []float64{4, 2, 1}
	if got := semantic.ManhattanDistance(a, b); got != 9 {
		t.Errorf("ManhattanDistance = %v, want 9", got)
	}
}

// TestMetricBounds_RandomVectors property-tests the documented ranges over
// seeded random vector pairs: cosine distance in [0,2], cosine similarity in
// [-1,1], Euclidean and Manhattan non-negative, and all three distances
// symmetric.
func TestMetricBounds_RandomVectors(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	const (
		pairs = 500
		dims  = 16
	)

	randVec := func() []float64 {
		v := make([]float64, dims)
		for i := range v {
			v[i] = rng.Float64()*20 - 10
		}
		return v
	}

	for i := 0; i < pairs; i++ {
		a, b := randVec(), randVec()

		cd := semantic.CosineDistance(a, b)
		cs := semantic.CosineSimilarity(a, b)
		ed := semantic.EuclideanDistance(a, b)
		md := semantic.ManhattanDistance(a, b)

		if cd < -1e-12 || cd > 2+1e-12 {
			t.Fatalf("pair %d: cosine distance %v out of [0,2]", i, cd)
		}
		if cs < -1-1e-12 || cs > 1+1e-12 {
			t.Fatalf("pair %d: cosine similarity %v out of [-1,1]", i, cs)
		}
		if ed < 0 {
			t.Fatalf("pair %d: euclidean distance %v negative", i, ed)
		}
		if md < 0 {
			t.Fatalf("pair %d: manhattan distance %v negative", i, md)
		}
		if math.IsNaN(cd) || math.IsNaN(cs) || math.IsNaN(ed) || math.IsNaN(md) {
			t.Fatalf("pair %d: NaN in metrics (%v %v %v %v)", i, cd, cs, ed, md)
		}

		if got := semantic.CosineDistance(b, a); math.Abs(got-cd) > 1e-12 {
			t.Fatalf("pair %d: cosine distance asymmetric: %v vs %v", i, cd, got)
		}
		if got := semantic.EuclideanDistance(b, a); math.Abs(got-ed) > 1e-12 {
			t.Fatalf("pair %d: euclidean distance asymmetric: %v vs %v", i, ed, got)
		}
		if got := semantic.ManhattanDistance(b, a); math.Abs(got-md) > 1e-12 {
			t.Fatalf("pair %d: manhattan distance asymmetric: %v vs %v", i, md, got)
		}
	}
}

// TestZeroVector_Policy verifies the documented degenerate-case policy: a
// zero-norm operand yields similarity 0 and distance 1, never NaN.
func TestZeroVector_Policy(t *testing.T) {
	zero := []float64{0, 0, 0}
	v := []float64{1, 2, 3}

	if got := semantic.CosineSimilarity(zero, v); got != 0 {
		t.Errorf("CosineSimilarity(zero, v) = %v, want 0", got)
	}
	if got := semantic.CosineDistance(zero, v); got != 1 {
		t.Errorf("CosineDistance(zero, v) = %v, want 1", got)
	}
	if got := semantic.CosineSimilarity(zero, zero); got != 0 {
		t.Errorf("CosineSimilarity(zero, zero) = %v, want 0", got)
	}
	if math.IsNaN(semantic.CosineDistance(zero, zero)) {
		t.Error("CosineDistance(zero, zero) is NaN")
	}
}
