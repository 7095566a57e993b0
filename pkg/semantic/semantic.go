// Package semantic computes distance and similarity metrics between the
// embeddings of two texts. It is the measurement core of the drift pipeline:
// given an original sentence and the sentence that came back through the
// translation chain, it quantifies how far apart they landed in embedding
// space.
//
// The Calculator consumes an embeddings.Provider and never talks to a backend
// directly, so local and remote embedding modes are interchangeable here.
package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/asif-amar/semdrift/pkg/provider/embeddings"
)

// Metric names a distance or similarity measure.
type Metric string

// Supported metrics.
const (
	Cosine    Metric = "cosine"
	Euclidean Metric = "euclidean"
	Manhattan Metric = "manhattan"
)

// DistanceMetrics enumerates the metrics accepted by Calculator.Distance.
// Callers must not modify the slice.
var DistanceMetrics = []Metric{Cosine, Euclidean, Manhattan}

// SimilarityMetrics enumerates the metrics accepted by Calculator.Similarity.
// Callers must not modify the slice.
var SimilarityMetrics = []Metric{Cosine, Euclidean}

// UnsupportedMetricError reports a request for a metric this package does not
// implement. The message enumerates the supported set so interactive callers
// can self-correct. It is a programming-time error and is never retried.
type UnsupportedMetricError struct {
	// Metric is the rejected name.
	Metric Metric
	// Supported is the set valid for the operation that failed.
	Supported []Metric
}

func (e *UnsupportedMetricError) Error() string {
	names := make([]string, len(e.Supported))
	for i, m := range e.Supported {
		names[i] = string(m)
	}
	return fmt.Sprintf("semantic: unsupported metric %q (supported: %s)", string(e.Metric), strings.Join(names, ", "))
}

// MetricSet bundles the four measurements derived from one pair of
// embeddings. All values are finite under the documented zero-norm policy;
// NaN or Inf never appear.
//
// CosineDistance is defined as the complement of CosineSimilarity, so for any
// pair the two always sum to 1. That identity is relied on downstream and
// holds exactly, not merely within tolerance.
type MetricSet struct {
	CosineDistance    float64 `json:"cosine_distance"`
	CosineSimilarity  float64 `json:"cosine_similarity"`
	EuclideanDistance float64 `json:"euclidean_distance"`
	ManhattanDistance float64 `json:"manhattan_distance"`
}

// MetricColumns lists the MetricSet value names in canonical order, matching
// the JSON and CSV column names. Callers must not modify the slice.
var MetricColumns = []string{
	"cosine_distance",
	"cosine_similarity",
	"euclidean_distance",
	"manhattan_distance",
}

// Value returns the measurement stored under the given column name, which
// must be one of MetricColumns; ok is false for unknown names.
func (m MetricSet) Value(name string) (float64, bool) {
	switch name {
	case "cosine_distance":
		return m.CosineDistance, true
	case "cosine_similarity":
		return m.CosineSimilarity, true
	case "euclidean_distance":
		return m.EuclideanDistance, true
	case "manhattan_distance":
		return m.ManhattanDistance, true
	default:
		return 0, false
	}
}

// Calculator computes semantic metrics between pairs of texts. It holds only
// the provider handle and is safe for concurrent use whenever the provider is.
type Calculator struct {
	provider embeddings.Provider
}

// New constructs a Calculator on top of an embeddings provider.
func New(provider embeddings.Provider) *Calculator {
	return &Calculator{provider: provider}
}

// Distance computes the given distance metric between the embeddings of two
// texts. Embeddings are requested raw (unnormalized): scaling to unit norm
// first would change what Euclidean and Manhattan distance measure, and
// cosine is scale-invariant either way.
//
// An unknown metric fails with *UnsupportedMetricError before any embedding
// call is made.
func (c *Calculator) Distance(ctx context.Context, text1, text2 string, metric Metric) (float64, error) {
	switch metric {
	case Cosine, Euclidean, Manhattan:
	default:
		return 0, &UnsupportedMetricError{Metric: metric, Supported: DistanceMetrics}
	}

	v1, v2, err := c.embedPair(ctx, text1, text2, false)
	if err != nil {
		return 0, err
	}

	switch metric {
	case Cosine:
		c.warnZeroNorm(v1, v2)
		return CosineDistance(v1, v2), nil
	case Euclidean:
		return EuclideanDistance(v1, v2), nil
	default:
		return ManhattanDistance(v1, v2), nil
	}
}

// Similarity computes the given similarity metric between the embeddings of
// two texts.
//
// Cosine similarity requests unit-normalized embeddings and returns their dot
// product, which equals dot(v1,v2)/(‖v1‖·‖v2‖) on the raw vectors without a
// second norm computation. Euclidean similarity is the convenience transform
// 1/(1+d) of Euclidean distance: monotonically decreasing, mapping [0, ∞)
// onto (0, 1]. It is not a standard metric.
func (c *Calculator) Similarity(ctx context.Context, text1, text2 string, metric Metric) (float64, error) {
	switch metric {
	case Cosine:
		v1, v2, err := c.embedPair(ctx, text1, text2, true)
		if err != nil {
			return 0, err
		}
		c.warnZeroNorm(v1, v2)
		return Dot(v1, v2), nil
	case Euclidean:
		d, err := c.Distance(ctx, text1, text2, Euclidean)
		if err != nil {
			return 0, err
		}
		return 1 / (1 + d), nil
	default:
		return 0, &UnsupportedMetricError{Metric: metric, Supported: SimilarityMetrics}
	}
}

// AllMetrics computes the full MetricSet for a pair of texts from a single
// batched embedding call. Each text is embedded exactly once; all four values
// derive from the same two raw vectors. Embedding cost dominates, so callers
// wanting more than one metric should use this instead of per-metric calls.
func (c *Calculator) AllMetrics(ctx context.Context, text1, text2 string) (MetricSet, error) {
	v1, v2, err := c.embedPair(ctx, text1, text2, false)
	if err != nil {
		return MetricSet{}, err
	}
	c.warnZeroNorm(v1, v2)

	sim := CosineSimilarity(v1, v2)
	return MetricSet{
		CosineDistance:    1 - sim,
		CosineSimilarity:  sim,
		EuclideanDistance: EuclideanDistance(v1, v2),
		ManhattanDistance: ManhattanDistance(v1, v2),
	}, nil
}

// Embeddings exposes the raw (unnormalized) embedding pair for callers
// building custom metrics or inspecting the vectors in tests. Both texts go
// out in one batch call.
func (c *Calculator) Embeddings(ctx context.Context, text1, text2 string) ([]float64, []float64, error) {
	return c.embedPair(ctx, text1, text2, false)
}

// embedPair fetches both embeddings in one batch call. All entry points
// funnel through here so that one backend round-trip covers a text pair.
func (c *Calculator) embedPair(ctx context.Context, text1, text2 string, normalize bool) ([]float64, []float64, error) {
	vecs, err := c.provider.EmbedBatch(ctx, []string{text1, text2}, normalize)
	if err != nil {
		return nil, nil, fmt.Errorf("semantic: embed pair: %w", err)
	}
	if len(vecs) != 2 {
		return nil, nil, fmt.Errorf("semantic: embed pair: expected 2 embeddings, got %d", len(vecs))
	}
	if len(vecs[0]) != len(vecs[1]) {
		return nil, nil, fmt.Errorf("semantic: embed pair: dimension mismatch: %d vs %d", len(vecs[0]), len(vecs[1]))
	}
	return vecs[0], vecs[1], nil
}

// warnZeroNorm flags the degenerate cosine case distinctly. The computed
// values fall back to the documented policy (similarity 0, distance 1) rather
// than NaN, but a zero embedding almost always means something upstream went
// wrong, so it must not pass silently.
func (c *Calculator) warnZeroNorm(v1, v2 []float64) {
	if isZero(v1) || isZero(v2) {
		slog.Warn("zero-norm embedding in metric computation; cosine values pinned to neutral midpoint",
			"model", c.provider.ModelID())
	}
}
