// Package embeddings defines the Provider interface for vector embedding backends.
//
// An embeddings provider wraps a service that maps text strings to dense float64
// vectors (e.g., OpenAI text-embedding-3 over the API, or a local model served
// by Ollama). These vectors are the raw material for the semantic drift
// metrics: the distance between the embedding of an original sentence and the
// embedding of its round-tripped translation is the drift measurement.
//
// Implementations must be safe for concurrent use.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Sentinel errors shared by all provider implementations.
var (
	// ErrEmptyInput reports text input that is empty or blank after trimming,
	// or a batch with no elements. The caller must fix the input; providers
	// never retry or substitute a default for it.
	ErrEmptyInput = errors.New("input text must not be empty or blank")

	// ErrConfig reports an inconsistent provider construction, such as a
	// remote backend without credentials. Construction fails before any
	// network or model activity, so no partial operation is possible.
	ErrConfig = errors.New("invalid provider configuration")
)

// BackendError wraps a failure of the embedding backend itself: a failed HTTP
// call, a malformed response, or a model that could not be loaded. It is
// distinct from input validation errors so callers can apply retry policy to
// backend failures only. Providers do not retry internally.
type BackendError struct {
	// Backend is the provider name, e.g. "openai" or "ollama".
	Backend string
	// Op is the operation that failed, e.g. "embed" or "embed batch".
	Op string
	// Err is the underlying cause.
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s embeddings: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Provider is the abstraction over any text-embedding backend.
//
// All embedding vectors returned by a single Provider instance must share the
// same dimensionality (returned by Dimensions). Callers must not mix vectors
// from different Provider instances in the same distance computation unless
// they have verified that both use the same model and space.
//
// The normalize flag requests unit-length output: the result must be
// equivalent to scaling the raw vector to L2 norm 1 afterwards, but each
// backend is free to produce it natively when that is cheaper. Distance
// metrics that depend on magnitude (Euclidean, Manhattan) are computed over
// raw vectors, so callers choose per call.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed computes the embedding vector for a single text string. Returns a
	// float64 slice of length Dimensions() or an error if the request fails or
	// ctx is cancelled.
	//
	// The text is passed to the backend verbatim apart from validation: an
	// empty or blank string fails with an error satisfying
	// errors.Is(err, ErrEmptyInput) before any backend call.
	Embed(ctx context.Context, text string, normalize bool) ([]float64, error)

	// EmbedBatch computes embedding vectors for a slice of text strings in a
	// single provider call where the backend supports it, which is typically
	// far more efficient than calling Embed in a loop. The returned slice has
	// the same length as texts and the i-th element corresponds to texts[i].
	//
	// An empty batch or a batch containing a blank element fails with an error
	// satisfying errors.Is(err, ErrEmptyInput) before any backend call.
	// Returns an error if any single embedding fails or if ctx is cancelled.
	// Partial results are not returned; on error the entire slice is nil.
	EmbedBatch(ctx context.Context, texts []string, normalize bool) ([][]float64, error)

	// Dimensions returns the fixed length of every embedding vector produced
	// by this provider, without requiring an embed call. The value is
	// determined by the underlying model and is constant for the lifetime of
	// the Provider instance.
	Dimensions() int

	// ModelID returns the provider-specific model identifier used for
	// embeddings (e.g., "text-embedding-3-small", "nomic-embed-text"). Useful
	// for logging and for ensuring consistent model usage across a run.
	ModelID() string
}

// ValidateText checks a single input string. It returns an error satisfying
// errors.Is(err, ErrEmptyInput) when text is empty or only whitespace.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("embeddings: %w", ErrEmptyInput)
	}
	return nil
}

// ValidateBatch checks a batch of input strings. It returns an error
// satisfying errors.Is(err, ErrEmptyInput) when the batch is empty or any
// element is empty or only whitespace. The error names the offending element.
func ValidateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("embeddings: batch is empty: %w", ErrEmptyInput)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("embeddings: batch element %d: %w", i, ErrEmptyInput)
		}
	}
	return nil
}

// Normalize scales vec to unit L2 norm in place and returns it. A zero-norm
// vector has no direction to preserve and is returned unchanged rather than
// divided by zero.
func Normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
