package resilience

import (
	"context"

	"github.com/asif-amar/semdrift/pkg/provider/embeddings"
)

// EmbeddingsFallback implements [embeddings.Provider] with automatic failover
// across multiple embedding backends. Each backend has its own circuit breaker.
//
// All registered providers must produce vectors in the same embedding space
// (same model, same dimensions); failing over between incompatible models
// would make distances across rows meaningless. The constructor does not
// enforce this — dimension agreement is checked by [AddFallback] callers via
// Dimensions().
type EmbeddingsFallback struct {
	group *FallbackGroup[embeddings.Provider]
}

// Compile-time interface assertion.
var _ embeddings.Provider = (*EmbeddingsFallback)(nil)

// NewEmbeddingsFallback creates an [EmbeddingsFallback] with primary as the
// preferred backend.
func NewEmbeddingsFallback(primary embeddings.Provider, primaryName string, cfg FallbackConfig) *EmbeddingsFallback {
	return &EmbeddingsFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional embeddings provider as a fallback.
func (f *EmbeddingsFallback) AddFallback(name string, provider embeddings.Provider) {
	f.group.AddFallback(name, provider)
}

// Embed computes one embedding via the first healthy provider. Invalid input
// is rejected before any provider is tried, so a caller error never counts
// against a circuit breaker or triggers failover.
func (f *EmbeddingsFallback) Embed(ctx context.Context, text string, normalize bool) ([]float64, error) {
	if err := embeddings.ValidateText(text); err != nil {
		return nil, err
	}
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([]float64, error) {
		return p.Embed(ctx, text, normalize)
	})
}

// EmbedBatch computes a batch of embeddings via the first healthy provider.
// Invalid input is rejected before any provider is tried, same as [EmbeddingsFallback.Embed].
func (f *EmbeddingsFallback) EmbedBatch(ctx context.Context, texts []string, normalize bool) ([][]float64, error) {
	if err := embeddings.ValidateBatch(texts); err != nil {
		return nil, err
	}
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([][]float64, error) {
		return p.EmbedBatch(ctx, texts, normalize)
	})
}

// Dimensions returns the dimensionality of the primary provider. Static
// metadata; no failover.
func (f *EmbeddingsFallback) Dimensions() int {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.Dimensions()
	}
	return 0
}

// ModelID returns the model of the primary provider. Static metadata; no
// failover.
func (f *EmbeddingsFallback) ModelID() string {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.ModelID()
	}
	return ""
}
