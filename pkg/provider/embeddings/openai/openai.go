// Package openai provides an embeddings provider backed by the OpenAI API.
//
// This is the remote-API mode of the embedder: construction requires an API
// key and fails fast without one, before any network activity.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/asif-amar/semdrift/pkg/provider/embeddings"
)

// DefaultModel is the default OpenAI embeddings model.
const DefaultModel = oai.EmbeddingModelTextEmbedding3Small

// Ensure Provider implements the embeddings.Provider interface.
var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI embeddings Provider.
//
// apiKey must not be empty; an empty key returns an error satisfying
// errors.Is(err, embeddings.ErrConfig) without contacting the API. If model
// is empty, DefaultModel (text-embedding-3-small) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai embeddings: %w: api key must not be empty", embeddings.ErrConfig)
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// Embed implements embeddings.Provider.
//
// The text-embedding-3 family returns unit-length vectors; normalize=true
// rescales the result anyway so the unit-norm guarantee holds even for models
// or proxies that return raw magnitudes.
func (p *Provider) Embed(ctx context.Context, text string, normalize bool) ([]float64, error) {
	if err := embeddings.ValidateText(text); err != nil {
		return nil, err
	}

	resp, err := p.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: p.model,
		Input: oai.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(text),
		},
	})
	if err != nil {
		return nil, &embeddings.BackendError{Backend: "openai", Op: "embed", Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, &embeddings.BackendError{Backend: "openai", Op: "embed", Err: errors.New("empty response")}
	}

	vec := resp.Data[0].Embedding
	if normalize {
		embeddings.Normalize(vec)
	}
	return vec, nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string, normalize bool) ([][]float64, error) {
	if err := embeddings.ValidateBatch(texts); err != nil {
		return nil, err
	}

	resp, err := p.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: p.model,
		Input: oai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, &embeddings.BackendError{Backend: "openai", Op: "embed batch", Err: err}
	}
	if len(resp.Data) != len(texts) {
		return nil, &embeddings.BackendError{
			Backend: "openai",
			Op:      "embed batch",
			Err:     fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)),
		}
	}

	result := make([][]float64, len(texts))
	for _, e := range resp.Data {
		if int(e.Index) >= len(texts) {
			return nil, &embeddings.BackendError{
				Backend: "openai",
				Op:      "embed batch",
				Err:     fmt.Errorf("unexpected index %d", e.Index),
			}
		}
		vec := e.Embedding
		if normalize {
			embeddings.Normalize(vec)
		}
		result[e.Index] = vec
	}
	return result, nil
}

// Dimensions implements embeddings.Provider.
//
// The OpenAI embeddings API does not expose model metadata, so the dimension
// is inferred from the model name without an embed call (see modelDimensions).
func (p *Provider) Dimensions() int {
	return modelDimensions(p.model)
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	return p.model
}

// modelDimensions returns the embedding dimensions for known OpenAI models.
// Unrecognised names fall back to 1536, the width shared by the small and
// ada-002 models.
func modelDimensions(model string) int {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "large"):
		return 3072
	case strings.Contains(lower, "small"):
		return 1536
	case strings.Contains(lower, "ada-002"):
		return 1536
	default:
		return 1536
	}
}
