package commands

import (
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/asif-amar/semdrift/internal/config"
	"github.com/asif-amar/semdrift/internal/resilience"
	"github.com/asif-amar/semdrift/pkg/provider/embeddings"
	ollamaembed "github.com/asif-amar/semdrift/pkg/provider/embeddings/ollama"
	oaembed "github.com/asif-amar/semdrift/pkg/provider/embeddings/openai"
	"github.com/asif-amar/semdrift/pkg/provider/llm"
	"github.com/asif-amar/semdrift/pkg/provider/llm/anyllm"
)

// builtinProviders maps provider category names to the implementations that
// ship with semdrift. Used for startup logging and the info command.
var builtinProviders = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// newRegistry wires all built-in provider factories into a fresh registry.
func newRegistry() *config.Registry {
	reg := config.NewRegistry()

	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})

	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
	return reg
}

// buildLLM instantiates the configured LLM provider. When fallback entries are
// configured, the result is a fallback group with per-provider circuit
// breakers; otherwise the bare provider is returned.
func buildLLM(cfg *config.Config) (llm.Provider, error) {
	reg := newRegistry()
	entry := cfg.Providers.LLM

	primary, err := reg.CreateLLM(entry)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", primary.ModelID())

	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewLLMFallback(primary, entry.Name, resilience.FallbackConfig{})
	for _, fb := range entry.Fallbacks {
		p, err := reg.CreateLLM(fb)
		if err != nil {
			return nil, fmt.Errorf("create llm fallback %q: %w", fb.Name, err)
		}
		group.AddFallback(fb.Name, p)
		slog.Info("fallback provider created", "kind", "llm", "name", fb.Name, "model", p.ModelID())
	}
	return group, nil
}

// buildEmbeddings instantiates the configured embeddings provider, wrapping it
// in a fallback group when fallbacks are configured. Fallback embeddings only
// make sense when every provider serves the same model, since distances across
// embedding spaces are not comparable; the config loader warns about this.
func buildEmbeddings(cfg *config.Config) (embeddings.Provider, error) {
	reg := newRegistry()
	entry := cfg.Providers.Embeddings

	primary, err := reg.CreateEmbeddings(entry)
	if err != nil {
		return nil, fmt.Errorf("create embeddings provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "embeddings", "name", entry.Name, "model", primary.ModelID())

	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewEmbeddingsFallback(primary, entry.Name, resilience.FallbackConfig{})
	for _, fb := range entry.Fallbacks {
		p, err := reg.CreateEmbeddings(fb)
		if err != nil {
			return nil, fmt.Errorf("create embeddings fallback %q: %w", fb.Name, err)
		}
		group.AddFallback(fb.Name, p)
		slog.Info("fallback provider created", "kind", "embeddings", "name", fb.Name, "model", p.ModelID())
	}
	return group, nil
}
