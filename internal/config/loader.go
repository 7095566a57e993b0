package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// remoteEmbeddings lists embeddings backends that require an API key.
// Configuring one without a key is a hard validation error so a run fails
// before any sentence is processed rather than at the first embed call.
var remoteEmbeddings = []string{"openai"}

// envVarPattern matches ${VAR} references in the raw config text.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${ENV_VAR} references,
// applies defaults, and validates the result. Useful in tests where configs
// are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	raw = expandEnv(raw)

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv replaces every ${VAR} occurrence with the environment variable's
// value. Unset variables expand to the empty string with a warning, so a
// missing API key surfaces as a validation error rather than a literal
// "${OPENAI_API_KEY}" being sent to the backend.
func expandEnv(raw []byte) []byte {
	return envVarPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := string(envVarPattern.FindSubmatch(match)[1])
		val, ok := os.LookupEnv(name)
		if !ok {
			slog.Warn("config references unset environment variable", "var", name)
		}
		return []byte(val)
	})
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Experiment
	for i, rate := range cfg.Experiment.ErrorRates {
		if rate < 0 || rate > 100 {
			errs = append(errs, fmt.Errorf("experiment.error_rates[%d] = %.2f is out of range [0, 100]", i, rate))
		}
	}
	if cfg.Experiment.MinWords < 0 {
		errs = append(errs, fmt.Errorf("experiment.min_words %d must not be negative", cfg.Experiment.MinWords))
	}

	// Chain
	if cfg.Chain.Temperature < 0 || cfg.Chain.Temperature > 2 {
		errs = append(errs, fmt.Errorf("chain.temperature %.2f is out of range [0, 2]", cfg.Chain.Temperature))
	}
	if cfg.Chain.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("chain.max_retries %d must be at least 1", cfg.Chain.MaxRetries))
	}
	if cfg.Chain.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("chain.base_delay %s must not be negative", cfg.Chain.BaseDelay))
	}
	if cfg.Chain.Timeout < 0 {
		errs = append(errs, fmt.Errorf("chain.timeout %s must not be negative", cfg.Chain.Timeout))
	}
	for i, lang := range cfg.Chain.Languages {
		if lang == "" {
			errs = append(errs, fmt.Errorf("chain.languages[%d] must not be empty", i))
		}
	}

	// Providers
	errs = append(errs, validateProviderEntry("providers.llm", "llm", cfg.Providers.LLM)...)
	errs = append(errs, validateProviderEntry("providers.embeddings", "embeddings", cfg.Providers.Embeddings)...)

	// Archive
	if cfg.Archive.Enabled && cfg.Archive.DSN == "" {
		errs = append(errs, errors.New("archive.dsn is required when archive.enabled is true"))
	}

	// Costs
	for model, entry := range cfg.Costs {
		if entry.Input < 0 || entry.Output < 0 {
			errs = append(errs, fmt.Errorf("costs[%q] must not have negative pricing", model))
		}
	}

	return errors.Join(errs...)
}

// validateProviderEntry checks one provider block plus its fallbacks.
func validateProviderEntry(prefix, kind string, entry ProviderEntry) []error {
	var errs []error

	validateProviderName(kind, entry.Name)

	// Remote embedding backends fail fast without credentials.
	if kind == "embeddings" && slices.Contains(remoteEmbeddings, entry.Name) && entry.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s: backend %q requires api_key (set it directly or via ${ENV_VAR})", prefix, entry.Name))
	}

	for i, fb := range entry.Fallbacks {
		fbPrefix := fmt.Sprintf("%s.fallbacks[%d]", prefix, i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", fbPrefix))
		}
		if len(fb.Fallbacks) > 0 {
			errs = append(errs, fmt.Errorf("%s must not have nested fallbacks", fbPrefix))
		}
		validateProviderName(kind, fb.Name)
		if kind == "embeddings" && slices.Contains(remoteEmbeddings, fb.Name) && fb.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s: backend %q requires api_key", fbPrefix, fb.Name))
		}
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
