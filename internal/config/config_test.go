package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const validYAML = `
log_level: debug
experiment:
  error_rates: [0, 10, 25, 35, 50]
  seed: 42
  input: sentences.json
  output_dir: out
  description: baseline run
  min_words: 15
chain:
  languages: [french, hebrew]
  temperature: 0.3
  max_retries: 3
  base_delay: 500ms
  timeout: 45s
providers:
  llm:
    name: openai
    model: gpt-4o-mini
    api_key: sk-test
  embeddings:
    name: ollama
    model: nomic-embed-text
    base_url: http://localhost:11434
archive:
  enabled: false
observe:
  prometheus_addr: ":9090"
costs:
  gpt-4o-mini:
    input: 0.15
    output: 0.60
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if len(cfg.Experiment.ErrorRates) != 5 || cfg.Experiment.ErrorRates[2] != 25 {
		t.Errorf("ErrorRates = %v", cfg.Experiment.ErrorRates)
	}
	if cfg.Experiment.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Experiment.Seed)
	}
	if cfg.Chain.BaseDelay != 500*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 500ms", cfg.Chain.BaseDelay)
	}
	if cfg.Chain.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Chain.Timeout)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM entry = %+v", cfg.Providers.LLM)
	}
	if got := cfg.Costs["gpt-4o-mini"]; got.Input != 0.15 || got.Output != 0.60 {
		t.Errorf("Costs = %+v", got)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`experiment: {input: sentences.json}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != LogInfo {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if len(cfg.Experiment.ErrorRates) != 5 {
		t.Errorf("default ErrorRates = %v, want 5 entries", cfg.Experiment.ErrorRates)
	}
	if cfg.Experiment.Seed != DefaultSeed {
		t.Errorf("Seed = %d, want %d", cfg.Experiment.Seed, DefaultSeed)
	}
	if cfg.Experiment.MinWords != DefaultMinWords {
		t.Errorf("MinWords = %d, want %d", cfg.Experiment.MinWords, DefaultMinWords)
	}
	if cfg.Experiment.OutputDir != DefaultOutputDir {
		t.Errorf("OutputDir = %q, want %q", cfg.Experiment.OutputDir, DefaultOutputDir)
	}
	if len(cfg.Chain.Languages) != 2 || cfg.Chain.Languages[0] != "french" {
		t.Errorf("Languages = %v, want [french hebrew]", cfg.Chain.Languages)
	}
	if cfg.Chain.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.Chain.MaxRetries, DefaultMaxRetries)
	}
	if cfg.Chain.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Chain.Timeout, DefaultTimeout)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`experimnet: {}`))
	if err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestLoadFromReader_EnvExpansion(t *testing.T) {
	t.Setenv("SEMDRIFT_TEST_KEY", "sk-from-env")
	cfg, err := LoadFromReader(strings.NewReader(`
providers:
  llm:
    name: openai
    api_key: ${SEMDRIFT_TEST_KEY}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.LLM.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want sk-from-env", cfg.Providers.LLM.APIKey)
	}
}

func TestLoadFromReader_UnsetEnvExpandsEmpty(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
providers:
  llm:
    name: openai
    api_key: ${SEMDRIFT_DEFINITELY_UNSET_VAR}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.LLM.APIKey != "" {
		t.Errorf("APIKey = %q, want empty", cfg.Providers.LLM.APIKey)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "verbose"}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Fatalf("err = %v, want log_level error", err)
	}
}

func TestValidate_ErrorRateOutOfRange(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	cfg.Experiment.ErrorRates = []float64{0, 150}
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "error_rates[1]") {
		t.Fatalf("err = %v, want error_rates error", err)
	}
}

func TestValidate_NegativeChainDurations(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	cfg.Chain.BaseDelay = -time.Second
	cfg.Chain.Timeout = -time.Minute
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "chain.base_delay") {
		t.Fatalf("err = %v, want chain.base_delay error", err)
	}
	if !strings.Contains(err.Error(), "chain.timeout") {
		t.Fatalf("err = %v, want chain.timeout error", err)
	}
}

func TestValidate_RemoteEmbeddingsWithoutKey(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	cfg.Providers.Embeddings = ProviderEntry{Name: "openai", Model: "text-embedding-3-small"}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("err = %v, want api_key error", err)
	}
}

func TestValidate_LocalEmbeddingsWithoutKey(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	cfg.Providers.Embeddings = ProviderEntry{Name: "ollama", Model: "nomic-embed-text"}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NestedFallbacksRejected(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	cfg.Providers.LLM = ProviderEntry{
		Name: "openai",
		Fallbacks: []ProviderEntry{
			{Name: "ollama", Fallbacks: []ProviderEntry{{Name: "gemini"}}},
		},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "nested fallbacks") {
		t.Fatalf("err = %v, want nested fallbacks error", err)
	}
}

func TestValidate_ArchiveEnabledNeedsDSN(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	cfg.Archive.Enabled = true
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "archive.dsn") {
		t.Fatalf("err = %v, want archive.dsn error", err)
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	cfg.Experiment.ErrorRates = []float64{-5}
	cfg.Chain.Temperature = 3
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "error_rates[0]") || !strings.Contains(msg, "chain.temperature") {
		t.Fatalf("err = %v, want both failures listed", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/semdrift.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.CreateLLM(ProviderEntry{Name: "openai"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
	_, err = reg.CreateEmbeddings(ProviderEntry{Name: "ollama"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
}
