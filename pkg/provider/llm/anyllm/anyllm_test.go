package anyllm

import (
	"context"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/asif-amar/semdrift/pkg/provider/llm"
)

// ── New ───────────────────────────────────────────────────────────────────────

// TestNew_EmptyProviderName checks that an empty provider name is rejected.
func TestNew_EmptyProviderName(t *testing.T) {
	_, err := New("", "gpt-4o-mini")
	if err == nil {
		t.Fatal("expected error for empty provider name, got nil")
	}
}

// TestNew_EmptyModel checks that an empty model is rejected.
func TestNew_EmptyModel(t *testing.T) {
	_, err := New("openai", "")
	if err == nil {
		t.Fatal("expected error for empty model, got nil")
	}
}

// TestNew_UnsupportedProvider checks that an unknown provider name is rejected
// with a message enumerating the supported set.
func TestNew_UnsupportedProvider(t *testing.T) {
	_, err := New("bogus-provider", "some-model")
	if err == nil {
		t.Fatal("expected error for unsupported provider, got nil")
	}
}

// TestNew_OpenAI_WithAPIKey checks that a provider can be constructed when an
// API key is supplied explicitly.
func TestNew_OpenAI_WithAPIKey(t *testing.T) {
	p, err := New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-test"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.ModelID() != "gpt-4o-mini" {
		t.Errorf("ModelID() = %q, want %q", p.ModelID(), "gpt-4o-mini")
	}
}

// TestConvenienceConstructors checks that the New* helpers select the right
// backend without error.
func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		ctor func() (*Provider, error)
	}{
		{"openai", func() (*Provider, error) { return NewOpenAI("gpt-4o-mini", anyllmlib.WithAPIKey("k")) }},
		{"anthropic", func() (*Provider, error) { return NewAnthropic("claude-3-5-haiku-latest", anyllmlib.WithAPIKey("k")) }},
		{"ollama", func() (*Provider, error) { return NewOllama("llama3.2") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.ctor()
			if err != nil {
				t.Fatalf("constructor: %v", err)
			}
			if p == nil {
				t.Fatal("constructor returned nil provider")
			}
		})
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

func testProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-test"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// TestBuildParams_SystemPromptFirst checks that the system prompt becomes the
// first message.
func TestBuildParams_SystemPromptFirst(t *testing.T) {
	p := testProvider(t)
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are a translator.",
		Messages:     []llm.Message{{Role: "user", Content: "Translate this."}},
	})

	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first message role = %q, want system", params.Messages[0].Role)
	}
	if params.Messages[1].ContentString() != "Translate this." {
		t.Errorf("second message content = %q, want %q", params.Messages[1].ContentString(), "Translate this.")
	}
}

// TestBuildParams_TemperatureAndMaxTokens checks that optional sampling
// parameters are only set when non-zero.
func TestBuildParams_TemperatureAndMaxTokens(t *testing.T) {
	p := testProvider(t)

	params := p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: "hi"}},
		Temperature: 0.3,
		MaxTokens:   256,
	})
	if params.Temperature == nil || *params.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 256 {
		t.Errorf("MaxTokens = %v, want 256", params.MaxTokens)
	}

	params = p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if params.Temperature != nil {
		t.Errorf("Temperature = %v, want nil for zero value", params.Temperature)
	}
	if params.MaxTokens != nil {
		t.Errorf("MaxTokens = %v, want nil for zero value", params.MaxTokens)
	}
}

// TestBuildParams_Model checks that the configured model is carried through.
func TestBuildParams_Model(t *testing.T) {
	p := testProvider(t)
	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if params.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want gpt-4o-mini", params.Model)
	}
}

// ── CountTokens ───────────────────────────────────────────────────────────────

// TestCountTokens_Empty checks that empty text counts as zero tokens.
func TestCountTokens_Empty(t *testing.T) {
	p := testProvider(t)
	n, err := p.CountTokens("")
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if n != 0 {
		t.Errorf("CountTokens(\"\") = %d, want 0", n)
	}
}

// TestCountTokens_NonEmpty checks that real text produces a positive count
// that grows with the input.
func TestCountTokens_NonEmpty(t *testing.T) {
	p := testProvider(t)

	short, err := p.CountTokens("Hello world.")
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if short <= 0 {
		t.Fatalf("CountTokens(short) = %d, want > 0", short)
	}

	long, err := p.CountTokens("Hello world. The quick brown fox jumps over the lazy dog near the riverbank at dawn.")
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if long <= short {
		t.Errorf("CountTokens(long) = %d, want > %d", long, short)
	}
}

// ── Complete error wrapping ───────────────────────────────────────────────────

// TestComplete_ContextCancelled checks that a cancelled context surfaces as an
// error rather than hanging.
func TestComplete_ContextCancelled(t *testing.T) {
	p := testProvider(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}
