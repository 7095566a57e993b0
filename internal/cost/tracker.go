// Package cost tracks API token usage and estimated spend for translation
// experiments. Every LLM call made by the chain is logged with its token
// counts; costs are derived from a per-model pricing table (USD per one
// million tokens) and aggregated per agent for reporting.
package cost

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/asif-amar/semdrift/internal/observe"
	"github.com/asif-amar/semdrift/pkg/provider/llm"
)

// Pricing holds a model's USD price per one million tokens.
type Pricing struct {
	// Input is the price per 1M prompt tokens.
	Input float64 `json:"input"`
	// Output is the price per 1M completion tokens.
	Output float64 `json:"output"`
}

// DefaultPricing lists known per-model prices. Lookup falls back to the
// longest matching prefix, so "gpt-4o-mini-2024-07-18" resolves through
// "gpt-4o-mini". Unknown models cost zero and are logged once.
var DefaultPricing = map[string]Pricing{
	"claude-3-5-sonnet": {Input: 3.00, Output: 15.00},
	"claude-3-5-haiku":  {Input: 0.80, Output: 4.00},
	"claude-3-opus":     {Input: 15.00, Output: 75.00},
	"gpt-4o-mini":       {Input: 0.15, Output: 0.60},
	"gpt-4o":            {Input: 2.50, Output: 10.00},
	"gpt-4-turbo":       {Input: 10.00, Output: 30.00},
	"gpt-4":             {Input: 30.00, Output: 60.00},
	"gpt-3.5-turbo":     {Input: 0.50, Output: 1.50},
}

// Call is one logged API call.
type Call struct {
	Timestamp    time.Time     `json:"timestamp"`
	Agent        string        `json:"agent"`
	Model        string        `json:"model"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Cost         float64       `json:"cost"`
	ExperimentID string        `json:"experiment_id,omitempty"`
	Duration     time.Duration `json:"duration_ns,omitempty"`
}

// AgentSummary aggregates the calls made by one agent.
type AgentSummary struct {
	Calls        int     `json:"calls"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Summary is a point-in-time snapshot of everything the tracker has seen.
type Summary struct {
	TotalCalls        int                     `json:"total_calls"`
	TotalInputTokens  int                     `json:"total_input_tokens"`
	TotalOutputTokens int                     `json:"total_output_tokens"`
	TotalCost         float64                 `json:"total_cost"`
	ByAgent           map[string]AgentSummary `json:"by_agent"`
}

// Tracker records API calls and derives costs. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	calls    []Call
	pricing  map[string]Pricing
	unpriced map[string]bool
	metrics  *observe.Metrics
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPricing overrides or extends the default pricing table for one model.
func WithPricing(model string, p Pricing) Option {
	return func(t *Tracker) { t.pricing[model] = p }
}

// WithMetrics routes token and cost counters to m instead of the package
// default instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// New creates a Tracker with the default pricing table.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		pricing:  make(map[string]Pricing, len(DefaultPricing)),
		unpriced: make(map[string]bool),
	}
	for k, v := range DefaultPricing {
		t.pricing[k] = v
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	return t
}

// Record logs one API call and returns its estimated cost in USD.
func (t *Tracker) Record(ctx context.Context, agent, model, experimentID string, usage llm.Usage, dur time.Duration) float64 {
	t.mu.Lock()
	price, ok := t.lookupLocked(model)
	if !ok && !t.unpriced[model] {
		t.unpriced[model] = true
		slog.Warn("no pricing for model; cost recorded as zero", "model", model)
	}

	cost := float64(usage.PromptTokens)*price.Input/1e6 +
		float64(usage.CompletionTokens)*price.Output/1e6

	t.calls = append(t.calls, Call{
		Timestamp:    time.Now(),
		Agent:        agent,
		Model:        model,
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		Cost:         cost,
		ExperimentID: experimentID,
		Duration:     dur,
	})
	t.mu.Unlock()

	t.metrics.RecordTokens(ctx, model, usage.PromptTokens, usage.CompletionTokens)
	t.metrics.RecordCost(ctx, agent, model, cost)
	return cost
}

// lookupLocked resolves pricing for model, falling back to the longest
// matching table-key prefix. Must be called with t.mu held.
func (t *Tracker) lookupLocked(model string) (Pricing, bool) {
	if p, ok := t.pricing[model]; ok {
		return p, true
	}
	best := ""
	for k := range t.pricing {
		if strings.HasPrefix(model, k) && len(k) > len(best) {
			best = k
		}
	}
	if best != "" {
		return t.pricing[best], true
	}
	return Pricing{}, false
}

// TotalCost returns the sum of all recorded call costs.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total float64
	for _, c := range t.calls {
		total += c.Cost
	}
	return total
}

// Summary builds an aggregate snapshot of all recorded calls.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{ByAgent: make(map[string]AgentSummary)}
	for _, c := range t.calls {
		s.TotalCalls++
		s.TotalInputTokens += c.InputTokens
		s.TotalOutputTokens += c.OutputTokens
		s.TotalCost += c.Cost

		a := s.ByAgent[c.Agent]
		a.Calls++
		a.InputTokens += c.InputTokens
		a.OutputTokens += c.OutputTokens
		a.Cost += c.Cost
		s.ByAgent[c.Agent] = a
	}
	return s
}

// Calls returns a copy of every recorded call in order.
func (t *Tracker) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Call, len(t.calls))
	copy(out, t.calls)
	return out
}

// report is the JSON artifact layout written by WriteReport.
type report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Summary     Summary   `json:"summary"`
	Calls       []Call    `json:"calls"`
}

// WriteReport writes a JSON cost report containing the summary and the full
// call log to path.
func (t *Tracker) WriteReport(path string) error {
	r := report{
		GeneratedAt: time.Now(),
		Summary:     t.Summary(),
		Calls:       t.Calls(),
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("cost: marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cost: write report: %w", err)
	}
	return nil
}

// PricingTable returns the model names in the pricing table with their
// prices, sorted by model name. Used by the info command.
func (t *Tracker) PricingTable() []struct {
	Model   string
	Pricing Pricing
} {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, 0, len(t.pricing))
	for k := range t.pricing {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]struct {
		Model   string
		Pricing Pricing
	}, 0, len(names))
	for _, n := range names {
		out = append(out, struct {
			Model   string
			Pricing Pricing
		}{n, t.pricing[n]})
	}
	return out
}
