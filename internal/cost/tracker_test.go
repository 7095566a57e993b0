package cost_test

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/asif-amar/semdrift/internal/cost"
	"github.com/asif-amar/semdrift/internal/observe"
	"github.com/asif-amar/semdrift/pkg/provider/llm"
)

// newTracker returns a Tracker wired to an isolated meter provider so tests
// never touch the global instruments.
func newTracker(t *testing.T, opts ...cost.Option) *cost.Tracker {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return cost.New(append(opts, cost.WithMetrics(m))...)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

// TestRecord_KnownModel checks the per-1M-token cost arithmetic.
func TestRecord_KnownModel(t *testing.T) {
	t.Parallel()
	tr := newTracker(t)

	got := tr.Record(context.Background(), "english_to_french", "gpt-4o-mini", "exp_1",
		llm.Usage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}, time.Second)

	// 0.15 input + 0.60 output per 1M tokens.
	if want := 0.75; !almostEqual(got, want) {
		t.Errorf("cost = %v, want %v", got, want)
	}
	if total := tr.TotalCost(); !almostEqual(total, got) {
		t.Errorf("TotalCost() = %v, want %v", total, got)
	}
}

// TestRecord_PrefixMatch checks that dated model variants resolve through
// their base model's pricing.
func TestRecord_PrefixMatch(t *testing.T) {
	t.Parallel()
	tr := newTracker(t)

	got := tr.Record(context.Background(), "agent", "gpt-4o-mini-2024-07-18", "",
		llm.Usage{PromptTokens: 2_000_000}, 0)

	if want := 0.30; !almostEqual(got, want) {
		t.Errorf("cost = %v, want %v (gpt-4o-mini input pricing)", got, want)
	}
}

// TestRecord_UnknownModel checks that unpriced models record zero cost
// without failing.
func TestRecord_UnknownModel(t *testing.T) {
	t.Parallel()
	tr := newTracker(t)

	got := tr.Record(context.Background(), "agent", "some-local-model", "",
		llm.Usage{PromptTokens: 500, CompletionTokens: 500}, 0)
	if got != 0 {
		t.Errorf("cost = %v, want 0 for unknown model", got)
	}
}

// TestRecord_CustomPricing checks that WithPricing overrides the table.
func TestRecord_CustomPricing(t *testing.T) {
	t.Parallel()
	tr := newTracker(t, cost.WithPricing("my-model", cost.Pricing{Input: 1.0, Output: 2.0}))

	got := tr.Record(context.Background(), "agent", "my-model", "",
		llm.Usage{PromptTokens: 1_000_000, CompletionTokens: 500_000}, 0)
	if want := 2.0; !almostEqual(got, want) {
		t.Errorf("cost = %v, want %v", got, want)
	}
}

// TestSummary_AggregatesPerAgent checks the per-agent rollup.
func TestSummary_AggregatesPerAgent(t *testing.T) {
	t.Parallel()
	tr := newTracker(t)
	ctx := context.Background()

	tr.Record(ctx, "english_to_french", "gpt-4o-mini", "exp_1", llm.Usage{PromptTokens: 100, CompletionTokens: 50}, 0)
	tr.Record(ctx, "english_to_french", "gpt-4o-mini", "exp_1", llm.Usage{PromptTokens: 100, CompletionTokens: 50}, 0)
	tr.Record(ctx, "french_to_hebrew", "gpt-4o-mini", "exp_1", llm.Usage{PromptTokens: 200, CompletionTokens: 80}, 0)

	s := tr.Summary()
	if s.TotalCalls != 3 {
		t.Errorf("TotalCalls = %d, want 3", s.TotalCalls)
	}
	if s.TotalInputTokens != 400 {
		t.Errorf("TotalInputTokens = %d, want 400", s.TotalInputTokens)
	}
	if s.TotalOutputTokens != 180 {
		t.Errorf("TotalOutputTokens = %d, want 180", s.TotalOutputTokens)
	}
	if got := s.ByAgent["english_to_french"].Calls; got != 2 {
		t.Errorf("english_to_french calls = %d, want 2", got)
	}
	if got := s.ByAgent["french_to_hebrew"].InputTokens; got != 200 {
		t.Errorf("french_to_hebrew input tokens = %d, want 200", got)
	}
}

// TestWriteReport_RoundTrip checks that the JSON artifact carries the summary
// and the call log.
func TestWriteReport_RoundTrip(t *testing.T) {
	t.Parallel()
	tr := newTracker(t)
	tr.Record(context.Background(), "agent", "gpt-4o-mini", "exp_9",
		llm.Usage{PromptTokens: 10, CompletionTokens: 5}, 0)

	path := filepath.Join(t.TempDir(), "cost_report.json")
	if err := tr.WriteReport(path); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var decoded struct {
		Summary cost.Summary `json:"summary"`
		Calls   []cost.Call  `json:"calls"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Summary.TotalCalls != 1 {
		t.Errorf("report TotalCalls = %d, want 1", decoded.Summary.TotalCalls)
	}
	if len(decoded.Calls) != 1 || decoded.Calls[0].ExperimentID != "exp_9" {
		t.Errorf("report calls = %+v, want one call for exp_9", decoded.Calls)
	}
}

// TestPricingTable_Sorted checks deterministic ordering for display.
func TestPricingTable_Sorted(t *testing.T) {
	t.Parallel()
	tr := newTracker(t)
	table := tr.PricingTable()
	if len(table) == 0 {
		t.Fatal("empty pricing table")
	}
	for i := 1; i < len(table); i++ {
		if table[i-1].Model >= table[i].Model {
			t.Fatalf("pricing table not sorted: %q before %q", table[i-1].Model, table[i].Model)
		}
	}
}
