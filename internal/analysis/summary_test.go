package analysis_test

import (
	"math"
	"testing"
	"time"

	"github.com/asif-amar/semdrift/internal/analysis"
	"github.com/asif-amar/semdrift/internal/experiment"
)

// TestSummarize verifies the identity fields, sentence count, and error-rate
// set of a basic two-result experiment.
func TestSummarize(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	res := &experiment.Results{
		ExperimentID: "exp_20250601_120000",
		Timestamp:    ts,
		Mode:         "chain",
		InputFile:    "sentences.txt",
		Description:  "baseline run",
		Results: []experiment.Result{
			{ID: "s1", ErrorRate: 0.15, Original: "one", Final: "uno"},
			{ID: "s2", ErrorRate: 0.25, Original: "two", Final: "dos"},
		},
	}

	s := analysis.Summarize(res, nil)

	if s.ExperimentID != "exp_20250601_120000" {
		t.Errorf("ExperimentID: got %q, want %q", s.ExperimentID, "exp_20250601_120000")
	}
	if !s.Timestamp.Equal(ts) {
		t.Errorf("Timestamp: got %v, want %v", s.Timestamp, ts)
	}
	if s.Mode != "chain" {
		t.Errorf("Mode: got %q, want %q", s.Mode, "chain")
	}
	if s.TotalSentences != 2 {
		t.Errorf("TotalSentences: got %d, want 2", s.TotalSentences)
	}
	want := []float64{0.15, 0.25}
	if len(s.ErrorRates) != len(want) {
		t.Fatalf("ErrorRates: got %v, want %v", s.ErrorRates, want)
	}
	for i, r := range want {
		if s.ErrorRates[i] != r {
			t.Errorf("ErrorRates[%d]: got %v, want %v", i, s.ErrorRates[i], r)
		}
	}
	if s.Metrics != nil {
		t.Errorf("Metrics: got %+v, want nil without a metrics table", s.Metrics)
	}
}

// TestSummarize_ErrorRatesAreSet verifies that repeated error rates collapse
// to one entry and come back sorted regardless of input order.
func TestSummarize_ErrorRatesAreSet(t *testing.T) {
	res := &experiment.Results{
		Results: []experiment.Result{
			{ID: "s1", ErrorRate: 0.3},
			{ID: "s2", ErrorRate: 0.1},
			{ID: "s3", ErrorRate: 0.3},
			{ID: "s4", ErrorRate: 0.1},
			{ID: "s5", ErrorRate: 0.2},
		},
	}

	s := analysis.Summarize(res, nil)

	if s.TotalSentences != 5 {
		t.Errorf("TotalSentences: got %d, want 5", s.TotalSentences)
	}
	want := []float64{0.1, 0.2, 0.3}
	if len(s.ErrorRates) != len(want) {
		t.Fatalf("ErrorRates: got %v, want %v", s.ErrorRates, want)
	}
	for i, r := range want {
		if s.ErrorRates[i] != r {
			t.Errorf("ErrorRates[%d]: got %v, want %v", i, s.ErrorRates[i], r)
		}
	}
}

// TestSummarize_Metrics verifies the cosine-distance aggregates: min, max,
// mean, and total degradation as highest level minus lowest.
func TestSummarize_Metrics(t *testing.T) {
	res := &experiment.Results{
		ExperimentID: "exp_x",
		Results: []experiment.Result{
			{ID: "a", ErrorRate: 0},
			{ID: "b", ErrorRate: 0.1},
			{ID: "c", ErrorRate: 0.2},
		},
	}
	metrics := []experiment.MetricsRow{
		metricsRow("a", 0, 0.05),
		metricsRow("b", 0.1, 0.2),
		metricsRow("c", 0.2, 0.35),
	}

	s := analysis.Summarize(res, analysis.Join(res, metrics))
	if s.Metrics == nil {
		t.Fatal("Metrics: got nil, want aggregates")
	}

	if got := s.Metrics.MinDistance; got != 0.05 {
		t.Errorf("MinDistance: got %v, want 0.05", got)
	}
	if got := s.Metrics.MaxDistance; got != 0.35 {
		t.Errorf("MaxDistance: got %v, want 0.35", got)
	}
	if got := s.Metrics.MeanDistance; math.Abs(got-0.2) > 1e-12 {
		t.Errorf("MeanDistance: got %v, want 0.2", got)
	}
	if s.Metrics.TotalDegradation == nil {
		t.Fatal("TotalDegradation: got nil, want last minus first")
	}
	if got := *s.Metrics.TotalDegradation; math.Abs(got-0.3) > 1e-12 {
		t.Errorf("TotalDegradation: got %v, want 0.3", got)
	}
}

// TestSummarize_SingleRowNoDegradation verifies that total degradation stays
// nil when there is only one level to report.
func TestSummarize_SingleRowNoDegradation(t *testing.T) {
	res := &experiment.Results{
		Results: []experiment.Result{{ID: "a", ErrorRate: 0.1}},
	}
	metrics := []experiment.MetricsRow{metricsRow("a", 0.1, 0.2)}

	s := analysis.Summarize(res, analysis.Join(res, metrics))
	if s.Metrics == nil {
		t.Fatal("Metrics: got nil, want aggregates")
	}
	if s.Metrics.TotalDegradation != nil {
		t.Errorf("TotalDegradation: got %v, want nil for a single row", *s.Metrics.TotalDegradation)
	}
	if s.Metrics.MinDistance != 0.2 || s.Metrics.MaxDistance != 0.2 {
		t.Errorf("single-row min/max: got %v/%v, want 0.2/0.2",
			s.Metrics.MinDistance, s.Metrics.MaxDistance)
	}
}

// TestSummarize_UnknownDefaults verifies that missing identity fields come
// back as "unknown" so reports are always fully populated.
func TestSummarize_UnknownDefaults(t *testing.T) {
	s := analysis.Summarize(&experiment.Results{}, nil)

	if s.ExperimentID != "unknown" {
		t.Errorf("ExperimentID: got %q, want %q", s.ExperimentID, "unknown")
	}
	if s.Mode != "unknown" {
		t.Errorf("Mode: got %q, want %q", s.Mode, "unknown")
	}
	if s.InputFile != "unknown" {
		t.Errorf("InputFile: got %q, want %q", s.InputFile, "unknown")
	}
	if s.TotalSentences != 0 {
		t.Errorf("TotalSentences: got %d, want 0", s.TotalSentences)
	}
	if len(s.ErrorRates) != 0 {
		t.Errorf("ErrorRates: got %v, want empty", s.ErrorRates)
	}
}

// TestSummarize_MetricFreeTable verifies that a comparison-only table yields
// no metrics block rather than zeroed aggregates.
func TestSummarize_MetricFreeTable(t *testing.T) {
	res := &experiment.Results{
		Results: []experiment.Result{{ID: "a", ErrorRate: 0.1, Original: "x", Final: "y"}},
	}

	s := analysis.Summarize(res, analysis.Join(res, nil))
	if s.Metrics != nil {
		t.Errorf("Metrics: got %+v, want nil for a metric-free table", s.Metrics)
	}
}
