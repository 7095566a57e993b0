package analysis

import (
	"sort"
	"time"

	"github.com/asif-amar/semdrift/internal/experiment"
)

// Summary is the top-level report of one experiment: identity fields, the set
// of error rates exercised, and aggregate drift statistics when metrics are
// available.
type Summary struct {
	ExperimentID   string    `json:"experiment_id"`
	Timestamp      time.Time `json:"timestamp"`
	Mode           string    `json:"mode"`
	InputFile      string    `json:"input_file"`
	Description    string    `json:"description"`
	TotalSentences int       `json:"total_sentences"`
	// ErrorRates holds the distinct error-rate fractions present, sorted
	// ascending. Consumers should treat it as a set; only membership matters.
	ErrorRates []float64 `json:"error_rates"`
	// Metrics is nil when no metrics table was supplied.
	Metrics *MetricsSummary `json:"metrics,omitempty"`
}

// MetricsSummary aggregates the cosine-distance column of a metrics table.
type MetricsSummary struct {
	MinDistance  float64 `json:"min_distance"`
	MaxDistance  float64 `json:"max_distance"`
	MeanDistance float64 `json:"mean_distance"`
	// TotalDegradation is the cosine distance of the highest error level
	// minus that of the lowest (rows are sorted ascending). With fewer than
	// two rows there is nothing to subtract and the value is nil.
	TotalDegradation *float64 `json:"total_degradation"`
}

// Summarize builds the summary report for a recorded experiment. table may be
// nil or metric-free, in which case the report carries identity fields only.
// Identity fields the experiment never recorded default to "unknown" so the
// report is always fully populated.
func Summarize(res *experiment.Results, table *Table) Summary {
	s := Summary{
		ExperimentID:   orUnknown(res.ExperimentID),
		Timestamp:      res.Timestamp,
		Mode:           orUnknown(res.Mode),
		InputFile:      orUnknown(res.InputFile),
		Description:    res.Description,
		TotalSentences: len(res.Results),
		ErrorRates:     distinctRates(res.Results),
	}

	if table == nil || !table.HasMetrics() || table.Len() == 0 {
		return s
	}

	rows := table.Rows()
	ms := &MetricsSummary{
		MinDistance: rows[0].Metrics.CosineDistance,
		MaxDistance: rows[0].Metrics.CosineDistance,
	}
	var sum float64
	for _, r := range rows {
		d := r.Metrics.CosineDistance
		if d < ms.MinDistance {
			ms.MinDistance = d
		}
		if d > ms.MaxDistance {
			ms.MaxDistance = d
		}
		sum += d
	}
	ms.MeanDistance = sum / float64(len(rows))

	if len(rows) > 1 {
		deg := rows[len(rows)-1].Metrics.CosineDistance - rows[0].Metrics.CosineDistance
		ms.TotalDegradation = &deg
	}

	s.Metrics = ms
	return s
}

func distinctRates(results []experiment.Result) []float64 {
	seen := make(map[float64]struct{}, len(results))
	var rates []float64
	for _, r := range results {
		if _, ok := seen[r.ErrorRate]; ok {
			continue
		}
		seen[r.ErrorRate] = struct{}{}
		rates = append(rates, r.ErrorRate)
	}
	sort.Float64s(rates)
	return rates
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
