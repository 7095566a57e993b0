// Package analysis turns recorded experiment results into comparison tables,
// lexical-change statistics, cross-level deltas, and summary reports. It is a
// pure transformation layer: no backend calls, no clock, no randomness, so
// every function is a plain function of its inputs.
//
// Tables are keyed by display percentage (error_rate * 100) while queries
// take the [0,1] fractions used everywhere else in the pipeline; the
// conversion lives here and nowhere else.
package analysis

import (
	"math"
	"sort"

	"github.com/asif-amar/semdrift/internal/experiment"
	"github.com/asif-amar/semdrift/pkg/semantic"
)

// NA is the sentinel shown for optional fields a result did not record.
const NA = "N/A"

// rateTolerance absorbs float error when matching fraction-derived
// percentages against table rows. 0.1*100 is not exactly 10 in IEEE
// arithmetic, and rows loaded back from CSV carry the exact value.
const rateTolerance = 1e-9

// Row is one analysis-table row: a result joined with its metric set, keyed
// by display percentage. Optional fields keep their raw (possibly empty)
// values; the view methods apply the documented defaults.
type Row struct {
	ID           string
	ErrorRatePct float64
	Original     string
	Misspelled   string
	Stages       []experiment.Stage
	Final        string
	WordCount    int
	Metrics      semantic.MetricSet
}

// Table is an ordered collection of rows sorted by ascending error rate.
// Row-to-row statistics (change since previous level) rely on that order.
type Table struct {
	rows       []Row
	hasMetrics bool
}

// Join builds a Table from recorded results and their computed metrics,
// matched by result ID. metrics may be nil when only textual comparison is
// wanted; the table then reports no metric columns.
func Join(res *experiment.Results, metrics []experiment.MetricsRow) *Table {
	byID := make(map[string]semantic.MetricSet, len(metrics))
	for _, m := range metrics {
		byID[m.ID] = m.MetricSet
	}

	rows := make([]Row, 0, len(res.Results))
	for _, r := range res.Results {
		row := Row{
			ID:           r.ID,
			ErrorRatePct: r.ErrorRate * 100,
			Original:     r.Original,
			Misspelled:   r.Misspelled,
			Stages:       r.Stages,
			Final:        r.Final,
			WordCount:    r.WordCount,
		}
		if m, ok := byID[r.ID]; ok {
			row.Metrics = m
		}
		rows = append(rows, row)
	}
	return newTable(rows, len(metrics) > 0)
}

// FromMetricsRows builds a Table directly from a metrics artifact, e.g. a
// loaded metrics_output.csv. Fields the artifact does not carry (misspelled
// text, intermediate stages) stay empty and surface as sentinels in views.
func FromMetricsRows(metrics []experiment.MetricsRow) *Table {
	rows := make([]Row, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, Row{
			ID:           m.ID,
			ErrorRatePct: m.ErrorRate * 100,
			Original:     m.Original,
			Final:        m.Final,
			WordCount:    m.WordCount,
			Metrics:      m.MetricSet,
		})
	}
	return newTable(rows, true)
}

func newTable(rows []Row, hasMetrics bool) *Table {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ErrorRatePct < sorted[j].ErrorRatePct
	})
	return &Table{rows: sorted, hasMetrics: hasMetrics}
}

// Rows returns the table rows in ascending error-rate order. The slice is
// shared; callers must treat it as read-only.
func (t *Table) Rows() []Row { return t.rows }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// HasMetrics reports whether the table carries metric values.
func (t *Table) HasMetrics() bool { return t.hasMetrics }

// ComparisonRow is the flat display projection of a Row: percentages instead
// of fractions and sentinels instead of missing values.
type ComparisonRow struct {
	ID           string
	ErrorRatePct float64
	Original     string
	Misspelled   string
	Stages       []experiment.Stage
	Final        string
	WordCount    int
}

// ComparisonRows projects every row for side-by-side display. A missing
// misspelled text defaults to the original (an uncorrupted run), missing
// stage texts and finals default to the sentinel, and a missing word count is
// recomputed from the original sentence.
func (t *Table) ComparisonRows() []ComparisonRow {
	out := make([]ComparisonRow, 0, len(t.rows))
	for _, r := range t.rows {
		cr := ComparisonRow{
			ID:           orNA(r.ID),
			ErrorRatePct: r.ErrorRatePct,
			Original:     r.Original,
			Misspelled:   r.Misspelled,
			Final:        orNA(r.Final),
			WordCount:    r.WordCount,
		}
		if cr.Misspelled == "" {
			cr.Misspelled = r.Original
		}
		if cr.WordCount == 0 {
			cr.WordCount = experiment.CountWords(r.Original)
		}
		cr.Stages = make([]experiment.Stage, len(r.Stages))
		for i, s := range r.Stages {
			cr.Stages[i] = experiment.Stage{Name: s.Name, Text: orNA(s.Text)}
		}
		out = append(out, cr)
	}
	return out
}

// LevelStats is the per-error-level view of a single row. Metrics is nil when
// the table carries no metric values.
type LevelStats struct {
	// ErrorRate echoes the queried fraction, not the display percentage.
	ErrorRate  float64
	Original   string
	Misspelled string
	Final      string
	WordCount  int
	Metrics    *semantic.MetricSet
}

// Level returns the statistics for the first row matching the given error
// rate, passed as a [0,1] fraction. A missing level is a normal query
// outcome, reported through ok=false rather than an error.
func (t *Table) Level(fraction float64) (LevelStats, bool) {
	pct := fraction * 100
	for _, r := range t.rows {
		if math.Abs(r.ErrorRatePct-pct) > rateTolerance {
			continue
		}
		stats := LevelStats{
			ErrorRate:  fraction,
			Original:   orNA(r.Original),
			Misspelled: orNA(r.Misspelled),
			Final:      orNA(r.Final),
			WordCount:  r.WordCount,
		}
		if t.hasMetrics {
			m := r.Metrics
			stats.Metrics = &m
		}
		return stats, true
	}
	return LevelStats{}, false
}

// FilterByErrorRange returns the subtable whose rows fall inside the
// inclusive [minFraction, maxFraction] error-rate range. An empty result is a
// valid outcome, not an error.
func (t *Table) FilterByErrorRange(minFraction, maxFraction float64) *Table {
	minPct := minFraction*100 - rateTolerance
	maxPct := maxFraction*100 + rateTolerance

	var rows []Row
	for _, r := range t.rows {
		if r.ErrorRatePct >= minPct && r.ErrorRatePct <= maxPct {
			rows = append(rows, r)
		}
	}
	return &Table{rows: rows, hasMetrics: t.hasMetrics}
}

func orNA(s string) string {
	if s == "" {
		return NA
	}
	return s
}
