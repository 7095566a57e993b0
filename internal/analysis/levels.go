package analysis

import (
	"fmt"
	"strings"

	"github.com/asif-amar/semdrift/pkg/semantic"
)

// MetricNotFoundError reports a request for a metric column the table does
// not carry. The message enumerates the available columns. Like an
// unsupported metric name, this is a programming-time error and is surfaced
// immediately.
type MetricNotFoundError struct {
	// Metric is the rejected column name.
	Metric string
	// Available lists the columns the table does carry.
	Available []string
}

func (e *MetricNotFoundError) Error() string {
	return fmt.Sprintf("analysis: metric %q not found in table (available: %s)",
		e.Metric, strings.Join(e.Available, ", "))
}

// LevelDelta is one row of a cross-level metric comparison: the metric value
// at an error level plus its change relative to the previous level.
//
// Change and PercentChange are nil for the first row, which has no previous
// level; nil is distinct from a real zero delta. PercentChange is also nil
// when the previous value is zero, since the ratio is undefined and the
// output must stay finite and serializable.
type LevelDelta struct {
	ErrorRatePct  float64  `json:"error_rate"`
	Value         float64  `json:"value"`
	Change        *float64 `json:"change"`
	PercentChange *float64 `json:"percent_change"`
}

// CompareAcrossLevels extracts one metric column and computes row-to-row
// deltas down the table. Rows are already in ascending error-rate order, so
// each delta reads as "degradation added by this error level".
//
// Fails with *MetricNotFoundError when the table does not carry the column.
func (t *Table) CompareAcrossLevels(metric string) ([]LevelDelta, error) {
	if _, ok := (semantic.MetricSet{}).Value(metric); !ok || !t.hasMetrics {
		return nil, &MetricNotFoundError{Metric: metric, Available: t.availableColumns()}
	}

	deltas := make([]LevelDelta, 0, len(t.rows))
	for i, r := range t.rows {
		value, _ := r.Metrics.Value(metric)
		d := LevelDelta{ErrorRatePct: r.ErrorRatePct, Value: value}

		if i > 0 {
			prev, _ := t.rows[i-1].Metrics.Value(metric)
			change := value - prev
			d.Change = &change
			if prev != 0 {
				pct := change / prev * 100
				d.PercentChange = &pct
			}
		}
		deltas = append(deltas, d)
	}
	return deltas, nil
}

func (t *Table) availableColumns() []string {
	if !t.hasMetrics {
		return nil
	}
	return semantic.MetricColumns
}
