// Package experiment defines the artifact types of a drift experiment and the
// store that reads and writes them on disk. One experiment is a directory of
// files: the frozen run configuration, the agent prompt sheet, a results
// template, the recorded results, and the computed metrics.
package experiment

import (
	"strings"
	"time"

	"github.com/asif-amar/semdrift/pkg/semantic"
)

// Stage is one intermediate hop of the translation chain: the stage name
// (usually the target language) and the text produced for it. Stages are
// ordered; the slice preserves chain order.
type Stage struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Result is one experiment observation: a single sentence at a single error
// rate, tracked through the chain. Results are immutable once recorded; every
// derived view is a new value.
type Result struct {
	ID string `json:"id"`
	// ErrorRate is the fraction of words deliberately corrupted before
	// translation, in [0,1]. It is a label assigned by the preparation step,
	// never computed from the texts.
	ErrorRate  float64 `json:"error_rate"`
	Original   string  `json:"original"`
	Misspelled string  `json:"misspelled,omitempty"`
	Stages     []Stage `json:"stages,omitempty"`
	Final      string  `json:"final"`
	WordCount  int     `json:"word_count,omitempty"`
}

// StageText returns the text recorded for the named stage, or ok=false when
// the result has no such stage.
func (r Result) StageText(name string) (string, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s.Text, true
		}
	}
	return "", false
}

// Results is a complete recorded experiment: identity fields plus the
// per-sentence observations.
type Results struct {
	ExperimentID string    `json:"experiment_id"`
	Timestamp    time.Time `json:"timestamp"`
	Mode         string    `json:"mode"`
	InputFile    string    `json:"input_file,omitempty"`
	Description  string    `json:"description,omitempty"`
	Results      []Result  `json:"results"`
}

// MetricsRow is one scored observation: the identifying fields of a Result
// joined with its computed metric set. It is the row unit of the
// metrics_output.csv artifact. The embedded MetricSet flattens into the four
// metric columns when serialized.
type MetricsRow struct {
	ID        string  `json:"id"`
	ErrorRate float64 `json:"error_rate"`
	Original  string  `json:"original"`
	Final     string  `json:"final"`
	WordCount int     `json:"word_count"`

	semantic.MetricSet
}

// CountWords returns the whitespace-separated word count of text. This is the
// word_count every artifact records for a sentence.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// NewID derives an experiment identifier from a timestamp, in the
// exp_YYYYMMDD_HHMMSS form used for artifact directory names.
func NewID(now time.Time) string {
	return "exp_" + now.Format("20060102_150405")
}
