package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/asif-amar/semdrift/internal/analysis"
	"github.com/asif-amar/semdrift/internal/experiment"
)

var (
	reportSummary bool
	reportCompare bool
	reportChanges bool
	reportLevel   float64
	reportRange   []float64
	reportMetric  string
	reportJSON    bool
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <experiment-id>",
		Short: "Print analysis views of a completed experiment",
		Long: `Print selected views of an analyzed experiment. Views combine the
recorded results with the computed metrics when both exist; with only
metrics_output.csv present, text-only fields show N/A.

Examples:
  semdrift report exp_20260115_093000 --summary
  semdrift report exp_20260115_093000 --compare
  semdrift report exp_20260115_093000 --level 25
  semdrift report exp_20260115_093000 --range 10,50 --metric euclidean_distance
  semdrift report exp_20260115_093000 --changes --json`,
		Args: cobra.ExactArgs(1),
		RunE: runReport,
	}

	cmd.Flags().BoolVar(&reportSummary, "summary", false, "experiment summary with aggregate drift statistics")
	cmd.Flags().BoolVar(&reportCompare, "compare", false, "side-by-side original/misspelled/final comparison")
	cmd.Flags().BoolVar(&reportChanges, "changes", false, "lexical change statistics per case")
	cmd.Flags().Float64Var(&reportLevel, "level", -1, "statistics for one error level, as a percentage")
	cmd.Flags().Float64SliceVar(&reportRange, "range", nil, "restrict to an inclusive error-rate range, as min,max percentages")
	cmd.Flags().StringVar(&reportMetric, "metric", "cosine_distance", "metric column for the cross-level view")
	cmd.Flags().BoolVar(&reportJSON, "json", false, "emit JSON instead of text")

	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	experimentID := args[0]
	store := experiment.NewStore(cfg.Experiment.OutputDir)

	res, table, err := loadAnalysis(store, experimentID)
	if err != nil {
		return err
	}

	if len(reportRange) > 0 {
		if len(reportRange) != 2 {
			return fmt.Errorf("--range wants exactly two values, got %d", len(reportRange))
		}
		table = table.FilterByErrorRange(reportRange[0]/100, reportRange[1]/100)
	}

	out := cmd.OutOrStdout()
	switch {
	case reportSummary:
		return printSummary(out, res, table)
	case reportCompare:
		return printComparison(out, table)
	case reportChanges:
		return printChanges(out, table)
	case reportLevel >= 0:
		return printLevel(out, table, reportLevel/100)
	default:
		return printCrossLevels(out, table, reportMetric)
	}
}

// loadAnalysis assembles the analysis table from whatever artifacts exist.
// Both results.json and metrics_output.csv are optional individually, but at
// least one must be present.
func loadAnalysis(store *experiment.Store, experimentID string) (*experiment.Results, *analysis.Table, error) {
	res, resErr := store.LoadResults(store.Path(experimentID, experiment.ResultsFile))
	if resErr != nil && !errors.Is(resErr, os.ErrNotExist) {
		return nil, nil, resErr
	}

	metrics, csvErr := experiment.LoadMetricsCSV(store.Path(experimentID, experiment.MetricsFile))
	if csvErr != nil && !errors.Is(csvErr, os.ErrNotExist) {
		return nil, nil, csvErr
	}

	switch {
	case resErr == nil:
		return res, analysis.Join(res, metrics), nil
	case csvErr == nil:
		return nil, analysis.FromMetricsRows(metrics), nil
	default:
		return nil, nil, fmt.Errorf("experiment %s has no results or metrics; run and analyze it first", experimentID)
	}
}

func printSummary(out io.Writer, res *experiment.Results, table *analysis.Table) error {
	if res == nil {
		res = &experiment.Results{}
	}
	s := analysis.Summarize(res, table)
	if reportJSON {
		return writeJSON(out, s)
	}

	fmt.Fprintf(out, "Experiment:  %s\n", s.ExperimentID)
	fmt.Fprintf(out, "Mode:        %s\n", s.Mode)
	fmt.Fprintf(out, "Timestamp:   %s\n", s.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Input:       %s\n", s.InputFile)
	if s.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", s.Description)
	}
	fmt.Fprintf(out, "Cases:       %d\n", s.TotalSentences)
	fmt.Fprint(out, "Error rates:")
	for _, r := range s.ErrorRates {
		fmt.Fprintf(out, " %.0f%%", r*100)
	}
	fmt.Fprintln(out)

	if s.Metrics != nil {
		fmt.Fprintf(out, "\nCosine distance: min %.4f, mean %.4f, max %.4f\n",
			s.Metrics.MinDistance, s.Metrics.MeanDistance, s.Metrics.MaxDistance)
		if s.Metrics.TotalDegradation != nil {
			fmt.Fprintf(out, "Total degradation: %+.4f\n", *s.Metrics.TotalDegradation)
		}
	}
	return nil
}

func printComparison(out io.Writer, table *analysis.Table) error {
	rows := table.ComparisonRows()
	if reportJSON {
		return writeJSON(out, rows)
	}

	for _, r := range rows {
		fmt.Fprintf(out, "%s (%.0f%% errors, %d words)\n", r.ID, r.ErrorRatePct, r.WordCount)
		fmt.Fprintf(out, "  original:   %s\n", r.Original)
		fmt.Fprintf(out, "  misspelled: %s\n", r.Misspelled)
		for _, s := range r.Stages {
			fmt.Fprintf(out, "  %-11s %s\n", s.Name+":", s.Text)
		}
		fmt.Fprintf(out, "  final:      %s\n\n", r.Final)
	}
	return nil
}

type changeReport struct {
	ID           string  `json:"id"`
	ErrorRatePct float64 `json:"error_rate"`
	analysis.ChangeStats
}

func printChanges(out io.Writer, table *analysis.Table) error {
	reports := make([]changeReport, 0, table.Len())
	for _, r := range table.Rows() {
		reports = append(reports, changeReport{
			ID:           r.ID,
			ErrorRatePct: r.ErrorRatePct,
			ChangeStats:  analysis.TextChanges(r.Original, r.Final),
		})
	}
	if reportJSON {
		return writeJSON(out, reports)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Case\tError Rate\tRetention\tAdded\tRemoved\tEdit Dist\tJaro-Winkler")
	for _, c := range reports {
		fmt.Fprintf(w, "%s\t%.0f%%\t%.1f%%\t%d\t%d\t%d\t%.4f\n",
			c.ID, c.ErrorRatePct, c.RetentionRate*100, c.AddedWords, c.RemovedWords, c.EditDistance, c.JaroWinkler)
	}
	return w.Flush()
}

func printLevel(out io.Writer, table *analysis.Table, fraction float64) error {
	stats, ok := table.Level(fraction)
	if !ok {
		return fmt.Errorf("no results at error rate %.0f%%", fraction*100)
	}
	if reportJSON {
		return writeJSON(out, stats)
	}

	fmt.Fprintf(out, "Error rate: %.0f%%\n", stats.ErrorRate*100)
	fmt.Fprintf(out, "Original:   %s\n", stats.Original)
	fmt.Fprintf(out, "Misspelled: %s\n", stats.Misspelled)
	fmt.Fprintf(out, "Final:      %s\n", stats.Final)
	fmt.Fprintf(out, "Words:      %d\n", stats.WordCount)
	if m := stats.Metrics; m != nil {
		fmt.Fprintf(out, "Cosine distance:    %.4f\n", m.CosineDistance)
		fmt.Fprintf(out, "Cosine similarity:  %.4f\n", m.CosineSimilarity)
		fmt.Fprintf(out, "Euclidean distance: %.4f\n", m.EuclideanDistance)
		fmt.Fprintf(out, "Manhattan distance: %.4f\n", m.ManhattanDistance)
	}
	return nil
}

func printCrossLevels(out io.Writer, table *analysis.Table, metric string) error {
	deltas, err := table.CompareAcrossLevels(metric)
	if err != nil {
		return err
	}
	if reportJSON {
		return writeJSON(out, deltas)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Error Rate\t%s\tChange\t%% Change\n", metric)
	for _, d := range deltas {
		change, pct := analysis.NA, analysis.NA
		if d.Change != nil {
			change = fmt.Sprintf("%+.4f", *d.Change)
		}
		if d.PercentChange != nil {
			pct = fmt.Sprintf("%+.1f%%", *d.PercentChange)
		}
		fmt.Fprintf(w, "%.0f%%\t%.4f\t%s\t%s\n", d.ErrorRatePct, d.Value, change, pct)
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
