package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/spf13/cobra"

	"github.com/asif-amar/semdrift/internal/analysis"
	"github.com/asif-amar/semdrift/internal/experiment"
	"github.com/asif-amar/semdrift/internal/observe"
	"github.com/asif-amar/semdrift/pkg/semantic"
)

var analyzeConcurrency int

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <experiment-id>",
		Short: "Compute semantic-drift metrics for a recorded experiment",
		Long: `Embed each original sentence and its round-trip result with the
configured embeddings provider, compute the distance metrics, write
metrics_output.csv, and print a drift table.

Results recorded by hand (via the results template) are validated first:
leftover TODO placeholders or blank stages abort the analysis.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 4, "concurrent embedding requests")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	experimentID := args[0]

	store := experiment.NewStore(cfg.Experiment.OutputDir)
	res, err := store.LoadResults(store.Path(experimentID, experiment.ResultsFile))
	if err != nil {
		return err
	}
	if err := experiment.ValidateResults(res); err != nil {
		return fmt.Errorf("results are incomplete:\n%w", err)
	}

	provider, err := buildEmbeddings(cfg)
	if err != nil {
		return err
	}
	calc := semantic.New(provider)

	ctx := cmd.Context()
	shutdownObserve, metrics, err := startObserve(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownObserve()

	rows := make([]experiment.MetricsRow, len(res.Results))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(analyzeConcurrency)
	for i, r := range res.Results {
		g.Go(func() error {
			row, err := scoreResult(gctx, calc, metrics, cfg.Providers.Embeddings.Name, r)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := store.SaveMetricsCSV(experimentID, rows); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	table := analysis.Join(res, rows)
	printDriftTable(out, table)
	fmt.Fprintf(out, "\nMetrics written to %s\n", store.Path(experimentID, experiment.MetricsFile))
	return nil
}

// scoreResult computes the metric set for one recorded result, tracing the
// work and recording embedding latency and the rows-analyzed counter.
func scoreResult(ctx context.Context, calc *semantic.Calculator, metrics *observe.Metrics, providerName string, r experiment.Result) (experiment.MetricsRow, error) {
	ctx, span := observe.StartSpan(ctx, "analyze.score",
		trace.WithAttributes(observe.Attr("case", r.ID)))
	defer span.End()

	start := time.Now()
	ms, err := calc.AllMetrics(ctx, r.Original, r.Final)
	metrics.EmbedDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("provider", providerName)))
	if err != nil {
		observe.RecordError(span, err)
		return experiment.MetricsRow{}, fmt.Errorf("score %s: %w", r.ID, err)
	}
	metrics.RowsAnalyzed.Add(ctx, 1)
	observe.Logger(ctx).Debug("row scored",
		"case", r.ID, "cosine_distance", ms.CosineDistance)

	return experiment.MetricsRow{
		ID:        r.ID,
		ErrorRate: r.ErrorRate,
		Original:  r.Original,
		Final:     r.Final,
		WordCount: r.WordCount,
		MetricSet: ms,
	}, nil
}

// printDriftTable prints the cosine-distance drift across error levels, the
// total degradation from the cleanest to the noisiest level, and the average
// degradation added per level.
func printDriftTable(out io.Writer, table *analysis.Table) {
	deltas, err := table.CompareAcrossLevels("cosine_distance")
	if err != nil {
		fmt.Fprintf(out, "no metrics to report: %v\n", err)
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Error Rate\tCosine Distance\tChange")
	for _, d := range deltas {
		change := analysis.NA
		if d.Change != nil {
			change = fmt.Sprintf("%+.4f", *d.Change)
		}
		fmt.Fprintf(w, "%.0f%%\t%.4f\t%s\n", d.ErrorRatePct, d.Value, change)
	}
	w.Flush()

	if len(deltas) > 1 {
		total := deltas[len(deltas)-1].Value - deltas[0].Value
		fmt.Fprintf(out, "\nTotal degradation: %+.4f\n", total)
		fmt.Fprintf(out, "Average per step:  %+.4f\n", total/float64(len(deltas)-1))
	}
}
