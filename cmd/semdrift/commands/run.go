package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/asif-amar/semdrift/internal/chain"
	"github.com/asif-amar/semdrift/internal/config"
	"github.com/asif-amar/semdrift/internal/cost"
	"github.com/asif-amar/semdrift/internal/experiment"
	"github.com/asif-amar/semdrift/internal/observe"
)

// CostReportFile is the per-experiment cost report artifact.
const CostReportFile = "cost_report.json"

var (
	runInteractive bool
	runDryRun      bool
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <experiment-id>",
		Short: "Run a prepared experiment through the translation chain",
		Long: `Feed every prepared case through the configured translation chain and
record the results.

By default the chain is driven by the configured LLM provider. With
--interactive, each stage prompt is printed and the translation is read from
stdin instead, so a human or an external agent session can perform the
translations. With --dry-run, the plan is printed and nothing is executed.`,
		Args: cobra.ExactArgs(1),
		RunE: runRun,
	}

	cmd.Flags().BoolVar(&runInteractive, "interactive", false, "read translations from stdin instead of calling the LLM")
	cmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print the execution plan without running anything")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	experimentID := args[0]

	store := experiment.NewStore(cfg.Experiment.OutputDir)
	runCfg, err := store.LoadConfig(experimentID)
	if err != nil {
		return err
	}

	if runDryRun {
		return printPlan(cmd, cfg, runCfg)
	}

	ctx := cmd.Context()
	shutdownObserve, metrics, err := startObserve(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownObserve()

	costs := newCostTracker(cfg, metrics)

	opts := []chain.Option{
		chain.WithLanguages(runCfg.Languages),
		chain.WithRetries(cfg.Chain.MaxRetries),
		chain.WithBaseDelay(cfg.Chain.BaseDelay),
		chain.WithTimeout(cfg.Chain.Timeout),
		chain.WithTemperature(cfg.Chain.Temperature),
		chain.WithCostTracker(costs),
		chain.WithMetrics(metrics),
		chain.WithExperimentID(experimentID),
	}

	mode := config.ModeAutomated
	var runner *chain.Runner
	if runInteractive {
		mode = config.ModeInteractive
		// The interactive runner never touches the provider.
		runner = chain.New(nil, opts...)
	} else {
		provider, err := buildLLM(cfg)
		if err != nil {
			return err
		}
		runner = chain.New(provider, opts...)
	}

	res := &experiment.Results{
		ExperimentID: experimentID,
		Timestamp:    time.Now().UTC(),
		Mode:         string(mode),
		InputFile:    runCfg.InputFile,
		Description:  runCfg.Description,
	}

	start := time.Now()
	for i, tc := range runCfg.TestCases {
		c := chain.Case{
			ID:         tc.CaseID,
			Original:   tc.Original,
			Misspelled: tc.Misspelled,
			ErrorRate:  tc.ErrorRate,
		}

		slog.Info("running case", "case", tc.CaseID, "progress", fmt.Sprintf("%d/%d", i+1, len(runCfg.TestCases)))

		var r experiment.Result
		if runInteractive {
			r, err = runner.RunCaseInteractive(c)
		} else {
			r, err = runner.RunCase(ctx, c)
		}
		if err != nil {
			return fmt.Errorf("case %s: %w", tc.CaseID, err)
		}
		res.Results = append(res.Results, r)
	}

	if err := store.SaveResults(res); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nExperiment %s complete: %d cases in %s\n",
		experimentID, len(res.Results), time.Since(start).Round(time.Second))

	if !runInteractive {
		if err := costs.WriteReport(store.Path(experimentID, CostReportFile)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Total cost: $%.4f (report: %s)\n",
			costs.TotalCost(), store.Path(experimentID, CostReportFile))
	}
	fmt.Fprintf(out, "Next: semdrift analyze %s\n", experimentID)
	return nil
}

func printPlan(cmd *cobra.Command, cfg *config.Config, runCfg *experiment.RunConfig) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Experiment %s\n", runCfg.ExperimentID)
	fmt.Fprintf(out, "Provider:  %s / %s\n", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	fmt.Fprint(out, "Chain:     english")
	for _, step := range chain.Steps(runCfg.Languages) {
		fmt.Fprintf(out, " → %s", step.To)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Cases:     %d\n", len(runCfg.TestCases))
	for _, tc := range runCfg.TestCases {
		fmt.Fprintf(out, "  %-12s rate=%.0f%%  %q\n", tc.CaseID, tc.ErrorRate*100, tc.Misspelled)
	}
	return nil
}

// startObserve initialises the OTel provider and, when configured, the
// Prometheus scrape endpoint. The returned shutdown func is always safe to
// call.
func startObserve(ctx context.Context, cfg *config.Config) (shutdown func(), metrics *observe.Metrics, err error) {
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Observe.ServiceName,
		ServiceVersion: versionInfo.Version,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init telemetry: %w", err)
	}
	metrics = observe.DefaultMetrics()

	var srv *observe.Server
	if cfg.Observe.PrometheusAddr != "" {
		srv = observe.NewServer(cfg.Observe.PrometheusAddr, metrics)
		srv.Start()
	}

	shutdown = func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if srv != nil {
			if err := srv.Shutdown(shCtx); err != nil {
				slog.Warn("metrics server shutdown", "error", err)
			}
		}
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}
	return shutdown, metrics, nil
}

// newCostTracker builds a tracker with the built-in pricing table plus any
// per-model overrides from the costs section.
func newCostTracker(cfg *config.Config, metrics *observe.Metrics) *cost.Tracker {
	opts := []cost.Option{cost.WithMetrics(metrics)}
	for model, entry := range cfg.Costs {
		opts = append(opts, cost.WithPricing(model, cost.Pricing{
			Input:  entry.Input,
			Output: entry.Output,
		}))
	}
	return cost.New(opts...)
}
