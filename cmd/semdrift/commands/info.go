package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/asif-amar/semdrift/internal/chain"
	"github.com/asif-amar/semdrift/internal/config"
)

// NewInfoCmd creates the info command.
func NewInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the resolved configuration, providers, and pricing",
		Args:  cobra.NoArgs,
		RunE:  runInfo,
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Config file:  %s\n", configPath)
	fmt.Fprintf(out, "Log level:    %s\n", cfg.LogLevel)
	fmt.Fprintf(out, "Output dir:   %s\n", cfg.Experiment.OutputDir)
	fmt.Fprintf(out, "Seed:         %d\n", cfg.Experiment.Seed)
	fmt.Fprint(out, "Error rates: ")
	for _, r := range cfg.Experiment.ErrorRates {
		fmt.Fprintf(out, " %.0f%%", r)
	}
	fmt.Fprintln(out)

	fmt.Fprint(out, "\nChain:        english")
	for _, step := range chain.Steps(cfg.Chain.Languages) {
		fmt.Fprintf(out, " → %s", step.To)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Temperature:  %.1f\n", cfg.Chain.Temperature)
	fmt.Fprintf(out, "Max retries:  %d\n", cfg.Chain.MaxRetries)
	fmt.Fprintf(out, "Timeout:      %s\n", cfg.Chain.Timeout)

	fmt.Fprintln(out)
	printConfiguredProvider(out, "LLM", cfg.Providers.LLM)
	printConfiguredProvider(out, "Embeddings", cfg.Providers.Embeddings)

	if cfg.Archive.Enabled {
		fmt.Fprintf(out, "Archive:      enabled (%d dimensions)\n", cfg.Archive.EmbeddingDimensions)
	} else {
		fmt.Fprintln(out, "Archive:      disabled")
	}
	if cfg.Observe.PrometheusAddr != "" {
		fmt.Fprintf(out, "Metrics:      %s\n", cfg.Observe.PrometheusAddr)
	}

	fmt.Fprintln(out, "\nBuilt-in providers:")
	kinds := make([]string, 0, len(builtinProviders))
	for k := range builtinProviders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(out, "  %-11s %s\n", k+":", strings.Join(builtinProviders[k], ", "))
	}

	fmt.Fprintln(out, "\nPricing (USD per 1M tokens):")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  Model\tInput\tOutput")
	for _, p := range newCostTracker(cfg, nil).PricingTable() {
		fmt.Fprintf(w, "  %s\t%.2f\t%.2f\n", p.Model, p.Pricing.Input, p.Pricing.Output)
	}
	return w.Flush()
}

func printConfiguredProvider(out io.Writer, kind string, entry config.ProviderEntry) {
	value := entry.Name
	if value == "" {
		value = "(not configured)"
	} else if entry.Model != "" {
		value = entry.Name + " / " + entry.Model
	}
	if len(entry.Fallbacks) > 0 {
		names := make([]string, 0, len(entry.Fallbacks))
		for _, fb := range entry.Fallbacks {
			names = append(names, fb.Name)
		}
		value += " (fallbacks: " + strings.Join(names, ", ") + ")"
	}
	fmt.Fprintf(out, "%-13s %s\n", kind+":", value)
}
