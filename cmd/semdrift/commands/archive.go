package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/asif-amar/semdrift/internal/archive"
	"github.com/asif-amar/semdrift/internal/config"
	"github.com/asif-amar/semdrift/internal/experiment"
)

var similarLimit int

// NewArchiveCmd creates the archive command group.
func NewArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Persist experiments to PostgreSQL and query across runs",
		Long: `Archive completed experiments to a PostgreSQL database with pgvector,
so round-trip results from different runs can be compared by embedding
similarity. Requires archive.enabled and archive.dsn in the configuration.`,
	}

	push := &cobra.Command{
		Use:   "push <experiment-id>",
		Short: "Archive an analyzed experiment",
		Args:  cobra.ExactArgs(1),
		RunE:  runArchivePush,
	}

	similar := &cobra.Command{
		Use:   "similar <text>",
		Short: "Find archived finals most similar to the given text",
		Args:  cobra.ExactArgs(1),
		RunE:  runArchiveSimilar,
	}
	similar.Flags().IntVar(&similarLimit, "limit", 5, "maximum results to return")

	list := &cobra.Command{
		Use:   "list",
		Short: "List archived experiments",
		Args:  cobra.NoArgs,
		RunE:  runArchiveList,
	}

	cmd.AddCommand(push, similar, list)
	return cmd
}

func openArchive(ctx context.Context, cfg *config.Config) (*archive.Store, error) {
	if !cfg.Archive.Enabled {
		return nil, fmt.Errorf("archive is disabled: set archive.enabled and archive.dsn")
	}
	return archive.New(ctx, cfg.Archive.DSN, cfg.Archive.EmbeddingDimensions)
}

func runArchivePush(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	experimentID := args[0]
	ctx := cmd.Context()

	store := experiment.NewStore(cfg.Experiment.OutputDir)
	res, err := store.LoadResults(store.Path(experimentID, experiment.ResultsFile))
	if err != nil {
		return err
	}
	rows, err := experiment.LoadMetricsCSV(store.Path(experimentID, experiment.MetricsFile))
	if err != nil {
		return fmt.Errorf("metrics are required for archiving (run analyze first): %w", err)
	}

	provider, err := buildEmbeddings(cfg)
	if err != nil {
		return err
	}
	finals := make([]string, len(rows))
	for i, r := range rows {
		finals[i] = r.Final
	}
	vecs, err := provider.EmbedBatch(ctx, finals, false)
	if err != nil {
		return fmt.Errorf("embed finals: %w", err)
	}

	db, err := openArchive(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SaveExperiment(ctx, res, rows, vecs); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Archived %s: %d rows\n", experimentID, len(rows))
	return nil
}

func runArchiveSimilar(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	provider, err := buildEmbeddings(cfg)
	if err != nil {
		return err
	}
	vec, err := provider.Embed(ctx, args[0], false)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	db, err := openArchive(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	matches, err := db.SimilarFinals(ctx, vec, similarLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(matches) == 0 {
		fmt.Fprintln(out, "No archived finals found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Distance\tExperiment\tCase\tError Rate\tFinal")
	for _, m := range matches {
		fmt.Fprintf(w, "%.4f\t%s\t%s\t%.0f%%\t%s\n",
			m.Distance, m.ExperimentID, m.CaseID, m.ErrorRate*100, truncate(m.Final, 60))
	}
	return w.Flush()
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	db, err := openArchive(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.ListExperiments(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No archived experiments.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Experiment\tTimestamp\tMode\tRows\tDescription")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			r.ExperimentID, r.Timestamp.Format("2006-01-02 15:04"), r.Mode, r.NumRows, r.Description)
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
