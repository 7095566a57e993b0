package commands

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/asif-amar/semdrift/internal/corrupt"
	"github.com/asif-amar/semdrift/internal/experiment"
)

var (
	prepareInput       string
	prepareDescription string
	prepareSeed        uint64
)

// NewPrepareCmd creates the prepare command.
func NewPrepareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Prepare a new experiment from an input sentences file",
		Long: `Read the input sentences, inject spelling errors at each configured
error rate, and write the experiment artifacts: the frozen run configuration,
the agent prompt sheet for manual runs, and a results template.

Input entries may be plain strings (corrupted here at every configured rate)
or objects carrying a pre-corrupted variant and its error rate (used as-is,
one case each).`,
		Args: cobra.NoArgs,
		RunE: runPrepare,
	}

	cmd.Flags().StringVar(&prepareInput, "input", "", "sentences file (overrides experiment.input)")
	cmd.Flags().StringVar(&prepareDescription, "description", "", "experiment description (overrides experiment.description)")
	cmd.Flags().Uint64Var(&prepareSeed, "seed", 0, "corruption seed (overrides experiment.seed)")

	return cmd
}

func runPrepare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	input := cfg.Experiment.Input
	if prepareInput != "" {
		input = prepareInput
	}
	if input == "" {
		return fmt.Errorf("no input file: set experiment.input or pass --input")
	}
	description := cfg.Experiment.Description
	if prepareDescription != "" {
		description = prepareDescription
	}
	seed := cfg.Experiment.Seed
	if cmd.Flags().Changed("seed") {
		seed = prepareSeed
	}

	sentences, err := experiment.LoadSentences(input, cfg.Experiment.MinWords)
	if err != nil {
		return err
	}

	id := experiment.NewID(time.Now())
	runCfg := experiment.RunConfig{
		ExperimentID: id,
		Timestamp:    time.Now().UTC(),
		InputFile:    input,
		Description:  description,
		Seed:         seed,
		ErrorRates:   fractions(cfg.Experiment.ErrorRates),
		Languages:    cfg.Chain.Languages,
		TestCases:    buildCases(sentences, cfg.Experiment.ErrorRates, seed),
	}

	store := experiment.NewStore(cfg.Experiment.OutputDir)
	if err := store.SaveConfig(runCfg); err != nil {
		return err
	}
	if err := store.WritePrompts(runCfg); err != nil {
		return err
	}
	if err := store.WriteTemplate(runCfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Experiment %s prepared: %d sentences, %d cases\n",
		id, len(sentences), len(runCfg.TestCases))
	fmt.Fprintf(out, "Artifacts written to %s\n", store.Dir(id))
	fmt.Fprintf(out, "Next: semdrift run %s\n", id)
	return nil
}

// buildCases expands sentences into test cases. Plain sentences are corrupted
// at every configured rate; pre-corrupted entries pass through as one case
// each, keeping their declared error rate.
func buildCases(sentences []experiment.Sentence, ratesPct []float64, seed uint64) []experiment.TestCase {
	inj := corrupt.New(seed)

	var cases []experiment.TestCase
	for i, s := range sentences {
		if s.Misspelled != "" {
			cases = append(cases, experiment.TestCase{
				CaseID:     caseID(i+1, s.ErrorRate*100),
				ErrorRate:  s.ErrorRate,
				Original:   s.Original,
				Misspelled: s.Misspelled,
				WordCount:  experiment.CountWords(s.Original),
			})
			continue
		}
		for _, pct := range ratesPct {
			misspelled, _ := inj.Corrupt(s.Original, pct/100)
			cases = append(cases, experiment.TestCase{
				CaseID:     caseID(i+1, pct),
				ErrorRate:  pct / 100,
				Original:   s.Original,
				Misspelled: misspelled,
				WordCount:  experiment.CountWords(s.Original),
			})
		}
	}
	return cases
}

func caseID(sentence int, pct float64) string {
	return fmt.Sprintf("s%d_rate%d", sentence, int(math.Round(pct)))
}

func fractions(pct []float64) []float64 {
	out := make([]float64, len(pct))
	for i, p := range pct {
		out[i] = p / 100
	}
	return out
}
