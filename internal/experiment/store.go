package experiment

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Artifact file names inside an experiment directory.
const (
	ConfigFile   = "experiment_config.json"
	PromptsFile  = "agent_prompts.txt"
	TemplateFile = "results_template.json"
	ResultsFile  = "results.json"
	MetricsFile  = "metrics_output.csv"
)

// todoPrefix marks template fields a human has not filled in yet.
const todoPrefix = "TODO"

// TestCase is one prepared chain input: a sentence paired with its corrupted
// variant at one error rate.
type TestCase struct {
	CaseID     string  `json:"case_id"`
	ErrorRate  float64 `json:"error_rate"`
	Original   string  `json:"original"`
	Misspelled string  `json:"misspelled"`
	WordCount  int     `json:"word_count"`
}

// RunConfig is the frozen configuration of one experiment, written to
// experiment_config.json at preparation time.
type RunConfig struct {
	ExperimentID string     `json:"experiment_id"`
	Timestamp    time.Time  `json:"timestamp"`
	InputFile    string     `json:"input_file,omitempty"`
	Description  string     `json:"description,omitempty"`
	Seed         uint64     `json:"seed"`
	ErrorRates   []float64  `json:"error_rates"`
	Languages    []string   `json:"languages"`
	TestCases    []TestCase `json:"test_cases"`
}

// Sentence is one entry of the input sentences file. Entries may be plain
// strings (corruption happens at prepare time) or objects carrying a
// pre-corrupted variant and its error rate.
type Sentence struct {
	Original   string  `json:"original"`
	Misspelled string  `json:"misspelled,omitempty"`
	ErrorRate  float64 `json:"error_rate,omitempty"`
}

// UnmarshalJSON accepts either a bare string or the object form.
func (s *Sentence) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = Sentence{Original: str}
		return nil
	}
	type plain Sentence
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Sentence(p)
	return nil
}

// Store reads and writes experiment artifacts under a base directory.
// Each experiment occupies <baseDir>/<experimentID>/. Loaded results are
// cached per path for the life of the process; saves invalidate the cache.
type Store struct {
	baseDir string

	mu    sync.Mutex
	cache map[string]*Results
}

// NewStore creates a [Store] rooted at baseDir. The directory is created on
// first write, not here.
func NewStore(baseDir string) *Store {
	return &Store{
		baseDir: baseDir,
		cache:   make(map[string]*Results),
	}
}

// Dir returns the artifact directory of an experiment.
func (s *Store) Dir(experimentID string) string {
	return filepath.Join(s.baseDir, experimentID)
}

// Path returns the full path of a named artifact file of an experiment.
func (s *Store) Path(experimentID, file string) string {
	return filepath.Join(s.baseDir, experimentID, file)
}

// SaveConfig writes the frozen run configuration to experiment_config.json,
// creating the experiment directory as needed.
func (s *Store) SaveConfig(cfg RunConfig) error {
	return s.writeJSON(s.Path(cfg.ExperimentID, ConfigFile), cfg)
}

// LoadConfig reads an experiment's frozen run configuration.
func (s *Store) LoadConfig(experimentID string) (*RunConfig, error) {
	path := s.Path(experimentID, ConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("experiment: read %q: %w", path, err)
	}
	cfg := &RunConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("experiment: parse %q: %w", path, err)
	}
	return cfg, nil
}

// WritePrompts writes the agent_prompts.txt sheet: one copy-pasteable prompt
// per chain hop per test case, with placeholders where the previous hop's
// output must be substituted.
func (s *Store) WritePrompts(cfg RunConfig) error {
	var b strings.Builder
	rule := strings.Repeat("=", 70)

	fmt.Fprintf(&b, "%s\nTRANSLATION AGENT PROMPTS\nExperiment ID: %s\n%s\n\n", rule, cfg.ExperimentID, rule)
	b.WriteString("Instructions:\n")
	b.WriteString("1. Send each prompt below to the translation agent\n")
	b.WriteString("2. Record the output for each step\n")
	b.WriteString("3. Use the output as input for the next step in the chain\n")

	hops := append(append([]string{}, cfg.Languages...), "english")
	for _, tc := range cfg.TestCases {
		fmt.Fprintf(&b, "\n%s\nTest Case %s: %.0f%% Error Rate\n%s\n\n", rule, tc.CaseID, tc.ErrorRate*100, rule)

		input := tc.Misspelled
		if input == "" {
			input = tc.Original
		}
		from := "english"
		for i, to := range hops {
			fmt.Fprintf(&b, "# Step %d: %s → %s\n", i+1, from, to)
			if i > 0 {
				fmt.Fprintf(&b, "# Replace %s with the result from Step %d\n", placeholder(from), i)
				input = placeholder(from)
			}
			fmt.Fprintf(&b, "Translate to %s: %s\n\n", capitalize(to), input)
			from = to
		}
		b.WriteString("# Record all outputs in results.json\n")
	}

	path := s.Path(cfg.ExperimentID, PromptsFile)
	if err := s.ensureDir(cfg.ExperimentID); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("experiment: write %q: %w", path, err)
	}
	return nil
}

// WriteTemplate writes results_template.json: the shape of results.json with
// TODO placeholders for every translation a human must fill in.
func (s *Store) WriteTemplate(cfg RunConfig) error {
	tmpl := Results{
		ExperimentID: cfg.ExperimentID,
		Timestamp:    cfg.Timestamp,
		Mode:         "manual",
		InputFile:    cfg.InputFile,
		Description:  cfg.Description,
	}
	for _, tc := range cfg.TestCases {
		r := Result{
			ID:         tc.CaseID,
			ErrorRate:  tc.ErrorRate,
			Original:   tc.Original,
			Misspelled: tc.Misspelled,
			Final:      todoPrefix + ": paste the final english translation here",
			WordCount:  tc.WordCount,
		}
		for _, lang := range cfg.Languages {
			r.Stages = append(r.Stages, Stage{
				Name: lang,
				Text: fmt.Sprintf("%s: paste the %s translation here", todoPrefix, lang),
			})
		}
		tmpl.Results = append(tmpl.Results, r)
	}
	return s.writeJSON(s.Path(cfg.ExperimentID, TemplateFile), tmpl)
}

// SaveResults writes results.json and invalidates any cached copy.
func (s *Store) SaveResults(res *Results) error {
	path := s.Path(res.ExperimentID, ResultsFile)
	if err := s.writeJSON(path, res); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.cache, path)
	s.mu.Unlock()
	return nil
}

// LoadResults reads a results file (typically results.json or a filled-in
// template) from an arbitrary path. Repeated loads of the same path return
// the cached value.
func (s *Store) LoadResults(path string) (*Results, error) {
	s.mu.Lock()
	if cached, ok := s.cache[path]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("experiment: read %q: %w", path, err)
	}
	res := &Results{}
	if err := json.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("experiment: parse %q: %w", path, err)
	}

	s.mu.Lock()
	s.cache[path] = res
	s.mu.Unlock()
	return res, nil
}

// LoadSentences reads the input sentences file ({"sentences": [...]}) and
// rejects sentences shorter than minWords words.
func LoadSentences(path string, minWords int) ([]Sentence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("experiment: read %q: %w", path, err)
	}

	var file struct {
		Sentences []Sentence `json:"sentences"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("experiment: parse %q: %w", path, err)
	}
	if len(file.Sentences) == 0 {
		return nil, fmt.Errorf("experiment: %q contains no sentences", path)
	}

	var errs []error
	for i, sent := range file.Sentences {
		if n := CountWords(sent.Original); n < minWords {
			errs = append(errs, fmt.Errorf("sentences[%d] has %d words, need at least %d", i, n, minWords))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("experiment: %q: %w", path, err)
	}
	return file.Sentences, nil
}

// metricsHeader is the column order of metrics_output.csv.
var metricsHeader = []string{
	"id", "error_rate",
	"cosine_distance", "cosine_similarity", "euclidean_distance", "manhattan_distance",
	"original", "final", "word_count",
}

// SaveMetricsCSV writes the scored rows to metrics_output.csv, sorted by
// error rate.
func (s *Store) SaveMetricsCSV(experimentID string, rows []MetricsRow) error {
	sorted := make([]MetricsRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ErrorRate < sorted[j].ErrorRate })

	if err := s.ensureDir(experimentID); err != nil {
		return err
	}
	path := s.Path(experimentID, MetricsFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("experiment: create %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(metricsHeader); err != nil {
		return fmt.Errorf("experiment: write %q: %w", path, err)
	}
	for _, row := range sorted {
		rec := []string{
			row.ID,
			formatFloat(row.ErrorRate),
			formatFloat(row.CosineDistance),
			formatFloat(row.CosineSimilarity),
			formatFloat(row.EuclideanDistance),
			formatFloat(row.ManhattanDistance),
			row.Original,
			row.Final,
			strconv.Itoa(row.WordCount),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("experiment: write %q: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("experiment: write %q: %w", path, err)
	}
	return nil
}

// LoadMetricsCSV reads a metrics_output.csv back into rows.
func LoadMetricsCSV(path string) ([]MetricsRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("experiment: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("experiment: read header of %q: %w", path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range metricsHeader {
		if _, ok := col[required]; !ok && required != "id" {
			return nil, fmt.Errorf("experiment: %q is missing column %q", path, required)
		}
	}

	var rows []MetricsRow
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("experiment: read %q line %d: %w", path, line, err)
		}
		row := MetricsRow{
			Original: rec[col["original"]],
			Final:    rec[col["final"]],
		}
		if idx, ok := col["id"]; ok {
			row.ID = rec[idx]
		}
		fields := []struct {
			name string
			dst  *float64
		}{
			{"error_rate", &row.ErrorRate},
			{"cosine_distance", &row.CosineDistance},
			{"cosine_similarity", &row.CosineSimilarity},
			{"euclidean_distance", &row.EuclideanDistance},
			{"manhattan_distance", &row.ManhattanDistance},
		}
		for _, fld := range fields {
			v, err := strconv.ParseFloat(rec[col[fld.name]], 64)
			if err != nil {
				return nil, fmt.Errorf("experiment: %q line %d: bad %s: %w", path, line, fld.name, err)
			}
			*fld.dst = v
		}
		if wc, err := strconv.Atoi(rec[col["word_count"]]); err == nil {
			row.WordCount = wc
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ValidateResults checks that a results file is complete: every row must
// have an original, a non-blank final, and no leftover TODO placeholders.
// All problems are reported at once.
func ValidateResults(res *Results) error {
	if len(res.Results) == 0 {
		return errors.New("experiment: results file contains no results")
	}
	var errs []error
	for i, r := range res.Results {
		prefix := fmt.Sprintf("results[%d]", i)
		if r.ID != "" {
			prefix = fmt.Sprintf("results[%d] (%s)", i, r.ID)
		}
		if strings.TrimSpace(r.Original) == "" {
			errs = append(errs, fmt.Errorf("%s: original is blank", prefix))
		}
		if strings.TrimSpace(r.Final) == "" {
			errs = append(errs, fmt.Errorf("%s: final is blank", prefix))
		} else if strings.Contains(r.Final, todoPrefix) {
			errs = append(errs, fmt.Errorf("%s: final still contains a TODO placeholder", prefix))
		}
		for _, stage := range r.Stages {
			if strings.Contains(stage.Text, todoPrefix) {
				errs = append(errs, fmt.Errorf("%s: stage %q still contains a TODO placeholder", prefix, stage.Name))
			} else if strings.TrimSpace(stage.Text) == "" {
				errs = append(errs, fmt.Errorf("%s: stage %q is blank", prefix, stage.Name))
			}
		}
	}
	return errors.Join(errs...)
}

// ensureDir creates the experiment directory if needed.
func (s *Store) ensureDir(experimentID string) error {
	dir := s.Dir(experimentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("experiment: create dir %q: %w", dir, err)
	}
	return nil
}

// writeJSON marshals v with indentation and writes it to path, creating the
// parent directory as needed.
func (s *Store) writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("experiment: create dir %q: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("experiment: marshal %q: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("experiment: write %q: %w", path, err)
	}
	return nil
}

// formatFloat renders a float for CSV without trailing zero noise.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// placeholder is the substitution marker for a previous hop's output.
func placeholder(lang string) string {
	return "[" + strings.ToUpper(lang) + "_OUTPUT]"
}

// capitalize upper-cases the first byte of an ASCII language name.
func capitalize(lang string) string {
	if lang == "" {
		return lang
	}
	return strings.ToUpper(lang[:1]) + lang[1:]
}
