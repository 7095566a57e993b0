// Package chain runs sentences through the multi-hop translation chain.
//
// The default chain is english → french → hebrew → english: each hop is one
// LLM completion asking for a translation and nothing else. The chain is the
// lossy channel of the experiment; the drift it introduces is what the
// metrics downstream measure.
package chain

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/metric"

	"github.com/asif-amar/semdrift/internal/cost"
	"github.com/asif-amar/semdrift/internal/experiment"
	"github.com/asif-amar/semdrift/internal/observe"
	"github.com/asif-amar/semdrift/internal/resilience"
	"github.com/asif-amar/semdrift/pkg/provider/llm"
)

// StageFinal is the stage name of the closing hop back to English. Its output
// is recorded as Result.Final rather than as an intermediate stage.
const StageFinal = "english_final"

// Step is one hop of the chain: source language, target language, and the
// stage name under which the output is recorded.
type Step struct {
	From  string
	To    string
	Stage string
}

// Steps derives the ordered chain hops from the configured intermediate
// languages. The text always starts and ends in English; each intermediate
// language contributes one stage named after it.
func Steps(languages []string) []Step {
	prev := "english"
	steps := make([]Step, 0, len(languages)+1)
	for _, lang := range languages {
		steps = append(steps, Step{From: prev, To: lang, Stage: lang})
		prev = lang
	}
	steps = append(steps, Step{From: prev, To: "english", Stage: StageFinal})
	return steps
}

// Case is one unit of chain work: a sentence at a single error rate.
type Case struct {
	ID         string
	Original   string
	Misspelled string
	ErrorRate  float64
}

// Runner executes translation chains against an LLM provider.
type Runner struct {
	provider     llm.Provider
	steps        []Step
	retries      int
	baseDelay    time.Duration
	timeout      time.Duration
	temperature  float64
	experimentID string
	costs        *cost.Tracker
	metrics      *observe.Metrics

	in      io.Reader
	out     io.Writer
	scanner *bufio.Scanner
}

// Option configures a [Runner].
type Option func(*Runner)

// WithLanguages sets the intermediate languages of the chain.
func WithLanguages(languages []string) Option {
	return func(r *Runner) { r.steps = Steps(languages) }
}

// WithRetries sets the attempt count for retryable provider errors.
func WithRetries(n int) Option {
	return func(r *Runner) { r.retries = n }
}

// WithBaseDelay sets the initial retry backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(r *Runner) { r.baseDelay = d }
}

// WithTimeout bounds each individual translation request.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithTemperature sets the sampling temperature sent with every request.
func WithTemperature(t float64) Option {
	return func(r *Runner) { r.temperature = t }
}

// WithCostTracker attaches a cost tracker; every hop's token usage is
// recorded under the stage name.
func WithCostTracker(t *cost.Tracker) Option {
	return func(r *Runner) { r.costs = t }
}

// WithMetrics attaches otel metrics for stage durations and request counts.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithExperimentID tags cost records with the owning experiment.
func WithExperimentID(id string) Option {
	return func(r *Runner) { r.experimentID = id }
}

// WithIO overrides stdin/stdout for interactive mode. Used in tests.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *Runner) {
		r.in = in
		r.out = out
	}
}

// New creates a [Runner] over provider with the default chain
// (english → french → hebrew → english) and default retry settings.
func New(provider llm.Provider, opts ...Option) *Runner {
	r := &Runner{
		provider:  provider,
		steps:     Steps([]string{"french", "hebrew"}),
		retries:   3,
		baseDelay: time.Second,
		in:        os.Stdin,
		out:       os.Stdout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Steps returns the runner's chain hops in execution order.
func (r *Runner) Steps() []Step {
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// Prompt returns the user message sent for translating text at step.
// The same wording is printed in interactive mode and written to the
// agent_prompts.txt artifact so every execution mode asks identically.
func Prompt(text string, step Step) string {
	return fmt.Sprintf("Translate this %s text to %s:\n\n%s\n\nProvide ONLY the %s translation, nothing else.",
		title(step.From), title(step.To), text, title(step.To))
}

// systemPrompt returns the persona instruction for a translation step.
func systemPrompt(step Step) string {
	return fmt.Sprintf("You are a professional %s-to-%s translator. Translate the text you are given faithfully, preserving its meaning. Output only the translation.",
		title(step.From), title(step.To))
}

// Translate performs one chain hop and returns the translated text and the
// token usage the provider reported. Retryable provider errors are retried
// with exponential backoff up to the configured attempt count.
func (r *Runner) Translate(ctx context.Context, text string, step Step) (string, llm.Usage, error) {
	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt(step),
		Messages: []llm.Message{
			{Role: "user", Content: Prompt(text, step)},
		},
		Temperature: r.temperature,
	}

	var resp *llm.CompletionResponse
	start := time.Now()
	err := resilience.Retry(ctx, r.retries, r.baseDelay, func() error {
		reqCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		var callErr error
		resp, callErr = r.provider.Complete(reqCtx, req)
		if callErr != nil && errors.Is(callErr, context.DeadlineExceeded) && ctx.Err() == nil {
			// Per-request timeout, not the caller's deadline.
			return fmt.Errorf("%w (limit %s)", errStepTimeout, r.timeout)
		}
		return callErr
	}, isRetryable)
	elapsed := time.Since(start)

	if r.metrics != nil {
		r.metrics.TranslationDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(observe.Attr("stage", step.Stage)))
		status := "ok"
		if err != nil {
			status = "error"
			r.metrics.RecordProviderError(ctx, r.provider.ModelID(), "llm")
		}
		r.metrics.RecordProviderRequest(ctx, r.provider.ModelID(), "llm", status)
	}
	if err != nil {
		return "", llm.Usage{}, fmt.Errorf("chain: translate %s→%s: %w", step.From, step.To, err)
	}

	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", resp.Usage, fmt.Errorf("chain: translate %s→%s: provider returned empty content", step.From, step.To)
	}
	if r.costs != nil {
		r.costs.Record(ctx, step.Stage, r.provider.ModelID(), r.experimentID, resp.Usage, elapsed)
	}
	return out, resp.Usage, nil
}

// RunCase runs one sentence through every chain hop, recording the
// intermediate stage texts in order. The misspelled variant feeds the chain;
// the original is carried along untouched for later comparison.
func (r *Runner) RunCase(ctx context.Context, c Case) (experiment.Result, error) {
	text := c.Misspelled
	if text == "" {
		text = c.Original
	}

	res := experiment.Result{
		ID:         c.ID,
		ErrorRate:  c.ErrorRate,
		Original:   c.Original,
		Misspelled: c.Misspelled,
		WordCount:  experiment.CountWords(c.Original),
	}
	for _, step := range r.steps {
		out, _, err := r.Translate(ctx, text, step)
		if err != nil {
			return experiment.Result{}, err
		}
		slog.Debug("chain stage complete",
			"case", c.ID, "stage", step.Stage, "chars", len(out))
		if step.Stage == StageFinal {
			res.Final = out
		} else {
			res.Stages = append(res.Stages, experiment.Stage{Name: step.Stage, Text: out})
		}
		text = out
	}
	return res, nil
}

// RunCaseInteractive walks one sentence through the chain by printing each
// stage prompt and reading the translation from the runner's input, one line
// per stage. Useful when a human (or an external agent session) performs the
// translations.
func (r *Runner) RunCaseInteractive(c Case) (experiment.Result, error) {
	if r.scanner == nil {
		r.scanner = bufio.NewScanner(r.in)
	}

	text := c.Misspelled
	if text == "" {
		text = c.Original
	}

	res := experiment.Result{
		ID:         c.ID,
		ErrorRate:  c.ErrorRate,
		Original:   c.Original,
		Misspelled: c.Misspelled,
		WordCount:  experiment.CountWords(c.Original),
	}

	fmt.Fprintf(r.out, "\nOriginal:   %s\n", c.Original)
	if c.Misspelled != "" {
		fmt.Fprintf(r.out, "Misspelled: %s\n", c.Misspelled)
	}

	for i, step := range r.steps {
		fmt.Fprintf(r.out, "\n--- Step %d: %s → %s ---\n\n", i+1, strings.ToUpper(step.From), strings.ToUpper(step.To))
		fmt.Fprintf(r.out, "%s\n\n", Prompt(text, step))
		fmt.Fprintf(r.out, "%s translation: ", title(step.To))

		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return experiment.Result{}, fmt.Errorf("chain: read translation: %w", err)
			}
			return experiment.Result{}, errors.New("chain: input closed before chain completed")
		}
		out := strings.TrimSpace(r.scanner.Text())
		if out == "" {
			return experiment.Result{}, fmt.Errorf("chain: empty %s translation", step.To)
		}

		if step.Stage == StageFinal {
			res.Final = out
		} else {
			res.Stages = append(res.Stages, experiment.Stage{Name: step.Stage, Text: out})
		}
		text = out
	}
	return res, nil
}

// errStepTimeout marks a hop that exceeded its per-request timeout while the
// caller's context was still live.
var errStepTimeout = errors.New("translation request timed out")

// isRetryable reports whether a provider error is worth retrying.
// Rate limits and transient upstream failures qualify; everything else
// (bad requests, auth failures, cancelled contexts) fails immediately.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errStepTimeout) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate limit", "rate_limit", "429",
		"overloaded", "unavailable", "timeout",
		"500", "502", "503", "529",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// title upper-cases the first rune of a language name for prompt text.
func title(lang string) string {
	if lang == "" {
		return lang
	}
	runes := []rune(lang)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
