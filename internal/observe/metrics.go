// Package observe provides application-wide observability primitives for
// semdrift: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all semdrift metrics.
const meterName = "github.com/asif-amar/semdrift"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// EmbedDuration tracks embedding backend call latency. Use with attribute:
	//   attribute.String("provider", ...)
	EmbedDuration metric.Float64Histogram

	// TranslationDuration tracks the latency of one translation step. Use with
	// attribute:
	//   attribute.String("stage", ...)
	TranslationDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// TokensUsed counts LLM tokens consumed by the translation chain. Use with
	// attributes:
	//   attribute.String("model", ...), attribute.String("direction", "input"|"output")
	TokensUsed metric.Int64Counter

	// RowsAnalyzed counts experiment rows scored by the metrics engine.
	RowsAnalyzed metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Cost ---

	// CostUSD accumulates estimated API spend in US dollars. Use with
	// attributes:
	//   attribute.String("agent", ...), attribute.String("model", ...)
	CostUSD metric.Float64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// remote model inference: embedding calls land in the sub-second range,
// translation completions can take tens of seconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.EmbedDuration, err = m.Float64Histogram("semdrift.embeddings.duration",
		metric.WithDescription("Latency of embedding backend calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslationDuration, err = m.Float64Histogram("semdrift.translation.duration",
		metric.WithDescription("Latency of a single translation chain step."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("semdrift.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.TokensUsed, err = m.Int64Counter("semdrift.llm.tokens",
		metric.WithDescription("Total LLM tokens consumed by model and direction."),
	); err != nil {
		return nil, err
	}
	if met.RowsAnalyzed, err = m.Int64Counter("semdrift.analysis.rows",
		metric.WithDescription("Total experiment rows scored by the metrics engine."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("semdrift.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Cost.
	if met.CostUSD, err = m.Float64Counter("semdrift.llm.cost_usd",
		metric.WithDescription("Estimated API spend in USD by agent and model."),
		metric.WithUnit("{USD}"),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("semdrift.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordTokens records prompt and completion token usage for one LLM call.
func (m *Metrics) RecordTokens(ctx context.Context, model string, promptTokens, completionTokens int) {
	m.TokensUsed.Add(ctx, int64(promptTokens),
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("direction", "input"),
		),
	)
	m.TokensUsed.Add(ctx, int64(completionTokens),
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("direction", "output"),
		),
	)
}

// RecordCost records the estimated spend of one LLM call.
func (m *Metrics) RecordCost(ctx context.Context, agent, model string, usd float64) {
	m.CostUSD.Add(ctx, usd,
		metric.WithAttributes(
			attribute.String("agent", agent),
			attribute.String("model", model),
		),
	)
}
