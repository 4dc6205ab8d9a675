// Package observe provides observability primitives for the game server:
// OpenTelemetry metrics, tracing helpers, and HTTP middleware tying them
// together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus via the bridge set up in [InitProvider], so /metrics keeps
// working with a standard scrape config. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with their own [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/feihua"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// VerifyDuration tracks deterministic verification latency. Use with
	// attribute.String("outcome", ...): exact, homophone, fuzzy, none.
	VerifyDuration metric.Float64Histogram

	// JudgeDuration tracks one LLM judgment call, cache hits included.
	JudgeDuration metric.Float64Histogram

	// CorpusQueryDuration tracks corpus store query latency. Use with
	// attribute.String("query", ...).
	CorpusQueryDuration metric.Float64Histogram

	// Verifications counts completed verifications by outcome tier.
	Verifications metric.Int64Counter

	// JudgeCacheEvents counts judgment cache lookups. Use with
	// attribute.String("result", "hit"|"miss").
	JudgeCacheEvents metric.Int64Counter

	// JudgeFallbacks counts rounds that degraded to deterministic
	// verification after a judge failure. Use with
	// attribute.String("kind", "transport"|"protocol").
	JudgeFallbacks metric.Int64Counter

	// ActiveSessions tracks the number of live game sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Corpus
// lookups sit in the low milliseconds; judge calls can run to the 5s timeout.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.VerifyDuration, err = m.Float64Histogram("feihua.verify.duration",
		metric.WithDescription("Latency of deterministic sentence verification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.JudgeDuration, err = m.Float64Histogram("feihua.judge.duration",
		metric.WithDescription("Latency of one LLM judgment, cache hits included."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CorpusQueryDuration, err = m.Float64Histogram("feihua.corpus.query.duration",
		metric.WithDescription("Latency of corpus store queries by query name."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Verifications, err = m.Int64Counter("feihua.verifications",
		metric.WithDescription("Completed verifications by outcome tier."),
	); err != nil {
		return nil, err
	}
	if met.JudgeCacheEvents, err = m.Int64Counter("feihua.judge.cache.events",
		metric.WithDescription("Judgment cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.JudgeFallbacks, err = m.Int64Counter("feihua.judge.fallbacks",
		metric.WithDescription("Rounds degraded to deterministic verification by failure kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("feihua.active_sessions",
		metric.WithDescription("Number of live game sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("feihua.http.request.duration",
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
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
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

// RecordVerification records one completed verification.
func (m *Metrics) RecordVerification(ctx context.Context, outcome string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.VerifyDuration.Record(ctx, seconds, attrs)
	m.Verifications.Add(ctx, 1, attrs)
}

// RecordJudgment records one judgment call.
func (m *Metrics) RecordJudgment(ctx context.Context, seconds float64) {
	m.JudgeDuration.Record(ctx, seconds)
}

// RecordCacheEvent records a judgment cache hit or miss.
func (m *Metrics) RecordCacheEvent(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.JudgeCacheEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordFallback records one degradation to deterministic verification.
func (m *Metrics) RecordFallback(ctx context.Context, kind string) {
	m.JudgeFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
