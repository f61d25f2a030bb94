// Package observe provides the relay's observability primitives: OpenTelemetry
// metrics, tracing, and HTTP middleware tying them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed to
// Prometheus via the exporter bridge set up by [InitProvider], so the standard
// /metrics scrape endpoint keeps working. A package-level default [Metrics]
// instance ([DefaultMetrics]) exists for convenience; tests should use
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

// meterName is the instrumentation scope name for all relay metrics.
const meterName = "github.com/voxrelay/voxrelay"

// Metrics holds the relay's OpenTelemetry instruments. All fields are safe
// for concurrent use.
type Metrics struct {
	// TranscribeDuration tracks speech-to-text latency per utterance.
	TranscribeDuration metric.Float64Histogram

	// GenerateDuration tracks reply generation latency per utterance.
	GenerateDuration metric.Float64Histogram

	// SynthesizeDuration tracks text-to-speech latency per utterance.
	SynthesizeDuration metric.Float64Histogram

	// PipelineDuration tracks end-to-end utterance latency, inbound audio to
	// outbound audio.
	PipelineDuration metric.Float64Histogram

	// TurnProbeDuration tracks remote turn classification latency.
	TurnProbeDuration metric.Float64Histogram

	// Utterances counts dispatched utterances by outcome. Use with
	// attribute.String("outcome", ...).
	Utterances metric.Int64Counter

	// TurnProbes counts classifier probes by verdict. Use with
	// attribute.String("verdict", ...).
	TurnProbes metric.Int64Counter

	// ProviderErrors counts backend failures by provider and kind.
	ProviderErrors metric.Int64Counter

	// ActiveSessions tracks the number of live websocket sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time by method and
	// path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram boundaries (in seconds) sized for the
// multi-second remote round trips of a voice pipeline.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscribeDuration, err = m.Float64Histogram("voxrelay.transcribe.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerateDuration, err = m.Float64Histogram("voxrelay.generate.duration",
		metric.WithDescription("Latency of reply generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesizeDuration, err = m.Float64Histogram("voxrelay.synthesize.duration",
		metric.WithDescription("Latency of speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("voxrelay.pipeline.duration",
		metric.WithDescription("End-to-end utterance latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnProbeDuration, err = m.Float64Histogram("voxrelay.turn_probe.duration",
		metric.WithDescription("Latency of remote turn classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Utterances, err = m.Int64Counter("voxrelay.utterances",
		metric.WithDescription("Dispatched utterances by outcome."),
	); err != nil {
		return nil, err
	}
	if met.TurnProbes, err = m.Int64Counter("voxrelay.turn_probes",
		metric.WithDescription("Turn classifier probes by verdict."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxrelay.provider.errors",
		metric.WithDescription("Backend failures by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("voxrelay.active_sessions",
		metric.WithDescription("Number of live websocket sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voxrelay.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], creating it on first
// call from [otel.GetMeterProvider]. Panics if instrument creation fails,
// which cannot happen with the global provider.
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

// RecordUtterance increments the utterance counter with the given outcome.
func (m *Metrics) RecordUtterance(ctx context.Context, outcome string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordTurnProbe increments the probe counter with the given verdict.
func (m *Metrics) RecordTurnProbe(ctx context.Context, verdict string) {
	m.TurnProbes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("verdict", verdict)))
}

// RecordProviderError increments the provider error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		))
}
