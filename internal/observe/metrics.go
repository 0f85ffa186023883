// Package observe provides application-wide observability primitives for
// VoxSentinel: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all VoxSentinel metrics.
const meterName = "github.com/voxsentinel/voxsentinel"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	ASRDuration        metric.Float64Histogram
	DiarizationDuration metric.Float64Histogram
	NLPDuration        metric.Float64Histogram
	AlertDispatchDuration metric.Float64Histogram
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	ProviderRequests  metric.Int64Counter
	ProviderErrors    metric.Int64Counter
	ASRFailovers      metric.Int64Counter
	KeywordMatches    metric.Int64Counter
	SentimentEscalations metric.Int64Counter
	AlertsDispatched  metric.Int64Counter
	AlertsSuppressed  metric.Int64Counter
	SegmentsPersisted metric.Int64Counter
	ReconnectAttempts metric.Int64Counter

	// --- Gauges ---

	ActiveStreams  metric.Int64UpDownCounter
	VADSpeechRatio metric.Float64Gauge
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for streaming-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ASRDuration, err = m.Float64Histogram("voxsentinel.asr.duration",
		metric.WithDescription("Latency of ASR transcription per chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DiarizationDuration, err = m.Float64Histogram("voxsentinel.diarization.duration",
		metric.WithDescription("Latency of diarization window processing."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.NLPDuration, err = m.Float64Histogram("voxsentinel.nlp.duration",
		metric.WithDescription("Latency of keyword/sentiment/PII enrichment per token."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AlertDispatchDuration, err = m.Float64Histogram("voxsentinel.alert.dispatch.duration",
		metric.WithDescription("Latency of alert dispatch across all channels."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxsentinel.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("voxsentinel.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxsentinel.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ASRFailovers, err = m.Int64Counter("voxsentinel.asr.failovers",
		metric.WithDescription("Total ASR primary-to-fallback failover activations."),
	); err != nil {
		return nil, err
	}
	if met.KeywordMatches, err = m.Int64Counter("voxsentinel.keyword.matches",
		metric.WithDescription("Total keyword rule matches by match type."),
	); err != nil {
		return nil, err
	}
	if met.SentimentEscalations, err = m.Int64Counter("voxsentinel.sentiment.escalations",
		metric.WithDescription("Total sentiment escalation events."),
	); err != nil {
		return nil, err
	}
	if met.AlertsDispatched, err = m.Int64Counter("voxsentinel.alerts.dispatched",
		metric.WithDescription("Total alerts dispatched by channel and status."),
	); err != nil {
		return nil, err
	}
	if met.AlertsSuppressed, err = m.Int64Counter("voxsentinel.alerts.suppressed",
		metric.WithDescription("Total alerts suppressed by dedup or throttle."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsPersisted, err = m.Int64Counter("voxsentinel.segments.persisted",
		metric.WithDescription("Total transcript segments persisted to storage."),
	); err != nil {
		return nil, err
	}
	if met.ReconnectAttempts, err = m.Int64Counter("voxsentinel.ingest.reconnect_attempts",
		metric.WithDescription("Total stream reconnection attempts by outcome."),
	); err != nil {
		return nil, err
	}

	if met.ActiveStreams, err = m.Int64UpDownCounter("voxsentinel.active_streams",
		metric.WithDescription("Number of currently ingesting streams."),
	); err != nil {
		return nil, err
	}
	if met.VADSpeechRatio, err = m.Float64Gauge("voxsentinel.vad.speech_ratio",
		metric.WithDescription("Ratio of speech chunks to total chunks per stream over a rolling window."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer.
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

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordASRFailover records one ASR failover activation for streamID.
func (m *Metrics) RecordASRFailover(ctx context.Context, streamID string) {
	m.ASRFailovers.Add(ctx, 1, metric.WithAttributes(attribute.String("stream_id", streamID)))
}

// RecordKeywordMatch records one keyword rule match.
func (m *Metrics) RecordKeywordMatch(ctx context.Context, matchType string) {
	m.KeywordMatches.Add(ctx, 1, metric.WithAttributes(attribute.String("match_type", matchType)))
}

// RecordSentimentEscalation records one sentiment escalation event.
func (m *Metrics) RecordSentimentEscalation(ctx context.Context, streamID string) {
	m.SentimentEscalations.Add(ctx, 1, metric.WithAttributes(attribute.String("stream_id", streamID)))
}

// RecordAlertDispatched records one alert delivery outcome for a channel.
func (m *Metrics) RecordAlertDispatched(ctx context.Context, channel, status string) {
	m.AlertsDispatched.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("channel", channel),
			attribute.String("status", status),
		),
	)
}

// RecordAlertSuppressed records one alert suppressed by dedup or throttle.
func (m *Metrics) RecordAlertSuppressed(ctx context.Context, reason string) {
	m.AlertsSuppressed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordSegmentPersisted records one transcript segment write.
func (m *Metrics) RecordSegmentPersisted(ctx context.Context, streamID string) {
	m.SegmentsPersisted.Add(ctx, 1, metric.WithAttributes(attribute.String("stream_id", streamID)))
}

// RecordReconnectAttempt records one stream reconnection attempt.
func (m *Metrics) RecordReconnectAttempt(ctx context.Context, streamID, outcome string) {
	m.ReconnectAttempts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stream_id", streamID),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordVADFrame records nothing; it is the per-frame hook the VAD gate
// calls. The speech-ratio gauge is only pushed once per window via
// SetSpeechRatio, matching the 60s window used by the VAD gate.
func (m *Metrics) RecordVADFrame(streamID string, isSpeech bool, probability float64) {
	// Per-frame detail is intentionally not exported as its own metric to
	// avoid a high-cardinality time series per chunk; see SetSpeechRatio.
}

// SetSpeechRatio publishes the rolling speech-to-total chunk ratio for streamID.
func (m *Metrics) SetSpeechRatio(streamID string, ratio float64) {
	m.VADSpeechRatio.Record(context.Background(), ratio, metric.WithAttributes(attribute.String("stream_id", streamID)))
}
