// Package observe provides application-wide observability primitives for
// DorkNexus: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all DorkNexus metrics.
const meterName = "github.com/discover-Austin/DorkNexus"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Histograms ---

	// SessionDuration tracks the total lifetime of a voice session.
	SessionDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// EnqueueLatency tracks how long scheduling one model audio delta into
	// the playback timeline takes, decode included.
	EnqueueLatency metric.Float64Histogram

	// --- Counters ---

	// AudioChunksSent counts microphone windows sent upstream. Use with
	// attribute: attribute.String("provider", ...)
	AudioChunksSent metric.Int64Counter

	// AudioChunksReceived counts model audio deltas received. Use with
	// attribute: attribute.String("provider", ...)
	AudioChunksReceived metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// DecodeErrors counts audio payloads that failed to decode.
	DecodeErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// sessionBuckets defines histogram bucket boundaries (in seconds) sized for
// interactive voice sessions, which run from seconds up to the provider's
// session cap.
var sessionBuckets = []float64{
	1, 5, 15, 30, 60, 120, 300, 600, 900, 1800,
}

// enqueueBuckets covers the playback enqueue hot path, which should sit
// well under a millisecond.
var enqueueBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SessionDuration, err = m.Float64Histogram("dorknexus.session.duration",
		metric.WithDescription("Total lifetime of a voice session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("dorknexus.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.EnqueueLatency, err = m.Float64Histogram("dorknexus.playback.enqueue.duration",
		metric.WithDescription("Time to schedule one model audio delta for playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(enqueueBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.AudioChunksSent, err = m.Int64Counter("dorknexus.audio.chunks_sent",
		metric.WithDescription("Total microphone windows sent upstream by provider."),
	); err != nil {
		return nil, err
	}
	if met.AudioChunksReceived, err = m.Int64Counter("dorknexus.audio.chunks_received",
		metric.WithDescription("Total model audio deltas received by provider."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("dorknexus.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.DecodeErrors, err = m.Int64Counter("dorknexus.audio.decode_errors",
		metric.WithDescription("Total audio payloads that failed to decode."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("dorknexus.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
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

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordChunkSent records one microphone window sent to the given provider.
func (m *Metrics) RecordChunkSent(ctx context.Context, provider string) {
	m.AudioChunksSent.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordChunkReceived records one model audio delta received from the given
// provider.
func (m *Metrics) RecordChunkReceived(ctx context.Context, provider string) {
	m.AudioChunksReceived.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}
