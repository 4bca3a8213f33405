// Package observe provides application-wide observability primitives for the
// pixelholo control panel: OpenTelemetry metrics, tracing helpers, and HTTP
// middleware for the local ops endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the panel's /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all panel metrics.
const meterName = "github.com/YingxuanHu/pixelholo-frontend"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TimeToFirstAudio tracks elapsed time from synthesis request start to
	// the first scheduled audio chunk.
	TimeToFirstAudio metric.Float64Histogram

	// StreamDuration tracks total synthesis stream duration.
	StreamDuration metric.Float64Histogram

	// UploadDuration tracks sample upload latency.
	UploadDuration metric.Float64Histogram

	// --- Counters ---

	// ChunksScheduled counts audio chunks placed on the playback clock.
	// Use with attribute.String("profile", ...).
	ChunksScheduled metric.Int64Counter

	// ChunksDropped counts chunks discarded before scheduling. Use with
	// attribute.String("reason", ...) ("decode", "empty").
	ChunksDropped metric.Int64Counter

	// TransportErrors counts stream transport failures by endpoint.
	TransportErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live synthesis sessions
	// (0 or 1 per workflow instance).
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks ops-endpoint request processing time.
	// Use with attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for streaming-synthesis latencies.
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
	if met.TimeToFirstAudio, err = m.Float64Histogram("pixelholo.stream.time_to_first_audio",
		metric.WithDescription("Elapsed time from request start to first scheduled audio chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StreamDuration, err = m.Float64Histogram("pixelholo.stream.duration",
		metric.WithDescription("Total synthesis stream duration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UploadDuration, err = m.Float64Histogram("pixelholo.upload.duration",
		metric.WithDescription("Sample upload latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ChunksScheduled, err = m.Int64Counter("pixelholo.chunks.scheduled",
		metric.WithDescription("Audio chunks placed on the playback clock, by profile."),
	); err != nil {
		return nil, err
	}
	if met.ChunksDropped, err = m.Int64Counter("pixelholo.chunks.dropped",
		metric.WithDescription("Audio chunks discarded before scheduling, by reason."),
	); err != nil {
		return nil, err
	}
	if met.TransportErrors, err = m.Int64Counter("pixelholo.transport.errors",
		metric.WithDescription("Stream transport failures by endpoint."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("pixelholo.active_sessions",
		metric.WithDescription("Number of live synthesis sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("pixelholo.http.request.duration",
		metric.WithDescription("Ops endpoint request latency by method and path."),
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

// RecordChunkScheduled records one scheduled chunk for a profile.
func (m *Metrics) RecordChunkScheduled(ctx context.Context, profile string) {
	m.ChunksScheduled.Add(ctx, 1,
		metric.WithAttributes(attribute.String("profile", profile)),
	)
}

// RecordChunkDropped records one dropped chunk with the drop reason.
func (m *Metrics) RecordChunkDropped(ctx context.Context, reason string) {
	m.ChunksDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordTransportError records one transport failure for an endpoint.
func (m *Metrics) RecordTransportError(ctx context.Context, endpoint string) {
	m.TransportErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("endpoint", endpoint)),
	)
}
