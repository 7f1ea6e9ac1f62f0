// Package observe provides application-wide observability primitives for
// Flux: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Flux metrics.
const meterName = "github.com/MrWong99/flux"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Capture attempts ---

	// AttemptsStarted counts attempts that acquired the capture lock. Use
	// with attribute.String("flow", ...).
	AttemptsStarted metric.Int64Counter

	// AttemptOutcomes counts terminal attempt outcomes. Use with attributes:
	//   attribute.String("flow", ...), attribute.String("outcome", ...)
	AttemptOutcomes metric.Int64Counter

	// Failures counts failed attempts. Use with attributes:
	//   attribute.String("flow", ...), attribute.String("reason", ...)
	Failures metric.Int64Counter

	// ActiveAttempts tracks the number of live attempts across all flows.
	ActiveAttempts metric.Int64UpDownCounter

	// --- Latency histograms ---

	// RecordingDuration tracks how long the trigger was held.
	RecordingDuration metric.Float64Histogram

	// TranscriptionDuration tracks the stop-to-transcript round trip.
	TranscriptionDuration metric.Float64Histogram

	// EnhancementDuration tracks language model rewrites. Use with
	// attribute.String("status", ...).
	EnhancementDuration metric.Float64Histogram

	// --- Delivery ---

	// DeliveryOutcomes counts delivery results. Use with attributes:
	//   attribute.String("flow", ...), attribute.String("outcome", ...)
	DeliveryOutcomes metric.Int64Counter

	// --- Providers ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Use with
	// attributes: attribute.String("provider", ...), attribute.String("state", ...)
	BreakerTransitions metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// provider round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// recordingBuckets covers hold times from an accidental tap up to the
// longest allowed recording.
var recordingBuckets = []float64{
	0.25, 0.5, 1, 2, 5, 10, 20, 45, 90, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Attempts.
	if met.AttemptsStarted, err = m.Int64Counter("flux.attempts.started",
		metric.WithDescription("Total capture attempts started by flow."),
	); err != nil {
		return nil, err
	}
	if met.AttemptOutcomes, err = m.Int64Counter("flux.attempts.outcomes",
		metric.WithDescription("Total terminal attempt outcomes by flow and outcome."),
	); err != nil {
		return nil, err
	}
	if met.Failures, err = m.Int64Counter("flux.attempts.failures",
		metric.WithDescription("Total failed attempts by flow and reason."),
	); err != nil {
		return nil, err
	}
	if met.ActiveAttempts, err = m.Int64UpDownCounter("flux.attempts.active",
		metric.WithDescription("Number of live capture attempts."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.RecordingDuration, err = m.Float64Histogram("flux.recording.duration",
		metric.WithDescription("Length of recordings handed to transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(recordingBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("flux.transcription.duration",
		metric.WithDescription("Latency from recording stop to transcript."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EnhancementDuration, err = m.Float64Histogram("flux.enhancement.duration",
		metric.WithDescription("Latency of language model enhancement by status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Delivery.
	if met.DeliveryOutcomes, err = m.Int64Counter("flux.delivery.outcomes",
		metric.WithDescription("Total deliveries by flow and outcome."),
	); err != nil {
		return nil, err
	}

	// Providers.
	if met.ProviderRequests, err = m.Int64Counter("flux.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("flux.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("flux.provider.breaker_transitions",
		metric.WithDescription("Total circuit breaker state changes by provider and new state."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("flux.http.request.duration",
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

// RecordAttemptStarted counts a started attempt and raises the active gauge.
func (m *Metrics) RecordAttemptStarted(ctx context.Context, flow string) {
	m.AttemptsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("flow", flow)))
	m.ActiveAttempts.Add(ctx, 1)
}

// RecordAttemptFinished counts a terminal outcome and lowers the active gauge.
func (m *Metrics) RecordAttemptFinished(ctx context.Context, flow, outcome string) {
	m.AttemptOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("flow", flow),
			attribute.String("outcome", outcome),
		),
	)
	m.ActiveAttempts.Add(ctx, -1)
}

// RecordFailure counts a failed attempt.
func (m *Metrics) RecordFailure(ctx context.Context, flow, reason string) {
	m.Failures.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("flow", flow),
			attribute.String("reason", reason),
		),
	)
}

// RecordDuration records d in seconds on h.
func RecordDuration(ctx context.Context, h metric.Float64Histogram, d time.Duration, attrs ...attribute.KeyValue) {
	h.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

// RecordDelivery counts a delivery outcome.
func (m *Metrics) RecordDelivery(ctx context.Context, flow, outcome string) {
	m.DeliveryOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("flow", flow),
			attribute.String("outcome", outcome),
		),
	)
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

// RecordBreakerTransition counts a circuit breaker moving to state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, state string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("state", state),
		),
	)
}
