//go:build !nometrics

package obs

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

var (
	setupOnce sync.Once
	shutdown  = func(context.Context) error { return nil }
)

var (
	requestsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolver_pipeline_requests_total",
		Help: "Total submitted requests by mode.",
	}, []string{"mode"})
	pendingResolutions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resolver_pipeline_pending_resolutions",
		Help: "Resolutions waiting in the pending queue.",
	})
	inFlightResolutions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resolver_pipeline_inflight_resolutions",
		Help: "Resolutions currently being processed by backends.",
	})
	admitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolver_pipeline_admitted_total",
		Help: "Resolutions accepted by a backend, grouped by backend.",
	}, []string{"backend"})
	declined = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolver_pipeline_declined_total",
		Help: "Resolutions declined at admission, grouped by backend.",
	}, []string{"backend"})
	reported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolver_pipeline_reports_total",
		Help: "Completion callbacks received, grouped by backend.",
	}, []string{"backend"})
	mergeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "resolver_pipeline_merge_duration_ms",
		Help:    "Histogram of result merge latency in ms.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
	mergedResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resolver_pipeline_merged_results_total",
		Help: "Candidates appended to request result lists.",
	})
	sourceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "resolver_pipeline_source_duration_ms",
		Help:    "Histogram of backend resolution latency in ms.",
		Buckets: prometheus.ExponentialBuckets(5, 2, 8),
	}, []string{"source"})
	sourceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resolver_pipeline_source_errors_total",
		Help: "Count of backend errors grouped by source and code.",
	}, []string{"source", "code"})
	circuitStates = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "resolver_pipeline_circuit_state",
		Help: "Circuit breaker state per source (0=closed,1=half-open,2=open).",
	}, []string{"source"})
)

// IncRequestSubmitted counts a submitted request.
func IncRequestSubmitted(onlyLocal bool) {
	mode := "unrestricted"
	if onlyLocal {
		mode = "local_only"
	}
	requestsSubmitted.WithLabelValues(mode).Inc()
}

// SetPendingResolutions updates the pending queue depth gauge.
func SetPendingResolutions(n int) {
	pendingResolutions.Set(float64(n))
}

// SetInFlightResolutions updates the in-flight set size gauge.
func SetInFlightResolutions(n int) {
	inFlightResolutions.Set(float64(n))
}

// IncAdmitted counts an accepted admission for a backend.
func IncAdmitted(backend string) {
	admitted.WithLabelValues(backend).Inc()
}

// IncDeclined counts a declined admission for a backend.
func IncDeclined(backend string) {
	declined.WithLabelValues(backend).Inc()
}

// IncReported counts a completion callback from a backend.
func IncReported(backend string) {
	reported.WithLabelValues(backend).Inc()
}

// ObserveMerge records the latency of one merge and the number of candidates
// it appended.
func ObserveMerge(duration time.Duration, added int) {
	mergeDuration.Observe(float64(duration.Milliseconds()))
	if added > 0 {
		mergedResults.Add(float64(added))
	}
}

// RecordSourceDuration observes the latency for a backend's resolution call.
func RecordSourceDuration(source string, duration time.Duration) {
	sourceDuration.WithLabelValues(source).Observe(float64(duration.Milliseconds()))
}

// RecordSourceError increments the error counter for a source/code combination.
func RecordSourceError(source, code string) {
	sourceErrors.WithLabelValues(source, code).Inc()
}

// SetCircuitState updates the gauge representing circuit breaker state.
func SetCircuitState(source, state string) {
	var value float64
	switch state {
	case "open":
		value = 2
	case "half-open":
		value = 1
	}
	circuitStates.WithLabelValues(source).Set(value)
}

// InitTracer sets up a minimal OpenTelemetry tracer provider.
func InitTracer(serviceName string) (func(context.Context) error, error) {
	var initErr error
	setupOnce.Do(func() {
		res, err := resource.New(context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
			),
		)
		if err != nil {
			initErr = err
			return
		}

		provider := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.3))),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(provider)
		shutdown = provider.Shutdown
	})
	return shutdown, initErr
}
