package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder receives pipeline measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordAgentCall(ctx context.Context, agentID, action string, duration time.Duration, err error)
	RecordRun(ctx context.Context, processingType, status string, duration time.Duration)
	RecordIndex(ctx context.Context, chunks int, duration time.Duration, err error)
	RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) RecordAgentCall(context.Context, string, string, time.Duration, error) {}
func (NoopRecorder) RecordRun(context.Context, string, string, time.Duration)              {}
func (NoopRecorder) RecordIndex(context.Context, int, time.Duration, error)                {}
func (NoopRecorder) RecordHTTPRequest(context.Context, string, string, int, time.Duration) {}

// Metrics records through OpenTelemetry instruments exported to Prometheus.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	agentDuration metric.Float64Histogram
	agentCalls    metric.Int64Counter
	agentErrors   metric.Int64Counter

	runDuration metric.Float64Histogram
	runsTotal   metric.Int64Counter

	indexDuration metric.Float64Histogram
	indexChunks   metric.Int64Counter
	indexErrors   metric.Int64Counter

	httpDuration metric.Float64Histogram
	httpRequests metric.Int64Counter
}

var _ Recorder = (*Metrics)(nil)

// NewMetrics builds the meter provider on a private Prometheus registry so
// several instances can coexist in one process.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	reg := promclient.NewRegistry()
	promExporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExporter))
	meter := provider.Meter(tracerName)
	ns := cfg.Namespace
	if ns == "" {
		ns = "claimflow"
	}

	m := &Metrics{
		provider: provider,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	if m.agentDuration, err = meter.Float64Histogram(ns+"_agent_call_duration_seconds",
		metric.WithDescription("A2A dispatch duration in seconds")); err != nil {
		return nil, fmt.Errorf("failed to create agent duration histogram: %w", err)
	}
	if m.agentCalls, err = meter.Int64Counter(ns+"_agent_calls_total",
		metric.WithDescription("Total A2A dispatches")); err != nil {
		return nil, fmt.Errorf("failed to create agent calls counter: %w", err)
	}
	if m.agentErrors, err = meter.Int64Counter(ns+"_agent_errors_total",
		metric.WithDescription("Total failed A2A dispatches")); err != nil {
		return nil, fmt.Errorf("failed to create agent errors counter: %w", err)
	}
	if m.runDuration, err = meter.Float64Histogram(ns+"_run_duration_seconds",
		metric.WithDescription("Claim run duration in seconds")); err != nil {
		return nil, fmt.Errorf("failed to create run duration histogram: %w", err)
	}
	if m.runsTotal, err = meter.Int64Counter(ns+"_runs_total",
		metric.WithDescription("Claim runs by processing type and final status")); err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}
	if m.indexDuration, err = meter.Float64Histogram(ns+"_index_duration_seconds",
		metric.WithDescription("Policy document indexing duration in seconds")); err != nil {
		return nil, fmt.Errorf("failed to create index duration histogram: %w", err)
	}
	if m.indexChunks, err = meter.Int64Counter(ns+"_indexed_chunks_total",
		metric.WithDescription("Policy chunks written to the vector index")); err != nil {
		return nil, fmt.Errorf("failed to create index chunks counter: %w", err)
	}
	if m.indexErrors, err = meter.Int64Counter(ns+"_index_errors_total",
		metric.WithDescription("Failed indexing requests")); err != nil {
		return nil, fmt.Errorf("failed to create index errors counter: %w", err)
	}
	if m.httpDuration, err = meter.Float64Histogram(ns+"_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds")); err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}
	if m.httpRequests, err = meter.Int64Counter(ns+"_http_requests_total",
		metric.WithDescription("HTTP requests by route and status")); err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordAgentCall(ctx context.Context, agentID, action string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("agent", agentID),
		attribute.String("action", action),
	)
	m.agentDuration.Record(ctx, duration.Seconds(), attrs)
	m.agentCalls.Add(ctx, 1, attrs)
	if err != nil {
		m.agentErrors.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) RecordRun(ctx context.Context, processingType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("processing_type", processingType),
		attribute.String("status", status),
	)
	m.runDuration.Record(ctx, duration.Seconds(), attrs)
	m.runsTotal.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordIndex(ctx context.Context, chunks int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.indexDuration.Record(ctx, duration.Seconds())
	if err != nil {
		m.indexErrors.Add(ctx, 1)
		return
	}
	m.indexChunks.Add(ctx, int64(chunks))
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
	m.httpRequests.Add(ctx, 1, attrs)
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// Shutdown flushes the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
