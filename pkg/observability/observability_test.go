package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecording(t *testing.T) {
	ctx := context.Background()

	metrics, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "claimflow"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = metrics.Shutdown(context.Background()) })

	metrics.RecordAgentCall(ctx, "fraud_detector", "assess", 20*time.Millisecond, nil)
	metrics.RecordAgentCall(ctx, "policy_retriever", "retrieve", 40*time.Millisecond, errors.New("index down"))
	metrics.RecordRun(ctx, "full", "completed", 150*time.Millisecond)
	metrics.RecordIndex(ctx, 12, 5*time.Millisecond, nil)
	metrics.RecordHTTPRequest(ctx, http.MethodPost, "/claims/process", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	for _, name := range []string{
		"claimflow_agent_calls",
		"claimflow_agent_errors",
		"claimflow_runs",
		"claimflow_indexed_chunks",
		"claimflow_http_requests",
	} {
		assert.Contains(t, string(body), name)
	}
	assert.Contains(t, string(body), `agent="fraud_detector"`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.RecordAgentCall(context.Background(), "a", "b", time.Millisecond, nil)
	metrics.RecordRun(context.Background(), "full", "failed", time.Millisecond)
	assert.NoError(t, metrics.Shutdown(context.Background()))
}

func TestManagerDisabled(t *testing.T) {
	m := NewManager(Config{})
	require.NoError(t, m.Initialize(context.Background()))

	_, ok := m.Recorder().(NoopRecorder)
	assert.True(t, ok)

	rec := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManagerMetricsEnabled(t *testing.T) {
	m := NewManager(Config{Metrics: MetricsConfig{Enabled: true}})
	require.NoError(t, m.Initialize(context.Background()))
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	_, ok := m.Recorder().(*Metrics)
	assert.True(t, ok)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "claimflow", cfg.Tracing.ServiceName)

	cfg.Tracing.Exporter = "zipkin"
	assert.Error(t, cfg.Validate())
}

func TestHTTPMiddleware(t *testing.T) {
	metrics, err := NewMetrics(MetricsConfig{})
	require.NoError(t, err)

	h := HTTPMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `route="/health"`)
}
