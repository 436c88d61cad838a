package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/foundry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type recordingExporter struct {
	mu    sync.Mutex
	spans []sdktrace.ReadOnlySpan
}

func (e *recordingExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = append(e.spans, spans...)
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error { return nil }

func (e *recordingExporter) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var names []string
	for _, s := range e.spans {
		names = append(names, s.Name())
	}
	return names
}

func TestInitTracing_Disabled(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider(), "disabled tracing leaves the global provider alone")
}

func TestInitTracing_ExportsSpans(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	exporter := &recordingExporter{}
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "bridge-test",
		Exporter:    exporter,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "unit-of-work")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Equal(t, []string{"unit-of-work"}, exporter.names())

	exporter.mu.Lock()
	defer exporter.mu.Unlock()
	var service string
	for _, kv := range exporter.spans[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "bridge-test", service)
}

func TestMetrics_RecordsInvocations(t *testing.T) {
	m := NewMetrics()

	m.InvocationStarted(foundry.ModeBlocking)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inflight.WithLabelValues(foundry.ModeBlocking)))

	m.InvocationFinished(foundry.ModeBlocking, foundry.OutcomeSuccess, 1500*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight.WithLabelValues(foundry.ModeBlocking)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues(foundry.ModeBlocking, foundry.OutcomeSuccess)))

	m.InvocationStarted(foundry.ModeStreaming)
	m.InvocationFinished(foundry.ModeStreaming, foundry.OutcomeError, time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues(foundry.ModeStreaming, foundry.OutcomeError)))

	assert.Equal(t, 2, testutil.CollectAndCount(m.duration, "a2a_bridge_agent_invocation_duration_seconds"))
}

func TestMetrics_RejectedInvocationsNeverInFlight(t *testing.T) {
	m := NewMetrics()

	m.InvocationFinished(foundry.ModeBlocking, foundry.OutcomeInvalidInput, 0)
	m.InvocationFinished(foundry.ModeStreaming, foundry.OutcomeNotReady, 0)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight.WithLabelValues(foundry.ModeBlocking)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight.WithLabelValues(foundry.ModeStreaming)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues(foundry.ModeBlocking, foundry.OutcomeInvalidInput)))
	assert.Equal(t, 0, testutil.CollectAndCount(m.duration))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.SetAgent("my-agent", "3")
	m.InvocationStarted(foundry.ModeBlocking)
	m.InvocationFinished(foundry.ModeBlocking, foundry.OutcomeSuccess, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `a2a_bridge_agent_invocations_total{mode="blocking",outcome="success"} 1`)
	assert.Contains(t, string(body), `a2a_bridge_agent_info{name="my-agent",version="3"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
