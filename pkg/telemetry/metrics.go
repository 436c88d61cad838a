package telemetry

import (
	"net/http"
	"time"

	"github.com/ozgurkarahan/get-started-with-ai-agents/pkg/foundry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "a2a_bridge"

// Metrics holds the bridge's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inflight    *prometheus.GaugeVec
	agentInfo   *prometheus.GaugeVec
}

var _ foundry.Recorder = (*Metrics)(nil)

// NewMetrics creates the collectors and registers them together with the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		invocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agent_invocations_total",
				Help:      "Agent invocations by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "agent_invocation_duration_seconds",
				Help:      "Agent invocation duration in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"mode", "outcome"},
		),
		inflight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "agent_invocations_in_flight",
				Help:      "Agent invocations currently running",
			},
			[]string{"mode"},
		),
		agentInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "agent_info",
				Help:      "The resolved Foundry agent, always 1",
			},
			[]string{"name", "version"},
		),
	}
}

// InvocationStarted implements foundry.Recorder.
func (m *Metrics) InvocationStarted(mode string) {
	m.inflight.WithLabelValues(mode).Inc()
}

// InvocationFinished implements foundry.Recorder. Invocations rejected before
// they started (invalid input, not ready) are counted but were never in flight.
func (m *Metrics) InvocationFinished(mode, outcome string, elapsed time.Duration) {
	m.invocations.WithLabelValues(mode, outcome).Inc()
	if !rejectedOutcome(outcome) {
		m.inflight.WithLabelValues(mode).Dec()
		m.duration.WithLabelValues(mode, outcome).Observe(elapsed.Seconds())
	}
}

func rejectedOutcome(outcome string) bool {
	return outcome == foundry.OutcomeInvalidInput || outcome == foundry.OutcomeNotReady
}

// SetAgent records the resolved agent identity.
func (m *Metrics) SetAgent(name, version string) {
	m.agentInfo.Reset()
	m.agentInfo.WithLabelValues(name, version).Set(1)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
