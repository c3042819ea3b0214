package orchestrator

import (
	"net/http"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultMetricsNamespace = "navia"

// Metrics holds the orchestration collectors on a private registry so
// several orchestrators can coexist in one process or test binary.
type Metrics struct {
	registry *prometheus.Registry

	Requests       *prometheus.CounterVec
	Duration       prometheus.Histogram
	AgentRuns      *prometheus.CounterVec
	AgentDuration  *prometheus.HistogramVec
	DomainsRouted  *prometheus.CounterVec
	BreakdownsUsed prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orchestrations_total",
				Help:      "Orchestrated queries by outcome",
			},
			[]string{"outcome"},
		),
		Duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "orchestration_duration_seconds",
				Help:      "End to end orchestration latency",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
			},
		),
		AgentRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agent_runs_total",
				Help:      "Domain agent runs by domain and outcome",
			},
			[]string{"domain", "outcome"},
		),
		AgentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "agent_duration_seconds",
				Help:      "Domain agent latency",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 45},
			},
			[]string{"domain"},
		),
		DomainsRouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "domains_routed_total",
				Help:      "Domains chosen by the intent classifier",
			},
			[]string{"domain"},
		),
		BreakdownsUsed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breakdowns_returned_total",
				Help:      "Orchestrations that returned a primary breakdown",
			},
		),
	}

	registry.MustRegister(
		m.Requests,
		m.Duration,
		m.AgentRuns,
		m.AgentDuration,
		m.DomainsRouted,
		m.BreakdownsUsed,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRouting(domains []domain.Domain) {
	if m == nil {
		return
	}
	for _, d := range domains {
		m.DomainsRouted.WithLabelValues(d.String()).Inc()
	}
}

func (m *Metrics) observeAgent(d domain.Domain, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.AgentRuns.WithLabelValues(d.String(), outcome).Inc()
	m.AgentDuration.WithLabelValues(d.String()).Observe(elapsed.Seconds())
}

func (m *Metrics) observeResult(result *domain.OrchestrationResult, routed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	switch {
	case !result.Success:
		outcome = "failure"
	case len(result.Responses) < routed:
		outcome = "partial"
	}
	m.Requests.WithLabelValues(outcome).Inc()
	m.Duration.Observe(elapsed.Seconds())
	if result.Metadata.UsedBreakdown {
		m.BreakdownsUsed.Inc()
	}
}
