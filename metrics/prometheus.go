package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeddq/agentcore/core"
)

// PrometheusCollector exports invocation outcomes, latencies and circuit
// transitions as Prometheus series for operational dashboards.
type PrometheusCollector struct {
	invocations *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	state       *prometheus.GaugeVec
}

// NewPrometheusCollector builds and registers the collector's series on reg
// (prometheus.DefaultRegisterer when nil).
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &PrometheusCollector{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "executor",
			Name:      "invocations_total",
			Help:      "Terminal tool invocation outcomes by tool and outcome kind.",
		}, []string{"tool", "outcome", "failure_kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentcore",
			Subsystem: "executor",
			Name:      "invocation_duration_seconds",
			Help:      "Tool invocation latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Circuit-state transitions by tool and edge.",
		}, []string{"tool", "from", "to"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "agentcore",
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Current circuit state per tool (0 closed, 1 open, 2 half_open).",
		}, []string{"tool"}),
	}
	reg.MustRegister(c.invocations, c.latency, c.transitions, c.state)
	return c
}

// RecordInvocation implements Collector.
func (c *PrometheusCollector) RecordInvocation(tool string, kind core.OutcomeKind, failure core.FailureKind, latency time.Duration) {
	c.invocations.WithLabelValues(tool, string(kind), string(failure)).Inc()
	c.latency.WithLabelValues(tool).Observe(latency.Seconds())
}

// RecordTransition implements Collector.
func (c *PrometheusCollector) RecordTransition(tool, from, to string) {
	c.transitions.WithLabelValues(tool, from, to).Inc()
	c.state.WithLabelValues(tool).Set(stateGaugeValue(to))
}

func stateGaugeValue(state string) float64 {
	switch state {
	case "open":
		return 1
	case "half_open":
		return 2
	default:
		return 0
	}
}
