package engine

import (
	"github.com/hupe1980/coachmesh/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Guardrail phases used as the phase label of the rejection counter.
const (
	PhaseInput  = "input"
	PhaseOutput = "output"
)

// Metrics holds the Prometheus collectors of the orchestrator.
//
// Metrics:
//   - coachmesh_agent_executions_total{agent,outcome} - finished ExecuteAgent calls
//   - coachmesh_agent_execution_seconds{agent} - agent execution time
//   - coachmesh_guardrail_rejections_total{phase} - pre and post validation rejections
//   - coachmesh_guardrail_sanitizations_total{agent} - results rewritten by post validation
type Metrics struct {
	Executions    *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	Rejections    *prometheus.CounterVec
	Sanitizations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. Passing a
// dedicated registry keeps tests and multiple orchestrators independent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coachmesh_agent_executions_total",
				Help: "Total number of agent executions by outcome",
			},
			[]string{"agent", "outcome"}, // outcome: success or a reason code
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coachmesh_agent_execution_seconds",
				Help:    "Duration of agent executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent"},
		),
		Rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coachmesh_guardrail_rejections_total",
				Help: "Total number of guardrail rejections by phase",
			},
			[]string{"phase"},
		),
		Sanitizations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coachmesh_guardrail_sanitizations_total",
				Help: "Total number of agent results rewritten by the output guardrail",
			},
			[]string{"agent"},
		),
	}
}

func (m *Metrics) observe(resp core.AgentResponse) {
	if m == nil {
		return
	}
	outcome := "success"
	if !resp.Success {
		outcome = string(resp.Reason)
	}
	m.Executions.WithLabelValues(string(resp.AgentID), outcome).Inc()
	if resp.Reason != core.ReasonAgentNotFound {
		m.Duration.WithLabelValues(string(resp.AgentID)).Observe(resp.ExecutionTime.Seconds())
	}
}

func (m *Metrics) rejected(phase string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(phase).Inc()
}

func (m *Metrics) sanitized(agentID core.AgentID) {
	if m == nil {
		return
	}
	m.Sanitizations.WithLabelValues(string(agentID)).Inc()
}
