// Package metrics provides Prometheus-based metrics recording for the
// runtime's core components (spec §4, observability supplement). Mirrors
// the teacher's pkg/agent/middleware/metrics.PrometheusRecorder: a struct
// holding promauto-registered vecs with one Observe/Inc method per
// concern, rather than package-level free functions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records counters and histograms for the Agent Supervisor, the
// Concurrent Dispatcher, the Report Scheduler, the Intent Router, and the
// tool-calling loop.
type Recorder struct {
	agentRestarts     *prometheus.CounterVec
	agentStateTotal   *prometheus.CounterVec
	dispatchOutcomes  *prometheus.CounterVec
	dispatchLatency   *prometheus.HistogramVec
	scheduleRuns      *prometheus.CounterVec
	scheduleLag       *prometheus.CounterVec
	scheduleDuration  *prometheus.HistogramVec
	routeDecisions    *prometheus.CounterVec
	routeConfidence   *prometheus.HistogramVec
	toolInvocations   *prometheus.CounterVec
	toolDuration      *prometheus.HistogramVec
}

// NewRecorder builds a Recorder whose collectors are registered with reg.
// Passing prometheus.NewRegistry() isolates a test's metrics from the
// process-wide default registry; the orchestrator Facade also builds its
// Recorder against a fresh registry, exposed as Facade.Registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		agentRestarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colony_agent_restarts_total",
				Help: "Total number of agent restart attempts by name and outcome.",
			},
			[]string{"agent", "outcome"},
		),
		agentStateTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colony_agent_state_transitions_total",
				Help: "Total number of agent lifecycle state transitions.",
			},
			[]string{"agent", "state"},
		),
		dispatchOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colony_dispatch_outcomes_total",
				Help: "Total dispatcher attempts by method and outcome (cache_hit, success, all_failed).",
			},
			[]string{"method", "outcome"},
		),
		dispatchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "colony_dispatch_latency_seconds",
				Help:    "Latency of successful dispatcher calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		scheduleRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colony_schedule_runs_total",
				Help: "Total scheduled task executions by name and outcome.",
			},
			[]string{"schedule", "outcome"},
		),
		scheduleLag: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colony_schedule_lag_total",
				Help: "Total number of ticks skipped because the prior run was still in flight.",
			},
			[]string{"schedule"},
		),
		scheduleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "colony_schedule_duration_seconds",
				Help:    "Duration of scheduled task executions.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"schedule"},
		),
		routeDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colony_route_decisions_total",
				Help: "Total routing decisions by chosen skill.",
			},
			[]string{"skill"},
		),
		routeConfidence: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "colony_route_confidence",
				Help:    "Confidence score of routing decisions.",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
			[]string{"skill"},
		),
		toolInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colony_tool_invocations_total",
				Help: "Total tool invocations by tool name and status.",
			},
			[]string{"tool", "status"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "colony_tool_duration_seconds",
				Help:    "Duration of tool invocations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
	}
}

// RecordAgentRestart records a restart attempt's outcome ("ok" or
// "burst_disabled").
func (r *Recorder) RecordAgentRestart(agent, outcome string) {
	r.agentRestarts.WithLabelValues(agent, outcome).Inc()
}

// RecordAgentState records an agent entering state.
func (r *Recorder) RecordAgentState(agent, state string) {
	r.agentStateTotal.WithLabelValues(agent, state).Inc()
}

// RecordDispatch records a Dispatch call's outcome and, on success, the
// winning endpoint's latency.
func (r *Recorder) RecordDispatch(method, outcome, endpoint string, latency time.Duration) {
	r.dispatchOutcomes.WithLabelValues(method, outcome).Inc()
	if outcome == "success" {
		r.dispatchLatency.WithLabelValues(method, endpoint).Observe(latency.Seconds())
	}
}

// RecordScheduleRun records one task execution's outcome and duration.
func (r *Recorder) RecordScheduleRun(schedule, outcome string, d time.Duration) {
	r.scheduleRuns.WithLabelValues(schedule, outcome).Inc()
	r.scheduleDuration.WithLabelValues(schedule).Observe(d.Seconds())
}

// RecordScheduleLag records a skipped/overlapping tick.
func (r *Recorder) RecordScheduleLag(schedule string) {
	r.scheduleLag.WithLabelValues(schedule).Inc()
}

// RecordRoute records a routing decision's chosen skill and confidence.
func (r *Recorder) RecordRoute(sk string, confidence float64) {
	r.routeDecisions.WithLabelValues(sk).Inc()
	r.routeConfidence.WithLabelValues(sk).Observe(confidence)
}

// RecordToolInvocation records a tool invocation's status and duration.
func (r *Recorder) RecordToolInvocation(tool, status string, d time.Duration) {
	r.toolInvocations.WithLabelValues(tool, status).Inc()
	r.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}
