package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voxaos_stage_latency_seconds",
			Help:    "Wall-clock duration of pipeline and agent stages",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)

	Utterances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxaos_utterances_total",
			Help: "Utterances handled by the pipeline, by outcome",
		},
		[]string{"outcome"},
	)

	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxaos_pipeline_transitions_total",
			Help: "Pipeline state transitions, by target state",
		},
		[]string{"state"},
	)

	DroppedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voxaos_dropped_frames_total",
			Help: "Audio frames dropped while the pipeline was busy",
		},
	)

	ToolExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxaos_tool_executions_total",
			Help: "Tool executions, by tool, risk tier and outcome",
		},
		[]string{"tool", "risk", "outcome"},
	)

	AgentIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voxaos_agent_llm_calls",
			Help:    "LLM calls made per agent-loop invocation",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	BestEffortFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxaos_best_effort_failures_total",
			Help: "Swallowed memory and capture-log failures",
		},
		[]string{"op"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voxaos_active_sessions",
			Help: "Number of connected audio sessions",
		},
	)
)

// ObserveStage records a stage duration given in milliseconds.
func ObserveStage(stage string, ms float64) {
	StageLatency.WithLabelValues(stage).Observe(ms / 1000)
}
