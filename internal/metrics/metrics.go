package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regnex_queries_total",
			Help: "Total number of team queries by outcome",
		},
		[]string{"status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "regnex_query_duration_seconds",
			Help:    "Duration of team queries in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)

	AgentRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regnex_agent_runs_total",
			Help: "Total number of agent runs",
		},
		[]string{"agent", "status"},
	)

	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regnex_tool_calls_total",
			Help: "Total number of tool calls executed",
		},
		[]string{"tool", "status"},
	)

	ModelTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regnex_model_tokens_total",
			Help: "Tokens consumed by model calls",
		},
		[]string{"agent", "direction"},
	)

	KnowledgeFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "regnex_knowledge_files_loaded",
			Help: "Number of files loaded per knowledge base",
		},
		[]string{"kb"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regnex_cache_lookups_total",
			Help: "Answer cache lookups by result",
		},
		[]string{"result"},
	)
)
