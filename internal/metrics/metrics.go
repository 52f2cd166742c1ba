package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics
var (
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_turns_total",
			Help: "Total number of conversation turns by phase and outcome",
		},
		[]string{"phase", "status"},
	)
	TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "workflow_turn_duration_seconds",
			Help: "Duration of conversation turns",
		},
		[]string{"phase"},
	)
	AgentStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_agent_steps_total",
			Help: "Total number of agent invocations by agent and outcome",
		},
		[]string{"agent", "outcome"},
	)
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_tool_calls_total",
			Help: "Total number of tool invocations",
		},
		[]string{"tool", "status"},
	)
	PhaseTransitionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workflow_phase_transitions_total",
			Help: "Total number of collecting to answering transitions",
		},
	)
	ToolRoundLimitTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workflow_tool_round_limit_total",
			Help: "Total number of turns that hit the tool round limit",
		},
	)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests",
		},
		[]string{"method", "endpoint"},
	)
	SearchCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "search_cache_hits_total",
			Help: "Total number of knowledge search cache hits",
		},
	)
	SearchCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "search_cache_misses_total",
			Help: "Total number of knowledge search cache misses",
		},
	)
	MCPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_requests_total",
			Help: "Total number of MCP requests",
		},
		[]string{"method", "status"},
	)
	MCPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "mcp_request_duration_seconds",
			Help: "Duration of MCP requests",
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(TurnsTotal)
	prometheus.MustRegister(TurnDuration)
	prometheus.MustRegister(AgentStepsTotal)
	prometheus.MustRegister(ToolCallsTotal)
	prometheus.MustRegister(PhaseTransitionsTotal)
	prometheus.MustRegister(ToolRoundLimitTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(SearchCacheHitsTotal)
	prometheus.MustRegister(SearchCacheMissesTotal)
	prometheus.MustRegister(MCPRequestsTotal)
	prometheus.MustRegister(MCPRequestDuration)
}
