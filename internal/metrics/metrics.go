// Package metrics collects Prometheus metrics for the gateway client, the
// agent loop, and the runtime host.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. All observe methods are safe on a nil
// receiver so callers can treat metrics as optional.
type Metrics struct {
	tokenRefreshes     *prometheus.CounterVec
	toolCalls          *prometheus.CounterVec
	toolCallDuration   *prometheus.HistogramVec
	agentTurns         prometheus.Histogram
	invocations        *prometheus.CounterVec
	invocationDuration prometheus.Histogram
}

// New registers the collectors with registerer and returns them. A nil
// registerer uses the default registry.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		tokenRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatemcp_token_refreshes_total",
				Help: "Total OAuth2 token refresh attempts",
			},
			[]string{"outcome"},
		),
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatemcp_tool_calls_total",
				Help: "Total gateway tool calls",
			},
			[]string{"gateway", "tool", "outcome"},
		),
		toolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatemcp_tool_call_duration_seconds",
				Help:    "Duration of gateway tool calls in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"gateway", "tool"},
		),
		agentTurns: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gatemcp_agent_turns",
				Help:    "Model turns taken per agent run",
				Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
			},
		),
		invocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatemcp_runtime_invocations_total",
				Help: "Total runtime invocation requests",
			},
			[]string{"outcome"},
		),
		invocationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gatemcp_runtime_invocation_duration_seconds",
				Help:    "Duration of runtime invocations in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveTokenRefresh records one token refresh attempt.
func (m *Metrics) ObserveTokenRefresh(err error) {
	if m == nil {
		return
	}
	m.tokenRefreshes.WithLabelValues(outcome(err)).Inc()
}

// ObserveToolCall records one gateway tool call by base name.
func (m *Metrics) ObserveToolCall(gateway, tool string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(gateway, tool, outcome(err)).Inc()
	m.toolCallDuration.WithLabelValues(gateway, tool).Observe(duration.Seconds())
}

// ObserveAgentTurns records how many model turns an agent run took.
func (m *Metrics) ObserveAgentTurns(turns int) {
	if m == nil {
		return
	}
	m.agentTurns.Observe(float64(turns))
}

// ObserveInvocation records one runtime invocation request.
func (m *Metrics) ObserveInvocation(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(outcome(err)).Inc()
	m.invocationDuration.Observe(duration.Seconds())
}

// Handler serves the gathered metrics. A nil gatherer uses the default one.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
