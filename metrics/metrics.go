// Package metrics holds the Prometheus collectors shared by the agent loop,
// the tool registry and the HTTP server. All methods are nil-safe so callers
// can run without metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	IterationsTotal   prometheus.Counter
	ToolCallsTotal    *prometheus.CounterVec
	CacheLookupsTotal *prometheus.CounterVec
	ActiveStreams     prometheus.Gauge
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// Default returns the process-wide collectors, registering them on first use.
func Default() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "agentrelay_runs_total",
				Help: "Agent runs by finish reason",
			}, []string{"finish_reason"}),
			RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "agentrelay_run_duration_seconds",
				Help:    "Wall-clock duration of agent runs",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			}),
			IterationsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "agentrelay_model_calls_total",
				Help: "Model calls issued by the agent loop",
			}),
			ToolCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "agentrelay_tool_calls_total",
				Help: "Tool calls by outcome",
			}, []string{"status"}),
			CacheLookupsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "agentrelay_mcp_cache_lookups_total",
				Help: "Remote tool server connection cache lookups by result",
			}, []string{"result"}),
			ActiveStreams: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "agentrelay_active_streams",
				Help: "Chat responses currently streaming",
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) RecordRun(finishReason string, elapsed time.Duration) {
	if m == nil || m.RunsTotal == nil {
		return
	}
	m.RunsTotal.WithLabelValues(finishReason).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordIteration() {
	if m == nil || m.IterationsTotal == nil {
		return
	}
	m.IterationsTotal.Inc()
}

// RecordToolCall counts a tool call; status is "ok", "error", "not_found",
// "invalid_args" or "stopped".
func (m *Metrics) RecordToolCall(status string) {
	if m == nil || m.ToolCallsTotal == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(status).Inc()
}

// RecordCacheLookup counts a connection cache lookup; result is "hit",
// "miss" or "error".
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil || m.CacheLookupsTotal == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) StreamStarted() {
	if m == nil || m.ActiveStreams == nil {
		return
	}
	m.ActiveStreams.Inc()
}

func (m *Metrics) StreamFinished() {
	if m == nil || m.ActiveStreams == nil {
		return
	}
	m.ActiveStreams.Dec()
}
