package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	GenerationResults *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	GenerationLatency *prometheus.HistogramVec
	ArtifactsSwept    prometheus.Counter
	ActiveSessions    prometheus.Gauge
	SessionEvents     *prometheus.CounterVec
	WSMessages        *prometheus.CounterVec

	registry *prometheus.Registry
	window   *latencyWindow
}

// NewMetrics registers every instrument on reg. A nil reg gets a fresh
// registry, which keeps tests independent of each other.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		GenerationResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_results_total",
			Help:      "Orchestration results by kind and status.",
		}, []string{"kind", "status"}),
		ProviderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Absorbed provider failures by provider and error kind.",
		}, []string{"provider", "kind"}),
		GenerationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_latency_ms",
			Help:      "End-to-end orchestration latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"kind"}),
		ArtifactsSwept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_swept_total",
			Help:      "Artifacts removed by the retention sweep.",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active conversation sessions.",
		}),
		SessionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		registry: reg,
		window:   newLatencyWindow(256),
	}
}

// ObserveGeneration records one orchestration result.
func (m *Metrics) ObserveGeneration(kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Microseconds()) / 1000
	m.GenerationResults.WithLabelValues(kind, status).Inc()
	m.GenerationLatency.WithLabelValues(kind).Observe(ms)
	m.window.Observe(kind+"/"+status, ms)
}

func (m *Metrics) ObserveProviderError(provider, kind string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(provider, kind).Inc()
	m.window.ObserveIndicator(provider + ":" + kind)
}

func (m *Metrics) ObserveSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ArtifactsSwept.Add(float64(n))
}

// SnapshotLatency returns the rolling latency window.
func (m *Metrics) SnapshotLatency() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{GeneratedAt: time.Now().UTC(), Series: []LatencyStats{}}
	}
	return m.window.Snapshot()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
