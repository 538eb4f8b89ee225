package persistor

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "kairospersistor"

// actionUnknown is the metrics label used for missing or unsupported actions,
// so arbitrary client input cannot grow label cardinality.
const actionUnknown = "unknown"

// Metrics records dispatch counters in Prometheus and keeps cheap totals for
// the JSON status endpoint.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	commands      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	backendErrors *prometheus.CounterVec

	dispatched atomic.Uint64
	succeeded  atomic.Uint64
	failed     atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of the dispatch totals.
type MetricsSnapshot struct {
	Dispatched uint64 `json:"dispatched"`
	Succeeded  uint64 `json:"succeeded"`
	Failed     uint64 `json:"failed"`
}

// NewMetrics registers the persistor collectors with reg.
//
// Registering twice on the same registerer panics, as with any Prometheus
// collector; tests should pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_total",
			Help:      "Commands dispatched, by action and result status.",
		}, []string{"action", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "command_duration_seconds",
			Help:      "Time from dispatch to result, by action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		backendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "backend_errors_total",
			Help:      "Backend failures, by action and error kind.",
		}, []string{"action", "kind"}),
	}
}

// observe records one dispatched command.
func (m *Metrics) observe(action string, result Result, elapsed time.Duration) {
	if m == nil {
		return
	}

	if _, known := endpoints[action]; !known {
		action = actionUnknown
	}

	m.dispatched.Add(1)
	if result.OK() {
		m.succeeded.Add(1)
	} else {
		m.failed.Add(1)
	}

	m.commands.WithLabelValues(action, string(result.Status)).Inc()
	m.duration.WithLabelValues(action).Observe(elapsed.Seconds())

	if result.Kind == KindBackendError || result.Kind == KindBackendUnreachable {
		m.backendErrors.WithLabelValues(action, string(result.Kind)).Inc()
	}
}

// Snapshot returns the current totals.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Dispatched: m.dispatched.Load(),
		Succeeded:  m.succeeded.Load(),
		Failed:     m.failed.Load(),
	}
}
