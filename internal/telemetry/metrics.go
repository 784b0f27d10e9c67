package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/synapse/internal/engine"
)

// Результаты run для метки result.
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
	ResultStopped   = "stopped"
	ResultRunaway   = "runaway"
)

// Metrics — Prometheus метрики выполнения графа.
// Реализует engine.Observer.
type Metrics struct {
	runs         *prometheus.CounterVec
	nodeVisits   *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	retries      prometheus.Counter
	cappedRetry  prometheus.Counter
}

// NewMetrics регистрирует метрики в reg.
// nil — prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "synapse_runs_total",
			Help: "Total finished runs by result",
		}, []string{"result"}),
		nodeVisits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "synapse_node_visits_total",
			Help: "Total node visits by node",
		}, []string{"node"}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "synapse_node_duration_seconds",
			Help:    "Node handler duration",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"node"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "synapse_retries_total",
			Help: "Total retry routings taken",
		}),
		cappedRetry: factory.NewCounter(prometheus.CounterOpts{
			Name: "synapse_retries_capped_total",
			Help: "Retry decisions overridden by the retry ceiling",
		}),
	}
}

// NodeStarted реализует engine.Observer.
func (m *Metrics) NodeStarted(nodeID string, _ int) {
	m.nodeVisits.WithLabelValues(nodeID).Inc()
}

// NodeFinished реализует engine.Observer.
func (m *Metrics) NodeFinished(nodeID string, _ int, d time.Duration, _ error) {
	m.nodeDuration.WithLabelValues(nodeID).Observe(d.Seconds())
}

// RetryRouted реализует engine.Observer.
func (m *Metrics) RetryRouted(_ string, _ int, capped bool) {
	if capped {
		m.cappedRetry.Inc()
		return
	}
	m.retries.Inc()
}

// RunFinished реализует engine.Observer.
func (m *Metrics) RunFinished(_ int, err error) {
	m.runs.WithLabelValues(RunResult(err)).Inc()
}

// RunResult переводит ошибку run в значение метки result.
func RunResult(err error) string {
	switch {
	case err == nil:
		return ResultSucceeded
	case errors.Is(err, engine.ErrStopped):
		return ResultStopped
	case errors.Is(err, engine.ErrRunawayExecution):
		return ResultRunaway
	default:
		return ResultFailed
	}
}
