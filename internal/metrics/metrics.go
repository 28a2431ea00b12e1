// Package metrics holds the Prometheus collectors for the refresh loop and
// user actions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mdpanel"

// Cycle results used as the "result" label of the cycle counter.
const (
	ResultOK      = "ok"
	ResultPartial = "partial"
	ResultFailed  = "failed"
)

// Metrics is a set of collectors registered on one registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	cycles         *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	duration       prometheus.Histogram
	refreshing     prometheus.Gauge
	actions        *prometheus.CounterVec
	alarm          prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "cycles_total",
			Help:      "Refresh cycles by aggregate result.",
		}, []string{"result"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "source_failures_total",
			Help:      "Failed detector fetches by source.",
		}, []string{"source"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "duration_seconds",
			Help:      "Wall time of a refresh cycle's fan-out.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		}),
		refreshing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "refreshing",
			Help:      "1 while a refresh cycle is in flight.",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "User actions sent to the detector by action and result.",
		}, []string{"action", "result"}),
		alarm: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "alarm",
			Help:      "Last alarm flag reported by the detector.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.cycles, m.sourceFailures, m.duration, m.refreshing, m.actions, m.alarm,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveCycle records one completed refresh cycle.
func (m *Metrics) ObserveCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
}

// SourceFailed records a failed fetch of one source.
func (m *Metrics) SourceFailed(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

// SetRefreshing tracks the scheduler state.
func (m *Metrics) SetRefreshing(on bool) {
	if m == nil {
		return
	}
	m.refreshing.Set(boolToFloat(on))
}

// ObserveAction records a dispatched action.
func (m *Metrics) ObserveAction(action string, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	m.actions.WithLabelValues(action, result).Inc()
}

// SetAlarm records the detector's last known alarm flag.
func (m *Metrics) SetAlarm(on bool) {
	if m == nil {
		return
	}
	m.alarm.Set(boolToFloat(on))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
