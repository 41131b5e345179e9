package maintenance

import "github.com/prometheus/client_golang/prometheus"

// Metrics records counters for operator-facing observability. It is
// optional: the zero value (nil *Metrics) is safe to call through.
type Metrics struct {
	indexesByAction  *prometheus.CounterVec
	indexFailures    prometheus.Counter
	criticalFailures prometheus.Counter
	runsStarted      prometheus.Counter
}

// NewMetrics registers the orchestrator's counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		indexesByAction: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqlmaint",
			Name:      "indexes_total",
			Help:      "Indexes successfully rebuilt or reorganized, partitioned by action.",
		}, []string{"action"}),
		indexFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sqlmaint",
			Name:      "index_failures_total",
			Help:      "Indexes whose ALTER INDEX operation failed after retries.",
		}),
		criticalFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sqlmaint",
			Name:      "database_critical_failures_total",
			Help:      "Databases that could not be connected to or probed.",
		}),
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sqlmaint",
			Name:      "runs_started_total",
			Help:      "Maintenance runs started.",
		}),
	}
	reg.MustRegister(m.indexesByAction, m.indexFailures, m.criticalFailures, m.runsStarted)
	return m
}

func (m *Metrics) recordIndexOutcome(action MaintenanceAction) {
	if m == nil {
		return
	}
	m.indexesByAction.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) recordIndexFailure() {
	if m == nil {
		return
	}
	m.indexFailures.Inc()
}

func (m *Metrics) recordCriticalFailure() {
	if m == nil {
		return
	}
	m.criticalFailures.Inc()
}

func (m *Metrics) recordRunStarted() {
	if m == nil {
		return
	}
	m.runsStarted.Inc()
}
