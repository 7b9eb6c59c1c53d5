package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "controltower"

type Metrics struct {
	transitions         *prometheus.CounterVec
	rejections          *prometheus.CounterVec
	initiativesByStage  *prometheus.GaugeVec
	initiativesByStatus *prometheus.GaugeVec
	riskHotspots        prometheus.Gauge
	blockedDependencies prometheus.Gauge
	overdueInitiatives  prometheus.Gauge
	requestDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_transitions_total",
			Help:      "Committed stage transitions.",
		}, []string{"from", "to"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_rejections_total",
			Help:      "Rejected stage transition requests by failure kind.",
		}, []string{"kind"}),
		initiativesByStage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "initiatives",
			Help:      "Initiatives per lifecycle stage at the last overview refresh.",
		}, []string{"stage"}),
		initiativesByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "initiatives_by_status",
			Help:      "Initiatives per status at the last overview refresh.",
		}, []string{"status"}),
		riskHotspots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_hotspots",
			Help:      "Open HIGH or CRITICAL risks.",
		}),
		blockedDependencies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blocked_dependencies",
			Help:      "Dependencies in BLOCKED status.",
		}),
		overdueInitiatives: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overdue_initiatives",
			Help:      "Initiatives past their target date and not complete.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
	reg.MustRegister(
		m.transitions,
		m.rejections,
		m.initiativesByStage,
		m.initiativesByStatus,
		m.riskHotspots,
		m.blockedDependencies,
		m.overdueInitiatives,
		m.requestDuration,
	)
	return m
}

func (m *Metrics) ObserveTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveRejection(kind string) {
	m.rejections.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	m.requestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// Snapshot is the portfolio state mirrored into gauges.
type Snapshot struct {
	Stages              map[string]int
	Statuses            map[string]int
	RiskHotspots        int
	BlockedDependencies int
	Overdue             int
}

func (m *Metrics) SetSnapshot(s Snapshot) {
	m.initiativesByStage.Reset()
	for stage, n := range s.Stages {
		m.initiativesByStage.WithLabelValues(stage).Set(float64(n))
	}
	m.initiativesByStatus.Reset()
	for status, n := range s.Statuses {
		m.initiativesByStatus.WithLabelValues(status).Set(float64(n))
	}
	m.riskHotspots.Set(float64(s.RiskHotspots))
	m.blockedDependencies.Set(float64(s.BlockedDependencies))
	m.overdueInitiatives.Set(float64(s.Overdue))
}
