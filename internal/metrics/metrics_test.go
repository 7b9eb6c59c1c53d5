package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTransitionCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTransition("INGESTION", "TRANSFORMATION")
	m.ObserveTransition("INGESTION", "TRANSFORMATION")
	m.ObserveRejection("missing_approvals")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("INGESTION", "TRANSFORMATION")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("missing_approvals")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.rejections.WithLabelValues("stage_skip")))
}

func TestSetSnapshotReplacesStageGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetSnapshot(Snapshot{
		Stages:   map[string]int{"INGESTION": 3, "DEPLOYMENT": 1},
		Statuses: map[string]int{"ON_TRACK": 4},
		Overdue:  2,
	})
	assert.Equal(t, 2, testutil.CollectAndCount(m.initiativesByStage))

	m.SetSnapshot(Snapshot{
		Stages:              map[string]int{"VALIDATION": 5},
		RiskHotspots:        1,
		BlockedDependencies: 7,
	})
	assert.Equal(t, 1, testutil.CollectAndCount(m.initiativesByStage))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.initiativesByStage.WithLabelValues("VALIDATION")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.initiativesByStatus))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.riskHotspots))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.blockedDependencies))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.overdueInitiatives))
}

func TestObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveRequest("GET", 200, 15*time.Millisecond)
	m.ObserveRequest("POST", 400, time.Millisecond)
	assert.Equal(t, 2, testutil.CollectAndCount(m.requestDuration))
}

func TestNewPanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
