package overview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/events"
	"github.com/pilotgb/control-tower/internal/lifecycle"
	"github.com/pilotgb/control-tower/internal/metrics"
)

// Collector recomputes the overview on a ticker, mirrors it into Prometheus
// gauges and publishes it on NATS. A committed transition, local or seen on
// NATS, triggers an early refresh.
type Collector struct {
	source   Source
	events   events.Client
	metrics  *metrics.Metrics
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	latest *Overview

	refreshCh chan struct{}
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewCollector builds a collector. ev and m may be nil. A non-positive
// interval falls back to one minute.
func NewCollector(src Source, ev events.Client, m *metrics.Metrics, interval time.Duration, logger *slog.Logger) *Collector {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Collector{
		source:    src,
		events:    ev,
		metrics:   m,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
		refreshCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.loop(ctx)
}

func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// Latest returns the last computed overview, or nil before the first refresh.
func (c *Collector) Latest() *Overview {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Trigger asks for a refresh without waiting for the ticker. Requests made
// while one is pending collapse into it.
func (c *Collector) Trigger() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

func (c *Collector) Transitioned(uuid.UUID, *domain.TransitionPlan) { c.Trigger() }

func (c *Collector) Rejected(uuid.UUID, lifecycle.TransitionRequest, *lifecycle.TransitionError) {}

// SetupSubscriptions refreshes on transitions committed by other replicas.
func (c *Collector) SetupSubscriptions() {
	if c.events == nil {
		return
	}
	if err := c.events.Subscribe(events.SubjectAnyStageTransition, func(string, []byte) { c.Trigger() }); err != nil {
		c.logger.Warn("failed to subscribe to stage transitions", "error", err)
	}
}

func (c *Collector) loop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Refresh(ctx)
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Refresh(ctx)
		case <-c.refreshCh:
			c.Refresh(ctx)
		}
	}
}

// Refresh recomputes the overview once. Failures are logged and the previous
// overview is kept.
func (c *Collector) Refresh(ctx context.Context) {
	o, err := Load(ctx, c.source, c.now().UTC())
	if err != nil {
		c.logger.Error("failed to compute overview", "error", err)
		return
	}

	c.mu.Lock()
	c.latest = o
	c.mu.Unlock()

	stages := make(map[string]int, len(o.ByStage))
	for s, n := range o.ByStage {
		stages[string(s)] = n
	}
	statuses := make(map[string]int, len(o.ByStatus))
	for s, n := range o.ByStatus {
		statuses[string(s)] = n
	}

	if c.metrics != nil {
		c.metrics.SetSnapshot(metrics.Snapshot{
			Stages:              stages,
			Statuses:            statuses,
			RiskHotspots:        len(o.RiskHotspots),
			BlockedDependencies: o.BlockedDependencies,
			Overdue:             o.OverdueInitiatives,
		})
	}

	if c.events != nil {
		total := 0
		for _, n := range stages {
			total += n
		}
		_ = c.events.Publish(events.SubjectOverviewStats, events.OverviewStatsEvent{
			TotalInitiatives:    total,
			StageDistribution:   stages,
			StatusDistribution:  statuses,
			RiskHotspots:        len(o.RiskHotspots),
			BlockedDependencies: o.BlockedDependencies,
			Overdue:             o.OverdueInitiatives,
			Timestamp:           o.GeneratedAt,
		})
	}

	c.logger.Debug("overview refreshed",
		"risk_hotspots", len(o.RiskHotspots),
		"blocked_dependencies", o.BlockedDependencies,
		"overdue_initiatives", o.OverdueInitiatives,
	)
}
