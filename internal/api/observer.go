package api

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/events"
	"github.com/pilotgb/control-tower/internal/lifecycle"
	"github.com/pilotgb/control-tower/internal/metrics"
)

// publisher sends events when a client is configured. Publish failures are
// logged and never fail the request that caused them.
type publisher struct {
	events events.Client
	logger *slog.Logger
}

func (p publisher) publish(subject string, data interface{}) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(subject, data); err != nil {
		p.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// TransitionObserver records gate outcomes as metrics and events.
type TransitionObserver struct {
	pub     publisher
	metrics *metrics.Metrics
}

func NewTransitionObserver(ev events.Client, m *metrics.Metrics, logger *slog.Logger) *TransitionObserver {
	return &TransitionObserver{pub: publisher{events: ev, logger: logger}, metrics: m}
}

func (o *TransitionObserver) Transitioned(id uuid.UUID, plan *domain.TransitionPlan) {
	if o.metrics != nil {
		o.metrics.ObserveTransition(string(plan.From), string(plan.To))
	}
	o.pub.publish(events.SubjectStageTransitioned(id.String()), events.StageTransitionedEvent{
		InitiativeID: id.String(),
		FromStage:    string(plan.From),
		ToStage:      string(plan.To),
		Status:       string(plan.Status),
		Actor:        plan.Actor,
		Reason:       plan.Reason,
		Timestamp:    time.Now().UTC(),
	})
}

func (o *TransitionObserver) Rejected(id uuid.UUID, req lifecycle.TransitionRequest, err *lifecycle.TransitionError) {
	if o.metrics != nil {
		o.metrics.ObserveRejection(string(err.Kind))
	}
	o.pub.publish(events.SubjectTransitionRejected(id.String()), events.TransitionRejectedEvent{
		InitiativeID: id.String(),
		TargetStage:  string(req.Target),
		Kind:         string(err.Kind),
		Message:      err.Message,
		Details:      err.Details(),
		Timestamp:    time.Now().UTC(),
	})
}
