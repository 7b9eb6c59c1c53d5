package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pilotgb/control-tower/internal/domain"
)

// DefaultActor is recorded in stage history when a request names no actor.
const DefaultActor = "system"

// RequiredApprovalRoles must all approve the current stage before it can be left.
var RequiredApprovalRoles = []domain.ApprovalRole{
	domain.RoleProjectManager,
	domain.RoleDataArchitect,
}

type TransitionRequest struct {
	Target          domain.Stage
	Reason          string
	Actor           string
	AllowRegression bool
}

// Evaluate runs the transition checks against state in order and stops at the
// first failure. Exit criteria (approvals, checklist) are those of the current
// stage, not the target.
func Evaluate(state *domain.LifecycleState, req TransitionRequest) (*domain.TransitionPlan, error) {
	if err := ValidateStageOrder(state.Stage, req.Target, req.AllowRegression); err != nil {
		return nil, err
	}

	if scope := state.ScopeOfWork; scope != nil {
		if state.Stage == domain.StageIngestion &&
			scope.Status != domain.SOWApproved && scope.Status != domain.SOWSignedOff {
			return nil, newError(KindScopeNotApproved,
				"Scope of Work must be approved by PM and Data Architect before progressing beyond Ingestion.")
		}
		if req.Target == domain.StageDeployment && scope.Status != domain.SOWSignedOff {
			return nil, newError(KindScopeNotSignedOff,
				"Scope of Work must be fully signed off before deployment.")
		}
	}

	if missing := MissingApprovals(state.Approvals, state.Stage); len(missing) > 0 {
		return nil, &TransitionError{
			Kind:             KindMissingApprovals,
			Message:          "Stage progression requires approvals.",
			MissingApprovals: missing,
		}
	}

	// Regression bypasses the checklist but not the approvals.
	if !req.AllowRegression {
		if incomplete := IncompleteChecklist(state.ChecklistItems, state.Stage); len(incomplete) > 0 {
			return nil, &TransitionError{
				Kind:            KindIncompleteChecklist,
				Message:         "Cannot advance stage until all exit checklist items are completed.",
				IncompleteItems: incomplete,
			}
		}
	}

	actor := req.Actor
	if actor == "" {
		actor = DefaultActor
	}
	return &domain.TransitionPlan{
		From:   state.Stage,
		To:     req.Target,
		Status: NextStatus(state.Status, req.Target),
		Actor:  actor,
		Reason: req.Reason,
	}, nil
}

// NextStatus is COMPLETE on entering DEPLOYMENT; a COMPLETE initiative that
// moves anywhere else goes back to ON_TRACK.
func NextStatus(current domain.InitiativeStatus, target domain.Stage) domain.InitiativeStatus {
	if target == domain.StageDeployment {
		return domain.StatusComplete
	}
	if current == domain.StatusComplete {
		return domain.StatusOnTrack
	}
	return current
}

// MissingApprovals lists the required roles without an approved record for stage.
func MissingApprovals(approvals []domain.StageApproval, stage domain.Stage) []domain.ApprovalRole {
	var missing []domain.ApprovalRole
	for _, role := range RequiredApprovalRoles {
		approved := false
		for _, a := range approvals {
			if a.Stage == stage && a.Role == role && a.Approved {
				approved = true
				break
			}
		}
		if !approved {
			missing = append(missing, role)
		}
	}
	return missing
}

func IncompleteChecklist(items []domain.ChecklistItem, stage domain.Stage) []ChecklistRef {
	var out []ChecklistRef
	for _, item := range items {
		if item.Stage == stage && !item.Completed {
			out = append(out, ChecklistRef{ID: item.ID, Title: item.Title})
		}
	}
	return out
}

// Apply performs plan on an in-memory initiative and returns the history entry
// it appended.
func Apply(in *domain.Initiative, plan *domain.TransitionPlan, now time.Time) domain.StageHistory {
	from := plan.From
	entry := domain.StageHistory{
		ID:           uuid.New(),
		InitiativeID: in.ID,
		FromStage:    &from,
		ToStage:      plan.To,
		Actor:        plan.Actor,
		Reason:       plan.Reason,
		CreatedAt:    now,
	}
	in.StageHistory = append(in.StageHistory, entry)

	for i := range in.Approvals {
		if in.Approvals[i].Stage == plan.To {
			in.Approvals[i].Reset()
		}
	}

	in.Stage = plan.To
	in.Status = plan.Status
	in.UpdatedAt = now
	return entry
}

// Store is what the gate needs from persistence: a single atomic
// read-decide-write over one initiative. Implementations return
// domain.ErrNotFound for unknown initiatives.
type Store interface {
	TransitionInitiative(ctx context.Context, id uuid.UUID, decide domain.TransitionDecider) (*domain.Initiative, error)
}

// Observer is notified after a transition commits or is rejected. Observers
// run on the request goroutine and must not block.
type Observer interface {
	Transitioned(id uuid.UUID, plan *domain.TransitionPlan)
	Rejected(id uuid.UUID, req TransitionRequest, err *TransitionError)
}

type Gate struct {
	store     Store
	observers []Observer
	logger    *slog.Logger
}

func NewGate(s Store, logger *slog.Logger, observers ...Observer) *Gate {
	return &Gate{store: s, observers: observers, logger: logger}
}

// RequestTransition moves an initiative to req.Target if every gate check
// passes and returns the reloaded initiative. Rejections are *TransitionError.
func (g *Gate) RequestTransition(ctx context.Context, id uuid.UUID, req TransitionRequest) (*domain.Initiative, error) {
	var plan *domain.TransitionPlan
	initiative, err := g.store.TransitionInitiative(ctx, id, func(state *domain.LifecycleState) (*domain.TransitionPlan, error) {
		p, err := Evaluate(state, req)
		if err != nil {
			return nil, err
		}
		plan = p
		return p, nil
	})
	if err != nil {
		var te *TransitionError
		if errors.As(err, &te) {
			g.logger.Info("stage transition rejected",
				"initiative_id", id,
				"target_stage", req.Target,
				"kind", te.Kind,
			)
			for _, o := range g.observers {
				o.Rejected(id, req, te)
			}
			return nil, te
		}
		return nil, fmt.Errorf("transition initiative %s: %w", id, err)
	}

	g.logger.Info("stage transitioned",
		"initiative_id", id,
		"from_stage", plan.From,
		"to_stage", plan.To,
		"status", plan.Status,
		"actor", plan.Actor,
	)
	for _, o := range g.observers {
		o.Transitioned(id, plan)
	}
	return initiative, nil
}
