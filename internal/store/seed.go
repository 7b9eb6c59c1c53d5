package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/lifecycle"
)

const (
	defaultScopeSummary      = "Define project scope, deliverables, and guardrails aligned to the customer engagement."
	defaultScopeDeliverables = "Populate during project onboarding. Include lifecycle stages, success metrics, and acceptance criteria."
	defaultPMOwner           = "TBD Project Manager"
	defaultArchitectOwner    = "TBD Data Architect"
)

// prepareInitiative fills in identity, defaults and the child records every
// new initiative starts with: one exit checklist item per stage, an initial
// history entry, a draft scope of work and an unapproved approval per stage
// and required role.
func prepareInitiative(in *domain.Initiative, now time.Time) {
	in.ID = uuid.New()
	in.Stage = domain.StageIngestion
	if in.Status == "" {
		in.Status = domain.StatusOnTrack
	}
	if in.HealthStatus == "" {
		in.HealthStatus = domain.HealthHealthy
	}
	if in.RiskLevel == "" {
		in.RiskLevel = domain.RiskLow
	}
	in.CreatedAt = now
	in.UpdatedAt = now

	in.ChecklistItems = make([]domain.ChecklistItem, 0, len(lifecycle.Sequence))
	for _, stage := range lifecycle.Sequence {
		in.ChecklistItems = append(in.ChecklistItems, domain.ChecklistItem{
			ID:           uuid.New(),
			InitiativeID: in.ID,
			Stage:        stage,
			Title:        fmt.Sprintf("%s exit gate", stage),
			Description:  fmt.Sprintf("Confirm %s stage exit criteria.", strings.ToLower(string(stage))),
		})
	}

	in.StageHistory = []domain.StageHistory{{
		ID:           uuid.New(),
		InitiativeID: in.ID,
		ToStage:      domain.StageIngestion,
		Actor:        lifecycle.DefaultActor,
		Reason:       "Initiative created",
		CreatedAt:    now,
	}}

	pmOwner := in.ProjectManager
	if pmOwner == "" {
		pmOwner = defaultPMOwner
	}
	architectOwner := in.DataArchitect
	if architectOwner == "" {
		architectOwner = defaultArchitectOwner
	}
	in.ScopeOfWork = &domain.ScopeOfWork{
		ID:             uuid.New(),
		InitiativeID:   in.ID,
		Summary:        defaultScopeSummary,
		Deliverables:   defaultScopeDeliverables,
		Status:         domain.SOWDraft,
		PMOwner:        pmOwner,
		ArchitectOwner: architectOwner,
	}

	in.Approvals = make([]domain.StageApproval, 0, len(lifecycle.Sequence)*len(lifecycle.RequiredApprovalRoles))
	for _, stage := range lifecycle.Sequence {
		for _, role := range lifecycle.RequiredApprovalRoles {
			in.Approvals = append(in.Approvals, domain.StageApproval{
				ID:           uuid.New(),
				InitiativeID: in.ID,
				Stage:        stage,
				Role:         role,
			})
		}
	}

	in.Assets = []domain.DataAsset{}
	in.Risks = []domain.Risk{}
	in.Dependencies = []domain.Dependency{}
	in.Assignments = []domain.InitiativeAssignment{}
	in.AccessRequests = []domain.AccessProvision{}
}

func applyPatch(in *domain.Initiative, p InitiativePatch) {
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.Status != nil {
		in.Status = *p.Status
	}
	if p.HealthStatus != nil {
		in.HealthStatus = *p.HealthStatus
	}
	if p.RiskLevel != nil {
		in.RiskLevel = *p.RiskLevel
	}
	if p.SOWReference != nil {
		in.SOWReference = *p.SOWReference
	}
	if p.EngagementLead != nil {
		in.EngagementLead = *p.EngagementLead
	}
	if p.ProjectManager != nil {
		in.ProjectManager = *p.ProjectManager
	}
	if p.DataArchitect != nil {
		in.DataArchitect = *p.DataArchitect
	}
	if p.StartDate != nil {
		in.StartDate = p.StartDate
	}
	if p.TargetDate != nil {
		in.TargetDate = p.TargetDate
	}
}

// ownersChanged reports whether the scope-of-work owners must follow the patch.
func ownersChanged(p InitiativePatch) bool {
	return (p.ProjectManager != nil && *p.ProjectManager != "") ||
		(p.DataArchitect != nil && *p.DataArchitect != "")
}

func statusRank(s domain.InitiativeStatus) int {
	for i, v := range domain.InitiativeStatuses {
		if v == s {
			return i
		}
	}
	return len(domain.InitiativeStatuses)
}

func riskRank(r domain.RiskLevel) int {
	for i, v := range domain.RiskLevels {
		if v == r {
			return i
		}
	}
	return -1
}

func stageRank(s domain.Stage) int {
	return lifecycle.Index(s)
}
