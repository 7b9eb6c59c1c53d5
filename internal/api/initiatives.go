package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/events"
	"github.com/pilotgb/control-tower/internal/lifecycle"
	"github.com/pilotgb/control-tower/internal/store"
)

type InitiativesHandler struct {
	store  store.Store
	gate   *lifecycle.Gate
	pub    publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewInitiativesHandler(s store.Store, g *lifecycle.Gate, ev events.Client, logger *slog.Logger) *InitiativesHandler {
	return &InitiativesHandler{
		store:  s,
		gate:   g,
		pub:    publisher{events: ev, logger: logger},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateInitiativeRequest struct {
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	SOWReference   string              `json:"sow_reference,omitempty"`
	EngagementLead string              `json:"engagement_lead,omitempty"`
	ProjectManager string              `json:"project_manager,omitempty"`
	DataArchitect  string              `json:"data_architect,omitempty"`
	StartDate      *Date               `json:"start_date,omitempty"`
	TargetDate     *Date               `json:"target_date,omitempty"`
	HealthStatus   domain.HealthStatus `json:"health_status,omitempty"`
	RiskLevel      domain.RiskLevel    `json:"risk_level,omitempty"`
}

func (req *CreateInitiativeRequest) validate() error {
	if err := firstError(minLen("name", req.Name, 3), minLen("description", req.Description, 10)); err != nil {
		return err
	}
	if req.HealthStatus != "" && !req.HealthStatus.Valid() {
		return domain.Invalid("invalid health_status")
	}
	if req.RiskLevel != "" && !req.RiskLevel.Valid() {
		return domain.Invalid("invalid risk_level")
	}
	return nil
}

// UpdateInitiativeRequest is decoded strictly; unknown fields are rejected.
type UpdateInitiativeRequest struct {
	Name           *string                  `json:"name"`
	Description    *string                  `json:"description"`
	Status         *domain.InitiativeStatus `json:"status"`
	HealthStatus   *domain.HealthStatus     `json:"health_status"`
	RiskLevel      *domain.RiskLevel        `json:"risk_level"`
	SOWReference   *string                  `json:"sow_reference"`
	EngagementLead *string                  `json:"engagement_lead"`
	ProjectManager *string                  `json:"project_manager"`
	DataArchitect  *string                  `json:"data_architect"`
	StartDate      *Date                    `json:"start_date"`
	TargetDate     *Date                    `json:"target_date"`
}

func (req *UpdateInitiativeRequest) validate() error {
	if err := firstError(optionalMinLen("name", req.Name, 3), optionalMinLen("description", req.Description, 10)); err != nil {
		return err
	}
	if req.Status != nil && !req.Status.Valid() {
		return domain.Invalid("invalid status")
	}
	if req.HealthStatus != nil && !req.HealthStatus.Valid() {
		return domain.Invalid("invalid health_status")
	}
	if req.RiskLevel != nil && !req.RiskLevel.Valid() {
		return domain.Invalid("invalid risk_level")
	}
	return nil
}

type TransitionRequest struct {
	TargetStage     string  `json:"target_stage"`
	Reason          *string `json:"reason,omitempty"`
	Actor           *string `json:"actor,omitempty"`
	AllowRegression bool    `json:"allow_regression,omitempty"`
}

type ChecklistUpdateRequest struct {
	Completed *bool `json:"completed"`
}

type ApprovalUpdateRequest struct {
	Approved   *bool   `json:"approved"`
	ApprovedBy *string `json:"approved_by,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

type ScopeUpdateRequest struct {
	Summary           *string           `json:"summary,omitempty"`
	Deliverables      *string           `json:"deliverables,omitempty"`
	Status            *domain.SOWStatus `json:"status,omitempty"`
	PMApproved        *bool             `json:"pm_approved,omitempty"`
	ArchitectApproved *bool             `json:"architect_approved,omitempty"`
}

// List handles GET /api/v1/initiatives. Unrecognised filter values are ignored.
func (h *InitiativesHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter store.InitiativeFilter
	q := r.URL.Query()
	if v := q.Get("stage"); v != "" {
		if stage, err := lifecycle.ParseStage(v); err == nil {
			filter.Stage = &stage
		}
	}
	if v := domain.InitiativeStatus(q.Get("status")); v.Valid() {
		filter.Status = &v
	}
	if v := domain.HealthStatus(q.Get("health_status")); v.Valid() {
		filter.HealthStatus = &v
	}

	list, err := h.store.ListInitiatives(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []*domain.Initiative{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"initiatives": list})
}

// Create handles POST /api/v1/initiatives
func (h *InitiativesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInitiativeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, h.logger, err)
		return
	}

	created, err := h.store.CreateInitiative(r.Context(), &domain.Initiative{
		Name:           req.Name,
		Description:    req.Description,
		SOWReference:   req.SOWReference,
		EngagementLead: req.EngagementLead,
		ProjectManager: req.ProjectManager,
		DataArchitect:  req.DataArchitect,
		StartDate:      timePtr(req.StartDate),
		TargetDate:     timePtr(req.TargetDate),
		HealthStatus:   req.HealthStatus,
		RiskLevel:      req.RiskLevel,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.pub.publish(events.SubjectInitiativeCreated(created.ID.String()), initiativeEvent(created))
	writeJSON(w, http.StatusCreated, map[string]interface{}{"initiative": created})
}

// Get handles GET /api/v1/initiatives/{id}
func (h *InitiativesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := h.store.GetInitiative(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"initiative": in})
}

// Update handles PATCH /api/v1/initiatives/{id}
func (h *InitiativesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req UpdateInitiativeRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, h.logger, err)
		return
	}

	updated, err := h.store.UpdateInitiative(r.Context(), id, store.InitiativePatch{
		Name:           req.Name,
		Description:    req.Description,
		Status:         req.Status,
		HealthStatus:   req.HealthStatus,
		RiskLevel:      req.RiskLevel,
		SOWReference:   req.SOWReference,
		EngagementLead: req.EngagementLead,
		ProjectManager: req.ProjectManager,
		DataArchitect:  req.DataArchitect,
		StartDate:      timePtr(req.StartDate),
		TargetDate:     timePtr(req.TargetDate),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.pub.publish(events.SubjectInitiativeUpdated(updated.ID.String()), initiativeEvent(updated))
	writeJSON(w, http.StatusOK, map[string]interface{}{"initiative": updated})
}

// Transition handles POST /api/v1/initiatives/{id}/transition
func (h *InitiativesHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req TransitionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.TargetStage == "" {
		writeError(w, h.logger, domain.Invalid("target_stage required"))
		return
	}
	if err := firstError(maxLen("reason", req.Reason, 500), maxLen("actor", req.Actor, 120)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	target, err := lifecycle.ParseStage(req.TargetStage)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	tr := lifecycle.TransitionRequest{Target: target, AllowRegression: req.AllowRegression}
	if req.Reason != nil {
		tr.Reason = *req.Reason
	}
	if req.Actor != nil {
		tr.Actor = *req.Actor
	}

	updated, err := h.gate.RequestTransition(r.Context(), id, tr)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"initiative": updated})
}

// UpdateChecklist handles PATCH /api/v1/initiatives/{id}/checklists/{checklistID}
func (h *InitiativesHandler) UpdateChecklist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	itemID, err := pathID(r, "checklistID", "checklist item")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req ChecklistUpdateRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Completed == nil {
		writeError(w, h.logger, domain.Invalid("completed required"))
		return
	}

	now := h.now()
	item, err := h.store.UpdateChecklistItem(r.Context(), id, itemID, func(c *domain.ChecklistItem) error {
		c.SetCompleted(*req.Completed, now)
		return nil
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.pub.publish(events.SubjectChecklistUpdated(id.String()), events.RecordEvent{
		InitiativeID: id.String(),
		RecordID:     item.ID.String(),
		Stage:        string(item.Stage),
		Name:         item.Title,
		Completed:    &item.Completed,
		Timestamp:    now,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"checklist": item})
}

// GetScope handles GET /api/v1/initiatives/{id}/sow
func (h *InitiativesHandler) GetScope(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	scope, err := h.store.GetScopeOfWork(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	approvals, err := h.store.ListStageApprovals(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if approvals == nil {
		approvals = []domain.StageApproval{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"scope": scope, "approvals": approvals})
}

// UpdateScope handles PATCH /api/v1/initiatives/{id}/sow
func (h *InitiativesHandler) UpdateScope(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req ScopeUpdateRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}

	now := h.now()
	scope, err := h.store.UpdateScopeOfWork(r.Context(), id, func(s *domain.ScopeOfWork) error {
		return s.Apply(domain.ScopeUpdate{
			Summary:           req.Summary,
			Deliverables:      req.Deliverables,
			Status:            req.Status,
			PMApproved:        req.PMApproved,
			ArchitectApproved: req.ArchitectApproved,
		}, now)
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.pub.publish(events.SubjectScopeUpdated(id.String()), events.RecordEvent{
		InitiativeID: id.String(),
		RecordID:     scope.ID.String(),
		Status:       string(scope.Status),
		Timestamp:    now,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"scope": scope})
}

// UpdateApproval handles PATCH /api/v1/initiatives/{id}/approvals/{approvalID}
func (h *InitiativesHandler) UpdateApproval(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	approvalID, err := pathID(r, "approvalID", "approval")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req ApprovalUpdateRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Approved == nil {
		writeError(w, h.logger, domain.Invalid("approved required"))
		return
	}

	update := domain.ApprovalUpdate{Approved: *req.Approved, Notes: req.Notes}
	if req.ApprovedBy != nil {
		update.ApprovedBy = *req.ApprovedBy
	}
	now := h.now()
	approval, err := h.store.UpdateStageApproval(r.Context(), id, approvalID, func(a *domain.StageApproval) error {
		return a.Apply(update, now)
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.pub.publish(events.SubjectApprovalUpdated(id.String()), events.RecordEvent{
		InitiativeID: id.String(),
		RecordID:     approval.ID.String(),
		Stage:        string(approval.Stage),
		Name:         string(approval.Role),
		Approved:     &approval.Approved,
		Timestamp:    now,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"approval": approval})
}

func initiativeEvent(in *domain.Initiative) events.InitiativeEvent {
	return events.InitiativeEvent{
		InitiativeID: in.ID.String(),
		Name:         in.Name,
		Stage:        string(in.Stage),
		Status:       string(in.Status),
		Timestamp:    in.UpdatedAt,
	}
}
