package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/events"
	"github.com/pilotgb/control-tower/internal/store"
)

// RecordsHandler serves the registers hanging off an initiative: data
// assets, risks and dependencies.
type RecordsHandler struct {
	store  store.Store
	pub    publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewRecordsHandler(s store.Store, ev events.Client, logger *slog.Logger) *RecordsHandler {
	return &RecordsHandler{
		store:  s,
		pub:    publisher{events: ev, logger: logger},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateAssetRequest struct {
	Name               string           `json:"name"`
	Type               domain.AssetType `json:"type"`
	OwnerTeam          string           `json:"owner_team"`
	Steward            string           `json:"steward,omitempty"`
	AcceptanceCriteria string           `json:"acceptance_criteria,omitempty"`
	Notes              string           `json:"notes,omitempty"`
}

type CreateRiskRequest struct {
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Severity       domain.RiskLevel  `json:"severity"`
	Status         domain.RiskStatus `json:"status,omitempty"`
	MitigationPlan string            `json:"mitigation_plan,omitempty"`
	Owner          string            `json:"owner,omitempty"`
}

type UpdateRiskRequest struct {
	Status         *domain.RiskStatus `json:"status,omitempty"`
	MitigationPlan *string            `json:"mitigation_plan,omitempty"`
	Owner          *string            `json:"owner,omitempty"`
	ResolvedAt     *Date              `json:"resolved_at,omitempty"`
}

type CreateDependencyRequest struct {
	Name           string                  `json:"name"`
	Description    string                  `json:"description,omitempty"`
	Type           string                  `json:"type"`
	ExternalSystem string                  `json:"external_system,omitempty"`
	DueDate        *Date                   `json:"due_date,omitempty"`
	Status         domain.DependencyStatus `json:"status,omitempty"`
}

// ListAssets handles GET /api/v1/initiatives/{id}/assets
func (h *RecordsHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	assets, err := h.store.ListAssetsForInitiative(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if assets == nil {
		assets = []domain.DataAsset{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assets": assets})
}

// CreateAsset handles POST /api/v1/initiatives/{id}/assets
func (h *RecordsHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req CreateAssetRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := firstError(minLen("name", req.Name, 2), minLen("owner_team", req.OwnerTeam, 2)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !req.Type.Valid() {
		writeError(w, h.logger, domain.Invalid("invalid asset type"))
		return
	}

	asset := &domain.DataAsset{
		InitiativeID:       id,
		Name:               req.Name,
		Type:               req.Type,
		OwnerTeam:          req.OwnerTeam,
		Steward:            req.Steward,
		AcceptanceCriteria: req.AcceptanceCriteria,
		Notes:              req.Notes,
	}
	if err := h.store.CreateAsset(r.Context(), asset); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.pub.publish(events.SubjectAssetRegistered(id.String()), events.RecordEvent{
		InitiativeID: id.String(),
		RecordID:     asset.ID.String(),
		Name:         asset.Name,
		Status:       string(asset.Type),
		Timestamp:    asset.CreatedAt,
	})
	writeJSON(w, http.StatusCreated, map[string]interface{}{"asset": asset})
}

// ListAllAssets handles GET /api/v1/assets
func (h *RecordsHandler) ListAllAssets(w http.ResponseWriter, r *http.Request) {
	var filter store.AssetFilter
	if v := domain.AssetType(r.URL.Query().Get("type")); v.Valid() {
		filter.Type = &v
	}
	assets, err := h.store.ListAssets(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if assets == nil {
		assets = []domain.DataAsset{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assets": assets})
}

// ListRisks handles GET /api/v1/initiatives/{id}/risks
func (h *RecordsHandler) ListRisks(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	risks, err := h.store.ListRisks(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if risks == nil {
		risks = []domain.Risk{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"risks": risks})
}

// CreateRisk handles POST /api/v1/initiatives/{id}/risks
func (h *RecordsHandler) CreateRisk(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req CreateRiskRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := firstError(minLen("title", req.Title, 3), minLen("description", req.Description, 5)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !req.Severity.Valid() {
		writeError(w, h.logger, domain.Invalid("invalid severity"))
		return
	}
	if req.Status == "" {
		req.Status = domain.RiskOpen
	}
	if !req.Status.Valid() {
		writeError(w, h.logger, domain.Invalid("invalid risk status"))
		return
	}

	risk := &domain.Risk{
		InitiativeID:   id,
		Title:          req.Title,
		Description:    req.Description,
		Severity:       req.Severity,
		Status:         req.Status,
		MitigationPlan: req.MitigationPlan,
		Owner:          req.Owner,
	}
	if err := h.store.CreateRisk(r.Context(), risk); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.pub.publish(events.SubjectRiskRecorded(id.String()), events.RecordEvent{
		InitiativeID: id.String(),
		RecordID:     risk.ID.String(),
		Name:         risk.Title,
		Status:       string(risk.Status),
		Timestamp:    risk.IdentifiedAt,
	})
	writeJSON(w, http.StatusCreated, map[string]interface{}{"risk": risk})
}

// UpdateRisk handles PATCH /api/v1/initiatives/{id}/risks/{riskID}
func (h *RecordsHandler) UpdateRisk(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	riskID, err := pathID(r, "riskID", "risk")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req UpdateRiskRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}

	now := h.now()
	risk, err := h.store.UpdateRisk(r.Context(), id, riskID, func(rk *domain.Risk) error {
		return rk.Apply(domain.RiskUpdate{
			Status:         req.Status,
			MitigationPlan: req.MitigationPlan,
			Owner:          req.Owner,
			ResolvedAt:     timePtr(req.ResolvedAt),
		}, now)
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.pub.publish(events.SubjectRiskUpdated(id.String()), events.RecordEvent{
		InitiativeID: id.String(),
		RecordID:     risk.ID.String(),
		Name:         risk.Title,
		Status:       string(risk.Status),
		Timestamp:    now,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"risk": risk})
}

// ListDependencies handles GET /api/v1/initiatives/{id}/dependencies
func (h *RecordsHandler) ListDependencies(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	deps, err := h.store.ListDependencies(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if deps == nil {
		deps = []domain.Dependency{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"dependencies": deps})
}

// CreateDependency handles POST /api/v1/initiatives/{id}/dependencies
func (h *RecordsHandler) CreateDependency(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req CreateDependencyRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := firstError(minLen("name", req.Name, 2), minLen("type", req.Type, 2)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Status == "" {
		req.Status = domain.DependencyOpen
	}
	if !req.Status.Valid() {
		writeError(w, h.logger, domain.Invalid("invalid dependency status"))
		return
	}

	dep := &domain.Dependency{
		InitiativeID:   id,
		Name:           req.Name,
		Description:    req.Description,
		Type:           req.Type,
		Status:         req.Status,
		ExternalSystem: req.ExternalSystem,
		DueDate:        timePtr(req.DueDate),
	}
	if err := h.store.CreateDependency(r.Context(), dep); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.pub.publish(events.SubjectDependencyRecorded(id.String()), events.RecordEvent{
		InitiativeID: id.String(),
		RecordID:     dep.ID.String(),
		Name:         dep.Name,
		Status:       string(dep.Status),
		Timestamp:    dep.CreatedAt,
	})
	writeJSON(w, http.StatusCreated, map[string]interface{}{"dependency": dep})
}
