package api

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/events"
	"github.com/pilotgb/control-tower/internal/store"
)

// TeamHandler serves team members, their assignments to initiatives and the
// access they need there.
type TeamHandler struct {
	store  store.Store
	pub    publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewTeamHandler(s store.Store, ev events.Client, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{
		store:  s,
		pub:    publisher{events: ev, logger: logger},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateMemberRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	RoleTitle string `json:"role_title"`
	Team      string `json:"team"`
	StartDate *Date  `json:"start_date,omitempty"`
}

type AssignMemberRequest struct {
	MemberID       uuid.UUID `json:"member_id"`
	Responsibility string    `json:"responsibility"`
}

type OnboardingUpdateRequest struct {
	OnboardingStatus domain.OnboardingStatus `json:"onboarding_status"`
	StartDate        *Date                   `json:"start_date,omitempty"`
}

type CreateAccessRequest struct {
	MemberID   uuid.UUID `json:"member_id"`
	SystemName string    `json:"system_name"`
	Notes      string    `json:"notes,omitempty"`
}

type AccessUpdateRequest struct {
	Status    *domain.AccessStatus `json:"status,omitempty"`
	Notes     *string              `json:"notes,omitempty"`
	Fulfilled *bool                `json:"fulfilled,omitempty"`
}

// ListMembers handles GET /api/v1/team-members
func (h *TeamHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.ListTeamMembers(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if members == nil {
		members = []domain.TeamMember{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}

// CreateMember handles POST /api/v1/team-members
func (h *TeamHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}
	err := firstError(
		minLen("name", req.Name, 2),
		minLen("role_title", req.RoleTitle, 2),
		minLen("team", req.Team, 2),
		validEmail(req.Email),
	)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	member := &domain.TeamMember{
		Name:      req.Name,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		RoleTitle: req.RoleTitle,
		Team:      req.Team,
		StartDate: timePtr(req.StartDate),
	}
	if err := h.store.CreateTeamMember(r.Context(), member); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"member": member})
}

// Assign handles POST /api/v1/initiatives/{id}/assignments
func (h *TeamHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req AssignMemberRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.MemberID == uuid.Nil {
		writeError(w, h.logger, domain.Invalid("member_id required"))
		return
	}
	if err := minLen("responsibility", req.Responsibility, 2); err != nil {
		writeError(w, h.logger, err)
		return
	}

	assignment := &domain.InitiativeAssignment{
		InitiativeID:   id,
		Responsibility: req.Responsibility,
		Member:         domain.TeamMember{ID: req.MemberID},
	}
	if err := h.store.AssignMember(r.Context(), assignment); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.pub.publish(events.SubjectMemberAssigned(id.String()), events.RecordEvent{
		InitiativeID: id.String(),
		RecordID:     assignment.ID.String(),
		Name:         assignment.Member.Name,
		Status:       assignment.Responsibility,
		Timestamp:    h.now(),
	})
	writeJSON(w, http.StatusCreated, map[string]interface{}{"assignment": assignment})
}

// UpdateOnboarding handles PATCH /api/v1/initiatives/{id}/team-members/{memberID}
func (h *TeamHandler) UpdateOnboarding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	memberID, err := pathID(r, "memberID", "team member")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req OnboardingUpdateRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !req.OnboardingStatus.Valid() {
		writeError(w, h.logger, domain.Invalid("invalid onboarding_status"))
		return
	}

	member, err := h.store.UpdateAssignedMember(r.Context(), id, memberID, func(m *domain.TeamMember) error {
		m.OnboardingStatus = req.OnboardingStatus
		if req.StartDate != nil {
			m.StartDate = timePtr(req.StartDate)
		}
		return nil
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.pub.publish(events.SubjectMemberOnboarding(id.String()), events.RecordEvent{
		InitiativeID: id.String(),
		RecordID:     member.ID.String(),
		Name:         member.Name,
		Status:       string(member.OnboardingStatus),
		Timestamp:    h.now(),
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"member": member})
}

// RequestAccess handles POST /api/v1/initiatives/{id}/access
func (h *TeamHandler) RequestAccess(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req CreateAccessRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.MemberID == uuid.Nil {
		writeError(w, h.logger, domain.Invalid("member_id required"))
		return
	}
	if err := minLen("system_name", req.SystemName, 2); err != nil {
		writeError(w, h.logger, err)
		return
	}

	access := &domain.AccessProvision{
		InitiativeID: id,
		MemberID:     req.MemberID,
		SystemName:   req.SystemName,
		Notes:        req.Notes,
	}
	if err := h.store.RequestAccess(r.Context(), access); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.pub.publish(events.SubjectAccessUpdated(id.String()), accessEvent(access))
	writeJSON(w, http.StatusCreated, map[string]interface{}{"access": access})
}

// UpdateAccess handles PATCH /api/v1/initiatives/{id}/access/{accessID}
func (h *TeamHandler) UpdateAccess(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "initiative")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	accessID, err := pathID(r, "accessID", "access request")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req AccessUpdateRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}

	now := h.now()
	access, err := h.store.UpdateAccessProvision(r.Context(), id, accessID, func(a *domain.AccessProvision) error {
		return a.Apply(domain.AccessUpdate{Status: req.Status, Notes: req.Notes, Fulfilled: req.Fulfilled}, now)
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.pub.publish(events.SubjectAccessUpdated(id.String()), accessEvent(access))
	writeJSON(w, http.StatusOK, map[string]interface{}{"access": access})
}

func accessEvent(a *domain.AccessProvision) events.RecordEvent {
	return events.RecordEvent{
		InitiativeID: a.InitiativeID.String(),
		RecordID:     a.ID.String(),
		Name:         a.SystemName,
		Status:       string(a.Status),
		Timestamp:    time.Now().UTC(),
	}
}

func validEmail(s string) error {
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return domain.Invalid("email must be a valid email address")
	}
	return nil
}
