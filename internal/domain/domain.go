package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stage is a lifecycle stage. Ordering lives in the lifecycle package.
type Stage string

const (
	StageIngestion      Stage = "INGESTION"
	StageTransformation Stage = "TRANSFORMATION"
	StageEnrichment     Stage = "ENRICHMENT"
	StageValidation     Stage = "VALIDATION"
	StageVisualization  Stage = "VISUALIZATION"
	StageDeployment     Stage = "DEPLOYMENT"
)

type InitiativeStatus string

const (
	StatusOnTrack  InitiativeStatus = "ON_TRACK"
	StatusAtRisk   InitiativeStatus = "AT_RISK"
	StatusBlocked  InitiativeStatus = "BLOCKED"
	StatusComplete InitiativeStatus = "COMPLETE"
	StatusArchived InitiativeStatus = "ARCHIVED"
)

// InitiativeStatuses is in declaration order, which is also list order.
var InitiativeStatuses = []InitiativeStatus{StatusOnTrack, StatusAtRisk, StatusBlocked, StatusComplete, StatusArchived}

type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthWatch    HealthStatus = "WATCH"
	HealthCritical HealthStatus = "CRITICAL"
)

var HealthStatuses = []HealthStatus{HealthHealthy, HealthWatch, HealthCritical}

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}

type RiskStatus string

const (
	RiskOpen      RiskStatus = "OPEN"
	RiskMitigated RiskStatus = "MITIGATED"
	RiskClosed    RiskStatus = "CLOSED"
)

type AssetType string

const (
	AssetDataset   AssetType = "DATASET"
	AssetModel     AssetType = "MODEL"
	AssetDashboard AssetType = "DASHBOARD"
	AssetPipeline  AssetType = "PIPELINE"
	AssetReport    AssetType = "REPORT"
	AssetOther     AssetType = "OTHER"
)

type DependencyStatus string

const (
	DependencyOpen    DependencyStatus = "OPEN"
	DependencyBlocked DependencyStatus = "BLOCKED"
	DependencyCleared DependencyStatus = "CLEARED"
)

type SOWStatus string

const (
	SOWDraft     SOWStatus = "DRAFT"
	SOWInReview  SOWStatus = "IN_REVIEW"
	SOWApproved  SOWStatus = "APPROVED"
	SOWSignedOff SOWStatus = "SIGNED_OFF"
)

type OnboardingStatus string

const (
	OnboardingAwaiting   OnboardingStatus = "AWAITING"
	OnboardingInProgress OnboardingStatus = "IN_PROGRESS"
	OnboardingCompleted  OnboardingStatus = "COMPLETED"
)

type AccessStatus string

const (
	AccessRequested  AccessStatus = "REQUESTED"
	AccessInProgress AccessStatus = "IN_PROGRESS"
	AccessGranted    AccessStatus = "GRANTED"
	AccessBlocked    AccessStatus = "BLOCKED"
)

type ApprovalRole string

const (
	RoleProjectManager ApprovalRole = "PROJECT_MANAGER"
	RoleDataArchitect  ApprovalRole = "DATA_ARCHITECT"
)

func (s InitiativeStatus) Valid() bool {
	for _, v := range InitiativeStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (h HealthStatus) Valid() bool {
	for _, v := range HealthStatuses {
		if h == v {
			return true
		}
	}
	return false
}

func (r RiskLevel) Valid() bool {
	for _, v := range RiskLevels {
		if r == v {
			return true
		}
	}
	return false
}

func (r RiskStatus) Valid() bool {
	switch r {
	case RiskOpen, RiskMitigated, RiskClosed:
		return true
	}
	return false
}

func (a AssetType) Valid() bool {
	switch a {
	case AssetDataset, AssetModel, AssetDashboard, AssetPipeline, AssetReport, AssetOther:
		return true
	}
	return false
}

func (d DependencyStatus) Valid() bool {
	switch d {
	case DependencyOpen, DependencyBlocked, DependencyCleared:
		return true
	}
	return false
}

func (s SOWStatus) Valid() bool {
	switch s {
	case SOWDraft, SOWInReview, SOWApproved, SOWSignedOff:
		return true
	}
	return false
}

func (o OnboardingStatus) Valid() bool {
	switch o {
	case OnboardingAwaiting, OnboardingInProgress, OnboardingCompleted:
		return true
	}
	return false
}

func (a AccessStatus) Valid() bool {
	switch a {
	case AccessRequested, AccessInProgress, AccessGranted, AccessBlocked:
		return true
	}
	return false
}

func (r ApprovalRole) Valid() bool {
	return r == RoleProjectManager || r == RoleDataArchitect
}

type Initiative struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Stage          Stage            `json:"stage"`
	Status         InitiativeStatus `json:"status"`
	HealthStatus   HealthStatus     `json:"health_status"`
	RiskLevel      RiskLevel        `json:"risk_level"`
	SOWReference   string           `json:"sow_reference,omitempty"`
	EngagementLead string           `json:"engagement_lead,omitempty"`
	ProjectManager string           `json:"project_manager,omitempty"`
	DataArchitect  string           `json:"data_architect,omitempty"`
	StartDate      *time.Time       `json:"start_date,omitempty"`
	TargetDate     *time.Time       `json:"target_date,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`

	ChecklistItems []ChecklistItem        `json:"checklist_items"`
	StageHistory   []StageHistory         `json:"stage_history"`
	Approvals      []StageApproval        `json:"approvals"`
	ScopeOfWork    *ScopeOfWork           `json:"scope_of_work"`
	Assets         []DataAsset            `json:"assets"`
	Risks          []Risk                 `json:"risks"`
	Dependencies   []Dependency           `json:"dependencies"`
	Assignments    []InitiativeAssignment `json:"assignments"`
	AccessRequests []AccessProvision      `json:"access_requests"`
}

type ChecklistItem struct {
	ID           uuid.UUID  `json:"id"`
	InitiativeID uuid.UUID  `json:"initiative_id"`
	Stage        Stage      `json:"stage"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type StageApproval struct {
	ID           uuid.UUID    `json:"id"`
	InitiativeID uuid.UUID    `json:"initiative_id"`
	Stage        Stage        `json:"stage"`
	Role         ApprovalRole `json:"role"`
	Approved     bool         `json:"approved"`
	ApprovedBy   *string      `json:"approved_by"`
	ApprovedAt   *time.Time   `json:"approved_at"`
	Notes        *string      `json:"notes"`
}

type ScopeOfWork struct {
	ID                  uuid.UUID  `json:"id"`
	InitiativeID        uuid.UUID  `json:"initiative_id"`
	Summary             string     `json:"summary"`
	Deliverables        string     `json:"deliverables"`
	Status              SOWStatus  `json:"status"`
	PMOwner             string     `json:"pm_owner"`
	ArchitectOwner      string     `json:"architect_owner"`
	PMApproved          bool       `json:"pm_approved"`
	PMApprovedAt        *time.Time `json:"pm_approved_at,omitempty"`
	ArchitectApproved   bool       `json:"architect_approved"`
	ArchitectApprovedAt *time.Time `json:"architect_approved_at,omitempty"`
	SignedOffAt         *time.Time `json:"signed_off_at,omitempty"`
	LastReviewedAt      *time.Time `json:"last_reviewed_at,omitempty"`
}

type StageHistory struct {
	ID           uuid.UUID `json:"id"`
	InitiativeID uuid.UUID `json:"initiative_id"`
	FromStage    *Stage    `json:"from_stage"`
	ToStage      Stage     `json:"to_stage"`
	Actor        string    `json:"actor"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type DataAsset struct {
	ID                 uuid.UUID          `json:"id"`
	InitiativeID       uuid.UUID          `json:"initiative_id"`
	Name               string             `json:"name"`
	Type               AssetType          `json:"type"`
	OwnerTeam          string             `json:"owner_team"`
	Steward            string             `json:"steward,omitempty"`
	AcceptanceCriteria string             `json:"acceptance_criteria,omitempty"`
	Notes              string             `json:"notes,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	Initiative         *InitiativeSummary `json:"initiative,omitempty"`
}

// InitiativeSummary is attached to assets on the global asset registry.
type InitiativeSummary struct {
	ID     uuid.UUID        `json:"id"`
	Name   string           `json:"name"`
	Stage  Stage            `json:"stage"`
	Status InitiativeStatus `json:"status"`
}

type Risk struct {
	ID             uuid.UUID  `json:"id"`
	InitiativeID   uuid.UUID  `json:"initiative_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Severity       RiskLevel  `json:"severity"`
	Status         RiskStatus `json:"status"`
	MitigationPlan string     `json:"mitigation_plan,omitempty"`
	Owner          string     `json:"owner,omitempty"`
	IdentifiedAt   time.Time  `json:"identified_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

type Dependency struct {
	ID             uuid.UUID        `json:"id"`
	InitiativeID   uuid.UUID        `json:"initiative_id"`
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	Type           string           `json:"type"`
	Status         DependencyStatus `json:"status"`
	ExternalSystem string           `json:"external_system,omitempty"`
	DueDate        *time.Time       `json:"due_date,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

type TeamMember struct {
	ID               uuid.UUID        `json:"id"`
	Name             string           `json:"name"`
	Email            string           `json:"email"`
	RoleTitle        string           `json:"role_title"`
	Team             string           `json:"team"`
	OnboardingStatus OnboardingStatus `json:"onboarding_status"`
	StartDate        *time.Time       `json:"start_date,omitempty"`
}

type InitiativeAssignment struct {
	ID             uuid.UUID  `json:"id"`
	InitiativeID   uuid.UUID  `json:"initiative_id"`
	Responsibility string     `json:"responsibility"`
	AssignedAt     time.Time  `json:"assigned_at"`
	Member         TeamMember `json:"member"`
}

type AccessProvision struct {
	ID           uuid.UUID    `json:"id"`
	InitiativeID uuid.UUID    `json:"initiative_id"`
	MemberID     uuid.UUID    `json:"member_id"`
	SystemName   string       `json:"system_name"`
	Status       AccessStatus `json:"status"`
	RequestedAt  *time.Time   `json:"requested_at,omitempty"`
	FulfilledAt  *time.Time   `json:"fulfilled_at,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	Member       TeamMember   `json:"member"`
}
