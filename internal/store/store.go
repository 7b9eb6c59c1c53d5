package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pilotgb/control-tower/internal/domain"
)

type InitiativeFilter struct {
	Stage        *domain.Stage
	Status       *domain.InitiativeStatus
	HealthStatus *domain.HealthStatus
}

// InitiativePatch holds the editable initiative fields; nil means unchanged.
type InitiativePatch struct {
	Name           *string
	Description    *string
	Status         *domain.InitiativeStatus
	HealthStatus   *domain.HealthStatus
	RiskLevel      *domain.RiskLevel
	SOWReference   *string
	EngagementLead *string
	ProjectManager *string
	DataArchitect  *string
	StartDate      *time.Time
	TargetDate     *time.Time
}

type AssetFilter struct {
	Type *domain.AssetType
}

// Mutators run against a copy of the locked record. Returning an error aborts
// the write.
type (
	ChecklistMutator func(item *domain.ChecklistItem) error
	ApprovalMutator  func(a *domain.StageApproval) error
	ScopeMutator     func(s *domain.ScopeOfWork) error
	RiskMutator      func(r *domain.Risk) error
	MemberMutator    func(m *domain.TeamMember) error
	AccessMutator    func(a *domain.AccessProvision) error
)

type Store interface {
	// Initiatives
	CreateInitiative(ctx context.Context, in *domain.Initiative) (*domain.Initiative, error)
	GetInitiative(ctx context.Context, id uuid.UUID) (*domain.Initiative, error)
	ListInitiatives(ctx context.Context, filter InitiativeFilter) ([]*domain.Initiative, error)
	UpdateInitiative(ctx context.Context, id uuid.UUID, patch InitiativePatch) (*domain.Initiative, error)

	// Lifecycle (transactional)
	TransitionInitiative(ctx context.Context, id uuid.UUID, decide domain.TransitionDecider) (*domain.Initiative, error)
	UpdateChecklistItem(ctx context.Context, initiativeID, itemID uuid.UUID, mutate ChecklistMutator) (*domain.ChecklistItem, error)
	UpdateStageApproval(ctx context.Context, initiativeID, approvalID uuid.UUID, mutate ApprovalMutator) (*domain.StageApproval, error)
	ListStageApprovals(ctx context.Context, initiativeID uuid.UUID) ([]domain.StageApproval, error)

	// Scope of work
	GetScopeOfWork(ctx context.Context, initiativeID uuid.UUID) (*domain.ScopeOfWork, error)
	UpdateScopeOfWork(ctx context.Context, initiativeID uuid.UUID, mutate ScopeMutator) (*domain.ScopeOfWork, error)

	// Assets
	CreateAsset(ctx context.Context, a *domain.DataAsset) error
	ListAssetsForInitiative(ctx context.Context, initiativeID uuid.UUID) ([]domain.DataAsset, error)
	ListAssets(ctx context.Context, filter AssetFilter) ([]domain.DataAsset, error)

	// Risks
	CreateRisk(ctx context.Context, r *domain.Risk) error
	ListRisks(ctx context.Context, initiativeID uuid.UUID) ([]domain.Risk, error)
	UpdateRisk(ctx context.Context, initiativeID, riskID uuid.UUID, mutate RiskMutator) (*domain.Risk, error)

	// Dependencies
	CreateDependency(ctx context.Context, d *domain.Dependency) error
	ListDependencies(ctx context.Context, initiativeID uuid.UUID) ([]domain.Dependency, error)
	CountDependencies(ctx context.Context, status domain.DependencyStatus) (int, error)

	// Team
	CreateTeamMember(ctx context.Context, m *domain.TeamMember) error
	ListTeamMembers(ctx context.Context) ([]domain.TeamMember, error)
	AssignMember(ctx context.Context, a *domain.InitiativeAssignment) error
	UpdateAssignedMember(ctx context.Context, initiativeID, memberID uuid.UUID, mutate MemberMutator) (*domain.TeamMember, error)
	RequestAccess(ctx context.Context, a *domain.AccessProvision) error
	UpdateAccessProvision(ctx context.Context, initiativeID, accessID uuid.UUID, mutate AccessMutator) (*domain.AccessProvision, error)

	Ping(ctx context.Context) error
	Close() error
}

var (
	errDuplicateEmail  = domain.Invalid("A team member with this email already exists.")
	errAlreadyAssigned = domain.Invalid("Team member is already assigned to this initiative.")
)
