package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/lifecycle"
)

// MemoryStore keeps everything in process. Every operation holds one mutex,
// which gives the same all-or-nothing behaviour as the Postgres transactions.
type MemoryStore struct {
	mu          sync.Mutex
	initiatives map[uuid.UUID]*domain.Initiative
	members     map[uuid.UUID]*domain.TeamMember
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		initiatives: make(map[uuid.UUID]*domain.Initiative),
		members:     make(map[uuid.UUID]*domain.TeamMember),
		now:         time.Now,
	}
}

// SetClock replaces the time source; used by tests.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }

func (m *MemoryStore) CreateInitiative(_ context.Context, in *domain.Initiative) (*domain.Initiative, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := *in
	prepareInitiative(&rec, m.now().UTC())
	m.initiatives[rec.ID] = &rec
	return m.clone(&rec), nil
}

func (m *MemoryStore) GetInitiative(_ context.Context, id uuid.UUID) (*domain.Initiative, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[id]
	if !ok {
		return nil, domain.NotFound("Initiative")
	}
	return m.clone(in), nil
}

func (m *MemoryStore) ListInitiatives(_ context.Context, filter InitiativeFilter) ([]*domain.Initiative, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*domain.Initiative{}
	for _, in := range m.initiatives {
		if filter.Stage != nil && in.Stage != *filter.Stage {
			continue
		}
		if filter.Status != nil && in.Status != *filter.Status {
			continue
		}
		if filter.HealthStatus != nil && in.HealthStatus != *filter.HealthStatus {
			continue
		}
		out = append(out, m.clone(in))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := statusRank(a.Status), statusRank(b.Status); ra != rb {
			return ra < rb
		}
		if ra, rb := riskRank(a.RiskLevel), riskRank(b.RiskLevel); ra != rb {
			return ra > rb
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) UpdateInitiative(_ context.Context, id uuid.UUID, patch InitiativePatch) (*domain.Initiative, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[id]
	if !ok {
		return nil, domain.NotFound("Initiative")
	}
	applyPatch(in, patch)
	in.UpdatedAt = m.now().UTC()
	if ownersChanged(patch) && in.ScopeOfWork != nil {
		if patch.ProjectManager != nil && *patch.ProjectManager != "" {
			in.ScopeOfWork.PMOwner = *patch.ProjectManager
		}
		if patch.DataArchitect != nil && *patch.DataArchitect != "" {
			in.ScopeOfWork.ArchitectOwner = *patch.DataArchitect
		}
	}
	return m.clone(in), nil
}

func (m *MemoryStore) TransitionInitiative(_ context.Context, id uuid.UUID, decide domain.TransitionDecider) (*domain.Initiative, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[id]
	if !ok {
		return nil, domain.NotFound("Initiative")
	}

	snapshot := m.clone(in)
	plan, err := decide(&domain.LifecycleState{
		InitiativeID:   snapshot.ID,
		Stage:          snapshot.Stage,
		Status:         snapshot.Status,
		ChecklistItems: snapshot.ChecklistItems,
		Approvals:      snapshot.Approvals,
		ScopeOfWork:    snapshot.ScopeOfWork,
	})
	if err != nil {
		return nil, err
	}

	lifecycle.Apply(in, plan, m.now().UTC())
	return m.clone(in), nil
}

func (m *MemoryStore) UpdateChecklistItem(_ context.Context, initiativeID, itemID uuid.UUID, mutate ChecklistMutator) (*domain.ChecklistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[initiativeID]
	if !ok {
		return nil, domain.NotFound("Checklist item")
	}
	for i := range in.ChecklistItems {
		if in.ChecklistItems[i].ID != itemID {
			continue
		}
		next := in.ChecklistItems[i]
		if err := mutate(&next); err != nil {
			return nil, err
		}
		in.ChecklistItems[i] = next
		return &next, nil
	}
	return nil, domain.NotFound("Checklist item")
}

func (m *MemoryStore) UpdateStageApproval(_ context.Context, initiativeID, approvalID uuid.UUID, mutate ApprovalMutator) (*domain.StageApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[initiativeID]
	if !ok {
		return nil, domain.NotFound("Stage approval")
	}
	for i := range in.Approvals {
		if in.Approvals[i].ID != approvalID {
			continue
		}
		next := in.Approvals[i]
		if err := mutate(&next); err != nil {
			return nil, err
		}
		in.Approvals[i] = next
		return &next, nil
	}
	return nil, domain.NotFound("Stage approval")
}

func (m *MemoryStore) ListStageApprovals(_ context.Context, initiativeID uuid.UUID) ([]domain.StageApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[initiativeID]
	if !ok {
		return nil, domain.NotFound("Initiative")
	}
	out := append([]domain.StageApproval{}, in.Approvals...)
	sort.SliceStable(out, func(i, j int) bool {
		if si, sj := stageRank(out[i].Stage), stageRank(out[j].Stage); si != sj {
			return si < sj
		}
		return out[i].Role > out[j].Role
	})
	return out, nil
}

func (m *MemoryStore) GetScopeOfWork(_ context.Context, initiativeID uuid.UUID) (*domain.ScopeOfWork, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[initiativeID]
	if !ok || in.ScopeOfWork == nil {
		return nil, domain.NotFound("Scope of Work")
	}
	scope := *in.ScopeOfWork
	return &scope, nil
}

func (m *MemoryStore) UpdateScopeOfWork(_ context.Context, initiativeID uuid.UUID, mutate ScopeMutator) (*domain.ScopeOfWork, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[initiativeID]
	if !ok || in.ScopeOfWork == nil {
		return nil, domain.NotFound("Scope of Work")
	}
	next := *in.ScopeOfWork
	if err := mutate(&next); err != nil {
		return nil, err
	}
	in.ScopeOfWork = &next
	out := next
	return &out, nil
}

func (m *MemoryStore) CreateAsset(_ context.Context, a *domain.DataAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[a.InitiativeID]
	if !ok {
		return domain.NotFound("Initiative")
	}
	a.ID = uuid.New()
	a.CreatedAt = m.now().UTC()
	in.Assets = append([]domain.DataAsset{*a}, in.Assets...)
	return nil
}

func (m *MemoryStore) ListAssetsForInitiative(_ context.Context, initiativeID uuid.UUID) ([]domain.DataAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[initiativeID]
	if !ok {
		return []domain.DataAsset{}, nil
	}
	return append([]domain.DataAsset{}, in.Assets...), nil
}

func (m *MemoryStore) ListAssets(_ context.Context, filter AssetFilter) ([]domain.DataAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.DataAsset{}
	for _, in := range m.initiatives {
		summary := &domain.InitiativeSummary{ID: in.ID, Name: in.Name, Stage: in.Stage, Status: in.Status}
		for _, a := range in.Assets {
			if filter.Type != nil && a.Type != *filter.Type {
				continue
			}
			a.Initiative = summary
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CreateRisk(_ context.Context, r *domain.Risk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[r.InitiativeID]
	if !ok {
		return domain.NotFound("Initiative")
	}
	r.ID = uuid.New()
	r.IdentifiedAt = m.now().UTC()
	in.Risks = append([]domain.Risk{*r}, in.Risks...)
	return nil
}

func (m *MemoryStore) ListRisks(_ context.Context, initiativeID uuid.UUID) ([]domain.Risk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[initiativeID]
	if !ok {
		return []domain.Risk{}, nil
	}
	return append([]domain.Risk{}, in.Risks...), nil
}

func (m *MemoryStore) UpdateRisk(_ context.Context, initiativeID, riskID uuid.UUID, mutate RiskMutator) (*domain.Risk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[initiativeID]
	if !ok {
		return nil, domain.NotFound("Risk")
	}
	for i := range in.Risks {
		if in.Risks[i].ID != riskID {
			continue
		}
		next := in.Risks[i]
		if err := mutate(&next); err != nil {
			return nil, err
		}
		in.Risks[i] = next
		return &next, nil
	}
	return nil, domain.NotFound("Risk")
}

func (m *MemoryStore) CreateDependency(_ context.Context, d *domain.Dependency) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[d.InitiativeID]
	if !ok {
		return domain.NotFound("Initiative")
	}
	d.ID = uuid.New()
	d.CreatedAt = m.now().UTC()
	in.Dependencies = append([]domain.Dependency{*d}, in.Dependencies...)
	return nil
}

func (m *MemoryStore) ListDependencies(_ context.Context, initiativeID uuid.UUID) ([]domain.Dependency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[initiativeID]
	if !ok {
		return []domain.Dependency{}, nil
	}
	return append([]domain.Dependency{}, in.Dependencies...), nil
}

func (m *MemoryStore) CountDependencies(_ context.Context, status domain.DependencyStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, in := range m.initiatives {
		for _, d := range in.Dependencies {
			if d.Status == status {
				n++
			}
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateTeamMember(_ context.Context, tm *domain.TeamMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tm.Email = strings.ToLower(tm.Email)
	for _, existing := range m.members {
		if existing.Email == tm.Email {
			return errDuplicateEmail
		}
	}
	tm.ID = uuid.New()
	if tm.OnboardingStatus == "" {
		tm.OnboardingStatus = domain.OnboardingAwaiting
	}
	rec := *tm
	m.members[rec.ID] = &rec
	return nil
}

func (m *MemoryStore) ListTeamMembers(_ context.Context) ([]domain.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.TeamMember, 0, len(m.members))
	for _, tm := range m.members {
		out = append(out, *tm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) AssignMember(_ context.Context, a *domain.InitiativeAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[a.InitiativeID]
	if !ok {
		return domain.NotFound("Initiative")
	}
	member, ok := m.members[a.Member.ID]
	if !ok {
		return domain.NotFound("Team member")
	}
	for _, existing := range in.Assignments {
		if existing.Member.ID == member.ID {
			return errAlreadyAssigned
		}
	}
	a.ID = uuid.New()
	a.AssignedAt = m.now().UTC()
	a.Member = *member
	in.Assignments = append(in.Assignments, *a)
	return nil
}

func (m *MemoryStore) UpdateAssignedMember(_ context.Context, initiativeID, memberID uuid.UUID, mutate MemberMutator) (*domain.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	notFound := domain.NotFound("Team member assignment")
	in, ok := m.initiatives[initiativeID]
	if !ok {
		return nil, notFound
	}
	assigned := false
	for _, a := range in.Assignments {
		if a.Member.ID == memberID {
			assigned = true
			break
		}
	}
	member, ok := m.members[memberID]
	if !assigned || !ok {
		return nil, notFound
	}
	next := *member
	if err := mutate(&next); err != nil {
		return nil, err
	}
	*member = next
	return &next, nil
}

func (m *MemoryStore) RequestAccess(_ context.Context, a *domain.AccessProvision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[a.InitiativeID]
	if !ok {
		return domain.NotFound("Initiative")
	}
	member, ok := m.members[a.MemberID]
	if !ok {
		return domain.NotFound("Team member")
	}
	now := m.now().UTC()
	a.ID = uuid.New()
	a.RequestedAt = &now
	if a.Status == "" {
		a.Status = domain.AccessRequested
	}
	a.Member = *member
	in.AccessRequests = append([]domain.AccessProvision{*a}, in.AccessRequests...)
	return nil
}

func (m *MemoryStore) UpdateAccessProvision(_ context.Context, initiativeID, accessID uuid.UUID, mutate AccessMutator) (*domain.AccessProvision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.initiatives[initiativeID]
	if !ok {
		return nil, domain.NotFound("Access request")
	}
	for i := range in.AccessRequests {
		if in.AccessRequests[i].ID != accessID {
			continue
		}
		next := in.AccessRequests[i]
		if err := mutate(&next); err != nil {
			return nil, err
		}
		in.AccessRequests[i] = next
		out := next
		if member, ok := m.members[out.MemberID]; ok {
			out.Member = *member
		}
		return &out, nil
	}
	return nil, domain.NotFound("Access request")
}

// clone copies an initiative deep enough that callers can mutate slices and
// the scope of work without touching stored state. Members are refreshed from
// the member table.
func (m *MemoryStore) clone(in *domain.Initiative) *domain.Initiative {
	out := *in
	out.ChecklistItems = append([]domain.ChecklistItem{}, in.ChecklistItems...)
	out.StageHistory = append([]domain.StageHistory{}, in.StageHistory...)
	out.Approvals = append([]domain.StageApproval{}, in.Approvals...)
	out.Assets = append([]domain.DataAsset{}, in.Assets...)
	out.Risks = append([]domain.Risk{}, in.Risks...)
	out.Dependencies = append([]domain.Dependency{}, in.Dependencies...)
	out.Assignments = append([]domain.InitiativeAssignment{}, in.Assignments...)
	out.AccessRequests = append([]domain.AccessProvision{}, in.AccessRequests...)
	if in.ScopeOfWork != nil {
		scope := *in.ScopeOfWork
		out.ScopeOfWork = &scope
	}
	for i := range out.Assignments {
		if member, ok := m.members[out.Assignments[i].Member.ID]; ok {
			out.Assignments[i].Member = *member
		}
	}
	for i := range out.AccessRequests {
		if member, ok := m.members[out.AccessRequests[i].MemberID]; ok {
			out.AccessRequests[i].Member = *member
		}
	}
	return &out
}
