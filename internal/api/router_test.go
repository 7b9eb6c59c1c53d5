package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/lifecycle"
	"github.com/pilotgb/control-tower/internal/metrics"
	"github.com/pilotgb/control-tower/internal/overview"
	"github.com/pilotgb/control-tower/internal/store"
)

type recordingEvents struct {
	mu       sync.Mutex
	subjects []string
}

func (e *recordingEvents) Publish(subject string, _ interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subjects = append(e.subjects, subject)
	return nil
}

func (e *recordingEvents) Subscribe(string, func(string, []byte)) error { return nil }
func (e *recordingEvents) Close()                                       {}

func (e *recordingEvents) published(subject string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.subjects {
		if s == subject {
			return true
		}
	}
	return false
}

type testServer struct {
	router http.Handler
	store  *store.MemoryStore
	events *recordingEvents
	reg    *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := store.NewMemoryStore()
	ev := &recordingEvents{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	gate := lifecycle.NewGate(s, logger, NewTransitionObserver(ev, m, logger))

	return &testServer{
		router: NewRouter(Deps{
			Store:              s,
			Gate:               gate,
			Events:             ev,
			Metrics:            m,
			Logger:             logger,
			CORSOrigins:        []string{"http://localhost:5173"},
			RateLimitPerMinute: 1000,
		}),
		store:  s,
		events: ev,
		reg:    reg,
	}
}

// do sends body as JSON; a string body is sent verbatim.
func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), "body: %s", w.Body.String())
	return v
}

type errorBody struct {
	Error   string         `json:"error"`
	Kind    string         `json:"kind"`
	Details map[string]any `json:"details"`
}

type initiativeBody struct {
	Initiative domain.Initiative `json:"initiative"`
}

func (ts *testServer) createInitiative(t *testing.T, name string) domain.Initiative {
	t.Helper()
	w := ts.do(t, "POST", "/api/v1/initiatives", map[string]interface{}{
		"name":        name,
		"description": "Consolidate regional sales feeds",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[initiativeBody](t, w).Initiative
}

func initiativePath(in domain.Initiative, suffix string) string {
	return "/api/v1/initiatives/" + in.ID.String() + suffix
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	mr := NewMetricsRouter(ts.store, ts.reg)
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	mr.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest("GET", "/metrics", nil)
	rec = httptest.NewRecorder()
	mr.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateInitiative(t *testing.T) {
	ts := newTestServer(t)

	in := ts.createInitiative(t, "Sales Lakehouse")
	assert.Equal(t, domain.StageIngestion, in.Stage)
	assert.Equal(t, domain.StatusOnTrack, in.Status)
	assert.Equal(t, domain.HealthHealthy, in.HealthStatus)
	assert.Equal(t, domain.RiskLow, in.RiskLevel)
	assert.Len(t, in.ChecklistItems, 6)
	assert.Len(t, in.Approvals, 12)
	require.Len(t, in.StageHistory, 1)
	assert.Equal(t, "Initiative created", in.StageHistory[0].Reason)
	require.NotNil(t, in.ScopeOfWork)
	assert.Equal(t, domain.SOWDraft, in.ScopeOfWork.Status)
	assert.Equal(t, "TBD Project Manager", in.ScopeOfWork.PMOwner)
	assert.True(t, ts.events.published("controltower.initiative."+in.ID.String()+".created"))
}

func TestCreateInitiativeValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"short name", map[string]string{"name": "ab", "description": "long enough description"}},
		{"short description", map[string]string{"name": "Valid", "description": "short"}},
		{"bad health", map[string]string{"name": "Valid", "description": "long enough description", "health_status": "GREEN"}},
		{"bad date", map[string]string{"name": "Valid", "description": "long enough description", "target_date": "soon"}},
		{"malformed", `{"name":`},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, "POST", "/api/v1/initiatives", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestGetInitiativeErrors(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "GET", "/api/v1/initiatives/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Initiative not found", decodeBody[errorBody](t, w).Error)

	w = ts.do(t, "GET", "/api/v1/initiatives/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListInitiativesFilters(t *testing.T) {
	ts := newTestServer(t)
	a := ts.createInitiative(t, "Alpha Feeds")
	ts.createInitiative(t, "Beta Feeds")

	w := ts.do(t, "PATCH", initiativePath(a, ""), map[string]string{"status": "AT_RISK"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, "GET", "/api/v1/initiatives?status=AT_RISK", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[struct {
		Initiatives []domain.Initiative `json:"initiatives"`
	}](t, w).Initiatives
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	w = ts.do(t, "GET", "/api/v1/initiatives?stage=DEPLOYMENT", nil)
	assert.JSONEq(t, `{"initiatives":[]}`, w.Body.String())

	// Unknown values are ignored rather than rejected.
	w = ts.do(t, "GET", "/api/v1/initiatives?status=LOST", nil)
	list = decodeBody[struct {
		Initiatives []domain.Initiative `json:"initiatives"`
	}](t, w).Initiatives
	assert.Len(t, list, 2)
}

func TestUpdateInitiative(t *testing.T) {
	ts := newTestServer(t)
	in := ts.createInitiative(t, "Churn Model")

	w := ts.do(t, "PATCH", initiativePath(in, ""), map[string]string{"owner": "someone"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown fields are rejected")

	w = ts.do(t, "PATCH", initiativePath(in, ""), map[string]string{"risk_level": "EXTREME"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, "PATCH", initiativePath(in, ""), map[string]string{
		"project_manager": "Priya Shah",
		"target_date":     "2026-12-31",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeBody[initiativeBody](t, w).Initiative
	assert.Equal(t, "Priya Shah", updated.ProjectManager)
	assert.Equal(t, "Priya Shah", updated.ScopeOfWork.PMOwner)
	assert.Equal(t, "TBD Data Architect", updated.ScopeOfWork.ArchitectOwner)
	require.NotNil(t, updated.TargetDate)
	assert.Equal(t, 2026, updated.TargetDate.Year())
}

func findApproval(in domain.Initiative, stage domain.Stage, role domain.ApprovalRole) domain.StageApproval {
	for _, a := range in.Approvals {
		if a.Stage == stage && a.Role == role {
			return a
		}
	}
	return domain.StageApproval{}
}

func findChecklist(in domain.Initiative, stage domain.Stage) domain.ChecklistItem {
	for _, c := range in.ChecklistItems {
		if c.Stage == stage {
			return c
		}
	}
	return domain.ChecklistItem{}
}

func TestTransitionThroughGates(t *testing.T) {
	ts := newTestServer(t)
	in := ts.createInitiative(t, "Demand Forecast")
	transition := map[string]interface{}{"target_stage": "TRANSFORMATION", "actor": "Dana", "reason": "ready"}

	// DRAFT scope blocks leaving ingestion.
	w := ts.do(t, "POST", initiativePath(in, "/transition"), transition)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody[errorBody](t, w)
	assert.Equal(t, "scope_not_approved", body.Kind)
	assert.Nil(t, body.Details)

	w = ts.do(t, "PATCH", initiativePath(in, "/sow"), map[string]bool{"pm_approved": true, "architect_approved": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	scope := decodeBody[struct {
		Scope domain.ScopeOfWork `json:"scope"`
	}](t, w).Scope
	assert.Equal(t, domain.SOWApproved, scope.Status)

	w = ts.do(t, "POST", initiativePath(in, "/transition"), transition)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body = decodeBody[errorBody](t, w)
	assert.Equal(t, "missing_approvals", body.Kind)
	assert.Equal(t, "Stage progression requires approvals.", body.Error)
	assert.Equal(t, []any{"PROJECT_MANAGER", "DATA_ARCHITECT"}, body.Details["missing_approvals"])

	for _, role := range lifecycle.RequiredApprovalRoles {
		a := findApproval(in, domain.StageIngestion, role)
		w = ts.do(t, "PATCH", initiativePath(in, "/approvals/"+a.ID.String()), map[string]interface{}{"approved": true, "approved_by": "Dana"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = ts.do(t, "POST", initiativePath(in, "/transition"), transition)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body = decodeBody[errorBody](t, w)
	assert.Equal(t, "incomplete_checklist", body.Kind)
	item := findChecklist(in, domain.StageIngestion)
	assert.Equal(t, []any{map[string]any{"id": item.ID.String(), "title": "INGESTION exit gate"}}, body.Details["incomplete_checklist_items"])

	w = ts.do(t, "PATCH", initiativePath(in, "/checklists/"+item.ID.String()), map[string]bool{"completed": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, "POST", initiativePath(in, "/transition"), transition)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	moved := decodeBody[initiativeBody](t, w).Initiative
	assert.Equal(t, domain.StageTransformation, moved.Stage)
	require.Len(t, moved.StageHistory, 2)
	last := moved.StageHistory[1]
	assert.Equal(t, "Dana", last.Actor)
	assert.Equal(t, "ready", last.Reason)

	assert.True(t, ts.events.published("controltower.initiative."+in.ID.String()+".stage.transitioned"))
	assert.True(t, ts.events.published("controltower.initiative."+in.ID.String()+".transition.rejected"))

	expected := `
# HELP controltower_stage_transitions_total Committed stage transitions.
# TYPE controltower_stage_transitions_total counter
controltower_stage_transitions_total{from="INGESTION",to="TRANSFORMATION"} 1
# HELP controltower_transition_rejections_total Rejected stage transition requests by failure kind.
# TYPE controltower_transition_rejections_total counter
controltower_transition_rejections_total{kind="incomplete_checklist"} 1
controltower_transition_rejections_total{kind="missing_approvals"} 1
controltower_transition_rejections_total{kind="scope_not_approved"} 1
`
	err := testutil.GatherAndCompare(ts.reg, strings.NewReader(expected),
		"controltower_stage_transitions_total", "controltower_transition_rejections_total")
	assert.NoError(t, err)
}

func TestTransitionRequestValidation(t *testing.T) {
	ts := newTestServer(t)
	in := ts.createInitiative(t, "Data Quality Hub")

	w := ts.do(t, "POST", initiativePath(in, "/transition"), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, "POST", initiativePath(in, "/transition"), map[string]string{"target_stage": "LAUNCH"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unknown_stage", decodeBody[errorBody](t, w).Kind)

	w = ts.do(t, "POST", initiativePath(in, "/transition"), map[string]string{
		"target_stage": "TRANSFORMATION",
		"reason":       strings.Repeat("x", 501),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, "POST", initiativePath(in, "/transition"), map[string]string{
		"target_stage": "TRANSFORMATION",
		"actor":        strings.Repeat("x", 121),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, "POST", initiativePath(in, "/transition"), map[string]string{"target_stage": "ENRICHMENT"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "stage_skip", decodeBody[errorBody](t, w).Kind)

	w = ts.do(t, "POST", "/api/v1/initiatives/"+uuid.NewString()+"/transition", map[string]string{"target_stage": "TRANSFORMATION"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApprovalRequiresApprover(t *testing.T) {
	ts := newTestServer(t)
	in := ts.createInitiative(t, "Claims Pipeline")
	a := findApproval(in, domain.StageIngestion, domain.RoleDataArchitect)

	w := ts.do(t, "PATCH", initiativePath(in, "/approvals/"+a.ID.String()), map[string]bool{"approved": true})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Approver name is required when approving a stage.", decodeBody[errorBody](t, w).Error)

	w = ts.do(t, "PATCH", initiativePath(in, "/approvals/"+uuid.NewString()), map[string]interface{}{"approved": true, "approved_by": "Dana"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScopeOfWorkEndpoints(t *testing.T) {
	ts := newTestServer(t)
	in := ts.createInitiative(t, "Pricing Engine")

	w := ts.do(t, "GET", initiativePath(in, "/sow"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[struct {
		Scope     domain.ScopeOfWork     `json:"scope"`
		Approvals []domain.StageApproval `json:"approvals"`
	}](t, w)
	assert.Equal(t, domain.SOWDraft, got.Scope.Status)
	require.Len(t, got.Approvals, 12)
	assert.Equal(t, domain.StageIngestion, got.Approvals[0].Stage)
	assert.Equal(t, domain.StageDeployment, got.Approvals[11].Stage)

	w = ts.do(t, "PATCH", initiativePath(in, "/sow"), map[string]string{"status": "SIGNED_OFF"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody[errorBody](t, w)
	assert.Equal(t, "SOW cannot be signed off without both approvals.", body.Error)
	assert.Equal(t, []any{"status"}, body.Details["path"])

	w = ts.do(t, "PATCH", initiativePath(in, "/sow"), map[string]string{"summary": "too short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, "GET", "/api/v1/initiatives/"+uuid.NewString()+"/sow", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssetsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	in := ts.createInitiative(t, "Fraud Signals")

	w := ts.do(t, "POST", initiativePath(in, "/assets"), map[string]string{"name": "Txn feed", "type": "DATASET", "owner_team": "Payments"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = ts.do(t, "POST", initiativePath(in, "/assets"), map[string]string{"name": "Scorer", "type": "MODEL", "owner_team": "Risk DS"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, "POST", initiativePath(in, "/assets"), map[string]string{"name": "Thing", "type": "SPREADSHEET", "owner_team": "Ops"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	type assetsBody struct {
		Assets []domain.DataAsset `json:"assets"`
	}
	w = ts.do(t, "GET", initiativePath(in, "/assets"), nil)
	assets := decodeBody[assetsBody](t, w).Assets
	require.Len(t, assets, 2)
	assert.Equal(t, "Scorer", assets[0].Name, "newest first")

	w = ts.do(t, "GET", "/api/v1/assets?type=DATASET", nil)
	assets = decodeBody[assetsBody](t, w).Assets
	require.Len(t, assets, 1)
	require.NotNil(t, assets[0].Initiative)
	assert.Equal(t, "Fraud Signals", assets[0].Initiative.Name)

	w = ts.do(t, "POST", "/api/v1/initiatives/"+uuid.NewString()+"/assets", map[string]string{"name": "Txn feed", "type": "DATASET", "owner_team": "Payments"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRiskEndpoints(t *testing.T) {
	ts := newTestServer(t)
	in := ts.createInitiative(t, "Supplier 360")

	w := ts.do(t, "POST", initiativePath(in, "/risks"), map[string]string{"title": "Late feed", "description": "Vendor misses SLA", "severity": "HIGH"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	risk := decodeBody[struct {
		Risk domain.Risk `json:"risk"`
	}](t, w).Risk
	assert.Equal(t, domain.RiskOpen, risk.Status)

	w = ts.do(t, "POST", initiativePath(in, "/risks"), map[string]string{"title": "No", "description": "Vendor misses SLA", "severity": "HIGH"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, "PATCH", initiativePath(in, "/risks/"+risk.ID.String()), map[string]string{"status": "CLOSED", "mitigation_plan": "Second vendor"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	risk = decodeBody[struct {
		Risk domain.Risk `json:"risk"`
	}](t, w).Risk
	assert.Equal(t, domain.RiskClosed, risk.Status)
	assert.NotNil(t, risk.ResolvedAt)
	assert.Equal(t, "Second vendor", risk.MitigationPlan)

	w = ts.do(t, "GET", initiativePath(in, "/risks"), nil)
	assert.Len(t, decodeBody[struct {
		Risks []domain.Risk `json:"risks"`
	}](t, w).Risks, 1)

	w = ts.do(t, "PATCH", initiativePath(in, "/risks/"+uuid.NewString()), map[string]string{"status": "CLOSED"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDependenciesAndOverview(t *testing.T) {
	ts := newTestServer(t)
	in := ts.createInitiative(t, "Inventory Sync")
	ts.createInitiative(t, "Store Clustering")

	w := ts.do(t, "POST", initiativePath(in, "/dependencies"), map[string]string{"name": "ERP export", "type": "SYSTEM", "status": "BLOCKED"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = ts.do(t, "POST", initiativePath(in, "/dependencies"), map[string]string{"name": "Firewall rule", "type": "NETWORK"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = ts.do(t, "POST", initiativePath(in, "/risks"), map[string]string{"title": "Data loss", "description": "Export drops rows", "severity": "CRITICAL"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, "GET", initiativePath(in, "/dependencies"), nil)
	deps := decodeBody[struct {
		Dependencies []domain.Dependency `json:"dependencies"`
	}](t, w).Dependencies
	require.Len(t, deps, 2)
	assert.Equal(t, domain.DependencyOpen, deps[0].Status)

	w = ts.do(t, "GET", "/api/v1/metrics/overview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	o := decodeBody[struct {
		Metrics overview.Overview `json:"metrics"`
	}](t, w).Metrics
	assert.Equal(t, 2, o.ByStage[domain.StageIngestion])
	assert.Equal(t, 0, o.ByStage[domain.StageDeployment])
	assert.Equal(t, 2, o.ByStatus[domain.StatusOnTrack])
	assert.Equal(t, 1, o.BlockedDependencies)
	require.Len(t, o.RiskHotspots, 1)
	assert.Equal(t, "Data loss", o.RiskHotspots[0].RiskTitle)
	assert.Nil(t, o.AverageCycleTimeDays)
}

func TestTeamEndpoints(t *testing.T) {
	ts := newTestServer(t)
	in := ts.createInitiative(t, "Customer Graph")

	member := map[string]string{"name": "Ari Cole", "email": "Ari.Cole@Example.com", "role_title": "Data Engineer", "team": "Platform"}
	w := ts.do(t, "POST", "/api/v1/team-members", member)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[struct {
		Member domain.TeamMember `json:"member"`
	}](t, w).Member
	assert.Equal(t, "ari.cole@example.com", created.Email)
	assert.Equal(t, domain.OnboardingAwaiting, created.OnboardingStatus)

	w = ts.do(t, "POST", "/api/v1/team-members", member)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "A team member with this email already exists.", decodeBody[errorBody](t, w).Error)

	w = ts.do(t, "POST", "/api/v1/team-members", map[string]string{"name": "Bo", "email": "not-an-email", "role_title": "PM", "team": "Delivery"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	path := initiativePath(in, "/team-members/"+created.ID.String())
	w = ts.do(t, "PATCH", path, map[string]string{"onboarding_status": "IN_PROGRESS"})
	assert.Equal(t, http.StatusNotFound, w.Code, "member is not assigned yet")

	w = ts.do(t, "POST", initiativePath(in, "/assignments"), map[string]string{"member_id": created.ID.String(), "responsibility": "Pipelines"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, ts.events.published("controltower.initiative."+in.ID.String()+".member.assigned"))
	w = ts.do(t, "POST", initiativePath(in, "/assignments"), map[string]string{"member_id": created.ID.String(), "responsibility": "Pipelines"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, "PATCH", path, map[string]string{"onboarding_status": "IN_PROGRESS", "start_date": "2026-06-01"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeBody[struct {
		Member domain.TeamMember `json:"member"`
	}](t, w).Member
	assert.Equal(t, domain.OnboardingInProgress, updated.OnboardingStatus)
	require.NotNil(t, updated.StartDate)

	w = ts.do(t, "POST", initiativePath(in, "/access"), map[string]string{"member_id": created.ID.String(), "system_name": "Snowflake"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	access := decodeBody[struct {
		Access domain.AccessProvision `json:"access"`
	}](t, w).Access
	assert.Equal(t, domain.AccessRequested, access.Status)
	assert.Equal(t, "Ari Cole", access.Member.Name)

	w = ts.do(t, "PATCH", initiativePath(in, "/access/"+access.ID.String()), map[string]bool{"fulfilled": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	access = decodeBody[struct {
		Access domain.AccessProvision `json:"access"`
	}](t, w).Access
	assert.Equal(t, domain.AccessGranted, access.Status)
	assert.NotNil(t, access.FulfilledAt)

	w = ts.do(t, "GET", "/api/v1/team-members", nil)
	assert.Len(t, decodeBody[struct {
		Members []domain.TeamMember `json:"members"`
	}](t, w).Members, 1)

	w = ts.do(t, "GET", initiativePath(in, ""), nil)
	got := decodeBody[initiativeBody](t, w).Initiative
	require.Len(t, got.Assignments, 1)
	assert.Equal(t, domain.OnboardingInProgress, got.Assignments[0].Member.OnboardingStatus)
	require.Len(t, got.AccessRequests, 1)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/v1/initiatives", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("OPTIONS", "/api/v1/initiatives", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
