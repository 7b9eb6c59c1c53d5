// Package client talks to the control tower HTTP API. It backs towerctl and
// the seed script.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/overview"
)

// APIError is a non-2xx response. Kind and Details are set for rejected
// stage transitions.
type APIError struct {
	StatusCode int
	Message    string
	Kind       string
	Details    map[string]any
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("control tower: %d %s: %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("control tower: %d %s", e.StatusCode, e.Message)
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type ListFilter struct {
	Stage        string
	Status       string
	HealthStatus string
}

type CreateInitiative struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	SOWReference   string     `json:"sow_reference,omitempty"`
	EngagementLead string     `json:"engagement_lead,omitempty"`
	ProjectManager string     `json:"project_manager,omitempty"`
	DataArchitect  string     `json:"data_architect,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	TargetDate     *time.Time `json:"target_date,omitempty"`
	HealthStatus   string     `json:"health_status,omitempty"`
	RiskLevel      string     `json:"risk_level,omitempty"`
}

type Transition struct {
	TargetStage     string `json:"target_stage"`
	Reason          string `json:"reason,omitempty"`
	Actor           string `json:"actor,omitempty"`
	AllowRegression bool   `json:"allow_regression,omitempty"`
}

type ScopeUpdate struct {
	Summary           *string `json:"summary,omitempty"`
	Deliverables      *string `json:"deliverables,omitempty"`
	Status            *string `json:"status,omitempty"`
	PMApproved        *bool   `json:"pm_approved,omitempty"`
	ArchitectApproved *bool   `json:"architect_approved,omitempty"`
}

type ApprovalUpdate struct {
	Approved   bool   `json:"approved"`
	ApprovedBy string `json:"approved_by,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type CreateRisk struct {
	Title          string `json:"title" yaml:"title"`
	Description    string `json:"description" yaml:"description"`
	Severity       string `json:"severity" yaml:"severity"`
	MitigationPlan string `json:"mitigation_plan,omitempty" yaml:"mitigation_plan"`
	Owner          string `json:"owner,omitempty" yaml:"owner"`
}

type CreateAsset struct {
	Name      string `json:"name" yaml:"name"`
	Type      string `json:"type" yaml:"type"`
	OwnerTeam string `json:"owner_team" yaml:"owner_team"`
	Steward   string `json:"steward,omitempty" yaml:"steward"`
}

type CreateDependency struct {
	Name           string `json:"name" yaml:"name"`
	Type           string `json:"type" yaml:"type"`
	Status         string `json:"status,omitempty" yaml:"status"`
	ExternalSystem string `json:"external_system,omitempty" yaml:"external_system"`
}

func (c *HTTPClient) ListInitiatives(ctx context.Context, f ListFilter) ([]domain.Initiative, error) {
	q := url.Values{}
	if f.Stage != "" {
		q.Set("stage", f.Stage)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.HealthStatus != "" {
		q.Set("health_status", f.HealthStatus)
	}
	path := "/api/v1/initiatives"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Initiatives []domain.Initiative `json:"initiatives"`
	}
	if err := c.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out.Initiatives, nil
}

func (c *HTTPClient) GetInitiative(ctx context.Context, id uuid.UUID) (*domain.Initiative, error) {
	var out struct {
		Initiative domain.Initiative `json:"initiative"`
	}
	if err := c.do(ctx, "GET", "/api/v1/initiatives/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out.Initiative, nil
}

func (c *HTTPClient) CreateInitiative(ctx context.Context, in CreateInitiative) (*domain.Initiative, error) {
	var out struct {
		Initiative domain.Initiative `json:"initiative"`
	}
	if err := c.do(ctx, "POST", "/api/v1/initiatives", in, &out); err != nil {
		return nil, err
	}
	return &out.Initiative, nil
}

func (c *HTTPClient) Transition(ctx context.Context, id uuid.UUID, t Transition) (*domain.Initiative, error) {
	var out struct {
		Initiative domain.Initiative `json:"initiative"`
	}
	if err := c.do(ctx, "POST", "/api/v1/initiatives/"+id.String()+"/transition", t, &out); err != nil {
		return nil, err
	}
	return &out.Initiative, nil
}

func (c *HTTPClient) UpdateScope(ctx context.Context, id uuid.UUID, u ScopeUpdate) (*domain.ScopeOfWork, error) {
	var out struct {
		Scope domain.ScopeOfWork `json:"scope"`
	}
	if err := c.do(ctx, "PATCH", "/api/v1/initiatives/"+id.String()+"/sow", u, &out); err != nil {
		return nil, err
	}
	return &out.Scope, nil
}

func (c *HTTPClient) UpdateApproval(ctx context.Context, id, approvalID uuid.UUID, u ApprovalUpdate) (*domain.StageApproval, error) {
	var out struct {
		Approval domain.StageApproval `json:"approval"`
	}
	path := "/api/v1/initiatives/" + id.String() + "/approvals/" + approvalID.String()
	if err := c.do(ctx, "PATCH", path, u, &out); err != nil {
		return nil, err
	}
	return &out.Approval, nil
}

func (c *HTTPClient) UpdateChecklist(ctx context.Context, id, itemID uuid.UUID, completed bool) (*domain.ChecklistItem, error) {
	var out struct {
		Checklist domain.ChecklistItem `json:"checklist"`
	}
	path := "/api/v1/initiatives/" + id.String() + "/checklists/" + itemID.String()
	if err := c.do(ctx, "PATCH", path, map[string]bool{"completed": completed}, &out); err != nil {
		return nil, err
	}
	return &out.Checklist, nil
}

func (c *HTTPClient) CreateRisk(ctx context.Context, id uuid.UUID, r CreateRisk) (*domain.Risk, error) {
	var out struct {
		Risk domain.Risk `json:"risk"`
	}
	if err := c.do(ctx, "POST", "/api/v1/initiatives/"+id.String()+"/risks", r, &out); err != nil {
		return nil, err
	}
	return &out.Risk, nil
}

func (c *HTTPClient) CreateAsset(ctx context.Context, id uuid.UUID, a CreateAsset) (*domain.DataAsset, error) {
	var out struct {
		Asset domain.DataAsset `json:"asset"`
	}
	if err := c.do(ctx, "POST", "/api/v1/initiatives/"+id.String()+"/assets", a, &out); err != nil {
		return nil, err
	}
	return &out.Asset, nil
}

func (c *HTTPClient) CreateDependency(ctx context.Context, id uuid.UUID, d CreateDependency) (*domain.Dependency, error) {
	var out struct {
		Dependency domain.Dependency `json:"dependency"`
	}
	if err := c.do(ctx, "POST", "/api/v1/initiatives/"+id.String()+"/dependencies", d, &out); err != nil {
		return nil, err
	}
	return &out.Dependency, nil
}

func (c *HTTPClient) Overview(ctx context.Context) (*overview.Overview, error) {
	var out struct {
		Metrics overview.Overview `json:"metrics"`
	}
	if err := c.do(ctx, "GET", "/api/v1/metrics/overview", nil, &out); err != nil {
		return nil, err
	}
	return &out.Metrics, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error   string         `json:"error"`
			Kind    string         `json:"kind"`
			Details map[string]any `json:"details"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Kind = payload.Kind
			apiErr.Details = payload.Details
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
