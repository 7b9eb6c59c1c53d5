package lifecycle

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilotgb/control-tower/internal/domain"
)

func TestNext(t *testing.T) {
	next, ok := Next(domain.StageIngestion)
	assert.True(t, ok)
	assert.Equal(t, domain.StageTransformation, next)

	next, ok = Next(domain.StageVisualization)
	assert.True(t, ok)
	assert.Equal(t, domain.StageDeployment, next)

	_, ok = Next(domain.StageDeployment)
	assert.False(t, ok)

	_, ok = Next(domain.Stage("LAUNCH"))
	assert.False(t, ok)
}

func TestParseStage(t *testing.T) {
	stage, err := ParseStage(" validation ")
	require.NoError(t, err)
	assert.Equal(t, domain.StageValidation, stage)

	_, err = ParseStage("launch")
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindUnknownStage, kind)
}

func TestValidateStageOrder(t *testing.T) {
	tests := []struct {
		name       string
		current    domain.Stage
		target     domain.Stage
		regression bool
		kind       ErrorKind
		message    string
	}{
		{"forward one", domain.StageIngestion, domain.StageTransformation, false, "", ""},
		{"same stage", domain.StageEnrichment, domain.StageEnrichment, false, KindNoOpTransition, "Initiative is already in the requested stage"},
		{"same stage with override", domain.StageEnrichment, domain.StageEnrichment, true, KindNoOpTransition, "Initiative is already in the requested stage"},
		{"skip", domain.StageIngestion, domain.StageEnrichment, false, KindStageSkip, "Cannot skip stages in lifecycle progression"},
		{"skip with override", domain.StageIngestion, domain.StageDeployment, true, KindStageSkip, "Cannot skip stages in lifecycle progression"},
		{"regression", domain.StageValidation, domain.StageIngestion, false, KindRegressionNotAllowed, "Stage regression is not permitted without override"},
		{"regression with override", domain.StageValidation, domain.StageIngestion, true, "", ""},
		{"unknown target", domain.StageIngestion, domain.Stage("LAUNCH"), true, KindUnknownStage, "Unknown stage transition"},
		{"unknown current", domain.Stage("DRAFT"), domain.StageIngestion, false, KindUnknownStage, "Unknown stage transition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStageOrder(tt.current, tt.target, tt.regression)
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			var te *TransitionError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.kind, te.Kind)
			assert.Equal(t, tt.message, te.Message)
		})
	}
}

func TestNextStatus(t *testing.T) {
	assert.Equal(t, domain.StatusComplete, NextStatus(domain.StatusAtRisk, domain.StageDeployment))
	assert.Equal(t, domain.StatusOnTrack, NextStatus(domain.StatusComplete, domain.StageVisualization))
	assert.Equal(t, domain.StatusBlocked, NextStatus(domain.StatusBlocked, domain.StageEnrichment))
}

func readyState(stage domain.Stage, sow domain.SOWStatus) *domain.LifecycleState {
	id := uuid.New()
	state := &domain.LifecycleState{
		InitiativeID: id,
		Stage:        stage,
		Status:       domain.StatusOnTrack,
		ScopeOfWork:  &domain.ScopeOfWork{Status: sow},
	}
	for _, s := range Sequence {
		state.ChecklistItems = append(state.ChecklistItems, domain.ChecklistItem{
			ID: uuid.New(), InitiativeID: id, Stage: s, Title: string(s) + " exit gate", Completed: s == stage,
		})
		for _, role := range RequiredApprovalRoles {
			state.Approvals = append(state.Approvals, domain.StageApproval{
				ID: uuid.New(), InitiativeID: id, Stage: s, Role: role, Approved: s == stage,
			})
		}
	}
	return state
}

func TestEvaluateOrderOfChecks(t *testing.T) {
	t.Run("scope gate before approvals", func(t *testing.T) {
		state := readyState(domain.StageIngestion, domain.SOWInReview)
		state.Approvals = nil
		_, err := Evaluate(state, TransitionRequest{Target: domain.StageTransformation})
		kind, _ := KindOf(err)
		assert.Equal(t, KindScopeNotApproved, kind)
		assert.Equal(t, "Scope of Work must be approved by PM and Data Architect before progressing beyond Ingestion.", err.Error())
	})

	t.Run("deployment needs signed off scope", func(t *testing.T) {
		state := readyState(domain.StageVisualization, domain.SOWApproved)
		_, err := Evaluate(state, TransitionRequest{Target: domain.StageDeployment})
		kind, _ := KindOf(err)
		assert.Equal(t, KindScopeNotSignedOff, kind)
		assert.Equal(t, "Scope of Work must be fully signed off before deployment.", err.Error())
	})

	t.Run("missing approvals listed in role order", func(t *testing.T) {
		state := readyState(domain.StageTransformation, domain.SOWApproved)
		for i := range state.Approvals {
			state.Approvals[i].Approved = false
		}
		_, err := Evaluate(state, TransitionRequest{Target: domain.StageEnrichment})
		var te *TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, KindMissingApprovals, te.Kind)
		assert.Equal(t, "Stage progression requires approvals.", te.Message)
		assert.Equal(t, []domain.ApprovalRole{domain.RoleProjectManager, domain.RoleDataArchitect}, te.MissingApprovals)
		assert.Equal(t, map[string]any{"missing_approvals": te.MissingApprovals}, te.Details())
	})

	t.Run("approvals of another stage do not count", func(t *testing.T) {
		state := readyState(domain.StageTransformation, domain.SOWApproved)
		for i := range state.Approvals {
			state.Approvals[i].Approved = state.Approvals[i].Stage == domain.StageEnrichment
		}
		_, err := Evaluate(state, TransitionRequest{Target: domain.StageEnrichment})
		kind, _ := KindOf(err)
		assert.Equal(t, KindMissingApprovals, kind)
	})

	t.Run("incomplete checklist", func(t *testing.T) {
		state := readyState(domain.StageEnrichment, domain.SOWApproved)
		for i := range state.ChecklistItems {
			state.ChecklistItems[i].Completed = false
		}
		_, err := Evaluate(state, TransitionRequest{Target: domain.StageValidation})
		var te *TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, KindIncompleteChecklist, te.Kind)
		assert.Equal(t, "Cannot advance stage until all exit checklist items are completed.", te.Message)
		require.Len(t, te.IncompleteItems, 1)
		assert.Equal(t, "ENRICHMENT exit gate", te.IncompleteItems[0].Title)
	})

	t.Run("regression skips checklist but not approvals", func(t *testing.T) {
		state := readyState(domain.StageValidation, domain.SOWApproved)
		for i := range state.ChecklistItems {
			state.ChecklistItems[i].Completed = false
		}
		plan, err := Evaluate(state, TransitionRequest{Target: domain.StageTransformation, AllowRegression: true})
		require.NoError(t, err)
		assert.Equal(t, domain.StageTransformation, plan.To)

		for i := range state.Approvals {
			state.Approvals[i].Approved = false
		}
		_, err = Evaluate(state, TransitionRequest{Target: domain.StageTransformation, AllowRegression: true})
		kind, _ := KindOf(err)
		assert.Equal(t, KindMissingApprovals, kind)
	})

	t.Run("missing scope of work skips scope gates", func(t *testing.T) {
		state := readyState(domain.StageIngestion, domain.SOWDraft)
		state.ScopeOfWork = nil
		_, err := Evaluate(state, TransitionRequest{Target: domain.StageTransformation})
		assert.NoError(t, err)
	})
}

func TestEvaluateDefaultsActor(t *testing.T) {
	state := readyState(domain.StageIngestion, domain.SOWApproved)
	plan, err := Evaluate(state, TransitionRequest{Target: domain.StageTransformation, Reason: "kickoff"})
	require.NoError(t, err)
	assert.Equal(t, "system", plan.Actor)
	assert.Equal(t, "kickoff", plan.Reason)
	assert.Equal(t, domain.StageIngestion, plan.From)
	assert.Equal(t, domain.StatusOnTrack, plan.Status)
}

func TestEvaluateDoesNotMutateState(t *testing.T) {
	state := readyState(domain.StageIngestion, domain.SOWApproved)
	before := *state
	_, err := Evaluate(state, TransitionRequest{Target: domain.StageTransformation})
	require.NoError(t, err)
	assert.Equal(t, before, *state)
}
