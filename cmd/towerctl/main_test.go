package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilotgb/control-tower/internal/api"
	"github.com/pilotgb/control-tower/internal/client"
	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/lifecycle"
	"github.com/pilotgb/control-tower/internal/overview"
	"github.com/pilotgb/control-tower/internal/store"
)

func startAPI(t *testing.T) *client.HTTPClient {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := store.NewMemoryStore()
	srv := httptest.NewServer(api.NewRouter(api.Deps{Store: s, Gate: lifecycle.NewGate(s, logger), Logger: logger}))
	t.Cleanup(srv.Close)
	t.Cleanup(viper.Reset)
	viper.Set("api", srv.URL)
	return client.NewHTTPClient(srv.URL)
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStagesCommand(t *testing.T) {
	t.Cleanup(viper.Reset)

	out, err := run(t, stagesCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "INGESTION")
	assert.Contains(t, out, "DEPLOYMENT")

	viper.Set("json", true)
	out, err = run(t, stagesCmd())
	require.NoError(t, err)
	var stages []string
	require.NoError(t, json.Unmarshal([]byte(out), &stages))
	assert.Equal(t, []string{"INGESTION", "TRANSFORMATION", "ENRICHMENT", "VALIDATION", "VISUALIZATION", "DEPLOYMENT"}, stages)
}

func TestTransitionCommandPrintsRejection(t *testing.T) {
	c := startAPI(t)
	ctx := context.Background()
	in, err := c.CreateInitiative(ctx, client.CreateInitiative{Name: "Sales Lakehouse", Description: "Consolidate regional sales feeds"})
	require.NoError(t, err)

	out, err := run(t, initiativesTransitionCmd(), in.ID.String(), "--to", "transformation")
	require.Error(t, err)
	assert.Contains(t, out, "transition rejected (scope_not_approved)")

	yes := true
	_, err = c.UpdateScope(ctx, in.ID, client.ScopeUpdate{PMApproved: &yes, ArchitectApproved: &yes})
	require.NoError(t, err)

	out, err = run(t, initiativesTransitionCmd(), in.ID.String(), "--to", "TRANSFORMATION")
	require.Error(t, err)
	assert.Contains(t, out, "transition rejected (missing_approvals)")
	assert.Contains(t, out, "missing approval: PROJECT_MANAGER")
	assert.Contains(t, out, "missing approval: DATA_ARCHITECT")

	for _, a := range in.Approvals {
		if a.Stage == domain.StageIngestion {
			_, err := c.UpdateApproval(ctx, in.ID, a.ID, client.ApprovalUpdate{Approved: true, ApprovedBy: "Dana"})
			require.NoError(t, err)
		}
	}
	out, err = run(t, initiativesTransitionCmd(), in.ID.String(), "--to", "TRANSFORMATION")
	require.Error(t, err)
	assert.Contains(t, out, "incomplete: INGESTION exit gate")

	for _, item := range in.ChecklistItems {
		if item.Stage == domain.StageIngestion {
			_, err := c.UpdateChecklist(ctx, in.ID, item.ID, true)
			require.NoError(t, err)
		}
	}
	out, err = run(t, initiativesTransitionCmd(), in.ID.String(), "--to", "TRANSFORMATION", "--actor", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "Sales Lakehouse moved to TRANSFORMATION")
}

func TestTransitionCommandValidatesArgs(t *testing.T) {
	startAPI(t)

	_, err := run(t, initiativesTransitionCmd(), "not-a-uuid", "--to", "TRANSFORMATION")
	assert.Error(t, err)

	_, err = run(t, initiativesTransitionCmd(), "8a7f2f6e-4f7a-4e5b-9a61-0d6f1c1e2a3b")
	assert.EqualError(t, err, "--to is required")
}

func TestListShowAndOverviewCommands(t *testing.T) {
	c := startAPI(t)
	in, err := c.CreateInitiative(context.Background(), client.CreateInitiative{Name: "Churn Model", Description: "Predict subscriber churn monthly"})
	require.NoError(t, err)

	out, err := run(t, initiativesListCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "Churn Model")

	out, err = run(t, initiativesShowCmd(), in.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "INGESTION exit gate")
	assert.Contains(t, out, "PROJECT_MANAGER")
	assert.Contains(t, out, "Initiative created")

	out, err = run(t, overviewCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "Average cycle time: n/a")

	viper.Set("json", true)
	out, err = run(t, overviewCmd())
	require.NoError(t, err)
	var o overview.Overview
	require.NoError(t, json.Unmarshal([]byte(out), &o))
	assert.Equal(t, 1, o.ByStage[domain.StageIngestion])
}
