package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pilotgb/control-tower/internal/client"
	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/lifecycle"
)

func stagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List lifecycle stages in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if viper.GetBool("json") {
				return printJSON(out, lifecycle.Sequence)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(out)
			tw.AppendHeader(table.Row{"#", "Stage", "Next"})
			for i, s := range lifecycle.Sequence {
				next, ok := lifecycle.Next(s)
				nextName := "-"
				if ok {
					nextName = string(next)
				}
				tw.AppendRow(table.Row{i + 1, s, nextName})
			}
			tw.Render()
			return nil
		},
	}
}

func initiativesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "initiatives", Aliases: []string{"in"}, Short: "Inspect and move initiatives"}
	cmd.AddCommand(initiativesListCmd())
	cmd.AddCommand(initiativesShowCmd())
	cmd.AddCommand(initiativesTransitionCmd())
	return cmd
}

func initiativesListCmd() *cobra.Command {
	var f client.ListFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List initiatives",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := apiClient().ListInitiatives(cmd.Context(), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if viper.GetBool("json") {
				return printJSON(out, list)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(out)
			tw.AppendHeader(table.Row{"ID", "Name", "Stage", "Status", "Health", "Risk", "Target"})
			for _, in := range list {
				target := ""
				if in.TargetDate != nil {
					target = in.TargetDate.Format("2006-01-02")
				}
				tw.AppendRow(table.Row{in.ID, in.Name, in.Stage, in.Status, in.HealthStatus, in.RiskLevel, target})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Stage, "stage", "", "stage filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.HealthStatus, "health", "", "health status filter")
	return cmd
}

func initiativesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show an initiative with its exit gate state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id %q", args[0])
			}
			in, err := apiClient().GetInitiative(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if viper.GetBool("json") {
				return printJSON(out, in)
			}
			printInitiative(out, in)
			return nil
		},
	}
}

func printInitiative(w io.Writer, in *domain.Initiative) {
	fmt.Fprintf(w, "%s (%s)\n", in.Name, in.ID)
	fmt.Fprintf(w, "Stage: %s  Status: %s  Health: %s  Risk: %s\n", in.Stage, in.Status, in.HealthStatus, in.RiskLevel)
	if in.ScopeOfWork != nil {
		fmt.Fprintf(w, "Scope of Work: %s (PM approved: %t, architect approved: %t)\n",
			in.ScopeOfWork.Status, in.ScopeOfWork.PMApproved, in.ScopeOfWork.ArchitectApproved)
	}

	gate := table.NewWriter()
	gate.SetOutputMirror(w)
	gate.SetTitle("Exit gate: " + string(in.Stage))
	gate.AppendHeader(table.Row{"Check", "Item", "Done"})
	for _, item := range in.ChecklistItems {
		if item.Stage == in.Stage {
			gate.AppendRow(table.Row{"checklist", item.Title, item.Completed})
		}
	}
	for _, a := range in.Approvals {
		if a.Stage == in.Stage {
			gate.AppendRow(table.Row{"approval", a.Role, a.Approved})
		}
	}
	gate.Render()

	if len(in.StageHistory) > 0 {
		hist := table.NewWriter()
		hist.SetOutputMirror(w)
		hist.SetTitle("History")
		hist.AppendHeader(table.Row{"When", "From", "To", "Actor", "Reason"})
		for _, h := range in.StageHistory {
			from := "-"
			if h.FromStage != nil {
				from = string(*h.FromStage)
			}
			hist.AppendRow(table.Row{h.CreatedAt.Format("2006-01-02 15:04"), from, h.ToStage, h.Actor, h.Reason})
		}
		hist.Render()
	}
}

func initiativesTransitionCmd() *cobra.Command {
	var t client.Transition
	cmd := &cobra.Command{
		Use:   "transition ID",
		Short: "Request a stage transition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid initiative id %q", args[0])
			}
			if t.TargetStage == "" {
				return errors.New("--to is required")
			}
			t.TargetStage = strings.ToUpper(t.TargetStage)

			out := cmd.OutOrStdout()
			in, err := apiClient().Transition(cmd.Context(), id, t)
			if err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && apiErr.Kind != "" {
					printRejection(out, apiErr)
				}
				return err
			}
			if viper.GetBool("json") {
				return printJSON(out, in)
			}
			fmt.Fprintf(out, "%s moved to %s (status %s)\n", in.Name, in.Stage, in.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&t.TargetStage, "to", "", "target stage")
	cmd.Flags().StringVar(&t.Reason, "reason", "", "reason recorded in stage history")
	cmd.Flags().StringVar(&t.Actor, "actor", "", "actor recorded in stage history")
	cmd.Flags().BoolVar(&t.AllowRegression, "allow-regression", false, "allow moving to an earlier stage")
	return cmd
}

// printRejection lists what blocks a rejected transition.
func printRejection(w io.Writer, e *client.APIError) {
	fmt.Fprintf(w, "transition rejected (%s): %s\n", e.Kind, e.Message)
	if roles, ok := e.Details["missing_approvals"].([]any); ok {
		for _, r := range roles {
			fmt.Fprintf(w, "  missing approval: %v\n", r)
		}
	}
	if items, ok := e.Details["incomplete_checklist_items"].([]any); ok {
		for _, it := range items {
			if m, ok := it.(map[string]any); ok {
				fmt.Fprintf(w, "  incomplete: %v (%v)\n", m["title"], m["id"])
			}
		}
	}
}
