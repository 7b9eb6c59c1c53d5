package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/lifecycle"
)

func overviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show portfolio delivery health",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := apiClient().Overview(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if viper.GetBool("json") {
				return printJSON(out, o)
			}

			stages := table.NewWriter()
			stages.SetOutputMirror(out)
			stages.SetTitle("Initiatives by stage")
			stages.AppendHeader(table.Row{"Stage", "Count"})
			for _, s := range lifecycle.Sequence {
				stages.AppendRow(table.Row{s, o.ByStage[s]})
			}
			stages.Render()

			statuses := table.NewWriter()
			statuses.SetOutputMirror(out)
			statuses.SetTitle("Initiatives by status")
			statuses.AppendHeader(table.Row{"Status", "Count"})
			for _, s := range domain.InitiativeStatuses {
				statuses.AppendRow(table.Row{s, o.ByStatus[s]})
			}
			statuses.Render()

			cycle := "n/a"
			if o.AverageCycleTimeDays != nil {
				cycle = fmt.Sprintf("%d days", *o.AverageCycleTimeDays)
			}
			fmt.Fprintf(out, "Blocked dependencies: %d\nOverdue initiatives: %d\nAverage cycle time: %s\n",
				o.BlockedDependencies, o.OverdueInitiatives, cycle)

			if len(o.RiskHotspots) > 0 {
				risks := table.NewWriter()
				risks.SetOutputMirror(out)
				risks.SetTitle("Risk hotspots")
				risks.AppendHeader(table.Row{"Initiative", "Risk", "Severity"})
				for _, r := range o.RiskHotspots {
					risks.AppendRow(table.Row{r.InitiativeName, r.RiskTitle, r.Severity})
				}
				risks.Render()
			}
			return nil
		},
	}
}
