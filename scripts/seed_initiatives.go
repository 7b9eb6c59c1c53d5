// seed_initiatives.go: standalone script to seed initiatives from a YAML file via the control tower API.
//
// Usage:
//
//	go run scripts/seed_initiatives.go -file scripts/seed/initiatives.yaml -api http://localhost:4000
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pilotgb/control-tower/internal/client"
	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/lifecycle"
)

type seedFile struct {
	Initiatives []seedInitiative `yaml:"initiatives"`
}

type seedInitiative struct {
	Name           string                    `yaml:"name"`
	Description    string                    `yaml:"description"`
	SOWReference   string                    `yaml:"sow_reference"`
	EngagementLead string                    `yaml:"engagement_lead"`
	ProjectManager string                    `yaml:"project_manager"`
	DataArchitect  string                    `yaml:"data_architect"`
	StartDate      *time.Time                `yaml:"start_date"`
	TargetDate     *time.Time                `yaml:"target_date"`
	HealthStatus   string                    `yaml:"health_status"`
	RiskLevel      string                    `yaml:"risk_level"`
	AdvanceTo      string                    `yaml:"advance_to"`
	Assets         []client.CreateAsset      `yaml:"assets"`
	Risks          []client.CreateRisk       `yaml:"risks"`
	Dependencies   []client.CreateDependency `yaml:"dependencies"`
}

const seedActor = "seed"

func main() {
	path := flag.String("file", "scripts/seed/initiatives.yaml", "path to YAML seed file")
	apiURL := flag.String("api", "http://localhost:4000", "control tower API base URL")
	dryRun := flag.Bool("dry-run", false, "print initiatives without posting")
	flag.Parse()

	data, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("read seed file: %v", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		log.Fatalf("parse seed file: %v", err)
	}
	log.Printf("parsed %d initiatives from %s", len(seed.Initiatives), *path)

	if *dryRun {
		for i, s := range seed.Initiatives {
			advance := s.AdvanceTo
			if advance == "" {
				advance = string(domain.StageIngestion)
			}
			fmt.Printf("[%d] %s (stage=%s, assets=%d, risks=%d, dependencies=%d)\n",
				i+1, s.Name, advance, len(s.Assets), len(s.Risks), len(s.Dependencies))
		}
		return
	}

	ctx := context.Background()
	c := client.NewHTTPClient(*apiURL)
	created, skipped := 0, 0
	for _, s := range seed.Initiatives {
		if err := seedOne(ctx, c, s); err != nil {
			log.Printf("skip %q: %v", s.Name, err)
			skipped++
			continue
		}
		created++
	}
	log.Printf("done: %d created, %d skipped", created, skipped)
}

func seedOne(ctx context.Context, c *client.HTTPClient, s seedInitiative) error {
	in, err := c.CreateInitiative(ctx, client.CreateInitiative{
		Name:           s.Name,
		Description:    s.Description,
		SOWReference:   s.SOWReference,
		EngagementLead: s.EngagementLead,
		ProjectManager: s.ProjectManager,
		DataArchitect:  s.DataArchitect,
		StartDate:      s.StartDate,
		TargetDate:     s.TargetDate,
		HealthStatus:   s.HealthStatus,
		RiskLevel:      s.RiskLevel,
	})
	if err != nil {
		return err
	}

	for _, a := range s.Assets {
		if _, err := c.CreateAsset(ctx, in.ID, a); err != nil {
			return fmt.Errorf("asset %q: %w", a.Name, err)
		}
	}
	for _, r := range s.Risks {
		if _, err := c.CreateRisk(ctx, in.ID, r); err != nil {
			return fmt.Errorf("risk %q: %w", r.Title, err)
		}
	}
	for _, d := range s.Dependencies {
		if _, err := c.CreateDependency(ctx, in.ID, d); err != nil {
			return fmt.Errorf("dependency %q: %w", d.Name, err)
		}
	}

	if s.AdvanceTo == "" {
		return nil
	}
	target, err := lifecycle.ParseStage(s.AdvanceTo)
	if err != nil {
		return err
	}
	return advance(ctx, c, in, target)
}

// advance walks an initiative forward one stage at a time, satisfying each
// exit gate on the way.
func advance(ctx context.Context, c *client.HTTPClient, in *domain.Initiative, target domain.Stage) error {
	yes := true
	if _, err := c.UpdateScope(ctx, in.ID, client.ScopeUpdate{PMApproved: &yes, ArchitectApproved: &yes}); err != nil {
		return fmt.Errorf("approve scope: %w", err)
	}

	for lifecycle.Index(in.Stage) < lifecycle.Index(target) {
		next, _ := lifecycle.Next(in.Stage)
		if next == domain.StageDeployment {
			signedOff := string(domain.SOWSignedOff)
			if _, err := c.UpdateScope(ctx, in.ID, client.ScopeUpdate{Status: &signedOff}); err != nil {
				return fmt.Errorf("sign off scope: %w", err)
			}
		}
		for _, a := range in.Approvals {
			if a.Stage != in.Stage || a.Approved {
				continue
			}
			if _, err := c.UpdateApproval(ctx, in.ID, a.ID, client.ApprovalUpdate{Approved: true, ApprovedBy: seedActor}); err != nil {
				return fmt.Errorf("approve %s %s: %w", a.Stage, a.Role, err)
			}
		}
		for _, item := range in.ChecklistItems {
			if item.Stage != in.Stage || item.Completed {
				continue
			}
			if _, err := c.UpdateChecklist(ctx, in.ID, item.ID, true); err != nil {
				return fmt.Errorf("complete %q: %w", item.Title, err)
			}
		}

		moved, err := c.Transition(ctx, in.ID, client.Transition{TargetStage: string(next), Actor: seedActor, Reason: "Seeded"})
		if err != nil {
			return fmt.Errorf("transition to %s: %w", next, err)
		}
		in = moved
	}
	return nil
}
