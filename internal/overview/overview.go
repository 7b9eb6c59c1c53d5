package overview

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/pilotgb/control-tower/internal/domain"
	"github.com/pilotgb/control-tower/internal/lifecycle"
	"github.com/pilotgb/control-tower/internal/store"
)

// RiskHotspot is an open HIGH or CRITICAL risk.
type RiskHotspot struct {
	InitiativeID   uuid.UUID        `json:"initiative_id"`
	InitiativeName string           `json:"initiative_name"`
	RiskID         uuid.UUID        `json:"risk_id"`
	RiskTitle      string           `json:"risk_title"`
	Severity       domain.RiskLevel `json:"severity"`
}

type Overview struct {
	ByStage              map[domain.Stage]int            `json:"by_stage"`
	ByStatus             map[domain.InitiativeStatus]int `json:"by_status"`
	Health               map[domain.HealthStatus]int     `json:"health"`
	RiskHotspots         []RiskHotspot                   `json:"risk_hotspots"`
	BlockedDependencies  int                             `json:"blocked_dependencies"`
	OverdueInitiatives   int                             `json:"overdue_initiatives"`
	AverageCycleTimeDays *int                            `json:"average_cycle_time_days"`
	GeneratedAt          time.Time                       `json:"generated_at"`
}

// Source is the read side of the store the overview needs.
type Source interface {
	ListInitiatives(ctx context.Context, filter store.InitiativeFilter) ([]*domain.Initiative, error)
	CountDependencies(ctx context.Context, status domain.DependencyStatus) (int, error)
}

// Load reads the whole portfolio from src and computes the overview at now.
func Load(ctx context.Context, src Source, now time.Time) (*Overview, error) {
	initiatives, err := src.ListInitiatives(ctx, store.InitiativeFilter{})
	if err != nil {
		return nil, fmt.Errorf("list initiatives: %w", err)
	}
	blocked, err := src.CountDependencies(ctx, domain.DependencyBlocked)
	if err != nil {
		return nil, fmt.Errorf("count blocked dependencies: %w", err)
	}
	return Compute(initiatives, blocked, now), nil
}

// Compute aggregates delivery health. Every stage, status and health value is
// present in the maps, with zero counts where nothing matches.
func Compute(initiatives []*domain.Initiative, blockedDependencies int, now time.Time) *Overview {
	o := &Overview{
		ByStage:             make(map[domain.Stage]int, len(lifecycle.Sequence)),
		ByStatus:            make(map[domain.InitiativeStatus]int, len(domain.InitiativeStatuses)),
		Health:              make(map[domain.HealthStatus]int, len(domain.HealthStatuses)),
		RiskHotspots:        []RiskHotspot{},
		BlockedDependencies: blockedDependencies,
		GeneratedAt:         now,
	}
	for _, s := range lifecycle.Sequence {
		o.ByStage[s] = 0
	}
	for _, s := range domain.InitiativeStatuses {
		o.ByStatus[s] = 0
	}
	for _, h := range domain.HealthStatuses {
		o.Health[h] = 0
	}

	var cycleDays []float64
	for _, in := range initiatives {
		o.ByStage[in.Stage]++
		o.ByStatus[in.Status]++
		o.Health[in.HealthStatus]++

		for _, r := range in.Risks {
			if r.Status == domain.RiskOpen && (r.Severity == domain.RiskHigh || r.Severity == domain.RiskCritical) {
				o.RiskHotspots = append(o.RiskHotspots, RiskHotspot{
					InitiativeID:   in.ID,
					InitiativeName: in.Name,
					RiskID:         r.ID,
					RiskTitle:      r.Title,
					Severity:       r.Severity,
				})
			}
		}

		if in.TargetDate != nil && in.TargetDate.Before(now) && in.Status != domain.StatusComplete {
			o.OverdueInitiatives++
		}

		if n := len(in.StageHistory); n >= 2 {
			span := in.StageHistory[n-1].CreatedAt.Sub(in.StageHistory[0].CreatedAt)
			cycleDays = append(cycleDays, math.Round(span.Hours()/24))
		}
	}

	if len(cycleDays) > 0 {
		var sum float64
		for _, d := range cycleDays {
			sum += d
		}
		avg := int(math.Round(sum / float64(len(cycleDays))))
		o.AverageCycleTimeDays = &avg
	}
	return o
}
