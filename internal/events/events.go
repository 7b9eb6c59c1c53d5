package events

import "time"

type InitiativeEvent struct {
	InitiativeID string    `json:"initiative_id"`
	Name         string    `json:"name"`
	Stage        string    `json:"stage"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

type StageTransitionedEvent struct {
	InitiativeID string    `json:"initiative_id"`
	FromStage    string    `json:"from_stage"`
	ToStage      string    `json:"to_stage"`
	Status       string    `json:"status"`
	Actor        string    `json:"actor"`
	Reason       string    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type TransitionRejectedEvent struct {
	InitiativeID string         `json:"initiative_id"`
	TargetStage  string         `json:"target_stage"`
	Kind         string         `json:"kind"`
	Message      string         `json:"message"`
	Details      map[string]any `json:"details,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// RecordEvent covers the child records of an initiative: checklist items,
// approvals, scope of work, assets, risks, dependencies, access and members.
type RecordEvent struct {
	InitiativeID string    `json:"initiative_id"`
	RecordID     string    `json:"record_id"`
	Stage        string    `json:"stage,omitempty"`
	Status       string    `json:"status,omitempty"`
	Name         string    `json:"name,omitempty"`
	Completed    *bool     `json:"completed,omitempty"`
	Approved     *bool     `json:"approved,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type OverviewStatsEvent struct {
	TotalInitiatives    int            `json:"total_initiatives"`
	StageDistribution   map[string]int `json:"stage_distribution"`
	StatusDistribution  map[string]int `json:"status_distribution"`
	RiskHotspots        int            `json:"risk_hotspots"`
	BlockedDependencies int            `json:"blocked_dependencies"`
	Overdue             int            `json:"overdue_initiatives"`
	Timestamp           time.Time      `json:"timestamp"`
}
