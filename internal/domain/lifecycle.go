package domain

import "github.com/google/uuid"

// LifecycleState is the slice of an initiative the lifecycle gate reads when
// deciding a transition. Stores load it under a row lock.
type LifecycleState struct {
	InitiativeID   uuid.UUID
	Stage          Stage
	Status         InitiativeStatus
	ChecklistItems []ChecklistItem
	Approvals      []StageApproval
	ScopeOfWork    *ScopeOfWork
}

// TransitionPlan is the accepted outcome of a transition request. Stores
// apply it as one unit: history entry, approval reset on To, stage + status.
type TransitionPlan struct {
	From   Stage
	To     Stage
	Status InitiativeStatus
	Actor  string
	Reason string
}

// TransitionDecider validates a locked lifecycle state and returns the plan to
// apply. A non-nil error aborts the transition without writes.
type TransitionDecider func(state *LifecycleState) (*TransitionPlan, error)
