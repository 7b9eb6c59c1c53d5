package domain

import (
	"strings"
	"time"
)

// Reset clears an approval so a re-entered stage needs fresh sign-off.
func (a *StageApproval) Reset() {
	a.Approved = false
	a.ApprovedBy = nil
	a.ApprovedAt = nil
	a.Notes = nil
}

type ApprovalUpdate struct {
	Approved   bool
	ApprovedBy string
	Notes      *string
}

// Apply records a sign-off decision. Approving requires an approver name.
func (a *StageApproval) Apply(u ApprovalUpdate, now time.Time) error {
	by := strings.TrimSpace(u.ApprovedBy)
	if u.Approved && by == "" {
		return Invalid("Approver name is required when approving a stage.")
	}
	if by != "" && len(by) < 2 {
		return Invalid("approved_by must be at least 2 characters")
	}

	a.Approved = u.Approved
	a.Notes = u.Notes
	if u.Approved {
		a.ApprovedBy = &by
		a.ApprovedAt = &now
	} else {
		a.ApprovedBy = nil
		a.ApprovedAt = nil
	}
	return nil
}

func (c *ChecklistItem) SetCompleted(completed bool, now time.Time) {
	c.Completed = completed
	if completed {
		c.CompletedAt = &now
	} else {
		c.CompletedAt = nil
	}
}

type ScopeUpdate struct {
	Summary           *string
	Deliverables      *string
	Status            *SOWStatus
	PMApproved        *bool
	ArchitectApproved *bool
}

// Apply updates the scope of work. A DRAFT scope is promoted to APPROVED once
// both approvals are in place, unless the update names a status itself. The
// result may only be SIGNED_OFF when both approvals are true.
func (s *ScopeOfWork) Apply(u ScopeUpdate, now time.Time) error {
	if u.Summary != nil && len(strings.TrimSpace(*u.Summary)) < 10 {
		return Invalid("summary must be at least 10 characters")
	}
	if u.Deliverables != nil && len(strings.TrimSpace(*u.Deliverables)) < 10 {
		return Invalid("deliverables must be at least 10 characters")
	}
	if u.Status != nil && !u.Status.Valid() {
		return Invalid("invalid scope of work status")
	}

	next := *s
	next.LastReviewedAt = &now
	if u.Summary != nil {
		next.Summary = *u.Summary
	}
	if u.Deliverables != nil {
		next.Deliverables = *u.Deliverables
	}
	if u.Status != nil {
		next.Status = *u.Status
		if *u.Status == SOWSignedOff {
			next.SignedOffAt = &now
		} else {
			next.SignedOffAt = nil
		}
	}
	if u.PMApproved != nil {
		next.PMApproved = *u.PMApproved
		next.PMApprovedAt = stampIf(*u.PMApproved, now)
	}
	if u.ArchitectApproved != nil {
		next.ArchitectApproved = *u.ArchitectApproved
		next.ArchitectApprovedAt = stampIf(*u.ArchitectApproved, now)
	}

	approving := (u.PMApproved != nil && *u.PMApproved) || (u.ArchitectApproved != nil && *u.ArchitectApproved)
	if approving && u.Status == nil && s.Status == SOWDraft && next.PMApproved && next.ArchitectApproved {
		next.Status = SOWApproved
	}

	if next.Status == SOWSignedOff && !(next.PMApproved && next.ArchitectApproved) {
		return &ValidationError{
			Message: "SOW cannot be signed off without both approvals.",
			Details: map[string]any{"path": []string{"status"}},
		}
	}

	*s = next
	return nil
}

type RiskUpdate struct {
	Status         *RiskStatus
	MitigationPlan *string
	Owner          *string
	ResolvedAt     *time.Time
}

// Apply closes the loop on a risk. Closing without a resolution time stamps now.
func (r *Risk) Apply(u RiskUpdate, now time.Time) error {
	if u.Status != nil && !u.Status.Valid() {
		return Invalid("invalid risk status")
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.MitigationPlan != nil {
		r.MitigationPlan = *u.MitigationPlan
	}
	if u.Owner != nil {
		r.Owner = *u.Owner
	}
	switch {
	case u.ResolvedAt != nil:
		r.ResolvedAt = u.ResolvedAt
	case u.Status != nil && *u.Status == RiskClosed:
		r.ResolvedAt = &now
	}
	return nil
}

type AccessUpdate struct {
	Status    *AccessStatus
	Notes     *string
	Fulfilled *bool
}

// Apply keeps status and fulfilment time in step: GRANTED implies a
// fulfilment time, any other status clears it, and marking an access request
// fulfilled without a status grants it.
func (a *AccessProvision) Apply(u AccessUpdate, now time.Time) error {
	if u.Status != nil && !u.Status.Valid() {
		return Invalid("invalid access status")
	}
	if u.Notes != nil {
		a.Notes = *u.Notes
	}
	if u.Status != nil {
		a.Status = *u.Status
		if *u.Status == AccessGranted {
			if a.FulfilledAt == nil {
				a.FulfilledAt = &now
			}
		} else {
			a.FulfilledAt = nil
		}
	}
	if u.Fulfilled != nil {
		a.FulfilledAt = stampIf(*u.Fulfilled, now)
		if *u.Fulfilled && u.Status == nil {
			a.Status = AccessGranted
		}
	}
	return nil
}

func stampIf(set bool, now time.Time) *time.Time {
	if !set {
		return nil
	}
	return &now
}
