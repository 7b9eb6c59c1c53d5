package lifecycle

import (
	"errors"

	"github.com/google/uuid"

	"github.com/pilotgb/control-tower/internal/domain"
)

// ErrorKind classifies a rejected transition.
type ErrorKind string

const (
	KindUnknownStage         ErrorKind = "unknown_stage"
	KindNoOpTransition       ErrorKind = "no_op_transition"
	KindStageSkip            ErrorKind = "stage_skip"
	KindRegressionNotAllowed ErrorKind = "regression_not_allowed"
	KindScopeNotApproved     ErrorKind = "scope_not_approved"
	KindScopeNotSignedOff    ErrorKind = "scope_not_signed_off"
	KindMissingApprovals     ErrorKind = "missing_approvals"
	KindIncompleteChecklist  ErrorKind = "incomplete_checklist"
)

// ChecklistRef identifies an unfinished exit checklist item.
type ChecklistRef struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// TransitionError is returned for every rejected transition. Only the field
// matching Kind carries data.
type TransitionError struct {
	Kind             ErrorKind
	Message          string
	MissingApprovals []domain.ApprovalRole
	IncompleteItems  []ChecklistRef
}

func (e *TransitionError) Error() string { return e.Message }

// Details is the structured payload shown to API clients.
func (e *TransitionError) Details() map[string]any {
	switch e.Kind {
	case KindMissingApprovals:
		return map[string]any{"missing_approvals": e.MissingApprovals}
	case KindIncompleteChecklist:
		return map[string]any{"incomplete_checklist_items": e.IncompleteItems}
	}
	return nil
}

func newError(kind ErrorKind, msg string) *TransitionError {
	return &TransitionError{Kind: kind, Message: msg}
}

// KindOf returns the kind of a TransitionError anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}
