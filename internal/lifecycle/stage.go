package lifecycle

import (
	"strings"

	"github.com/pilotgb/control-tower/internal/domain"
)

// Sequence is the fixed lifecycle order. Skip and regression detection is
// based on positions in this slice only.
var Sequence = []domain.Stage{
	domain.StageIngestion,
	domain.StageTransformation,
	domain.StageEnrichment,
	domain.StageValidation,
	domain.StageVisualization,
	domain.StageDeployment,
}

// Index returns the position of stage in Sequence, or -1 if it is unknown.
func Index(stage domain.Stage) int {
	for i, s := range Sequence {
		if s == stage {
			return i
		}
	}
	return -1
}

// Next returns the stage after current. ok is false for DEPLOYMENT and for
// unknown stages.
func Next(current domain.Stage) (domain.Stage, bool) {
	i := Index(current)
	if i == -1 || i >= len(Sequence)-1 {
		return "", false
	}
	return Sequence[i+1], true
}

// ParseStage accepts a stage name in any case.
func ParseStage(s string) (domain.Stage, error) {
	stage := domain.Stage(strings.ToUpper(strings.TrimSpace(s)))
	if Index(stage) == -1 {
		return "", newError(KindUnknownStage, "Unknown stage transition")
	}
	return stage, nil
}

// ValidateStageOrder checks that target is reachable from current: exactly one
// step forward, or any step backward when allowRegression is set.
func ValidateStageOrder(current, target domain.Stage, allowRegression bool) error {
	from := Index(current)
	to := Index(target)

	if from == -1 || to == -1 {
		return newError(KindUnknownStage, "Unknown stage transition")
	}
	if to == from {
		return newError(KindNoOpTransition, "Initiative is already in the requested stage")
	}
	if to == from+1 {
		return nil
	}
	if to > from+1 {
		return newError(KindStageSkip, "Cannot skip stages in lifecycle progression")
	}
	if !allowRegression {
		return newError(KindRegressionNotAllowed, "Stage regression is not permitted without override")
	}
	return nil
}
