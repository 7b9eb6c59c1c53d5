package events

const (
	SubjectOverviewStats      = "controltower.overview.stats"
	SubjectAnyStageTransition = "controltower.initiative.*.stage.transitioned"

	StreamName     = "CONTROL_TOWER_EVENTS"
	StreamSubjects = "controltower.>"
	StreamMaxAge   = "2160h" // 90 days
)

func initiativeSubject(id, event string) string { return "controltower.initiative." + id + "." + event }

func SubjectInitiativeCreated(id string) string  { return initiativeSubject(id, "created") }
func SubjectInitiativeUpdated(id string) string  { return initiativeSubject(id, "updated") }
func SubjectStageTransitioned(id string) string  { return initiativeSubject(id, "stage.transitioned") }
func SubjectTransitionRejected(id string) string { return initiativeSubject(id, "transition.rejected") }
func SubjectChecklistUpdated(id string) string   { return initiativeSubject(id, "checklist.updated") }
func SubjectApprovalUpdated(id string) string    { return initiativeSubject(id, "approval.updated") }
func SubjectScopeUpdated(id string) string       { return initiativeSubject(id, "sow.updated") }
func SubjectAssetRegistered(id string) string    { return initiativeSubject(id, "asset.registered") }
func SubjectRiskRecorded(id string) string       { return initiativeSubject(id, "risk.recorded") }
func SubjectRiskUpdated(id string) string        { return initiativeSubject(id, "risk.updated") }
func SubjectDependencyRecorded(id string) string { return initiativeSubject(id, "dependency.recorded") }
func SubjectAccessUpdated(id string) string      { return initiativeSubject(id, "access.updated") }
func SubjectMemberAssigned(id string) string     { return initiativeSubject(id, "member.assigned") }
func SubjectMemberOnboarding(id string) string   { return initiativeSubject(id, "member.onboarding") }

