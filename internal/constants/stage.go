package constants

// Stage names a fixed vault folder representing a task's lifecycle position.
// A task file lives in exactly one stage folder at any instant; renaming
// between folders is the only legal transition.
//
// Lifecycle:
//
//	Intake → InProgress/<agent>
//	InProgress → Done, Failed, PendingApproval (staged by the worker)
//	PendingApproval → Approved, Rejected (moved by a human)
//	Approved → Done, Rejected (moved by the dispatcher)
//	InProgress → Intake (startup crash recovery only)
type Stage string

const (
	// StageIntake holds newly produced tasks waiting to be claimed.
	StageIntake Stage = "Intake"

	// StageInProgress holds claimed tasks, partitioned per agent
	// (InProgress/<agent>/) so concurrent orchestrators never collide.
	StageInProgress Stage = "InProgress"

	// StagePlan holds plan artifacts, one per task, produced at most once.
	StagePlan Stage = "Plan"

	// StagePendingApproval holds drafts staged by the worker for human review.
	StagePendingApproval Stage = "PendingApproval"

	// StageApproved holds drafts a human has released for sending.
	StageApproved Stage = "Approved"

	// StageRejected holds drafts a human declined or the dispatcher gave up on.
	StageRejected Stage = "Rejected"

	// StageDone holds completed tasks and sent drafts.
	StageDone Stage = "Done"

	// StageFailed holds tasks that timed out or exhausted their iteration budget.
	StageFailed Stage = "Failed"

	// StageLogs holds the per-day markdown activity log.
	StageLogs Stage = "Logs"
)

// AllStages returns every stage folder in creation order.
func AllStages() []Stage {
	return []Stage{
		StageIntake,
		StageInProgress,
		StagePlan,
		StagePendingApproval,
		StageApproved,
		StageRejected,
		StageDone,
		StageFailed,
		StageLogs,
	}
}

// String returns the stage's folder name.
func (s Stage) String() string {
	return string(s)
}

// IsValid reports whether s is one of the defined stages.
func (s Stage) IsValid() bool {
	switch s {
	case StageIntake, StageInProgress, StagePlan, StagePendingApproval,
		StageApproved, StageRejected, StageDone, StageFailed, StageLogs:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a task resting in s has reached a final outcome.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed || s == StageRejected
}
