// Package constants provides centralized constant values used throughout OpsDesk.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Root-level context documents. They are read-only inputs to prompt
// construction; a missing document is a warning, never an error.
const (
	HandbookFileName  = "Handbook.md"
	DashboardFileName = "Dashboard.md"
	GoalsFileName     = "Goals.md"
)

// ContextDocNames returns the root-level context documents in the order
// prompts reference them.
func ContextDocNames() []string {
	return []string{HandbookFileName, DashboardFileName, GoalsFileName}
}

// Directory names and paths used by OpsDesk for its own data.
const (
	// OpsDeskHome is the hidden directory name where OpsDesk stores
	// configuration and operational logs, created in the user's home directory.
	OpsDeskHome = ".opsdesk"

	// LogsDir is the directory name under OpsDeskHome where operational
	// log files are stored.
	LogsDir = "logs"

	// LogFileName is the rotating operational log file name.
	LogFileName = "opsdesk.log"

	// ConfigFileName is the config file name looked up in both the global
	// and project config directories.
	ConfigFileName = "config.yaml"
)

// Operational log rotation settings.
const (
	// LogMaxSizeMB is the size at which the operational log rotates.
	LogMaxSizeMB = 10

	// LogMaxBackups is how many rotated log files are kept.
	LogMaxBackups = 3

	// LogMaxAgeDays is how long rotated log files are kept.
	LogMaxAgeDays = 30

	// LogCompress enables gzip compression of rotated log files.
	LogCompress = true
)

// CompletionMarker is the literal token the reasoning worker emits to signal
// explicit task completion. Its presence is authoritative; its absence after a
// successful run is handled by the loop's completion policy.
const CompletionMarker = "<promise>TASK_COMPLETE</promise>"

// DefaultAgentID identifies this orchestrator instance in InProgress/<agent>
// and in activity log entries.
const DefaultAgentID = "orchestrator"

// Orchestration defaults.
const (
	// DefaultPollInterval is how often the controller scans Intake.
	DefaultPollInterval = 10 * time.Second

	// DefaultRetryDelay is the pause after a poll-cycle error before the
	// controller tries again.
	DefaultRetryDelay = 5 * time.Second

	// DefaultClaimTimeout bounds how long a claim waits on a held lock.
	// At least one acquisition attempt is always made.
	DefaultClaimTimeout = 10 * time.Second

	// ClaimRetryInterval is the pause between lock acquisition attempts.
	ClaimRetryInterval = 100 * time.Millisecond

	// StaleLockAge is the age past which an Intake sidecar lock is treated
	// as debris from a crashed claim and removed at startup. Healthy claims
	// hold the lock for milliseconds.
	StaleLockAge = 5 * time.Minute
)

// Execution loop defaults.
const (
	// DefaultMaxIterations bounds worker invocations per task.
	DefaultMaxIterations = 10

	// DefaultCheckInterval is the pause between loop iterations.
	DefaultCheckInterval = 5 * time.Second

	// DefaultWorkerTimeout bounds a single worker invocation. A timeout is
	// terminal for the task: it signals work beyond what the worker can
	// safely handle.
	DefaultWorkerTimeout = 15 * time.Minute

	// MaxPromptBytes is the upper bound on a work request.
	MaxPromptBytes = 1 << 20
)

// Approval dispatcher defaults.
const (
	// DefaultDispatchInterval is how often the dispatcher scans Approved.
	DefaultDispatchInterval = 15 * time.Second

	// MaxSendAttempts bounds channel transmission attempts per draft.
	MaxSendAttempts = 3

	// SendBackoffInitial is the first retry delay for transient send errors.
	SendBackoffInitial = 1 * time.Second

	// SendBackoffCap is the ceiling for the doubling send backoff.
	SendBackoffCap = 60 * time.Second

	// SocialHelperTimeout bounds one social helper command invocation.
	SocialHelperTimeout = 2 * time.Minute
)

// DefaultERPTimeout bounds a single ERP HTTP request, including report
// rendering on the server side.
const DefaultERPTimeout = 30 * time.Second

// File and directory permissions for vault contents.
const (
	// DirPerm restricts vault directories to owner and group.
	DirPerm = 0o750

	// FilePerm restricts vault files to the owner.
	FilePerm = 0o600
)

// TaskFileExt is the extension task and draft documents carry.
const TaskFileExt = ".md"

// LockFileSuffix is appended to a task path to form its claim lock sidecar.
const LockFileSuffix = ".lock"
