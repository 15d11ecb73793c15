package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries is the pre-built mapping of sentinel errors to their user-facing messages.
// This single source of truth ensures UserMessage and Actionable stay in sync.
// Using a slice (not a map) because errors.Is() requires proper error chain traversal.
//
//nolint:gochecknoglobals // Pre-built mapping for efficiency
var errorInfoEntries = []errorEntry{
	// ===================
	// Vault & locking
	// ===================
	{
		err: ErrVaultUnavailable,
		info: ErrorInfo{
			Message: "The vault directory could not be created or opened.",
			Action:  "Check the vault path in your config and its filesystem permissions.",
		},
	},
	{
		err: ErrPathOutsideVault,
		info: ErrorInfo{
			Message: "A file path resolved outside the vault and was refused.",
			Action:  "Inspect the offending task or draft for suspicious paths before retrying.",
		},
	},
	{
		err: ErrLockTimeout,
		info: ErrorInfo{
			Message: "Could not acquire the claim lock within the timeout.",
			Action:  "Another orchestrator may be running. If not, remove stale .lock files from Intake/.",
		},
	},

	// ===================
	// Worker execution
	// ===================
	{
		err: ErrNoWorkerAvailable,
		info: ErrorInfo{
			Message: "No reasoning worker CLI was found on PATH.",
			Action:  "Install one of: claude, gemini, codex, or adjust worker.fallback_order.",
		},
	},
	{
		err: ErrWorkerTimeout,
		info: ErrorInfo{
			Message: "The worker exceeded its time limit and the task was failed.",
			Action:  "Split the task into smaller pieces or raise worker.timeout.",
		},
	},
	{
		err: ErrRateLimited,
		info: ErrorInfo{
			Message: "The worker reported a rate limit.",
			Action:  "OpsDesk falls back to the next worker automatically; check provider quotas if all are limited.",
		},
	},
	{
		err: ErrMaxIterations,
		info: ErrorInfo{
			Message: "The task did not complete within the iteration budget and was failed.",
			Action:  "Review the task in Failed/ and the day's activity log, then re-file it.",
		},
	},
	{
		err: ErrValidation,
		info: ErrorInfo{
			Message: "The work request failed validation and was not sent to the worker.",
			Action:  "Check that the task file is non-empty and the vault path is absolute.",
		},
	},

	// ===================
	// Dispatch & channels
	// ===================
	{
		err: ErrParse,
		info: ErrorInfo{
			Message: "The approved draft could not be parsed and was moved to Rejected/.",
			Action:  "Fix the draft's front-matter (to/subject/action) and move it back to Approved/.",
		},
	},
	{
		err: ErrChannelSend,
		info: ErrorInfo{
			Message: "The channel refused the message permanently.",
			Action:  "Check the rejection reason in the filename and the channel credentials in config.",
		},
	},
	{
		err: ErrUnknownChannel,
		info: ErrorInfo{
			Message: "No sender is configured for the draft's channel.",
			Action:  "Add the channel section to your config or correct the draft's action field.",
		},
	},

	// ===================
	// ERP enrichment
	// ===================
	{
		err: ErrDocumentNotFound,
		info: ErrorInfo{
			Message: "The referenced document id does not exist in the ERP.",
			Action:  "Verify the invoice id in the draft front-matter.",
		},
	},
	{
		err: ErrDocumentNotReady,
		info: ErrorInfo{
			Message: "The referenced document is not posted yet, so no PDF was produced.",
			Action:  "Post the invoice in the ERP, then re-approve the draft.",
		},
	},
	{
		err: ErrAuthFailed,
		info: ErrorInfo{
			Message: "An external service rejected the configured credentials.",
			Action:  "Update the credentials in ~/.opsdesk/config.yaml or the environment.",
		},
	},

	// ===================
	// Configuration & CLI
	// ===================
	{
		err: ErrConfigNotFound,
		info: ErrorInfo{
			Message: "No configuration file was found.",
			Action:  "Run 'opsdesk init' to create one, or pass --config.",
		},
	},
	{
		err: ErrConfigInvalid,
		info: ErrorInfo{
			Message: "The configuration failed validation.",
			Action:  "Check the reported field against the documented schema.",
		},
	},
	{
		err: ErrNonInteractiveMode,
		info: ErrorInfo{
			Message: "This command needs an interactive terminal.",
			Action:  "Run it from a terminal, or move the files between stage folders by hand.",
		},
	},
}

// errorInfoMap provides O(1) lookup for direct sentinel error matches.
// Built once from errorInfoEntries during package initialization.
//
//nolint:gochecknoglobals // Pre-built mapping for O(1) lookup performance
var errorInfoMap = buildErrorInfoMap()

// buildErrorInfoMap creates a map from the errorInfoEntries slice.
// This is called once during package init for O(1) direct lookups.
func buildErrorInfoMap() map[error]ErrorInfo {
	m := make(map[error]ErrorInfo, len(errorInfoEntries))
	for _, entry := range errorInfoEntries {
		m[entry.err] = entry.info
	}
	return m
}

// getErrorInfo looks up the ErrorInfo for a given error.
// It first tries O(1) direct map lookup for unwrapped sentinel errors,
// then falls back to errors.Is() traversal for wrapped errors.
// Returns an ErrorInfo with the original error message if not found.
func getErrorInfo(err error) ErrorInfo {
	// Fast path: O(1) lookup for direct sentinel errors
	if info, ok := errorInfoMap[err]; ok {
		return info
	}

	// Slow path: errors.Is() for wrapped errors
	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}

	return ErrorInfo{Message: err.Error()}
}

// UserMessage returns a user-friendly message for common errors.
// This function maps sentinel errors to helpful, actionable messages
// that are suitable for display to end users.
//
// For unrecognized errors, it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns a user-friendly error message along with a suggested
// action the user can take to resolve or work around the issue.
//
// For errors that are not recoverable or have no clear action, the action
// string will be empty.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}
