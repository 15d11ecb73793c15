// Package errors provides centralized error handling for OpsDesk.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
// Retry and routing decisions elsewhere in the codebase are made exclusively
// against these sentinels, never by matching message strings.
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrValidation indicates malformed input to an operation (bad file
	// name, empty or oversized prompt, bad working directory). Never
	// retried; the operation fails immediately.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyPrompt indicates a work request with no content.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrPromptTooLarge indicates a work request above the size cap.
	ErrPromptTooLarge = errors.New("prompt exceeds size limit")

	// ErrWorkingDirInvalid indicates the worker's target directory is
	// missing or not absolute.
	ErrWorkingDirInvalid = errors.New("working directory invalid")

	// ErrLockTimeout indicates a claim lock could not be acquired within
	// the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrTaskVanished indicates a task file disappeared between listing
	// and claiming. Treated like a claim conflict by callers.
	ErrTaskVanished = errors.New("task no longer exists")

	// ErrWorkerTransient indicates a worker subprocess failure that may
	// succeed on a later iteration.
	ErrWorkerTransient = errors.New("worker execution failed")

	// ErrWorkerTimeout indicates a worker invocation exceeded its deadline.
	// Non-retryable: the task moves straight to Failed.
	ErrWorkerTimeout = errors.New("worker timed out")

	// ErrRateLimited indicates the worker's output carried a rate-limit
	// signature. Triggers fallback to the next worker without consuming
	// an iteration.
	ErrRateLimited = errors.New("worker rate limited")

	// ErrNoWorkerAvailable indicates no worker binary from the fallback
	// order is installed.
	ErrNoWorkerAvailable = errors.New("no reasoning worker available")

	// ErrMaxIterations indicates the execution loop exhausted its
	// iteration budget without a completion signal.
	ErrMaxIterations = errors.New("max iterations exceeded")

	// ErrParse indicates a draft could not be parsed into an outbound
	// action. The draft moves to Rejected.
	ErrParse = errors.New("draft parse failed")

	// ErrMissingField indicates a draft lacks a field its action requires.
	ErrMissingField = errors.New("required field missing")

	// ErrChannelSend indicates a channel transmission failed permanently.
	ErrChannelSend = errors.New("channel send failed")

	// ErrSendTransient indicates a channel transmission failed in a way
	// worth retrying (rate limited, server unavailable).
	ErrSendTransient = errors.New("transient send failure")

	// ErrUnknownChannel indicates a draft requested a channel no sender
	// is registered for.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrUnknownAction indicates a draft carried an unrecognized action.
	ErrUnknownAction = errors.New("unknown action")

	// ErrPathOutsideVault indicates a path resolved outside the storage
	// root. Always fatal for the operation, never retried.
	ErrPathOutsideVault = errors.New("path outside vault boundaries")

	// ErrStageUnknown indicates an operation referenced an undefined stage.
	ErrStageUnknown = errors.New("unknown stage")

	// ErrVaultUnavailable indicates the storage root could not be created
	// or opened. Resource-level: halts the owning component.
	ErrVaultUnavailable = errors.New("vault unavailable")

	// ErrDocumentNotFound indicates the ERP service has no record with
	// the referenced id.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentNotReady indicates the referenced ERP record is not in a
	// state that can produce a report.
	ErrDocumentNotReady = errors.New("document not ready")

	// ErrAuthFailed indicates an external service rejected our credentials.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrEmptyResponse indicates an external service returned no usable body.
	ErrEmptyResponse = errors.New("empty response")

	// ErrConfigNotFound indicates the configuration file was not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates a configuration value failed validation.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrMenuCanceled indicates the user canceled an interactive prompt.
	ErrMenuCanceled = errors.New("menu canceled by user")

	// ErrNonInteractiveMode indicates an interactive surface was invoked
	// without a terminal attached.
	ErrNonInteractiveMode = errors.New("interactive terminal required")

	// ErrInvalidArgument indicates an invalid CLI argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")
)
