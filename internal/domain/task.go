// Package domain provides shared domain types for the OpsDesk orchestration engine.
// These types are used across all internal packages to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import (
	"path/filepath"
	"strings"

	"github.com/mrz1836/opsdesk/internal/constants"
)

// Task is one unit of work in the vault. The file is the source of truth:
// its name is the identity, its folder is the state, and its content is an
// opaque request the reasoning worker interprets. The engine manages
// lifecycle only and never assigns business meaning to the content.
//
// Example JSON representation:
//
//	{
//	    "id": "task-7c2f1a",
//	    "path": "/home/ops/vault/InProgress/orchestrator/task-7c2f1a.md",
//	    "stage": "InProgress"
//	}
type Task struct {
	// ID is the task identity, the file stem without extension.
	ID string `json:"id"`

	// Path is the task file's current absolute location.
	Path string `json:"path"`

	// Stage is the folder the task currently rests in.
	Stage constants.Stage `json:"stage"`

	// Content is the raw markdown body, including any front-matter.
	Content string `json:"content,omitempty"`
}

// TaskIDFromPath derives a task id from a file path. Identity is the
// filename stem, so Intake/invoice-followup.md and
// InProgress/orchestrator/invoice-followup.md name the same task.
func TaskIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoopOutcome describes how an execution loop run over one task ended.
type LoopOutcome string

// Loop outcomes, from strongest completion evidence to weakest.
const (
	// OutcomeCompleted means the worker emitted the completion marker.
	OutcomeCompleted LoopOutcome = "completed"

	// OutcomeCompletedInVault means the task file arrived in Done.
	OutcomeCompletedInVault LoopOutcome = "completed_in_vault"

	// OutcomeMovedElsewhere means the task left InProgress for a
	// non-terminal location chosen by the worker.
	OutcomeMovedElsewhere LoopOutcome = "moved_elsewhere"

	// OutcomeAwaitingApproval means the worker staged an outbound action
	// and processing stops until a human rules on it.
	OutcomeAwaitingApproval LoopOutcome = "awaiting_approval"

	// OutcomeAssumedComplete means the worker exited cleanly with no
	// completion evidence and the loop trusted it rather than repeat
	// identical work.
	OutcomeAssumedComplete LoopOutcome = "assumed_complete"
)

// LoopResult is the execution loop's report for one task.
type LoopResult struct {
	// Outcome classifies how the loop ended.
	Outcome LoopOutcome `json:"outcome"`

	// Output is the final worker invocation's stdout.
	Output string `json:"output,omitempty"`

	// Iterations is the number of loop iterations consumed.
	Iterations int `json:"iterations"`

	// Worker names the CLI that produced the final result.
	Worker Worker `json:"worker"`
}
