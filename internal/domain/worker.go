// Package domain provides shared domain types for the OpsDesk orchestration engine.
package domain

import "time"

// Worker identifies a reasoning-worker CLI (e.g., "claude", "gemini").
// This determines which binary drives a task and which argument
// conventions apply.
type Worker string

// Worker constants define the supported reasoning-worker CLIs.
const (
	// WorkerClaude uses the Claude Code CLI from Anthropic.
	WorkerClaude Worker = "claude"

	// WorkerGemini uses the Gemini CLI from Google.
	WorkerGemini Worker = "gemini"

	// WorkerCodex uses the Codex CLI from OpenAI.
	WorkerCodex Worker = "codex"
)

// String returns the string representation of the Worker.
// This implements fmt.Stringer for convenient logging and debugging.
func (w Worker) String() string {
	return string(w)
}

// IsValid checks if the worker is a recognized type.
func (w Worker) IsValid() bool {
	switch w {
	case WorkerClaude, WorkerGemini, WorkerCodex:
		return true
	}
	return false
}

// DefaultFallbackOrder returns the worker preference order used when the
// configuration does not override it. The first available binary wins.
func DefaultFallbackOrder() []Worker {
	return []Worker{WorkerClaude, WorkerGemini, WorkerCodex}
}

// WorkerRequest contains the parameters for one reasoning-worker invocation.
//
// Example JSON representation:
//
//	{
//	    "prompt": "Process this task using ...",
//	    "working_dir": "/home/ops/vault",
//	    "timeout": "15m"
//	}
type WorkerRequest struct {
	// Prompt is the full work request sent to the worker.
	Prompt string `json:"prompt"`

	// WorkingDir is the vault root the worker is granted access to.
	// Must be an absolute path to an existing directory.
	WorkingDir string `json:"working_dir"`

	// Timeout overrides the configured invocation timeout when non-zero.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// WorkerResult captures the outcome of one reasoning-worker invocation.
type WorkerResult struct {
	// Worker names the CLI that produced this result.
	Worker Worker `json:"worker"`

	// Output is the captured stdout.
	Output string `json:"output"`

	// Stderr is the captured stderr, kept separate for failure classification.
	Stderr string `json:"stderr,omitempty"`

	// ExitCode is the subprocess exit code; zero means success.
	ExitCode int `json:"exit_code"`

	// DurationMs is the wall-clock execution time in milliseconds.
	DurationMs int64 `json:"duration_ms"`
}

// Succeeded reports whether the invocation exited cleanly.
func (r *WorkerResult) Succeeded() bool {
	return r != nil && r.ExitCode == 0
}
