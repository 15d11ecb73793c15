// Package tui provides terminal rendering for OpsDesk status surfaces.
//
// All colors use lipgloss.AdaptiveColor so output stays readable on both
// light and dark terminals, and every styled surface honors the NO_COLOR
// convention (https://no-color.org/) via CheckNoColor.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: internal/vault, internal/engine, internal/dispatch
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/mrz1836/opsdesk/internal/constants"
)

//nolint:gochecknoglobals // Package-level semantic colors are the styling API
var (
	// ColorPrimary is blue, used for active states and primary emphasis.
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}

	// ColorSuccess is green, used for completed work.
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}

	// ColorWarning is yellow, used for states that need a human.
	ColorWarning = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"}

	// ColorError is red, used for failed and rejected work.
	ColorError = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}

	// ColorMuted is gray, used for secondary text and idle states.
	ColorMuted = lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}
)

// OutputStyles holds the common styles for one-shot command output.
type OutputStyles struct {
	Title   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Dim     lipgloss.Style
}

// NewOutputStyles creates the shared output styles.
func NewOutputStyles() *OutputStyles {
	return &OutputStyles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary),
		Success: lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(ColorError),
		Warning: lipgloss.NewStyle().Foreground(ColorWarning),
		Info:    lipgloss.NewStyle().Foreground(ColorPrimary),
		Dim:     lipgloss.NewStyle().Foreground(ColorMuted),
	}
}

// TableStyles holds the styles used by stage tables.
type TableStyles struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Dim    lipgloss.Style
}

// NewTableStyles creates styles for table rendering.
func NewTableStyles() *TableStyles {
	return &TableStyles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#DDDDDD"}),
		Cell: lipgloss.NewStyle(),
		Dim: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
	}
}

// CheckNoColor disables color output when the environment asks for it.
// Call this at the start of commands that print styled text.
func CheckNoColor() {
	if !HasColorSupport() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// HasColorSupport returns false if NO_COLOR is set (any value, including
// empty) or TERM=dumb, following the NO_COLOR standard.
func HasColorSupport() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}

// StageColor returns the semantic color for a vault stage.
func StageColor(stage constants.Stage) lipgloss.AdaptiveColor {
	switch stage {
	case constants.StageIntake, constants.StageInProgress:
		return ColorPrimary
	case constants.StagePendingApproval:
		return ColorWarning
	case constants.StageApproved:
		return ColorPrimary
	case constants.StageDone:
		return ColorSuccess
	case constants.StageFailed, constants.StageRejected:
		return ColorError
	case constants.StagePlan, constants.StageLogs:
		return ColorMuted
	default:
		return ColorMuted
	}
}

// StageIcon returns the status symbol for a vault stage. Icons pair with
// color and text so state survives monochrome terminals.
func StageIcon(stage constants.Stage) string {
	switch stage {
	case constants.StageIntake:
		return "○"
	case constants.StageInProgress:
		return "●"
	case constants.StagePendingApproval:
		return "⚠"
	case constants.StageApproved:
		return "➤"
	case constants.StageDone:
		return "✓"
	case constants.StageFailed, constants.StageRejected:
		return "✗"
	case constants.StagePlan, constants.StageLogs:
		return "·"
	default:
		return "?"
	}
}

// IsAttentionStage reports whether tasks resting in this stage are waiting
// on a human rather than on the engine.
func IsAttentionStage(stage constants.Stage) bool {
	return stage == constants.StagePendingApproval || stage == constants.StageFailed
}

// SuggestedAction returns the CLI command that moves work out of an
// attention stage, or empty when no command applies.
func SuggestedAction(stage constants.Stage) string {
	if stage == constants.StagePendingApproval {
		return "opsdesk review"
	}
	return ""
}
