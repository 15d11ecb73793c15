// Package tui provides terminal rendering for OpsDesk status surfaces.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Column widths for the stage table. Stage names and icons are fixed, so
// fixed minimums keep successive renders stable in watch mode.
const (
	stageColWidth = 18
	countColWidth = 6
)

// StageRow is one line of the stage table: a vault folder and how many
// task files currently rest in it.
type StageRow struct {
	Stage string
	Count int
	// Icon and Attention come from the styles helpers; they are carried
	// on the row so callers can build rows without re-deriving them.
	Icon      string
	Attention bool
	// Action is the suggested command when the row needs a human.
	Action string
}

// StageTable renders vault stage counts in a fixed-width table.
type StageTable struct {
	rows   []StageRow
	styles *TableStyles
	color  bool
}

// StageTableOption configures a StageTable.
type StageTableOption func(*StageTable)

// WithColor forces color on or off, overriding terminal detection.
// Used by tests and by watch mode, which detects support once.
func WithColor(enabled bool) StageTableOption {
	return func(t *StageTable) {
		t.color = enabled
	}
}

// NewStageTable creates a stage table for the given rows.
func NewStageTable(rows []StageRow, opts ...StageTableOption) *StageTable {
	t := &StageTable{
		rows:   rows,
		styles: NewTableStyles(),
		color:  HasColorSupport(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Render writes the table to w.
func (t *StageTable) Render(w io.Writer) error {
	header := PadRight("STAGE", stageColWidth) + " " + padLeft("TASKS", countColWidth)
	if t.color {
		header = t.styles.Header.Render(header)
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		return fmt.Errorf("write table header: %w", err)
	}

	for _, row := range t.rows {
		if err := t.writeRow(w, row); err != nil {
			return err
		}
	}
	return nil
}

func (t *StageTable) writeRow(w io.Writer, row StageRow) error {
	icon := row.Icon
	if icon == "" {
		icon = "·"
	}
	label := icon + " " + row.Stage

	var b strings.Builder
	if t.color && row.Attention && row.Count > 0 {
		// Pad the plain text, then style it, so ANSI codes never skew
		// the column math.
		b.WriteString(t.styles.Header.Foreground(ColorWarning).Render(PadRight(label, stageColWidth)))
	} else {
		b.WriteString(PadRight(label, stageColWidth))
	}
	b.WriteString(" ")
	b.WriteString(padLeft(fmt.Sprintf("%d", row.Count), countColWidth))

	if row.Attention && row.Count > 0 && row.Action != "" {
		b.WriteString("   ")
		hint := "run: " + row.Action
		if t.color {
			hint = t.styles.Dim.Render(hint)
		}
		b.WriteString(hint)
	}

	if _, err := fmt.Fprintln(w, b.String()); err != nil {
		return fmt.Errorf("write table row: %w", err)
	}
	return nil
}

// Summary returns a one-line digest of the rows, such as
// "12 tasks, 3 awaiting review".
func (t *StageTable) Summary() string {
	var total, attention int
	for _, row := range t.rows {
		total += row.Count
		if row.Attention {
			attention += row.Count
		}
	}

	word := "tasks"
	if total == 1 {
		word = "task"
	}
	summary := fmt.Sprintf("%d %s", total, word)
	if attention > 0 {
		summary += fmt.Sprintf(", %d awaiting review", attention)
	}
	return summary
}

// RenderActivity writes recent activity-log lines, dimmed, newest last.
func RenderActivity(w io.Writer, lines []string, color bool) error {
	if len(lines) == 0 {
		return nil
	}
	styles := NewTableStyles()

	header := "RECENT ACTIVITY"
	if color {
		header = styles.Header.Render(header)
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		return fmt.Errorf("write activity header: %w", err)
	}

	for _, line := range lines {
		out := line
		if color {
			out = styles.Dim.Render(line)
		}
		if _, err := fmt.Fprintln(w, out); err != nil {
			return fmt.Errorf("write activity line: %w", err)
		}
	}
	return nil
}

// PadRight pads s with spaces to the target display width. Width is
// measured with go-runewidth so icons and wide runes line up.
func PadRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return runewidth.Truncate(s, width, "…")
	}
	return s + strings.Repeat(" ", width-w)
}

func padLeft(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return strings.Repeat(" ", width-w) + s
}
