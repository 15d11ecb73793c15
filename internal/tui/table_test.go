package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []StageRow {
	return []StageRow{
		{Stage: "Intake", Count: 3, Icon: "○"},
		{Stage: "InProgress", Count: 1, Icon: "●"},
		{Stage: "PendingApproval", Count: 2, Icon: "⚠", Attention: true, Action: "opsdesk review"},
		{Stage: "Done", Count: 14, Icon: "✓"},
	}
}

func TestStageTable_Render(t *testing.T) {
	var buf bytes.Buffer
	table := NewStageTable(sampleRows(), WithColor(false))
	require.NoError(t, table.Render(&buf))

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 5)

	assert.Contains(t, lines[0], "STAGE")
	assert.Contains(t, lines[0], "TASKS")
	assert.Contains(t, lines[1], "○ Intake")
	assert.Contains(t, lines[1], "3")
	assert.Contains(t, lines[3], "PendingApproval")
	assert.Contains(t, lines[3], "run: opsdesk review")
	assert.Contains(t, lines[4], "14")

	// Plain mode emits no escape sequences.
	assert.NotContains(t, out, "\x1b[")
}

func TestStageTable_RenderAlignsCounts(t *testing.T) {
	var buf bytes.Buffer
	table := NewStageTable([]StageRow{
		{Stage: "Intake", Count: 3, Icon: "○"},
		{Stage: "Done", Count: 140, Icon: "✓"},
	}, WithColor(false))
	require.NoError(t, table.Render(&buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	// Counts are right-aligned in a shared column.
	idx3 := strings.Index(lines[1], "3")
	idx140 := strings.Index(lines[2], "140")
	assert.Equal(t, idx3, idx140+2)
}

func TestStageTable_NoHintForQuietAttentionStage(t *testing.T) {
	var buf bytes.Buffer
	table := NewStageTable([]StageRow{
		{Stage: "PendingApproval", Count: 0, Icon: "⚠", Attention: true, Action: "opsdesk review"},
	}, WithColor(false))
	require.NoError(t, table.Render(&buf))

	assert.NotContains(t, buf.String(), "run:")
}

func TestStageTable_Summary(t *testing.T) {
	t.Run("with attention", func(t *testing.T) {
		table := NewStageTable(sampleRows(), WithColor(false))
		assert.Equal(t, "20 tasks, 2 awaiting review", table.Summary())
	})

	t.Run("singular", func(t *testing.T) {
		table := NewStageTable([]StageRow{{Stage: "Intake", Count: 1}}, WithColor(false))
		assert.Equal(t, "1 task", table.Summary())
	})

	t.Run("empty", func(t *testing.T) {
		table := NewStageTable(nil, WithColor(false))
		assert.Equal(t, "0 tasks", table.Summary())
	})
}

func TestRenderActivity(t *testing.T) {
	var buf bytes.Buffer
	lines := []string{
		"- **[10:02:11]** task_claimed — `task`: invoice.md",
		"- **[10:05:40]** email_sent — `task`: invoice.md",
	}
	require.NoError(t, RenderActivity(&buf, lines, false))

	out := buf.String()
	assert.Contains(t, out, "RECENT ACTIVITY")
	assert.Contains(t, out, "task_claimed")
	assert.Contains(t, out, "email_sent")
}

func TestRenderActivity_EmptyWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderActivity(&buf, nil, false))
	assert.Empty(t, buf.String())
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"pads short", "abc", 6, "abc   "},
		{"exact fits", "abcdef", 6, "abcdef"},
		{"truncates long", "abcdefgh", 6, "abcde…"},
		{"wide runes counted by display width", "状態", 6, "状態  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PadRight(tt.in, tt.width))
		})
	}
}
