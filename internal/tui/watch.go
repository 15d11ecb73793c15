// Package tui provides terminal rendering for OpsDesk status surfaces.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Snapshot is one refresh of the vault: stage counts plus the tail of
// today's activity log.
type Snapshot struct {
	Rows     []StageRow
	Activity []string
}

// SnapshotFunc loads a fresh Snapshot. Watch mode calls it on every tick;
// implementations should tolerate the vault changing underneath them.
type SnapshotFunc func(ctx context.Context) (Snapshot, error)

// WatchConfig holds configuration for watch mode.
type WatchConfig struct {
	// Interval is the refresh interval.
	Interval time.Duration
	// Bell rings the terminal bell when new work lands in an attention
	// stage. Off by default: watch mode often runs unattended.
	Bell bool
	// Quiet suppresses the header and summary footer.
	Quiet bool
}

// DefaultWatchConfig returns the default watch configuration.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		Interval: 2 * time.Second,
		Bell:     false,
		Quiet:    false,
	}
}

// WatchModel is the Bubble Tea model for the live status view.
// It implements tea.Model (Init, Update, View).
type WatchModel struct {
	snapshot   Snapshot
	lastUpdate time.Time
	config     WatchConfig
	width      int
	height     int
	quitting   bool
	err        error
	fetch      SnapshotFunc
	color      bool

	// attentionPrev tracks the previous attention-stage total so the
	// bell only rings on increases, not on every refresh.
	attentionPrev int
	hasPrev       bool

	// baseCtx is stored for use in async Bubble Tea commands. Storing a
	// context in a struct is normally discouraged, but Bubble Tea's
	// command model gives refresh commands no other way to receive it.
	baseCtx context.Context //nolint:containedctx // Required for Bubble Tea async commands
}

// TickMsg signals time for a refresh.
type TickMsg time.Time

// RefreshMsg carries the result of a refresh.
type RefreshMsg struct {
	Snapshot Snapshot
	Err      error
}

// BellMsg signals that a bell was emitted.
type BellMsg struct{}

// NewWatchModel creates a watch model that refreshes via fetch.
func NewWatchModel(ctx context.Context, fetch SnapshotFunc, cfg WatchConfig) *WatchModel {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultWatchConfig().Interval
	}
	return &WatchModel{
		config:  cfg,
		width:   80,
		height:  24,
		fetch:   fetch,
		color:   HasColorSupport(),
		baseCtx: ctx,
	}
}

// Init starts the refresh timer and performs the initial load.
func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.tick())
}

// Update handles messages and returns the updated model and any commands.
func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		return m, m.refresh()

	case RefreshMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, m.tick()
		}
		m.snapshot = msg.Snapshot
		m.lastUpdate = time.Now()
		m.err = nil
		return m, tea.Batch(m.tick(), m.checkForBell())

	case BellMsg:
		return m, nil
	}

	return m, nil
}

// View renders the current state.
func (m *WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	styles := NewOutputStyles()

	if !m.config.Quiet {
		title := "OPSDESK"
		if m.color {
			title = styles.Title.Render(title)
		}
		b.WriteString(title)
		b.WriteString("\n\n")
	}

	if m.err != nil {
		b.WriteString(fmt.Sprintf("Error: %v\n\n", m.err))
	}

	table := NewStageTable(m.snapshot.Rows, WithColor(m.color))
	if len(m.snapshot.Rows) == 0 {
		b.WriteString("Vault is empty. Run 'opsdesk task new' to create a task.\n")
	} else {
		_ = table.Render(&b)
	}

	if len(m.snapshot.Activity) > 0 {
		b.WriteString("\n")
		_ = RenderActivity(&b, m.snapshot.Activity, m.color)
	}

	if !m.config.Quiet && len(m.snapshot.Rows) > 0 {
		b.WriteString("\n")
		b.WriteString(table.Summary())
		b.WriteString("\n")
	}

	if !m.lastUpdate.IsZero() {
		b.WriteString(fmt.Sprintf("\nLast updated: %s", m.lastUpdate.Format("15:04:05")))
	}
	b.WriteString("\nPress 'q' to quit")

	return b.String()
}

// Rows returns the current stage rows.
func (m *WatchModel) Rows() []StageRow {
	return m.snapshot.Rows
}

// LastUpdate returns the last refresh timestamp.
func (m *WatchModel) LastUpdate() time.Time {
	return m.lastUpdate
}

// IsQuitting reports whether the model is shutting down.
func (m *WatchModel) IsQuitting() bool {
	return m.quitting
}

// Error returns the error from the last refresh, if any.
func (m *WatchModel) Error() error {
	return m.err
}

// tick schedules the next TickMsg.
func (m *WatchModel) tick() tea.Cmd {
	return tea.Tick(m.config.Interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// refresh loads a fresh snapshot off the update loop.
func (m *WatchModel) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx := m.baseCtx
		if ctx == nil {
			ctx = context.Background()
		}
		snap, err := m.fetch(ctx)
		if err != nil {
			return RefreshMsg{Err: fmt.Errorf("refresh vault snapshot: %w", err)}
		}
		return RefreshMsg{Snapshot: snap}
	}
}

// checkForBell rings when the attention-stage total grows.
func (m *WatchModel) checkForBell() tea.Cmd {
	if !m.config.Bell || m.config.Quiet {
		return nil
	}

	current := attentionTotal(m.snapshot.Rows)
	prev, hadPrev := m.attentionPrev, m.hasPrev
	m.attentionPrev = current
	m.hasPrev = true

	if hadPrev && current > prev {
		return emitBell()
	}
	return nil
}

func attentionTotal(rows []StageRow) int {
	var total int
	for _, row := range rows {
		if row.Attention {
			total += row.Count
		}
	}
	return total
}

// emitBell writes the BEL character to the terminal.
func emitBell() tea.Cmd {
	return func() tea.Msg {
		_, _ = os.Stdout.WriteString("\a")
		return BellMsg{}
	}
}

// RunWatch drives the model in a full-screen Bubble Tea program until the
// user quits or ctx is canceled.
func RunWatch(ctx context.Context, fetch SnapshotFunc, cfg WatchConfig) error {
	model := NewWatchModel(ctx, fetch, cfg)
	program := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("watch mode failed: %w", err)
	}
	return nil
}
