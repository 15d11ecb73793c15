// Package tui provides terminal rendering for OpsDesk status surfaces.
package tui

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	opserrors "github.com/mrz1836/opsdesk/internal/errors"
)

// Terminal layout constants.
const (
	// DefaultMenuWidth is the maximum width for interactive menus.
	DefaultMenuWidth = 100

	// terminalEdgeMargin is left between menu content and the terminal
	// edge for visual padding.
	terminalEdgeMargin = 4

	// minMenuWidth is the floor below which menus become unreadable.
	minMenuWidth = 40
)

// ErrMenuCanceled is returned when the user cancels an interactive prompt
// with q or Escape, or when no terminal is attached.
var ErrMenuCanceled = opserrors.ErrMenuCanceled

// Option is one selectable menu entry.
type Option struct {
	// Label is the display text shown to the user.
	Label string
	// Description is optional help text appended to the label.
	Description string
	// Value is returned when this option is selected.
	Value string
}

// MenuConfig holds configuration shared by the interactive prompts.
type MenuConfig struct {
	// Width caps the menu width. Zero adapts to the terminal.
	Width int
	// Accessible enables screen-reader friendly rendering.
	Accessible bool
	// ShowKeyHints displays navigation hints under the menu.
	ShowKeyHints bool
}

// MenuConfigOption configures a MenuConfig.
type MenuConfigOption func(*MenuConfig)

// WithMenuWidth caps the menu width.
func WithMenuWidth(width int) MenuConfigOption {
	return func(c *MenuConfig) {
		c.Width = width
	}
}

// WithMenuAccessible toggles accessible mode.
func WithMenuAccessible(enabled bool) MenuConfigOption {
	return func(c *MenuConfig) {
		c.Accessible = enabled
	}
}

// NewMenuConfig creates a MenuConfig with defaults. Accessible mode is
// detected from the ACCESSIBLE environment variable.
func NewMenuConfig(opts ...MenuConfigOption) *MenuConfig {
	_, accessible := os.LookupEnv("ACCESSIBLE")

	c := &MenuConfig{
		Width:        DefaultMenuWidth,
		Accessible:   accessible,
		ShowKeyHints: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// adaptWidth clamps the menu width to the terminal, leaving a margin.
func adaptWidth(maxWidth int) int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		if maxWidth <= 0 {
			return DefaultMenuWidth
		}
		return maxWidth
	}

	available := width - terminalEdgeMargin
	if maxWidth > 0 && maxWidth < available {
		return maxWidth
	}
	if available < minMenuWidth {
		return minMenuWidth
	}
	return available
}

// runForm runs a single-field form with shared theme and sizing. Without a
// terminal on stdin it returns ErrMenuCanceled immediately, which keeps
// tests from hanging on an invisible prompt.
func runForm(field huh.Field, cfg *MenuConfig, errorContext string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return ErrMenuCanceled
	}

	CheckNoColor()

	form := huh.NewForm(huh.NewGroup(field)).
		WithTheme(Theme()).
		WithWidth(adaptWidth(cfg.Width)).
		WithAccessible(cfg.Accessible).
		WithShowHelp(cfg.ShowKeyHints)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrMenuCanceled
		}
		return fmt.Errorf("%s: %w", errorContext, err)
	}
	return nil
}

// Theme returns a huh theme mapped onto the package's semantic colors.
func Theme() *huh.Theme {
	CheckNoColor()

	t := huh.ThemeBase()

	t.Focused.Base = t.Focused.Base.BorderForeground(ColorPrimary)
	t.Focused.Title = t.Focused.Title.Foreground(ColorPrimary)
	t.Focused.SelectSelector = t.Focused.SelectSelector.Foreground(ColorPrimary)
	t.Focused.SelectedOption = t.Focused.SelectedOption.Foreground(ColorPrimary)
	t.Focused.TextInput.Cursor = t.Focused.TextInput.Cursor.Foreground(ColorPrimary)

	t.Focused.SelectedPrefix = t.Focused.SelectedPrefix.Foreground(ColorSuccess)

	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(ColorError)
	t.Focused.ErrorIndicator = t.Focused.ErrorIndicator.Foreground(ColorError)

	t.Blurred.Base = t.Blurred.Base.BorderForeground(ColorMuted)
	t.Blurred.Title = t.Blurred.Title.Foreground(ColorMuted)
	t.Focused.Description = t.Focused.Description.Foreground(ColorMuted)
	t.Help.Ellipsis = t.Help.Ellipsis.Foreground(ColorMuted)

	return t
}

// Select presents a single-selection menu and returns the chosen value.
// Returns ErrMenuCanceled if the user presses q or Esc.
func Select(title string, options []Option) (string, error) {
	return SelectWithConfig(title, options, NewMenuConfig())
}

// SelectWithConfig presents a single-selection menu with custom configuration.
func SelectWithConfig(title string, options []Option, cfg *MenuConfig) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("select %q: %w", title, opserrors.ErrInvalidArgument)
	}

	// huh has no option-level descriptions, so fold them into the label.
	huhOptions := make([]huh.Option[string], len(options))
	for i, opt := range options {
		label := opt.Label
		if opt.Description != "" {
			label = opt.Label + " - " + opt.Description
		}
		huhOptions[i] = huh.NewOption(label, opt.Value)
	}

	var selected string
	field := huh.NewSelect[string]().
		Title(title).
		Options(huhOptions...).
		Value(&selected)

	if err := runForm(field, cfg, "select menu failed"); err != nil {
		return "", err
	}
	return selected, nil
}

// Confirm presents a yes/no prompt.
func Confirm(message string, defaultYes bool) (bool, error) {
	return ConfirmWithConfig(message, defaultYes, NewMenuConfig())
}

// ConfirmWithConfig presents a yes/no prompt with custom configuration.
func ConfirmWithConfig(message string, defaultYes bool, cfg *MenuConfig) (bool, error) {
	confirmed := defaultYes

	field := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed)

	if err := runForm(field, cfg, "confirm prompt failed"); err != nil {
		return false, err
	}
	return confirmed, nil
}

// Input presents a single-line text prompt.
func Input(prompt, defaultValue string) (string, error) {
	return InputWithConfig(prompt, defaultValue, NewMenuConfig())
}

// InputWithConfig presents a text prompt with custom configuration.
func InputWithConfig(prompt, defaultValue string, cfg *MenuConfig) (string, error) {
	value := defaultValue

	field := huh.NewInput().
		Title(prompt).
		Value(&value)

	if err := runForm(field, cfg, "input prompt failed"); err != nil {
		return "", err
	}
	return value, nil
}
