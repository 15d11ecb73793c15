package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/domain"
	"github.com/mrz1836/opsdesk/internal/draft"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
	"github.com/mrz1836/opsdesk/internal/tui"
	"github.com/mrz1836/opsdesk/internal/vault"
)

// markdownWrapWidth is the word-wrap width for rendered drafts.
const markdownWrapWidth = 80

// Review actions offered for each draft.
const (
	reviewActionApprove = "approve"
	reviewActionReject  = "reject"
	reviewActionSkip    = "skip"
	reviewActionQuit    = "quit"
)

// Test injection points - standard Go testing pattern
//
//nolint:gochecknoglobals
var (
	isTerminalFunc = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	tuiSelectFunc  = tui.Select
	tuiInputFunc   = tui.Input
)

// Markdown renderer is cached: building a glamour renderer walks style
// definitions and is too slow to repeat per draft.
//
//nolint:gochecknoglobals
var (
	markdownOnce     sync.Once
	markdownRenderer *glamour.TermRenderer
	markdownErr      error
)

// newReviewCmd creates the review command.
func newReviewCmd(globals *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Review drafts awaiting approval",
		Long: `Walk through the drafts resting in PendingApproval, one at a time.

Each draft is rendered to the terminal; approve it to queue it for
sending, reject it with a reason, or skip it for later. Approved drafts
move to the Approved stage and are picked up by the dispatcher on its
next poll. Rejected drafts move to Rejected with the reason in the
filename.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Context(), globals)
			if err != nil {
				return err
			}
			root, err := cfg.RequireVaultPath()
			if err != nil {
				return err
			}
			vm, err := vault.New(root, cfg.Vault.AgentID, GetLogger())
			if err != nil {
				return err
			}
			return runReview(cmd.Context(), cmd.OutOrStdout(), GetLogger(), vm)
		},
		SilenceUsage: true,
	}
}

// AddReviewCommand adds the review command to the root command.
func AddReviewCommand(rootCmd *cobra.Command, globals *GlobalFlags) {
	rootCmd.AddCommand(newReviewCmd(globals))
}

// runReview walks the pending drafts and applies the reviewer's decisions.
func runReview(ctx context.Context, w io.Writer, logger zerolog.Logger, vm *vault.Manager) error {
	if !isTerminalFunc() {
		return fmt.Errorf("review needs a terminal to prompt for decisions; run it directly, not through a pipe: %w",
			opserrors.ErrNonInteractiveMode)
	}

	styles := tui.NewOutputStyles()

	drafts, err := vm.List(ctx, constants.StagePendingApproval)
	if err != nil {
		return err
	}
	if len(drafts) == 0 {
		_, _ = fmt.Fprintln(w, styles.Info.Render("No drafts awaiting review."))
		return nil
	}

	var approved, rejected, skipped int

	for i, task := range drafts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err = showDraft(ctx, w, vm, task, i+1, len(drafts), styles); err != nil {
			return err
		}

		action, selectErr := tuiSelectFunc("Decision for "+task.ID, reviewOptions())
		if selectErr != nil {
			if errors.Is(selectErr, tui.ErrMenuCanceled) {
				break
			}
			return selectErr
		}

		switch action {
		case reviewActionApprove:
			if err = approveDraft(ctx, logger, vm, task); err != nil {
				return err
			}
			approved++
			_, _ = fmt.Fprintln(w, styles.Success.Render("✓ Approved "+task.ID))
		case reviewActionReject:
			done, rejectErr := rejectDraft(ctx, w, logger, vm, task, styles)
			if rejectErr != nil {
				return rejectErr
			}
			if done {
				rejected++
			} else {
				skipped++
			}
		case reviewActionSkip:
			skipped++
			_, _ = fmt.Fprintln(w, styles.Dim.Render("Skipped "+task.ID))
		case reviewActionQuit:
			_, _ = fmt.Fprintln(w)
			_, _ = fmt.Fprintln(w, reviewSummary(approved, rejected, skipped))
			return nil
		}
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, reviewSummary(approved, rejected, skipped))

	return nil
}

// showDraft renders one pending draft with its parsed routing details.
func showDraft(ctx context.Context, w io.Writer, vm *vault.Manager, task domain.Task, index, total int, styles *tui.OutputStyles) error {
	content, err := vm.Read(ctx, task.Path)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, styles.Title.Render(fmt.Sprintf("Draft %d of %d: %s", index, total, task.ID)))

	// Routing details come from the draft itself; a draft the parser
	// rejects is still shown so the reviewer can reject it with a reason.
	if d, parseErr := draft.Parse(content); parseErr == nil {
		_, _ = fmt.Fprintln(w, styles.Dim.Render("  action: "+string(d.Action)))
		if d.To != "" {
			_, _ = fmt.Fprintln(w, styles.Dim.Render("  to:     "+d.To))
		}
		if d.Subject != "" {
			_, _ = fmt.Fprintln(w, styles.Dim.Render("  subject: "+d.Subject))
		}
	} else {
		_, _ = fmt.Fprintln(w, styles.Warning.Render("  ⚠ not parseable as a draft: "+parseErr.Error()))
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprint(w, renderMarkdown(content))

	return nil
}

// approveDraft moves a draft to Approved and records the decision.
func approveDraft(ctx context.Context, logger zerolog.Logger, vm *vault.Manager, task domain.Task) error {
	if _, err := vm.Move(ctx, task.Path, constants.StageApproved); err != nil {
		return err
	}
	if err := vm.LogActivity(ctx, "draft_approved", map[string]string{"draft": task.ID}); err != nil {
		logger.Warn().Err(err).Msg("failed to record activity")
	}
	return nil
}

// rejectDraft prompts for a reason and moves the draft to Rejected.
// Returns false when the reviewer backs out of the reason prompt, in
// which case the draft stays put.
func rejectDraft(ctx context.Context, w io.Writer, logger zerolog.Logger, vm *vault.Manager, task domain.Task, styles *tui.OutputStyles) (bool, error) {
	reason, err := tuiInputFunc("Reason for rejection", "")
	if err != nil {
		if errors.Is(err, tui.ErrMenuCanceled) {
			_, _ = fmt.Fprintln(w, styles.Dim.Render("Skipped "+task.ID))
			return false, nil
		}
		return false, err
	}

	if _, err = vm.MoveWithReason(ctx, task.Path, constants.StageRejected, reason); err != nil {
		return false, err
	}
	if err = vm.LogActivity(ctx, "draft_rejected", map[string]string{"draft": task.ID, "reason": reason}); err != nil {
		logger.Warn().Err(err).Msg("failed to record activity")
	}

	_, _ = fmt.Fprintln(w, styles.Error.Render("✗ Rejected "+task.ID))
	return true, nil
}

// reviewOptions returns the per-draft decision menu.
func reviewOptions() []tui.Option {
	return []tui.Option{
		{Label: "Approve", Description: "queue for sending", Value: reviewActionApprove},
		{Label: "Reject", Description: "move to Rejected with a reason", Value: reviewActionReject},
		{Label: "Skip", Description: "decide later", Value: reviewActionSkip},
		{Label: "Quit", Description: "stop reviewing", Value: reviewActionQuit},
	}
}

// reviewSummary formats the end-of-session tallies.
func reviewSummary(approved, rejected, skipped int) string {
	return fmt.Sprintf("Approved %d, rejected %d, skipped %d.", approved, rejected, skipped)
}

// renderMarkdown renders markdown for the terminal, falling back to the
// raw text when the renderer cannot be built.
func renderMarkdown(content string) string {
	markdownOnce.Do(func() {
		markdownRenderer, markdownErr = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(markdownWrapWidth),
		)
	})
	if markdownErr != nil || markdownRenderer == nil {
		return content
	}

	out, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return out
}
