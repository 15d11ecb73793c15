package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mrz1836/opsdesk/internal/constants"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
	"github.com/mrz1836/opsdesk/internal/tui"
	"github.com/mrz1836/opsdesk/internal/vault"
)

// titleWordLimit caps how many words of the task text become the derived title.
const titleWordLimit = 8

// TaskNewFlags holds flags specific to the task new command.
type TaskNewFlags struct {
	// Title overrides the title derived from the task text.
	Title string
}

// newTaskCmd creates the task command group.
func newTaskCmd(globals *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage vault tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}

	flags := &TaskNewFlags{}
	cmd.AddCommand(newTaskNewCmd(globals, flags))

	return cmd
}

// AddTaskCommand adds the task command group to the root command.
func AddTaskCommand(rootCmd *cobra.Command, globals *GlobalFlags) {
	rootCmd.AddCommand(newTaskCmd(globals))
}

// newTaskNewCmd creates the task new command.
func newTaskNewCmd(globals *GlobalFlags, flags *TaskNewFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new <text>",
		Short: "Queue a new task in Intake",
		Long: `Queue a new task in the vault's Intake stage.

The task text becomes the body of the task file and the orchestrator
picks it up on its next poll. A short title is derived from the first
words of the text unless --title is given.`,
		Example: `  opsdesk task new "Follow up on invoice 1402 with the customer"
  opsdesk task new --title "Weekly digest" "Draft the weekly status email for the team"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			return runTaskNew(cmd.Context(), cmd.OutOrStdout(), GetLogger(), vm, flags, args)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&flags.Title, "title", "", "title for the task (default: derived from the text)")

	return cmd
}

// runTaskNew writes the task file into Intake and prints its path.
func runTaskNew(ctx context.Context, w io.Writer, logger zerolog.Logger, vm *vault.Manager, flags *TaskNewFlags, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return fmt.Errorf("task text is empty: %w", opserrors.ErrInvalidArgument)
	}

	title := flags.Title
	if title == "" {
		title = deriveTitle(text)
	}

	id := newTaskID()
	path := vm.TaskPath(constants.StageIntake, id+".md")
	content := fmt.Sprintf("# %s\n\n%s\n", title, text)

	if err := vm.Write(ctx, path, content); err != nil {
		return err
	}

	if err := vm.LogActivity(ctx, "task_created", map[string]string{"task": id, "title": title}); err != nil {
		logger.Warn().Err(err).Msg("failed to record activity")
	}

	styles := tui.NewOutputStyles()
	_, _ = fmt.Fprintln(w, styles.Success.Render("✓ Task "+id+" queued in "+constants.StageIntake.String()))
	_, _ = fmt.Fprintln(w, path)

	return nil
}

// newTaskID returns a fresh short task identifier.
func newTaskID() string {
	return "task-" + uuid.NewString()[:8]
}

// deriveTitle builds a title from the leading words of the task text.
func deriveTitle(text string) string {
	words := strings.Fields(text)
	if len(words) > titleWordLimit {
		words = words[:titleWordLimit]
	}
	// cases.Caser is stateful and not safe for concurrent use, so build
	// one per call.
	caser := cases.Title(language.English)
	return caser.String(strings.Join(words, " "))
}
