package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/domain"
	"github.com/mrz1836/opsdesk/internal/tui"
	"github.com/mrz1836/opsdesk/internal/vault"
)

// activityTail is how many activity entries the status view shows.
const activityTail = 5

// StatusFlags holds flags specific to the status command.
type StatusFlags struct {
	// Watch enables the live-updating view.
	Watch bool
	// Bell rings the terminal bell when new tasks reach an attention
	// stage while watching.
	Bell bool
}

// newStatusCmd creates the status command.
func newStatusCmd(globals *GlobalFlags, flags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stage counts and recent activity",
		Long: `Show how many tasks rest in each vault stage, plus the newest
activity log entries.

With --watch the view refreshes every two seconds until 'q' is pressed.`,
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

			if flags.Watch {
				watchCfg := tui.DefaultWatchConfig()
				watchCfg.Bell = flags.Bell
				return tui.RunWatch(cmd.Context(), func(ctx context.Context) (tui.Snapshot, error) {
					return vaultSnapshot(ctx, vm)
				}, watchCfg)
			}

			return runStatus(cmd.Context(), cmd.OutOrStdout(), vm)
		},
		SilenceUsage: true,
	}

	cmd.Flags().BoolVarP(&flags.Watch, "watch", "w", false, "refresh the view until 'q' is pressed")
	cmd.Flags().BoolVar(&flags.Bell, "bell", false, "ring the terminal bell when tasks need attention (with --watch)")

	return cmd
}

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(rootCmd *cobra.Command, globals *GlobalFlags) {
	flags := &StatusFlags{}
	rootCmd.AddCommand(newStatusCmd(globals, flags))
}

// runStatus renders a one-shot snapshot of the vault.
func runStatus(ctx context.Context, w io.Writer, vm *vault.Manager) error {
	snap, err := vaultSnapshot(ctx, vm)
	if err != nil {
		return err
	}

	color := tui.HasColorSupport()
	table := tui.NewStageTable(snap.Rows, tui.WithColor(color))
	if err = table.Render(w); err != nil {
		return err
	}

	if len(snap.Activity) > 0 {
		_, _ = fmt.Fprintln(w)
		if err = tui.RenderActivity(w, snap.Activity, color); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, table.Summary())

	return nil
}

// vaultSnapshot counts the tasks resting in each stage and tails the
// activity log. InProgress includes every agent's claimed tasks.
func vaultSnapshot(ctx context.Context, vm *vault.Manager) (tui.Snapshot, error) {
	stages := constants.AllStages()
	rows := make([]tui.StageRow, 0, len(stages))

	for _, stage := range stages {
		if stage == constants.StageLogs {
			continue
		}

		var (
			tasks []domain.Task
			err   error
		)
		if stage == constants.StageInProgress {
			tasks, err = vm.ListInProgress(ctx)
		} else {
			tasks, err = vm.List(ctx, stage)
		}
		if err != nil {
			return tui.Snapshot{}, err
		}

		rows = append(rows, tui.StageRow{
			Stage:     stage.String(),
			Count:     len(tasks),
			Icon:      tui.StageIcon(stage),
			Attention: tui.IsAttentionStage(stage),
			Action:    tui.SuggestedAction(stage),
		})
	}

	return tui.Snapshot{
		Rows:     rows,
		Activity: recentActivity(vm, activityTail),
	}, nil
}

// recentActivity returns the newest activity entries across the per-day
// logs, oldest first. Errors read as no activity: status stays useful on
// a vault with a damaged Logs directory.
func recentActivity(vm *vault.Manager, limit int) []string {
	dir := vm.StageDir(constants.StageLogs)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	// Day files are named by date, so lexical order is date order.
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), constants.TaskFileExt) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var lines []string
	for i := len(names) - 1; i >= 0 && len(lines) < limit; i-- {
		data, readErr := os.ReadFile(filepath.Join(dir, names[i])) //#nosec G304 -- path is inside the vault's Logs directory
		if readErr != nil {
			continue
		}

		day := activityLines(string(data))
		if need := limit - len(lines); len(day) > need {
			day = day[len(day)-need:]
		}
		lines = append(day, lines...)
	}

	return lines
}

// activityLines extracts the event bullets from one day's log, stripped
// of their markdown emphasis for terminal display.
func activityLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "- **[") {
			continue
		}
		trimmed = strings.Replace(trimmed, "- **[", "[", 1)
		trimmed = strings.Replace(trimmed, "]**", "]", 1)
		lines = append(lines, strings.ReplaceAll(trimmed, "`", ""))
	}
	return lines
}
