package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/constants"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
	"github.com/mrz1836/opsdesk/internal/tui"
	"github.com/mrz1836/opsdesk/internal/vault"
)

// InitFlags holds flags specific to the init command.
type InitFlags struct {
	// Force overwrites an existing project config without prompting.
	Force bool
}

// projectConfig is the minimal configuration written by init. Field names
// match the yaml tags in internal/config so config.Load reads this file
// unchanged.
type projectConfig struct {
	Vault projectVaultConfig `yaml:"vault"`
}

// projectVaultConfig holds the vault section of the generated config.
type projectVaultConfig struct {
	Path    string `yaml:"path"`
	AgentID string `yaml:"agent_id"`
}

// newInitCmd creates the init command for scaffolding a vault.
func newInitCmd(globals *GlobalFlags, flags *InitFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Initialize a vault",
		Long: `Initialize a vault at the given path (default: current directory).

Creates the stage directories (Intake, InProgress, Plan, PendingApproval,
Approved, Rejected, Done, Failed, Logs), starter context documents
(Handbook.md, Dashboard.md, Goals.md), and a project configuration at
.opsdesk/config.yaml inside the vault.

Existing files are never overwritten without confirmation. Use --force to
replace an existing project config in scripts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context(), globals)
			if err != nil {
				return err
			}
			return runInit(cmd.Context(), cmd.OutOrStdout(), GetLogger(), cfg, flags, args)
		},
		SilenceUsage: true,
	}

	cmd.Flags().BoolVar(&flags.Force, "force", false, "overwrite an existing project config without prompting")

	return cmd
}

// AddInitCommand adds the init command to the root command.
func AddInitCommand(rootCmd *cobra.Command, globals *GlobalFlags) {
	flags := &InitFlags{}
	rootCmd.AddCommand(newInitCmd(globals, flags))
}

// runInit scaffolds the vault directory tree, starter documents, and
// project config.
func runInit(ctx context.Context, w io.Writer, logger zerolog.Logger, cfg *config.Config, flags *InitFlags, args []string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	styles := tui.NewOutputStyles()

	target := "."
	switch {
	case len(args) > 0:
		target = args[0]
	case cfg.Vault.Path != "":
		target = cfg.Vault.Path
	}

	root, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("failed to resolve vault path '%s': %w", target, err)
	}

	if err = os.MkdirAll(root, constants.DirPerm); err != nil {
		return fmt.Errorf("failed to create vault root '%s': %w", root, err)
	}

	// Starter documents go in before vault.New so the manager does not
	// warn about missing context docs on a fresh vault.
	created, err := writeStarterDocs(root)
	if err != nil {
		return err
	}

	vm, err := vault.New(root, cfg.Vault.AgentID, logger)
	if err != nil {
		return err
	}

	configWritten, configPath, err := writeProjectConfig(w, vm.Root(), cfg.Vault.AgentID, flags.Force, styles)
	if err != nil {
		return err
	}

	if err = vm.LogActivity(ctx, "vault_initialized", map[string]string{"path": vm.Root()}); err != nil {
		logger.Warn().Err(err).Msg("failed to record activity")
	}

	_, _ = fmt.Fprintln(w, styles.Success.Render("✓ Vault initialized at "+vm.Root()))
	_, _ = fmt.Fprintln(w)
	for _, doc := range created {
		_, _ = fmt.Fprintln(w, styles.Dim.Render("  created "+doc))
	}
	if configWritten {
		_, _ = fmt.Fprintln(w, styles.Dim.Render("  created "+configPath))
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, styles.Info.Render("Suggested next commands:"))
	_, _ = fmt.Fprintln(w, styles.Dim.Render(`  opsdesk task new "<description>"  - Queue your first task`))
	_, _ = fmt.Fprintln(w, styles.Dim.Render("  opsdesk run                       - Start the orchestrator and dispatcher"))
	_, _ = fmt.Fprintln(w, styles.Dim.Render("  opsdesk status                    - View stage counts"))

	return nil
}

// writeStarterDocs creates the context documents that are missing from the
// vault root. Existing documents are left untouched. Returns the names of
// the documents it created.
func writeStarterDocs(root string) ([]string, error) {
	starters := map[string]string{
		constants.HandbookFileName:  starterHandbook,
		constants.DashboardFileName: starterDashboard,
		constants.GoalsFileName:     starterGoals,
	}

	var created []string
	for _, name := range constants.ContextDocNames() {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to check '%s': %w", path, err)
		}
		if err := os.WriteFile(path, []byte(starters[name]), constants.FilePerm); err != nil {
			return nil, fmt.Errorf("failed to write '%s': %w", path, err)
		}
		created = append(created, name)
	}

	return created, nil
}

// writeProjectConfig writes .opsdesk/config.yaml inside the vault root,
// asking before replacing an existing file unless force is set. Returns
// whether a file was written and its path.
func writeProjectConfig(w io.Writer, root, agentID string, force bool, styles *tui.OutputStyles) (bool, string, error) {
	configDir := filepath.Join(root, constants.OpsDeskHome)
	configPath := filepath.Join(configDir, constants.ConfigFileName)

	if _, err := os.Stat(configPath); err == nil && !force {
		overwrite, confirmErr := tui.Confirm("Project config already exists. Overwrite?", false)
		if confirmErr != nil {
			// No terminal or user backed out: keep the existing file.
			if errors.Is(confirmErr, opserrors.ErrMenuCanceled) {
				_, _ = fmt.Fprintln(w, styles.Dim.Render("  keeping existing "+configPath))
				return false, configPath, nil
			}
			return false, configPath, confirmErr
		}
		if !overwrite {
			_, _ = fmt.Fprintln(w, styles.Dim.Render("  keeping existing "+configPath))
			return false, configPath, nil
		}
	}

	if err := os.MkdirAll(configDir, constants.DirPerm); err != nil {
		return false, configPath, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(projectConfig{
		Vault: projectVaultConfig{
			Path:    root,
			AgentID: agentID,
		},
	})
	if err != nil {
		return false, configPath, fmt.Errorf("failed to marshal config: %w", err)
	}

	header := fmt.Sprintf("# OpsDesk Project Configuration\n# Generated by opsdesk init on %s\n\n",
		time.Now().Format(time.RFC3339))
	if err = os.WriteFile(configPath, []byte(header+string(data)), constants.FilePerm); err != nil {
		return false, configPath, fmt.Errorf("failed to write config file: %w", err)
	}

	return true, configPath, nil
}

// Starter content for the three context documents. Kept deliberately
// short: the vault owner is expected to rewrite these.
const (
	starterHandbook = `# Handbook

Operating rules for agents working in this vault.

## Ground rules

- Work one task at a time. Claim it before touching it.
- Write a plan to Plan/ before acting on multi-step work.
- Anything leaving the vault (email, WhatsApp, social posts) goes
  through PendingApproval first.
- Record every significant action in the activity log.

## Escalation

Move a task to PendingApproval with a short summary whenever human
judgment is required.
`

	starterDashboard = `# Dashboard

Snapshot of current operations. Agents read this for context before
starting work; keep it short and current.

## Now

Nothing in flight yet.
`

	starterGoals = `# Goals

Long-term direction for this vault. Agents consult this when deciding
what to pull from Intake.

1. Add your first goal here.
`
)
