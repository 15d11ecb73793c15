package cli

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrz1836/opsdesk/internal/config"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	// Version is the semantic version (e.g., "1.0.0").
	Version string
	// Commit is the git commit hash.
	Commit string
	// Date is the build date.
	Date string
}

// globalLogger stores the initialized logger for use by subcommands.
// This is set during PersistentPreRunE and should be accessed via GetLogger.
// Access is protected by globalLoggerMu for thread safety.
var (
	globalLogger   zerolog.Logger //nolint:gochecknoglobals // CLI logger requires global access
	globalLoggerMu sync.RWMutex   //nolint:gochecknoglobals // Protects globalLogger
)

// GetLogger returns the initialized logger for use by subcommands.
//
// IMPORTANT: This function MUST only be called after the root command's
// PersistentPreRunE has executed. Calling it before initialization will
// return a zero-value logger that discards all log output.
//
// This function is safe for concurrent use.
func GetLogger() zerolog.Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// newRootCmd creates and returns the root command for the opsdesk CLI.
// This function-based approach avoids package-level globals, making the
// code more testable and avoiding gochecknoglobals linter warnings.
func newRootCmd(flags *GlobalFlags, info BuildInfo) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "opsdesk",
		Short: "OpsDesk - durable task orchestration for AI operators",
		Long: `OpsDesk runs a durable, crash-recoverable task queue on top of a plain
folder vault, driving AI reasoning workers and a human approval loop.

Features:
  • File-based task stages with atomic moves and sidecar lock claims
  • Orchestrator loop with crash recovery and rate-limit fallback
  • Human-in-the-loop review of outgoing drafts
  • Multi-channel dispatch: email, WhatsApp, social helpers
  • ERP enrichment for invoice references`,
		Version: formatVersion(info),
		// Run displays help when the root command is invoked without subcommands.
		// This ensures PersistentPreRunE is called for flag validation.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Bind flags to Viper
			if err := BindGlobalFlags(v, cmd); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}

			// Export NO_COLOR so the logger, TUI, and spawned helper
			// commands all see the same color decision.
			if flags.NoColor {
				if err := os.Setenv("NO_COLOR", "1"); err != nil {
					return fmt.Errorf("failed to set NO_COLOR: %w", err)
				}
			}

			// Initialize logger based on flags (protected by mutex for thread safety)
			globalLoggerMu.Lock()
			globalLogger = InitLogger(flags.Verbose, flags.Quiet)
			globalLoggerMu.Unlock()

			return nil
		},
		// SilenceUsage prevents printing usage on error
		// (we handle our own error messages)
		SilenceUsage: true,
	}

	// Add global flags
	AddGlobalFlags(cmd, flags)

	// Add subcommands
	AddVersionCommand(cmd, info)
	AddInitCommand(cmd, flags)
	AddTaskCommand(cmd, flags)
	AddStatusCommand(cmd, flags)
	AddReviewCommand(cmd, flags)
	AddRunCommand(cmd, flags)

	return cmd
}

// formatVersion creates the version string from build info.
func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// loadConfig resolves configuration for a command invocation, layering
// global flag overrides on top of file and environment values.
func loadConfig(ctx context.Context, flags *GlobalFlags) (*config.Config, error) {
	if flags.ConfigPath != "" {
		cfg, err := config.LoadFromPaths(ctx, flags.ConfigPath, "")
		if err != nil {
			return nil, err
		}
		if flags.VaultPath != "" {
			cfg.Vault.Path = flags.VaultPath
		}
		return cfg, nil
	}

	return config.LoadWithOverrides(ctx, &config.Config{
		Vault: config.VaultConfig{Path: flags.VaultPath},
	})
}

// Execute runs the root command with the provided context and build info.
func Execute(ctx context.Context, info BuildInfo) error {
	flags := &GlobalFlags{}
	//nolint:contextcheck // Cobra command pattern uses cmd.Context() internally
	cmd := newRootCmd(flags, info)
	return cmd.ExecuteContext(ctx)
}
