package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/opsdesk/internal/channel"
	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/dispatch"
	"github.com/mrz1836/opsdesk/internal/domain"
	"github.com/mrz1836/opsdesk/internal/engine"
	"github.com/mrz1836/opsdesk/internal/erp"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
	"github.com/mrz1836/opsdesk/internal/signal"
	"github.com/mrz1836/opsdesk/internal/vault"
	"github.com/mrz1836/opsdesk/internal/worker"
)

// Run modes select which halves of the daemon start.
const (
	runModeAll          = "all"
	runModeOrchestrator = "orchestrator"
	runModeDispatcher   = "dispatcher"
)

// RunFlags holds flags specific to the run command.
type RunFlags struct {
	// Mode selects which loops start: all, orchestrator or dispatcher.
	Mode string
	// DryRun makes the dispatcher log sends without transmitting.
	DryRun bool
}

// newRunCmd creates the run command.
func newRunCmd(globals *GlobalFlags, flags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the orchestrator and dispatcher loops",
		Long: `Run the OpsDesk daemon against the configured vault.

The orchestrator polls Intake, claims tasks and drives reasoning workers
through the bounded persistence loop. The dispatcher polls Approved and
transmits released drafts through the configured channels. Both run
until interrupted; a second interrupt forces an immediate exit.

Startup sweeps InProgress back to Intake and releases stale claim locks,
so a crashed previous run never strands work.`,
		Example: `  opsdesk run
  opsdesk run --mode dispatcher
  opsdesk run --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateRunMode(flags.Mode); err != nil {
				return err
			}

			cfg, err := loadConfig(cmd.Context(), globals)
			if err != nil {
				return err
			}

			// An unset boolean flag is indistinguishable from false, so
			// --dry-run overrides config only when actually given.
			if cmd.Flags().Changed("dry-run") {
				cfg.Dispatch.DryRun = flags.DryRun
			}

			return runDaemon(cmd.Context(), GetLogger(), cfg, flags.Mode)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&flags.Mode, "mode", runModeAll, "which loops to start: all, orchestrator or dispatcher")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "log what would be sent without transmitting")

	return cmd
}

// AddRunCommand adds the run command to the root command.
func AddRunCommand(rootCmd *cobra.Command, globals *GlobalFlags) {
	flags := &RunFlags{}
	rootCmd.AddCommand(newRunCmd(globals, flags))
}

// validateRunMode rejects unknown --mode values.
func validateRunMode(mode string) error {
	switch mode {
	case runModeAll, runModeOrchestrator, runModeDispatcher:
		return nil
	default:
		return fmt.Errorf("invalid argument: mode %q must be one of all, orchestrator, dispatcher: %w",
			mode, opserrors.ErrInvalidArgument)
	}
}

// runDaemon wires the vault, workers and channels, then runs the selected
// loops until a signal or a fatal error stops them.
func runDaemon(ctx context.Context, logger zerolog.Logger, cfg *config.Config, mode string) error {
	root, err := cfg.RequireVaultPath()
	if err != nil {
		return err
	}

	var vaultOpts []vault.Option
	if cfg.Orchestrator.ClaimTimeout > 0 {
		vaultOpts = append(vaultOpts, vault.WithClaimTimeout(cfg.Orchestrator.ClaimTimeout))
	}

	vm, err := vault.New(root, cfg.Vault.AgentID, logger, vaultOpts...)
	if err != nil {
		return err
	}

	// First signal cancels the context, second one force-exits.
	handler := signal.NewHandler(ctx, signal.WithForceExit())
	defer handler.Stop()

	g, gctx := errgroup.WithContext(handler.Context())

	if mode == runModeAll || mode == runModeOrchestrator {
		controller := buildOrchestrator(vm, cfg, logger)
		g.Go(func() error {
			return controller.Run(gctx)
		})
	}

	if mode == runModeAll || mode == runModeDispatcher {
		dispatcher := buildDispatcher(vm, cfg, logger)
		g.Go(func() error {
			return dispatcher.Run(gctx)
		})
	}

	logger.Info().
		Str("vault", vm.Root()).
		Str("agent", vm.AgentID()).
		Str("mode", mode).
		Bool("dry_run", cfg.Dispatch.DryRun).
		Msg("opsdesk running")

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info().Msg("opsdesk stopped")
	return nil
}

// buildOrchestrator assembles the intake controller and its worker stack.
func buildOrchestrator(vm *vault.Manager, cfg *config.Config, logger zerolog.Logger) *engine.Controller {
	executor := &worker.DefaultExecutor{}
	runners := worker.BuildRunners(&cfg.Worker, executor, logger)
	selector := worker.NewSelector(runners, logger)
	loop := engine.NewLoop(vm, selector, logger, engine.LoopOptionsFromConfig(&cfg.Worker)...)

	return engine.NewController(vm, selector, loop, &cfg.Orchestrator, logger)
}

// buildDispatcher assembles the approval dispatcher with every channel
// the configuration names.
func buildDispatcher(vm *vault.Manager, cfg *config.Config, logger zerolog.Logger) *dispatch.Dispatcher {
	senders := []channel.Sender{
		channel.NewEmailSender(&cfg.Dispatch.Email, logger),
	}

	if cfg.Dispatch.WhatsApp.APIURL != "" {
		senders = append(senders, channel.NewWhatsAppSender(&cfg.Dispatch.WhatsApp, logger))
	}

	executor := &worker.DefaultExecutor{}
	for _, platform := range []domain.Channel{domain.ChannelLinkedIn, domain.ChannelTwitter, domain.ChannelFacebook} {
		sender, err := channel.NewSocialSender(platform, &cfg.Dispatch.Social, executor, logger)
		if err != nil {
			// No helper command configured for this platform.
			logger.Debug().Str("platform", platform.String()).Msg("social channel not configured")
			continue
		}
		senders = append(senders, sender)
	}

	registry := channel.NewRegistry(senders...)

	// The fetcher stays a nil interface when no ERP is configured; a nil
	// *erp.Client here would defeat the dispatcher's nil check.
	var fetcher dispatch.DocumentFetcher
	if cfg.ERP.URL != "" {
		fetcher = erp.NewClient(&cfg.ERP, logger)
	}

	return dispatch.New(vm, registry, fetcher, &cfg.Dispatch, logger)
}
