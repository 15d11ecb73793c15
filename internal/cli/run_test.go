package cli

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/errors"
)

func TestNewRunCmd(t *testing.T) {
	t.Parallel()

	flags := &RunFlags{}
	cmd := newRunCmd(&GlobalFlags{}, flags)

	assert.Equal(t, "run", cmd.Use)
	assert.Contains(t, cmd.Long, "orchestrator")
	assert.Contains(t, cmd.Long, "dispatcher")

	modeFlag := cmd.Flags().Lookup("mode")
	require.NotNil(t, modeFlag)
	assert.Equal(t, runModeAll, modeFlag.DefValue)

	dryRunFlag := cmd.Flags().Lookup("dry-run")
	require.NotNil(t, dryRunFlag)
	assert.Equal(t, "false", dryRunFlag.DefValue)
}

func TestAddRunCommand(t *testing.T) {
	t.Parallel()

	rootCmd := newRootCmd(&GlobalFlags{}, BuildInfo{})

	runCmd, _, err := rootCmd.Find([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "run", runCmd.Use)
}

func TestValidateRunMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mode      string
		expectErr bool
	}{
		{"all is valid", runModeAll, false},
		{"orchestrator is valid", runModeOrchestrator, false},
		{"dispatcher is valid", runModeDispatcher, false},
		{"unknown mode fails", "bogus", true},
		{"empty mode fails", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := validateRunMode(tc.mode)
			if tc.expectErr {
				require.ErrorIs(t, err, errors.ErrInvalidArgument)
				assert.Contains(t, err.Error(), tc.mode)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRunDaemon_RequiresVaultPath(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	err := runDaemon(context.Background(), zerolog.Nop(), cfg, runModeAll)
	require.ErrorIs(t, err, errors.ErrConfigNotFound)
}

func TestRunDaemon_StopsCleanOnCanceledContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mode string
	}{
		{"all loops", runModeAll},
		{"orchestrator only", runModeOrchestrator},
		{"dispatcher only", runModeDispatcher},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			cfg.Vault.Path = t.TempDir()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			// A canceled context reads as a clean shutdown, not an error.
			err := runDaemon(ctx, zerolog.Nop(), cfg, tc.mode)
			require.NoError(t, err)
		})
	}
}

func TestBuildOrchestrator(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Vault.Path = t.TempDir()

	vm := newStatusTestVault(t)
	controller := buildOrchestrator(vm, cfg, zerolog.Nop())
	assert.NotNil(t, controller)
}

func TestBuildDispatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{
			name:   "email only",
			mutate: func(_ *config.Config) {},
		},
		{
			name: "with whatsapp",
			mutate: func(cfg *config.Config) {
				cfg.Dispatch.WhatsApp.APIURL = "https://wa.example/api"
				cfg.Dispatch.WhatsApp.APIKey = "key"
				cfg.Dispatch.WhatsApp.From = "+15550000000"
			},
		},
		{
			name: "with social helper commands",
			mutate: func(cfg *config.Config) {
				cfg.Dispatch.Social.Commands = map[string]string{
					"linkedin": "linkedin-helper post",
					"twitter":  "twitter-helper post",
				}
			},
		},
		{
			name: "with erp fetcher",
			mutate: func(cfg *config.Config) {
				cfg.ERP.URL = "https://odoo.example"
				cfg.ERP.Database = "prod"
				cfg.ERP.Username = "ops"
				cfg.ERP.Password = "secret"
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			cfg.Vault.Path = t.TempDir()
			tc.mutate(cfg)

			vm := newStatusTestVault(t)
			dispatcher := buildDispatcher(vm, cfg, zerolog.Nop())
			assert.NotNil(t, dispatcher)
		})
	}
}
