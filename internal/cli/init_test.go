package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/tui"
)

func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	flags := &InitFlags{}
	cmd := newInitCmd(&GlobalFlags{}, flags)

	assert.Equal(t, "init [path]", cmd.Use)
	assert.Contains(t, cmd.Short, "Initialize")
	assert.Contains(t, cmd.Long, "stage directories")

	forceFlag := cmd.Flags().Lookup("force")
	require.NotNil(t, forceFlag)
	assert.Equal(t, "false", forceFlag.DefValue)
}

func TestAddInitCommand(t *testing.T) {
	t.Parallel()

	rootCmd := newRootCmd(&GlobalFlags{}, BuildInfo{})

	initCmd, _, err := rootCmd.Find([]string{"init"})
	require.NoError(t, err)
	assert.Equal(t, "init [path]", initCmd.Use)
}

func TestRunInit_CreatesVaultTree(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "vault")
	cfg := &config.Config{Vault: config.VaultConfig{AgentID: "orchestrator"}}

	var buf bytes.Buffer
	err := runInit(context.Background(), &buf, zerolog.Nop(), cfg, &InitFlags{}, []string{target})
	require.NoError(t, err)

	for _, stage := range constants.AllStages() {
		assert.DirExists(t, filepath.Join(target, stage.String()))
	}
	assert.DirExists(t, filepath.Join(target, constants.StageInProgress.String(), "orchestrator"))

	for _, doc := range constants.ContextDocNames() {
		assert.FileExists(t, filepath.Join(target, doc))
	}

	handbook, err := os.ReadFile(filepath.Join(target, constants.HandbookFileName)) //nolint:gosec // Test-controlled path
	require.NoError(t, err)
	assert.Contains(t, string(handbook), "PendingApproval")

	configPath := filepath.Join(target, constants.OpsDeskHome, constants.ConfigFileName)
	assert.FileExists(t, configPath)

	content, err := os.ReadFile(configPath) //nolint:gosec // Test-controlled path
	require.NoError(t, err)
	assert.Contains(t, string(content), "# OpsDesk Project Configuration")

	// The generated file round-trips through the config reader's yaml tags.
	var parsed projectConfig
	require.NoError(t, yaml.Unmarshal(content, &parsed))
	assert.Equal(t, target, parsed.Vault.Path)
	assert.Equal(t, "orchestrator", parsed.Vault.AgentID)

	output := buf.String()
	assert.Contains(t, output, "Vault initialized at")
	assert.Contains(t, output, "created "+constants.HandbookFileName)
	assert.Contains(t, output, "Suggested next commands")
}

func TestRunInit_PreservesExistingDocs(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "vault")
	require.NoError(t, os.MkdirAll(target, 0o750))

	custom := "# Handbook\n\nHouse rules live here.\n"
	require.NoError(t, os.WriteFile(filepath.Join(target, constants.HandbookFileName), []byte(custom), 0o600))

	cfg := &config.Config{Vault: config.VaultConfig{AgentID: "orchestrator"}}

	var buf bytes.Buffer
	err := runInit(context.Background(), &buf, zerolog.Nop(), cfg, &InitFlags{}, []string{target})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(target, constants.HandbookFileName)) //nolint:gosec // Test-controlled path
	require.NoError(t, err)
	assert.Equal(t, custom, string(content))

	output := buf.String()
	assert.NotContains(t, output, "created "+constants.HandbookFileName)
	assert.Contains(t, output, "created "+constants.DashboardFileName)
	assert.Contains(t, output, "created "+constants.GoalsFileName)
}

func TestRunInit_KeepsExistingConfigWithoutForce(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "vault")
	cfg := &config.Config{Vault: config.VaultConfig{AgentID: "orchestrator"}}

	var buf bytes.Buffer
	require.NoError(t, runInit(context.Background(), &buf, zerolog.Nop(), cfg, &InitFlags{}, []string{target}))

	// Stamp the config so an overwrite is detectable.
	configPath := filepath.Join(target, constants.OpsDeskHome, constants.ConfigFileName)
	marker := "# hand-edited marker\n"
	existing, err := os.ReadFile(configPath) //nolint:gosec // Test-controlled path
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, append([]byte(marker), existing...), 0o600))

	// Without --force and without a terminal the confirm prompt cancels,
	// which keeps the existing file.
	buf.Reset()
	require.NoError(t, runInit(context.Background(), &buf, zerolog.Nop(), cfg, &InitFlags{}, []string{target}))

	content, err := os.ReadFile(configPath) //nolint:gosec // Test-controlled path
	require.NoError(t, err)
	assert.Contains(t, string(content), marker)
	assert.Contains(t, buf.String(), "keeping existing")
}

func TestRunInit_ForceOverwritesConfig(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "vault")
	cfg := &config.Config{Vault: config.VaultConfig{AgentID: "orchestrator"}}

	var buf bytes.Buffer
	require.NoError(t, runInit(context.Background(), &buf, zerolog.Nop(), cfg, &InitFlags{}, []string{target}))

	configPath := filepath.Join(target, constants.OpsDeskHome, constants.ConfigFileName)
	marker := "# hand-edited marker\n"
	require.NoError(t, os.WriteFile(configPath, []byte(marker), 0o600))

	buf.Reset()
	require.NoError(t, runInit(context.Background(), &buf, zerolog.Nop(), cfg, &InitFlags{Force: true}, []string{target}))

	content, err := os.ReadFile(configPath) //nolint:gosec // Test-controlled path
	require.NoError(t, err)
	assert.NotContains(t, string(content), marker)
	assert.Contains(t, string(content), "# OpsDesk Project Configuration")
}

func TestRunInit_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &config.Config{Vault: config.VaultConfig{AgentID: "orchestrator"}}

	var buf bytes.Buffer
	err := runInit(ctx, &buf, zerolog.Nop(), cfg, &InitFlags{}, []string{t.TempDir()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestWriteStarterDocs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	created, err := writeStarterDocs(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, constants.ContextDocNames(), created)

	// Second pass finds everything in place and creates nothing.
	created, err = writeStarterDocs(root)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestWriteProjectConfig(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	var buf bytes.Buffer
	written, path, err := writeProjectConfig(&buf, root, "orchestrator", false, tui.NewOutputStyles())
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, filepath.Join(root, constants.OpsDeskHome, constants.ConfigFileName), path)
	assert.FileExists(t, path)

	content, err := os.ReadFile(path) //nolint:gosec // Test-controlled path
	require.NoError(t, err)

	var parsed projectConfig
	require.NoError(t, yaml.Unmarshal(content, &parsed))
	assert.Equal(t, root, parsed.Vault.Path)
	assert.Equal(t, "orchestrator", parsed.Vault.AgentID)
}
