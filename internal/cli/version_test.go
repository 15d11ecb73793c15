package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersionCmd_Output(t *testing.T) {
	t.Parallel()

	cmd := newVersionCmd(BuildInfo{
		Version: "1.0.0",
		Commit:  "abc123",
		Date:    "2025-01-01",
	})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Equal(t, "opsdesk 1.0.0 (commit: abc123, built: 2025-01-01)\n", buf.String())
}

func TestVersionCmd_ViaRoot(t *testing.T) {
	t.Parallel()

	flags := &GlobalFlags{}
	cmd := newRootCmd(flags, BuildInfo{Version: "2.1.0"})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "opsdesk 2.1.0")
}

func TestVersionCmd_RejectsArgs(t *testing.T) {
	t.Parallel()

	cmd := newVersionCmd(BuildInfo{})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"extra"})

	err := cmd.Execute()
	require.Error(t, err)
}

func TestAddVersionCommand(t *testing.T) {
	t.Parallel()

	rootCmd := newRootCmd(&GlobalFlags{}, BuildInfo{})

	versionCmd, _, err := rootCmd.Find([]string{"version"})
	require.NoError(t, err)
	assert.Equal(t, "version", versionCmd.Use)
}
