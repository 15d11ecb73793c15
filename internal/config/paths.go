package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/errors"
)

// GlobalConfigDir returns the path to the global OpsDesk configuration directory.
// This is typically ~/.opsdesk on Unix systems. The OPSDESK_HOME environment
// variable overrides the location entirely.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigDir() (string, error) {
	if opsdeskHome := os.Getenv("OPSDESK_HOME"); opsdeskHome != "" {
		return opsdeskHome, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.OpsDeskHome), nil
}

// ProjectConfigDir returns the relative path to the project configuration directory.
// This is always .opsdesk relative to the working directory.
func ProjectConfigDir() string {
	return constants.OpsDeskHome
}

// GlobalConfigPath returns the full path to the global configuration file.
// This is typically ~/.opsdesk/config.yaml on Unix systems.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, constants.ConfigFileName), nil
}

// ProjectConfigPath returns the relative path to the project configuration file.
// This is always .opsdesk/config.yaml relative to the working directory.
func ProjectConfigPath() string {
	return filepath.Join(ProjectConfigDir(), constants.ConfigFileName)
}
