package config

import (
	"strings"
	"time"

	"github.com/mrz1836/opsdesk/internal/errors"
)

// pollBounds are the accepted range for the polling intervals. Anything
// below a second hammers the filesystem; anything above ten minutes makes
// the daemon look dead.
const (
	minPollInterval = 1 * time.Second
	maxPollInterval = 10 * time.Minute
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - vault agent_id must be a plain folder name
//   - orchestrator intervals must be within sane polling bounds
//   - worker max_iterations must be between 1 and 100
//   - worker and ERP timeouts must be positive
//   - dispatch interval must be within sane polling bounds
//   - SMTP port must be a valid port number
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.Wrap(errors.ErrConfigInvalid, "config is nil")
	}

	if err := validateVaultConfig(&cfg.Vault); err != nil {
		return err
	}

	if err := validateOrchestratorConfig(&cfg.Orchestrator); err != nil {
		return err
	}

	if err := validateWorkerConfig(&cfg.Worker); err != nil {
		return err
	}

	if err := validateDispatchConfig(&cfg.Dispatch); err != nil {
		return err
	}

	if err := validateERPConfig(&cfg.ERP); err != nil {
		return err
	}

	return nil
}

// RequireVaultPath returns the configured vault path, or an error with
// guidance when no vault has been configured. An empty vault path is legal
// at load time so commands like "opsdesk version" work anywhere; commands
// that touch the vault call this first.
func (c *Config) RequireVaultPath() (string, error) {
	if c.Vault.Path == "" {
		return "", errors.Wrap(errors.ErrConfigNotFound,
			"vault.path is not set (set it in config or via OPSDESK_VAULT_PATH)")
	}
	return c.Vault.Path, nil
}

// validateVaultConfig checks vault-specific configuration values.
// AgentID becomes a folder name under InProgress, so it must be a single
// clean path segment.
func validateVaultConfig(cfg *VaultConfig) error {
	if cfg.AgentID == "" {
		return errors.Wrap(errors.ErrConfigInvalid,
			"vault.agent_id must not be empty")
	}

	if strings.ContainsAny(cfg.AgentID, `/\`) || strings.Contains(cfg.AgentID, "..") {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"vault.agent_id must be a plain folder name, got %q", cfg.AgentID)
	}

	return nil
}

// validateOrchestratorConfig checks orchestrator-specific configuration values.
func validateOrchestratorConfig(cfg *OrchestratorConfig) error {
	if cfg.PollInterval < minPollInterval || cfg.PollInterval > maxPollInterval {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"orchestrator.poll_interval must be between %s and %s, got %s",
			minPollInterval, maxPollInterval, cfg.PollInterval)
	}

	if cfg.RetryDelay <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"orchestrator.retry_delay must be positive, got %s", cfg.RetryDelay)
	}

	if cfg.ClaimTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"orchestrator.claim_timeout must be positive, got %s", cfg.ClaimTimeout)
	}

	return nil
}

// validateWorkerConfig checks worker-specific configuration values.
func validateWorkerConfig(cfg *WorkerConfig) error {
	if cfg.Agent == "" {
		return errors.Wrap(errors.ErrConfigInvalid,
			"worker.agent must not be empty")
	}

	if cfg.MaxIterations < 1 || cfg.MaxIterations > 100 {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"worker.max_iterations must be between 1 and 100, got %d", cfg.MaxIterations)
	}

	if cfg.CheckInterval < minPollInterval || cfg.CheckInterval > maxPollInterval {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"worker.check_interval must be between %s and %s, got %s",
			minPollInterval, maxPollInterval, cfg.CheckInterval)
	}

	if cfg.Timeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"worker.timeout must be positive, got %s", cfg.Timeout)
	}

	if len(cfg.FallbackOrder) == 0 {
		return errors.Wrap(errors.ErrConfigInvalid,
			"worker.fallback_order must list at least one worker")
	}

	return nil
}

// validateDispatchConfig checks dispatcher-specific configuration values.
func validateDispatchConfig(cfg *DispatchConfig) error {
	if cfg.Interval < minPollInterval || cfg.Interval > maxPollInterval {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"dispatch.interval must be between %s and %s, got %s",
			minPollInterval, maxPollInterval, cfg.Interval)
	}

	if cfg.Email.SMTPPort < 1 || cfg.Email.SMTPPort > 65535 {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"dispatch.email.smtp_port must be a valid port, got %d", cfg.Email.SMTPPort)
	}

	if cfg.Social.Timeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"dispatch.social.timeout must be positive, got %s", cfg.Social.Timeout)
	}

	return nil
}

// validateERPConfig checks ERP-specific configuration values.
func validateERPConfig(cfg *ERPConfig) error {
	if cfg.Timeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"erp.timeout must be positive, got %s", cfg.Timeout)
	}

	return nil
}
