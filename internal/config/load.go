package config

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/opsdesk/internal/errors"
)

// mergeStringMaps merges src map into dst map, creating dst if nil.
// Returns the merged map (which may be the same as dst if it was non-nil).
func mergeStringMaps(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// newViperInstance creates a new Viper instance with standard OpsDesk configuration.
// This includes environment variable prefix (OPSDESK_), key replacer, and defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("OPSDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file not found error.
// This helps consolidate the common pattern of checking for missing config files.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// unmarshalAndValidate unmarshals viper config into Config struct and validates it.
func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Load reads configuration from all available sources with proper precedence.
// Configuration is loaded in the following order (highest precedence first):
//  1. Environment variables (OPSDESK_* prefix)
//  2. Project config (.opsdesk/config.yaml)
//  3. Global config (~/.opsdesk/config.yaml)
//  4. Built-in defaults
//
// For CLI flag overrides, use LoadWithOverrides instead.
//
// The function returns an error only for actual configuration problems,
// not for missing config files (which are expected in many scenarios).
//
// The context parameter is accepted for API consistency and future use,
// but is not currently used for cancellation since config file reads are
// typically fast local I/O operations.
func Load(ctx context.Context) (*Config, error) {
	v := newViperInstance()

	// Load global config first (lower precedence)
	// Global config provides user-wide defaults that can be overridden per-project
	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}

	// Load project config (higher precedence, merges over global)
	// Project config allows per-vault customization
	if err := loadProjectConfig(v); err != nil {
		return nil, err
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	// Log loaded configuration for debugging
	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Str("vault_path", cfg.Vault.Path).
		Dur("orchestrator.poll_interval", cfg.Orchestrator.PollInterval).
		Dur("worker.timeout", cfg.Worker.Timeout).
		Dur("dispatch.interval", cfg.Dispatch.Interval).
		Msg("configuration loaded and unmarshaled")

	// Validate the configuration
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &cfg, nil
}

// loadGlobalConfig attempts to load the global config file (~/.opsdesk/config.yaml).
// Returns nil if the file doesn't exist or home directory cannot be determined.
func loadGlobalConfig(v *viper.Viper) error {
	globalConfigPath, ok := getGlobalConfigPathIfExists()
	if !ok {
		// Global config doesn't exist or home dir unavailable, skip silently
		return nil
	}

	v.SetConfigFile(globalConfigPath)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// getGlobalConfigPathIfExists returns the global config path if it exists.
// Returns empty string and false if the home directory cannot be determined
// or the config file does not exist.
func getGlobalConfigPathIfExists() (string, bool) {
	globalConfigPath, err := GlobalConfigPath()
	if err != nil {
		return "", false
	}

	if _, err := os.Stat(globalConfigPath); err != nil {
		return "", false
	}

	return globalConfigPath, true
}

// loadProjectConfig attempts to load the project config file (.opsdesk/config.yaml).
// Returns nil if the file doesn't exist.
func loadProjectConfig(v *viper.Viper) error {
	projectConfigPath := ProjectConfigPath()
	if !fileExists(projectConfigPath) {
		// Project config doesn't exist, skip silently
		return nil
	}

	v.SetConfigFile(projectConfigPath)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read project config file")
	}
	return nil
}

// fileExists returns true if the file at path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadWithOverrides loads configuration and applies CLI flag overrides.
// The overrides parameter contains values from CLI flags which have the
// highest precedence in the configuration hierarchy.
//
// Only non-zero values in overrides are applied. Zero values are ignored
// to allow partial overrides.
func LoadWithOverrides(ctx context.Context, overrides *Config) (*Config, error) {
	// Load base configuration first
	cfg, err := Load(ctx)
	if err != nil {
		return nil, err
	}

	// Apply overrides if provided
	if overrides != nil {
		applyOverrides(cfg, overrides)
	}

	// Re-validate after applying overrides
	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration after overrides")
	}

	return cfg, nil
}

// LoadFromPaths loads configuration from specific file paths for testing.
// This function allows precise control over which config files are loaded.
//
// projectConfigPath is the path to project-level config (higher priority).
// globalConfigPath is the path to global config (lower priority).
// Either path can be empty to skip that level.
func LoadFromPaths(_ context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	// Load global config first (lower precedence)
	if globalConfigPath != "" {
		v.SetConfigFile(globalConfigPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}

	// Load project config (higher precedence, merges over global)
	if projectConfigPath != "" {
		v.SetConfigFile(projectConfigPath)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}

	return unmarshalAndValidate(v)
}

// setDefaults configures all default values on the Viper instance.
// These defaults match the values from DefaultConfig().
// IMPORTANT: Keys must match the YAML tag names exactly for proper mapping.
func setDefaults(v *viper.Viper) {
	// Vault defaults
	v.SetDefault("vault.path", "")
	v.SetDefault("vault.agent_id", "orchestrator")

	// Orchestrator defaults
	v.SetDefault("orchestrator.poll_interval", "10s")
	v.SetDefault("orchestrator.retry_delay", "5s")
	v.SetDefault("orchestrator.claim_timeout", "10s")

	// Worker defaults
	v.SetDefault("worker.agent", "claude")
	v.SetDefault("worker.fallback_order", []string{"claude", "gemini", "codex"})
	v.SetDefault("worker.api_key_env_vars", map[string]string{
		"claude": "ANTHROPIC_API_KEY",
		"gemini": "GEMINI_API_KEY",
		"codex":  "OPENAI_API_KEY",
	})
	v.SetDefault("worker.max_iterations", 10)
	v.SetDefault("worker.check_interval", "5s")
	v.SetDefault("worker.timeout", "15m")
	v.SetDefault("worker.strict_completion", false)

	// Dispatch defaults
	v.SetDefault("dispatch.interval", "15s")
	v.SetDefault("dispatch.dry_run", false)
	v.SetDefault("dispatch.email.smtp_host", "smtp.gmail.com")
	v.SetDefault("dispatch.email.smtp_port", 587)
	v.SetDefault("dispatch.social.commands", map[string]string{})
	v.SetDefault("dispatch.social.timeout", "2m")

	// ERP defaults
	v.SetDefault("erp.timeout", "30s")
}

// applyOverrides merges non-zero override values into the config.
// Only non-zero values are applied to allow partial overrides.
//
// IMPORTANT: Boolean fields (DryRun, StrictCompletion) cannot be overridden
// to false using this function because Go's zero value for bool is false,
// making it impossible to distinguish "explicitly set to false" from
// "not set". CLI implementations should handle boolean flags separately:
//
//	// Example CLI handling for bool flags:
//	if cmd.Flags().Changed("dry-run") {
//	    cfg.Dispatch.DryRun = dryRunFlag  // Use flag value directly
//	}
func applyOverrides(cfg, overrides *Config) {
	// Vault overrides
	if overrides.Vault.Path != "" {
		cfg.Vault.Path = overrides.Vault.Path
	}
	if overrides.Vault.AgentID != "" {
		cfg.Vault.AgentID = overrides.Vault.AgentID
	}

	// Orchestrator overrides
	if overrides.Orchestrator.PollInterval != 0 {
		cfg.Orchestrator.PollInterval = overrides.Orchestrator.PollInterval
	}
	if overrides.Orchestrator.RetryDelay != 0 {
		cfg.Orchestrator.RetryDelay = overrides.Orchestrator.RetryDelay
	}
	if overrides.Orchestrator.ClaimTimeout != 0 {
		cfg.Orchestrator.ClaimTimeout = overrides.Orchestrator.ClaimTimeout
	}

	// Worker overrides (extracted to reduce complexity)
	applyWorkerOverrides(cfg, overrides)

	// Dispatch overrides
	if overrides.Dispatch.Interval != 0 {
		cfg.Dispatch.Interval = overrides.Dispatch.Interval
	}
	// DryRun is a bool - we can't distinguish false from unset,
	// so we don't override it here. Use explicit flag handling in CLI.

	// ERP overrides
	if overrides.ERP.URL != "" {
		cfg.ERP.URL = overrides.ERP.URL
	}
	if overrides.ERP.Timeout != 0 {
		cfg.ERP.Timeout = overrides.ERP.Timeout
	}
}

// applyWorkerOverrides applies worker-related overrides to the config.
// This is extracted from applyOverrides to reduce cognitive complexity.
func applyWorkerOverrides(cfg, overrides *Config) {
	if overrides.Worker.Agent != "" {
		cfg.Worker.Agent = overrides.Worker.Agent
	}
	if len(overrides.Worker.FallbackOrder) > 0 {
		cfg.Worker.FallbackOrder = overrides.Worker.FallbackOrder
	}
	cfg.Worker.APIKeyEnvVars = mergeStringMaps(cfg.Worker.APIKeyEnvVars, overrides.Worker.APIKeyEnvVars)
	if overrides.Worker.MaxIterations != 0 {
		cfg.Worker.MaxIterations = overrides.Worker.MaxIterations
	}
	if overrides.Worker.CheckInterval != 0 {
		cfg.Worker.CheckInterval = overrides.Worker.CheckInterval
	}
	if overrides.Worker.Timeout != 0 {
		cfg.Worker.Timeout = overrides.Worker.Timeout
	}
	// StrictCompletion is a bool - same caveat as DryRun
}

// viperDecoderOption returns the decoder options for Viper unmarshal.
// This configures mapstructure to handle time.Duration conversion from strings.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}
