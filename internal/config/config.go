// Package config provides configuration management for OpsDesk with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (OPSDESK_* prefix)
//  3. Project config (.opsdesk/config.yaml)
//  4. Global config (~/.opsdesk/config.yaml)
//  5. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Config is the root configuration structure for OpsDesk.
// It contains all configuration sections for the application.
type Config struct {
	// Vault contains settings for the task vault location and identity.
	Vault VaultConfig `yaml:"vault" mapstructure:"vault"`

	// Orchestrator contains settings for the intake polling controller.
	Orchestrator OrchestratorConfig `yaml:"orchestrator" mapstructure:"orchestrator"`

	// Worker contains settings for reasoning worker execution and the
	// bounded persistence loop.
	Worker WorkerConfig `yaml:"worker" mapstructure:"worker"`

	// Dispatch contains settings for the approval dispatcher and its
	// outbound channels.
	Dispatch DispatchConfig `yaml:"dispatch" mapstructure:"dispatch"`

	// ERP contains settings for the ERP document enrichment client.
	ERP ERPConfig `yaml:"erp" mapstructure:"erp"`
}

// VaultConfig contains settings for the task vault.
// The vault is a plain folder tree; every stage is a named subfolder.
type VaultConfig struct {
	// Path is the absolute path to the vault root directory.
	// There is no default: every command that touches the vault requires it,
	// either here or via the OPSDESK_VAULT_PATH environment variable.
	Path string `yaml:"path" mapstructure:"path"`

	// AgentID identifies this orchestrator instance. Claimed tasks live in
	// InProgress/<agent_id> and activity log entries carry it.
	// Default: "orchestrator"
	AgentID string `yaml:"agent_id" mapstructure:"agent_id"`
}

// OrchestratorConfig contains settings for the intake polling controller.
type OrchestratorConfig struct {
	// PollInterval is how often the controller scans the Intake stage.
	// Default: 10s, Valid range: 1 second to 10 minutes
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// RetryDelay is the pause after a poll-cycle error before retrying.
	// Default: 5s
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`

	// ClaimTimeout bounds how long a claim waits for a contended task lock.
	// At least one acquisition attempt is always made, even when set very low.
	// Default: 10s
	ClaimTimeout time.Duration `yaml:"claim_timeout" mapstructure:"claim_timeout"`
}

// WorkerConfig contains settings for reasoning worker execution.
// These settings control which AI CLI runs tasks and how the persistence
// loop bounds its work.
type WorkerConfig struct {
	// Agent specifies which AI CLI to use first (e.g., "claude", "gemini", "codex").
	// Default: "claude"
	Agent string `yaml:"agent" mapstructure:"agent"`

	// FallbackOrder is the ordered list of workers tried when the preferred
	// one is rate limited or unavailable.
	// Default: ["claude", "gemini", "codex"]
	FallbackOrder []string `yaml:"fallback_order" mapstructure:"fallback_order"`

	// APIKeyEnvVars maps worker names to their API key environment variable names.
	// This allows configuring custom API key env vars per provider.
	// Example: {"claude": "MY_ANTHROPIC_KEY", "codex": "WORK_OPENAI_KEY"}
	// If a worker is not in the map, its default env var is used.
	// Defaults: {"claude": "ANTHROPIC_API_KEY", "gemini": "GEMINI_API_KEY", "codex": "OPENAI_API_KEY"}
	APIKeyEnvVars map[string]string `yaml:"api_key_env_vars" mapstructure:"api_key_env_vars"`

	// MaxIterations bounds worker invocations per task before the task is
	// declared failed.
	// Default: 10, Valid range: 1-100
	MaxIterations int `yaml:"max_iterations" mapstructure:"max_iterations"`

	// CheckInterval is the pause between persistence loop iterations.
	// Default: 5s
	CheckInterval time.Duration `yaml:"check_interval" mapstructure:"check_interval"`

	// Timeout is the maximum duration for a single worker invocation.
	// A timeout is terminal for the task, not retried.
	// Default: 15m
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// StrictCompletion requires an explicit completion signal before a task
	// is declared done. When false (the default), a worker run that exits
	// cleanly without any signal is trusted and the task completes with a
	// logged warning.
	// Default: false
	StrictCompletion bool `yaml:"strict_completion" mapstructure:"strict_completion"`
}

// GetAPIKeyEnvVar returns the API key environment variable for the given worker.
// It checks the configured APIKeyEnvVars map first, then falls back to the worker's default.
func (c *WorkerConfig) GetAPIKeyEnvVar(worker string) string {
	if c.APIKeyEnvVars != nil {
		if envVar, ok := c.APIKeyEnvVars[worker]; ok {
			return envVar
		}
	}
	// Fall back to worker defaults
	switch worker {
	case "claude":
		return "ANTHROPIC_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	case "codex":
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// DispatchConfig contains settings for the approval dispatcher.
// The dispatcher scans the Approved stage and transmits drafts through
// the configured outbound channels.
type DispatchConfig struct {
	// Interval is how often the dispatcher scans the Approved stage.
	// Default: 15s, Valid range: 1 second to 10 minutes
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// DryRun logs what would be sent without transmitting anything.
	// Tasks still move through terminal stages so the flow can be rehearsed.
	// Default: false
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`

	// Email contains SMTP settings for the email channel.
	Email EmailConfig `yaml:"email" mapstructure:"email"`

	// WhatsApp contains HTTP API settings for the whatsapp channel.
	WhatsApp WhatsAppConfig `yaml:"whatsapp" mapstructure:"whatsapp"`

	// Social contains helper command settings for social posting channels.
	Social SocialConfig `yaml:"social" mapstructure:"social"`
}

// EmailConfig contains SMTP settings for outbound email.
type EmailConfig struct {
	// SMTPHost is the SMTP server hostname.
	// Default: "smtp.gmail.com"
	SMTPHost string `yaml:"smtp_host" mapstructure:"smtp_host"`

	// SMTPPort is the SMTP server port. STARTTLS is negotiated on connect.
	// Default: 587
	SMTPPort int `yaml:"smtp_port" mapstructure:"smtp_port"`

	// Username is the SMTP account name, usually the sending address.
	Username string `yaml:"username" mapstructure:"username"`

	// Password is the SMTP password or app password. Prefer setting this
	// via OPSDESK_DISPATCH_EMAIL_PASSWORD instead of a config file.
	Password string `yaml:"password" mapstructure:"password"`

	// From is the sender address. Falls back to Username when empty.
	From string `yaml:"from,omitempty" mapstructure:"from"`
}

// FromAddress returns the effective sender address.
func (c *EmailConfig) FromAddress() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

// WhatsAppConfig contains HTTP API settings for outbound whatsapp messages.
type WhatsAppConfig struct {
	// APIURL is the message send endpoint of the whatsapp gateway.
	APIURL string `yaml:"api_url" mapstructure:"api_url"`

	// APIKey authenticates requests to the gateway. Prefer setting this
	// via OPSDESK_DISPATCH_WHATSAPP_API_KEY instead of a config file.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// From is the sending account identifier, where the gateway requires one.
	From string `yaml:"from,omitempty" mapstructure:"from"`
}

// SocialConfig contains helper command settings for social posting.
// Posting to social platforms is delegated to external helper commands so
// platform credentials and session state never enter this process.
type SocialConfig struct {
	// Commands maps platform names to the helper command invoked to post.
	// The post body is piped to the command's stdin.
	// Example: {"linkedin": "opsdesk-post-linkedin", "x": "opsdesk-post-x --profile work"}
	Commands map[string]string `yaml:"commands" mapstructure:"commands"`

	// Timeout is the maximum duration for a single helper command run.
	// Default: 2m
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ERPConfig contains settings for the ERP document client.
// Approved drafts that reference an invoice are enriched with the rendered
// PDF fetched from this ERP instance.
type ERPConfig struct {
	// URL is the base URL of the ERP instance (e.g., "https://erp.example.com").
	URL string `yaml:"url" mapstructure:"url"`

	// Database is the ERP database name used during authentication.
	Database string `yaml:"database" mapstructure:"database"`

	// Username is the ERP login.
	Username string `yaml:"username" mapstructure:"username"`

	// Password is the ERP password or API key. Prefer setting this via
	// OPSDESK_ERP_PASSWORD instead of a config file.
	Password string `yaml:"password" mapstructure:"password"`

	// Timeout is the maximum duration for a single ERP HTTP request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}
