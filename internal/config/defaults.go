package config

import (
	"github.com/mrz1836/opsdesk/internal/constants"
)

// DefaultConfig returns a new Config with sensible default values.
// These defaults are used as the base layer that can be overridden by
// config files, environment variables, and CLI flags.
//
// Default values are chosen to provide a working configuration out of the box
// while following best practices for security and performance.
func DefaultConfig() *Config {
	return &Config{
		Vault: VaultConfig{
			// Path: empty means not configured. Commands that touch the
			// vault fail with guidance until it is set.
			Path: "",

			// AgentID: the stable identity for this orchestrator instance.
			AgentID: constants.DefaultAgentID,
		},
		Orchestrator: OrchestratorConfig{
			// PollInterval: 10 seconds balances pickup latency against
			// filesystem churn on large vaults.
			PollInterval: constants.DefaultPollInterval,

			// RetryDelay: short pause after a failed poll cycle so a broken
			// vault mount does not spin the loop.
			RetryDelay: constants.DefaultRetryDelay,

			// ClaimTimeout: how long to wait on a contended task before
			// giving up and letting the other claimant have it.
			ClaimTimeout: constants.DefaultClaimTimeout,
		},
		Worker: WorkerConfig{
			// Agent: "claude" is the most capable default for planning work.
			Agent: "claude",

			// FallbackOrder: tried in order when the preferred worker is
			// rate limited or not installed.
			FallbackOrder: []string{"claude", "gemini", "codex"},

			// APIKeyEnvVars: standard provider environment variables.
			// This keeps API keys out of config files for security.
			APIKeyEnvVars: map[string]string{
				"claude": "ANTHROPIC_API_KEY",
				"gemini": "GEMINI_API_KEY",
				"codex":  "OPENAI_API_KEY",
			},

			// MaxIterations: bounds runaway tasks while leaving room for
			// multi-step plans.
			MaxIterations: constants.DefaultMaxIterations,

			// CheckInterval: pause between persistence loop iterations.
			CheckInterval: constants.DefaultCheckInterval,

			// Timeout: a single worker run longer than this signals work
			// the worker cannot safely finish.
			Timeout: constants.DefaultWorkerTimeout,

			// StrictCompletion: false trusts a clean worker exit. Enable to
			// require the explicit completion signal.
			StrictCompletion: false,
		},
		Dispatch: DispatchConfig{
			// Interval: 15 seconds keeps approval-to-send latency low.
			Interval: constants.DefaultDispatchInterval,

			// DryRun: false sends for real. Enable to rehearse the flow.
			DryRun: false,

			Email: EmailConfig{
				// SMTPHost/SMTPPort: Gmail with STARTTLS, the common case.
				SMTPHost: "smtp.gmail.com",
				SMTPPort: 587,
			},
			Social: SocialConfig{
				// Timeout: helper commands drive real browsers and can be slow.
				Timeout: constants.SocialHelperTimeout,
			},
		},
		ERP: ERPConfig{
			// Timeout: 30 seconds covers report rendering on a busy instance.
			Timeout: constants.DefaultERPTimeout,
		},
	}
}
