package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/opsdesk/internal/constants"
)

func TestDefaultConfig_ReturnsValidConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg, "DefaultConfig should not return nil")

	// Verify vault defaults
	assert.Empty(t, cfg.Vault.Path, "vault path has no default")
	assert.Equal(t, constants.DefaultAgentID, cfg.Vault.AgentID, "default agent id")

	// Verify orchestrator defaults
	assert.Equal(t, constants.DefaultPollInterval, cfg.Orchestrator.PollInterval, "default poll interval")
	assert.Equal(t, constants.DefaultRetryDelay, cfg.Orchestrator.RetryDelay, "default retry delay")
	assert.Equal(t, constants.DefaultClaimTimeout, cfg.Orchestrator.ClaimTimeout, "default claim timeout")

	// Verify worker defaults
	assert.Equal(t, "claude", cfg.Worker.Agent, "default worker should be claude")
	assert.Equal(t, []string{"claude", "gemini", "codex"}, cfg.Worker.FallbackOrder, "default fallback order")
	assert.Equal(t, "ANTHROPIC_API_KEY", cfg.Worker.GetAPIKeyEnvVar("claude"), "default Claude API key env var")
	assert.Equal(t, "GEMINI_API_KEY", cfg.Worker.GetAPIKeyEnvVar("gemini"), "default Gemini API key env var")
	assert.Equal(t, "OPENAI_API_KEY", cfg.Worker.GetAPIKeyEnvVar("codex"), "default Codex API key env var")
	assert.Equal(t, constants.DefaultMaxIterations, cfg.Worker.MaxIterations, "default max iterations")
	assert.Equal(t, constants.DefaultCheckInterval, cfg.Worker.CheckInterval, "default check interval")
	assert.Equal(t, constants.DefaultWorkerTimeout, cfg.Worker.Timeout, "default worker timeout")
	assert.False(t, cfg.Worker.StrictCompletion, "trust-success is the default completion policy")

	// Verify dispatch defaults
	assert.Equal(t, constants.DefaultDispatchInterval, cfg.Dispatch.Interval, "default dispatch interval")
	assert.False(t, cfg.Dispatch.DryRun, "dry run off by default")
	assert.Equal(t, "smtp.gmail.com", cfg.Dispatch.Email.SMTPHost, "default SMTP host")
	assert.Equal(t, 587, cfg.Dispatch.Email.SMTPPort, "default SMTP port")
	assert.Equal(t, constants.SocialHelperTimeout, cfg.Dispatch.Social.Timeout, "default social timeout")

	// Verify ERP defaults
	assert.Equal(t, constants.DefaultERPTimeout, cfg.ERP.Timeout, "default ERP timeout")

	// Validate the default config passes validation
	err := Validate(cfg)
	assert.NoError(t, err, "default config should pass validation")
}

func TestWorkerConfig_GetAPIKeyEnvVar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      WorkerConfig
		worker   string
		expected string
	}{
		{
			name:     "configured map takes precedence",
			cfg:      WorkerConfig{APIKeyEnvVars: map[string]string{"claude": "MY_ANTHROPIC_KEY"}},
			worker:   "claude",
			expected: "MY_ANTHROPIC_KEY",
		},
		{
			name:     "falls back to claude default",
			cfg:      WorkerConfig{},
			worker:   "claude",
			expected: "ANTHROPIC_API_KEY",
		},
		{
			name:     "falls back to gemini default",
			cfg:      WorkerConfig{APIKeyEnvVars: map[string]string{"claude": "X"}},
			worker:   "gemini",
			expected: "GEMINI_API_KEY",
		},
		{
			name:     "falls back to codex default",
			cfg:      WorkerConfig{},
			worker:   "codex",
			expected: "OPENAI_API_KEY",
		},
		{
			name:     "unknown worker returns empty",
			cfg:      WorkerConfig{},
			worker:   "mystery",
			expected: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, tc.cfg.GetAPIKeyEnvVar(tc.worker))
		})
	}
}

func TestConfig_YAMLSerialization(t *testing.T) {
	original := &Config{
		Vault: VaultConfig{
			Path:    "/srv/vault",
			AgentID: "desk-2",
		},
		Orchestrator: OrchestratorConfig{
			PollInterval: 30 * time.Second,
			RetryDelay:   10 * time.Second,
			ClaimTimeout: 5 * time.Second,
		},
		Worker: WorkerConfig{
			Agent:         "gemini",
			FallbackOrder: []string{"gemini", "claude"},
			APIKeyEnvVars: map[string]string{
				"claude": "MY_API_KEY",
			},
			MaxIterations:    5,
			CheckInterval:    10 * time.Second,
			Timeout:          45 * time.Minute,
			StrictCompletion: true,
		},
		Dispatch: DispatchConfig{
			Interval: time.Minute,
			DryRun:   true,
			Email: EmailConfig{
				SMTPHost: "mail.example.com",
				SMTPPort: 465,
				Username: "ops@example.com",
				From:     "desk@example.com",
			},
			WhatsApp: WhatsAppConfig{
				APIURL: "https://wa.example.com/send",
			},
			Social: SocialConfig{
				Commands: map[string]string{
					"linkedin": "opsdesk-post-linkedin",
				},
				Timeout: 3 * time.Minute,
			},
		},
		ERP: ERPConfig{
			URL:      "https://erp.example.com",
			Database: "production",
			Username: "desk",
			Timeout:  time.Minute,
		},
	}

	// Serialize to YAML
	data, err := yaml.Marshal(original)
	require.NoError(t, err, "should marshal to YAML")

	// Deserialize back
	var restored Config
	err = yaml.Unmarshal(data, &restored)
	require.NoError(t, err, "should unmarshal from YAML")

	// Verify the round trip preserved the structure
	assert.Equal(t, original.Vault, restored.Vault, "vault section should round-trip")
	assert.Equal(t, original.Orchestrator, restored.Orchestrator, "orchestrator section should round-trip")
	assert.Equal(t, original.Worker, restored.Worker, "worker section should round-trip")
	assert.Equal(t, original.Dispatch, restored.Dispatch, "dispatch section should round-trip")
	assert.Equal(t, original.ERP, restored.ERP, "erp section should round-trip")
}
