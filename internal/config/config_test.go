package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func validConfig() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "invalid provider",
			mutate:  func(c *Config) { c.LLM.Provider = "gemini" },
			wantErr: true,
			errMsg:  "invalid llm provider",
		},
		{
			name:   "openai provider",
			mutate: func(c *Config) { c.LLM.Provider = "openai" },
		},
		{
			name:    "importance threshold out of range",
			mutate:  func(c *Config) { c.LongTerm.ImportanceThreshold = 1.5 },
			wantErr: true,
			errMsg:  "importance_threshold",
		},
		{
			name: "bad prune schedule when enabled",
			mutate: func(c *Config) {
				c.LongTerm.Enabled = true
				c.LongTerm.PruneSchedule = "every tuesday"
			},
			wantErr: true,
			errMsg:  "prune_schedule",
		},
		{
			name: "bad prune schedule ignored when disabled",
			mutate: func(c *Config) {
				c.LongTerm.PruneSchedule = "every tuesday"
			},
		},
		{
			name:    "invalid timeout",
			mutate:  func(c *Config) { c.Tools.Timeout = "soon" },
			wantErr: true,
			errMsg:  "invalid tools timeout",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Tools.Timeout = "-1s" },
			wantErr: true,
			errMsg:  "must be positive",
		},
		{
			name:    "invalid logging backend",
			mutate:  func(c *Config) { c.Logging.Backend = "syslog" },
			wantErr: true,
			errMsg:  "invalid logging backend",
		},
		{
			name:    "langfuse public key alone",
			mutate:  func(c *Config) { c.Langfuse.PublicKey = "pk-lf-1" },
			wantErr: true,
			errMsg:  "langfuse",
		},
		{
			name: "langfuse secret from secret manager",
			mutate: func(c *Config) {
				c.Langfuse.PublicKey = "pk-lf-1"
				c.Langfuse.SecretKeySecret = "langfuse-secret"
			},
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.Agent.RateLimit = -1 },
			wantErr: true,
			errMsg:  "rate_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("LLM.Provider = %q, want %q", cfg.LLM.Provider, "anthropic")
	}
	if cfg.LLM.Model == "" {
		t.Error("LLM.Model should have a default")
	}
	if cfg.Memory.MaxItems != 10 || cfg.Memory.MaxTokens != 2000 {
		t.Errorf("memory defaults = %d/%d, want 10/2000", cfg.Memory.MaxItems, cfg.Memory.MaxTokens)
	}
	if cfg.Memory.MaxSessions != 1000 {
		t.Errorf("Memory.MaxSessions = %d, want 1000", cfg.Memory.MaxSessions)
	}
	if cfg.Agent.MaxIterations != 15 {
		t.Errorf("Agent.MaxIterations = %d, want 15", cfg.Agent.MaxIterations)
	}
	if cfg.LongTerm.PruneSchedule != "@hourly" {
		t.Errorf("LongTerm.PruneSchedule = %q, want @hourly", cfg.LongTerm.PruneSchedule)
	}
	if cfg.LongTerm.ImportanceThreshold != 0.5 {
		t.Errorf("LongTerm.ImportanceThreshold = %v, want 0.5", cfg.LongTerm.ImportanceThreshold)
	}
	if cfg.Tools.SearchDepth != "basic" {
		t.Errorf("Tools.SearchDepth = %q, want basic", cfg.Tools.SearchDepth)
	}
	if cfg.Logging.Backend != "stderr" {
		t.Errorf("Logging.Backend = %q, want stderr", cfg.Logging.Backend)
	}
}

func TestApplyDefaults_OpenAIModel(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{Provider: "openai"}}
	applyDefaults(cfg)
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model = %q, want gpt-4o-mini", cfg.LLM.Model)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Memory: MemoryConfig{MaxItems: 3, MaxTokens: 50},
		Tools:  ToolsConfig{Timeout: "2s"},
	}
	applyDefaults(cfg)

	if cfg.Memory.MaxItems != 3 || cfg.Memory.MaxTokens != 50 {
		t.Errorf("explicit memory limits overwritten: %+v", cfg.Memory)
	}
	if cfg.ToolTimeout() != 2*time.Second {
		t.Errorf("ToolTimeout() = %v, want 2s", cfg.ToolTimeout())
	}
}

func TestValidateForOnline(t *testing.T) {
	cfg := validConfig()
	if err := cfg.ValidateForOnline(); err == nil {
		t.Error("expected error without API key")
	}
	cfg.LLM.Offline = true
	if err := cfg.ValidateForOnline(); err != nil {
		t.Errorf("offline mode should not need a key: %v", err)
	}
	cfg.LLM.Offline = false
	cfg.LLM.APIKey = "sk-ant-x"
	if err := cfg.ValidateForOnline(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_FromViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("llm.provider", "openai")
	viper.Set("memory.max_items", 4)
	viper.Set("llm.static", map[string]string{"destination": "Tokyo"})
	viper.Set("longterm.enabled", true)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("LLM.Provider = %q, want openai", cfg.LLM.Provider)
	}
	if cfg.Memory.MaxItems != 4 {
		t.Errorf("Memory.MaxItems = %d, want 4", cfg.Memory.MaxItems)
	}
	if !cfg.LongTerm.Enabled {
		t.Error("expected longterm to be enabled")
	}
	if got := cfg.StaticRequirements()["destination"]; got != "Tokyo" {
		t.Errorf("StaticRequirements()[destination] = %v, want Tokyo", got)
	}
}

func TestLoad_InvalidFails(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("llm.provider", "gemini")
	if _, err := Load(); err == nil {
		t.Error("expected Load() to fail validation")
	}
}
