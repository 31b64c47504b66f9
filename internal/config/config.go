package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config represents the full concierge configuration
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Agent    AgentConfig    `mapstructure:"agent"`
	LongTerm LongTermConfig `mapstructure:"longterm"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Langfuse LangfuseConfig `mapstructure:"langfuse"`
	Events   EventsConfig   `mapstructure:"events"`
}

// LLMConfig selects the model used for requirement extraction
type LLMConfig struct {
	Provider     string `mapstructure:"provider"` // anthropic or openai
	Model        string `mapstructure:"model"`
	APIKey       string `mapstructure:"api_key"`
	APIKeySecret string `mapstructure:"api_key_secret"` // Secret Manager path
	BaseURL      string `mapstructure:"base_url"`
	MaxTokens    int    `mapstructure:"max_tokens"`
	// Offline skips the LLM; requirements come from Static.
	Offline bool              `mapstructure:"offline"`
	Static  map[string]string `mapstructure:"static"`
}

// MemoryConfig bounds the short-term context buffer
type MemoryConfig struct {
	MaxItems  int    `mapstructure:"max_items"`
	MaxTokens int    `mapstructure:"max_tokens"`
	ExportDir string `mapstructure:"export_dir"`
	// MaxSessions caps the buffers kept in memory; least recently used go first.
	MaxSessions int `mapstructure:"max_sessions"`
}

// AgentConfig contains orchestrator settings
type AgentConfig struct {
	MaxIterations       int  `mapstructure:"max_iterations"`
	PersistInteractions bool `mapstructure:"persist_interactions"`
	// RateLimit is requests per minute per session; 0 disables limiting.
	RateLimit int `mapstructure:"rate_limit"`
}

// LongTermConfig contains the SQLite store settings
type LongTermConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	DBPath              string  `mapstructure:"db_path"`
	MaxMemories         int     `mapstructure:"max_memories"`
	ImportanceThreshold float64 `mapstructure:"importance_threshold"`
	PruneSchedule       string  `mapstructure:"prune_schedule"`
	TopK                int     `mapstructure:"top_k"`
}

// ToolsConfig contains upstream API settings for the travel tools
type ToolsConfig struct {
	Timeout            string `mapstructure:"timeout"`
	SearchAPIKey       string `mapstructure:"search_api_key"`
	SearchAPIKeySecret string `mapstructure:"search_api_key_secret"`
	SearchDepth        string `mapstructure:"search_depth"`
	SearchBaseURL      string `mapstructure:"search_base_url"`
	WeatherBaseURL     string `mapstructure:"weather_base_url"`
	GeocodeBaseURL     string `mapstructure:"geocode_base_url"`
}

// LoggingConfig selects the log backend
type LoggingConfig struct {
	Backend string `mapstructure:"backend"` // stderr, stdout or gcp
	Project string `mapstructure:"project"`
	LogID   string `mapstructure:"log_id"`
}

// LangfuseConfig contains tracing credentials
type LangfuseConfig struct {
	PublicKey       string `mapstructure:"public_key"`
	SecretKey       string `mapstructure:"secret_key"`
	SecretKeySecret string `mapstructure:"secret_key_secret"`
	BaseURL         string `mapstructure:"base_url"`
}

// EventsConfig controls the JSONL audit trail
type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	cfg := &Config{}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}
	if cfg.LLM.Model == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "openai":
			cfg.LLM.Model = "gpt-4o-mini"
		default:
			cfg.LLM.Model = "claude-3-5-haiku-latest"
		}
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}

	if cfg.Memory.MaxItems <= 0 {
		cfg.Memory.MaxItems = 10
	}
	if cfg.Memory.MaxTokens <= 0 {
		cfg.Memory.MaxTokens = 2000
	}
	if cfg.Memory.MaxSessions <= 0 {
		cfg.Memory.MaxSessions = 1000
	}
	if cfg.Memory.ExportDir == "" {
		cfg.Memory.ExportDir = ".concierge/sessions"
	}

	if cfg.Agent.MaxIterations <= 0 {
		cfg.Agent.MaxIterations = 15
	}

	if cfg.LongTerm.DBPath == "" {
		cfg.LongTerm.DBPath = ".concierge/memory.db"
	}
	if cfg.LongTerm.MaxMemories <= 0 {
		cfg.LongTerm.MaxMemories = 1000
	}
	if cfg.LongTerm.ImportanceThreshold == 0 {
		cfg.LongTerm.ImportanceThreshold = 0.5
	}
	if cfg.LongTerm.PruneSchedule == "" {
		cfg.LongTerm.PruneSchedule = "@hourly"
	}
	if cfg.LongTerm.TopK <= 0 {
		cfg.LongTerm.TopK = 3
	}

	if cfg.Tools.Timeout == "" {
		cfg.Tools.Timeout = "10s"
	}
	if cfg.Tools.SearchDepth == "" {
		cfg.Tools.SearchDepth = "basic"
	}

	if cfg.Logging.Backend == "" {
		cfg.Logging.Backend = "stderr"
	}
	if cfg.Logging.LogID == "" {
		cfg.Logging.LogID = "concierge"
	}

	if cfg.Events.Dir == "" {
		cfg.Events.Dir = ".concierge/events"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("invalid llm provider: %s (must be anthropic or openai)", c.LLM.Provider)
	}

	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm max_tokens must not be negative")
	}

	if c.LongTerm.ImportanceThreshold < 0 || c.LongTerm.ImportanceThreshold > 1 {
		return fmt.Errorf("longterm importance_threshold must be between 0 and 1, got %v", c.LongTerm.ImportanceThreshold)
	}

	if c.LongTerm.Enabled {
		if _, err := cron.ParseStandard(c.LongTerm.PruneSchedule); err != nil {
			return fmt.Errorf("invalid longterm prune_schedule: %w", err)
		}
	}

	if c.Tools.Timeout != "" {
		d, err := time.ParseDuration(c.Tools.Timeout)
		if err != nil {
			return fmt.Errorf("invalid tools timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("tools timeout must be positive")
		}
	}

	switch c.Logging.Backend {
	case "", "stderr", "stdout", "gcp":
	default:
		return fmt.Errorf("invalid logging backend: %s (must be stderr, stdout or gcp)", c.Logging.Backend)
	}

	if (c.Langfuse.PublicKey == "") != (c.Langfuse.SecretKey == "" && c.Langfuse.SecretKeySecret == "") {
		return fmt.Errorf("langfuse public_key and secret_key must be set together")
	}

	if c.Agent.RateLimit < 0 {
		return fmt.Errorf("agent rate_limit must not be negative")
	}

	return nil
}

// ValidateForOnline checks what a request needs when the LLM is used.
func (c *Config) ValidateForOnline() error {
	if c.LLM.Offline {
		return nil
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm api_key is required (set CONCIERGE_LLM_API_KEY, llm.api_key_secret or llm.offline)")
	}
	return nil
}

// ToolTimeout returns the parsed tool timeout.
func (c *Config) ToolTimeout() time.Duration {
	d, err := time.ParseDuration(c.Tools.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// StaticRequirements returns the offline requirements as a generic map.
func (c *Config) StaticRequirements() map[string]any {
	out := make(map[string]any, len(c.LLM.Static))
	for k, v := range c.LLM.Static {
		out[k] = v
	}
	return out
}
