package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize project configuration",
	Long: `Initialize Concierge configuration for the current directory.

This creates a .concierge.yaml file with sensible defaults that you can customize.

Example:
  concierge init
  concierge init --provider openai --longterm`,
	RunE: initProject,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().String("provider", "anthropic", "LLM provider (anthropic, openai)")
	initCmd.Flags().String("model", "", "LLM model (default depends on provider)")
	initCmd.Flags().Bool("longterm", false, "Enable the SQLite long-term memory store")
	initCmd.Flags().String("project", "", "GCP project for Secret Manager and Cloud Logging")
	initCmd.Flags().Bool("force", false, "Overwrite existing config")
}

type projectConfig struct {
	LLM struct {
		Provider     string `yaml:"provider"`
		Model        string `yaml:"model,omitempty"`
		APIKeySecret string `yaml:"api_key_secret,omitempty"`
	} `yaml:"llm"`
	Memory struct {
		MaxItems  int    `yaml:"max_items"`
		MaxTokens int    `yaml:"max_tokens"`
		ExportDir string `yaml:"export_dir"`
	} `yaml:"memory"`
	Agent struct {
		PersistInteractions bool `yaml:"persist_interactions"`
		RateLimit           int  `yaml:"rate_limit"`
	} `yaml:"agent"`
	LongTerm struct {
		Enabled       bool   `yaml:"enabled"`
		DBPath        string `yaml:"db_path"`
		PruneSchedule string `yaml:"prune_schedule"`
	} `yaml:"longterm"`
	Logging struct {
		Backend string `yaml:"backend"`
		Project string `yaml:"project,omitempty"`
	} `yaml:"logging"`
	Events struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"events"`
}

func initProject(cmd *cobra.Command, args []string) error {
	configPath := filepath.Join(".", ".concierge.yaml")

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	cfg := projectConfig{}
	cfg.LLM.Provider, _ = cmd.Flags().GetString("provider")
	cfg.LLM.Model, _ = cmd.Flags().GetString("model")
	cfg.LongTerm.Enabled, _ = cmd.Flags().GetBool("longterm")
	cfg.Logging.Project, _ = cmd.Flags().GetString("project")

	if cfg.Logging.Project != "" {
		cfg.LLM.APIKeySecret = fmt.Sprintf("projects/%s/secrets/concierge-llm-key", cfg.Logging.Project)
	}
	cfg.Memory.MaxItems = 10
	cfg.Memory.MaxTokens = 2000
	cfg.Memory.ExportDir = ".concierge/sessions"
	cfg.Agent.PersistInteractions = cfg.LongTerm.Enabled
	cfg.Agent.RateLimit = 30
	cfg.LongTerm.DBPath = ".concierge/memory.db"
	cfg.LongTerm.PruneSchedule = "@hourly"
	cfg.Logging.Backend = "stderr"
	cfg.Events.Enabled = true

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := `# Concierge Configuration
# Secrets can also come from the environment, e.g. CONCIERGE_LLM_API_KEY.

`

	if err := os.WriteFile(configPath, append([]byte(header), data...), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n\n", configPath)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Export CONCIERGE_LLM_API_KEY or set llm.api_key_secret")
	fmt.Fprintln(out, "  2. Optionally export CONCIERGE_TOOLS_SEARCH_API_KEY for web search")
	fmt.Fprintln(out, "  3. Run 'concierge plan \"Paris in June\"' to plan a trip")

	return nil
}
