package cli

import (
	"encoding/json"
	"fmt"

	"github.com/andywolf/concierge/internal/config"
	"github.com/andywolf/concierge/internal/longterm"
	"github.com/andywolf/concierge/internal/memory"
	"github.com/andywolf/concierge/internal/scheduler"
	"github.com/andywolf/concierge/internal/security"
	"github.com/spf13/cobra"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect saved sessions and long-term memory",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a saved session's buffer",
	Args:  cobra.ExactArgs(1),
	RunE:  showMemory,
}

var memorySearchCmd = &cobra.Command{
	Use:   "search <session-id> <text>",
	Short: "Search a saved session's buffer",
	Args:  cobra.ExactArgs(2),
	RunE:  searchMemory,
}

var memoryRecallCmd = &cobra.Command{
	Use:   "recall <session-id>",
	Short: "List long-term memories of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  recallMemory,
}

var memoryPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Prune low-importance long-term memories now",
	Args:  cobra.NoArgs,
	RunE:  pruneMemory,
}

func init() {
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memoryShowCmd, memorySearchCmd, memoryRecallCmd, memoryPruneCmd)

	memoryShowCmd.Flags().Int("window", 0, "Print the context window for this token budget instead of the history")
	memorySearchCmd.Flags().String("role", "", "Only match items from this role (user, assistant, system)")
}

// loadSavedBuffer reads a session export without building the agent.
func loadSavedBuffer(cfg *config.Config, id string) (*memory.ContextBuffer, error) {
	path, err := security.SessionFile(cfg.Memory.ExportDir, id)
	if err != nil {
		return nil, err
	}
	buf := memory.NewContextBuffer(memory.Config{MaxItems: cfg.Memory.MaxItems, MaxTokens: cfg.Memory.MaxTokens, SessionID: id})
	if err := buf.LoadFile(path); err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return buf, nil
}

func showMemory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	buf, err := loadSavedBuffer(cfg, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if window, _ := cmd.Flags().GetInt("window"); window > 0 {
		fmt.Fprintln(out, buf.ContextWindow(window))
		return nil
	}

	data, err := json.MarshalIndent(buf.Summary(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	printItems(out, buf.History(false))
	return nil
}

func searchMemory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	buf, err := loadSavedBuffer(cfg, args[0])
	if err != nil {
		return err
	}
	role, _ := cmd.Flags().GetString("role")
	printItems(cmd.OutOrStdout(), buf.Search(args[1], memory.Role(role)))
	return nil
}

// openStore opens the long-term store, failing when it is disabled.
func openStore() (*config.Config, *longterm.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.LongTerm.Enabled {
		return nil, nil, fmt.Errorf("long-term memory is disabled (set longterm.enabled)")
	}
	store, err := longterm.Open(cfg.LongTerm.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open long-term store: %w", err)
	}
	return cfg, store, nil
}

func recallMemory(cmd *cobra.Command, args []string) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	memories, err := store.GetMemory(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(memories) == 0 {
		fmt.Fprintln(out, "No memories stored for this session.")
		return nil
	}
	for _, m := range memories {
		fmt.Fprintf(out, "%s [%s %.2f] %s\n", m.Timestamp.Format("2006-01-02 15:04"), m.Type, m.Importance, m.Content)
	}
	return nil
}

func pruneMemory(cmd *cobra.Command, args []string) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := scheduler.New(store, scheduler.Config{
		Schedule:            cfg.LongTerm.PruneSchedule,
		MaxMemories:         cfg.LongTerm.MaxMemories,
		ImportanceThreshold: cfg.LongTerm.ImportanceThreshold,
	}, nil)
	if err != nil {
		return err
	}
	n, err := svc.RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d memories.\n", n)
	return nil
}
