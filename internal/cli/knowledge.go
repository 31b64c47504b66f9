package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andywolf/concierge/internal/security"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the search_knowledge snippets",
}

var knowledgeIngestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Add text files to the knowledge base",
	Long: `Add text files to the knowledge base. Each blank-line separated
paragraph becomes one snippet, with the file name as its source. Ingesting
the same paragraph twice keeps a single snippet.

Example:
  concierge knowledge ingest policies/fx.md policies/lounges.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: ingestKnowledge,
}

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  searchKnowledge,
}

func init() {
	rootCmd.AddCommand(knowledgeCmd)
	knowledgeCmd.AddCommand(knowledgeIngestCmd, knowledgeSearchCmd)

	knowledgeSearchCmd.Flags().Int("top-k", 0, "Number of snippets (default: longterm.top_k)")
}

// splitParagraphs returns the non-empty blank-line separated blocks of text.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
	return out
}

func ingestKnowledge(cmd *cobra.Command, args []string) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	total := 0
	for _, path := range args {
		if err := security.ValidatePath(path); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		source := filepath.Base(path)
		for _, para := range splitParagraphs(string(data)) {
			if _, err := store.UpsertSnippet(cmd.Context(), para, source); err != nil {
				return fmt.Errorf("failed to store snippet from %s: %w", path, err)
			}
			total++
		}
	}

	count, err := store.CountSnippets(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d paragraphs; knowledge base holds %d snippets.\n", total, count)
	return nil
}

func searchKnowledge(cmd *cobra.Command, args []string) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	topK, _ := cmd.Flags().GetInt("top-k")
	if topK <= 0 {
		topK = cfg.LongTerm.TopK
	}
	snippets, err := store.SearchKnowledge(cmd.Context(), strings.Join(args, " "), topK)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(snippets) == 0 {
		fmt.Fprintln(out, "No matching snippets.")
		return nil
	}
	for i, s := range snippets {
		fmt.Fprintf(out, "[%d] (%s) %s\n", i+1, s.Source, s.Content)
	}
	return nil
}
