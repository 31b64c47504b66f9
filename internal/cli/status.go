package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/andywolf/concierge/internal/observability"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check configuration and backing services",
	Long: `Check the resolved configuration and whether the backing services
are reachable: the long-term store, the Langfuse ingestion API and the
registered tools.

Example:
  concierge status`,
	Args: cobra.NoArgs,
	RunE: checkStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Duration("timeout", 5*time.Second, "Timeout for each check")
}

func checkStatus(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), appOptions{quiet: true})
	if err != nil {
		return err
	}
	defer a.Close()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	printStatus(cmd.Context(), cmd.OutOrStdout(), a, timeout)
	return nil
}

func printStatus(ctx context.Context, out io.Writer, a *app, timeout time.Duration) {
	cfg := a.cfg
	mode := cfg.LLM.Provider + "/" + cfg.LLM.Model
	if cfg.LLM.Offline {
		mode = "offline (static requirements)"
	}
	fmt.Fprintf(out, "%-14s %s\n", "LLM:", mode)
	fmt.Fprintf(out, "%-14s %d items / %d tokens\n", "Buffer:", cfg.Memory.MaxItems, cfg.Memory.MaxTokens)
	fmt.Fprintf(out, "%-14s %v\n", "Tools:", a.agent.Tools().List())
	fmt.Fprintf(out, "%-14s %s\n", "Logging:", cfg.Logging.Backend)

	if a.store == nil {
		fmt.Fprintf(out, "%-14s disabled\n", "Long-term:")
	} else {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		memories, mErr := a.store.CountMemories(checkCtx)
		snippets, sErr := a.store.CountSnippets(checkCtx)
		cancel()
		if mErr != nil || sErr != nil {
			fmt.Fprintf(out, "%-14s error: %v\n", "Long-term:", firstErr(mErr, sErr))
		} else {
			fmt.Fprintf(out, "%-14s %s (%d memories, %d snippets)\n", "Long-term:", cfg.LongTerm.DBPath, memories, snippets)
		}
	}

	lf, ok := a.tracer.(*observability.LangfuseTracer)
	if !ok {
		fmt.Fprintf(out, "%-14s disabled\n", "Tracing:")
		return
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := lf.Ping(checkCtx); err != nil {
		fmt.Fprintf(out, "%-14s %s unreachable: %v\n", "Tracing:", lf.BaseURL(), err)
		return
	}
	fmt.Fprintf(out, "%-14s %s ok\n", "Tracing:", lf.BaseURL())
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
