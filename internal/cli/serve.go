package cli

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/andywolf/concierge/internal/mcpserver"
	"github.com/andywolf/concierge/internal/scheduler"
	"github.com/andywolf/concierge/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the planner over MCP on stdio",
	Long: `Serve plan_trip, the memory tools and the travel tools as an MCP
server on stdin/stdout. When long-term memory is enabled the prune job runs
on its schedule while the server is up.

Example:
  concierge serve --config ~/.concierge.yaml`,
	Args: cobra.NoArgs,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := loadApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Logging.Backend == "stdout" {
		return fmt.Errorf("logging backend stdout would corrupt the MCP stream; use stderr or gcp")
	}

	var recaller mcpserver.MemoryRecaller
	if a.store != nil {
		recaller = a.store
		pruner, err := scheduler.New(a.store, scheduler.Config{
			Schedule:            a.cfg.LongTerm.PruneSchedule,
			MaxMemories:         a.cfg.LongTerm.MaxMemories,
			ImportanceThreshold: a.cfg.LongTerm.ImportanceThreshold,
		}, a.logger.StdLogger())
		if err != nil {
			return err
		}
		if err := pruner.Start(ctx); err != nil {
			return err
		}
		defer pruner.Stop()
	}

	a.logger.Infof("Serving MCP on stdio (version %s, tools: %v)", version.Short(), a.agent.Tools().List())
	return server.ServeStdio(mcpserver.New(a.agent, recaller, version.Short()))
}
