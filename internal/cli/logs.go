package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/andywolf/concierge/internal/config"
	"github.com/andywolf/concierge/internal/events"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs [session-id]",
	Short: "Show the recorded agent events",
	Long: `Show events from the JSONL event log: conversation turns, phase
transitions, extractions, tool calls, syntheses and errors.

Example:
  concierge logs
  concierge logs trip-42 --type tool_call --tail 20`,
	Args: cobra.MaximumNArgs(1),
	RunE: getLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().Int("tail", 100, "Number of events to show from the end")
	logsCmd.Flags().StringSlice("type", nil, "Only show these event types")
	logsCmd.Flags().String("since", "", "Show events since timestamp (e.g., 2024-01-01T00:00:00Z) or duration (e.g., 1h)")
}

func getLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	all, err := events.ReadEvents(filepath.Join(cfg.Events.Dir, events.DefaultFilename))
	if err != nil {
		return err
	}

	var q events.Query
	if len(args) == 1 {
		q.SessionID = args[0]
	}
	types, _ := cmd.Flags().GetStringSlice("type")
	for _, t := range types {
		if !events.IsValidEventType(t) {
			return fmt.Errorf("unknown event type %q", t)
		}
		q.Types = append(q.Types, events.EventType(t))
	}
	if sinceStr, _ := cmd.Flags().GetString("since"); sinceStr != "" {
		if q.Since, err = parseSince(sinceStr, time.Now()); err != nil {
			return err
		}
	}
	q.Tail, _ = cmd.Flags().GetInt("tail")

	out := cmd.OutOrStdout()
	for _, evt := range q.Apply(all) {
		formatEvent(out, evt)
	}
	return nil
}

// parseSince accepts a duration before now or an RFC3339 timestamp.
func parseSince(s string, now time.Time) (time.Time, error) {
	if dur, err := time.ParseDuration(s); err == nil {
		return now.Add(-dur), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since value: %s", s)
	}
	return t, nil
}

func formatEvent(w io.Writer, evt events.AgentEvent) {
	prefix := ""
	if !evt.Timestamp.IsZero() {
		prefix = "[" + evt.Timestamp.Format("15:04:05") + "] "
	}

	switch evt.Type {
	case events.EventToolCall:
		status := "ok"
		if evt.Success != nil && !*evt.Success {
			status = "failed"
		}
		fmt.Fprintf(w, "%s[TOOL:%s %s] %s\n", prefix, evt.ToolName, status, evt.Summary)
	case events.EventPhase:
		fmt.Fprintf(w, "%s[PHASE] %s -> %s\n", prefix, evt.FromPhase, evt.Phase)
	case "":
		fmt.Fprintf(w, "%s%s\n", prefix, evt.Summary)
	default:
		fmt.Fprintf(w, "%s[%s] %s\n", prefix, strings.ToUpper(string(evt.Type)), evt.Summary)
	}
}
