package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/andywolf/concierge/internal/memory"
	"github.com/andywolf/concierge/internal/security"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan [request]",
	Short: "Plan a trip from a single request",
	Long: `Plan a trip from a free-text request and print the plan as JSON.

With --session the conversation is loaded from and saved to the session
export directory, so later requests see the earlier context.

Example:
  concierge plan "Paris in June with my BankGold card"
  concierge plan --session trip-42 "Lisbon instead, same dates"`,
	Args: cobra.MinimumNArgs(1),
	RunE: planTrip,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().String("session", "", "Session id to resume and save")
}

func planTrip(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := loadApp(ctx, appOptions{quiet: true})
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID != "" {
		if err := a.loadSession(sessionID); err != nil {
			return err
		}
	}

	doc, err := a.agent.Run(ctx, sessionID, strings.Join(args, " "))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Request interrupted by user")
			return nil
		}
		return fmt.Errorf("planning failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), doc.JSON())

	if sessionID != "" {
		return a.saveSession(sessionID)
	}
	return nil
}

// loadSession restores an exported buffer into the agent's registry. A
// missing file is not an error.
func (a *app) loadSession(id string) error {
	path, err := security.SessionFile(a.cfg.Memory.ExportDir, id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	buf := memory.NewContextBuffer(memory.Config{
		MaxItems:  a.cfg.Memory.MaxItems,
		MaxTokens: a.cfg.Memory.MaxTokens,
		SessionID: id,
	})
	if err := buf.LoadFile(path); err != nil {
		return fmt.Errorf("failed to load session %s: %w", id, err)
	}
	a.agent.Sessions().Put(buf)
	return nil
}

// saveSession exports a session buffer to the export directory.
func (a *app) saveSession(id string) error {
	buf, ok := a.agent.Sessions().Get(id)
	if !ok {
		return fmt.Errorf("unknown session %s", id)
	}
	path, err := security.SessionFile(a.cfg.Memory.ExportDir, id)
	if err != nil {
		return err
	}
	if err := buf.SaveFile(path); err != nil {
		return fmt.Errorf("failed to save session %s: %w", id, err)
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
