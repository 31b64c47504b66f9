package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/andywolf/concierge/internal/memory"
	"github.com/andywolf/concierge/internal/security"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive planning session",
	Long: `Start an interactive session. Each line is a planning request; the
conversation is kept in the session's context buffer.

Commands:
  :summary         show buffer occupancy
  :window [tokens] show the recent conversation that fits the budget
  :search <text>   search the buffer
  :clear           empty the buffer
  :export [path]   save the buffer (default: the session export file)
  exit, quit       leave`,
	Args: cobra.NoArgs,
	RunE: chat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().String("session", "", "Session id to resume (default: a new session)")
	chatCmd.Flags().Bool("save", true, "Save the session on exit")
}

func chat(cmd *cobra.Command, args []string) error {
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
	buf := a.agent.Sessions().GetOrCreate(sessionID)
	sessionID = buf.SessionID()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session: %s\n", sessionID)
	fmt.Fprintln(out, "Type a travel request, :help for commands, or exit to quit.")

	err = runChat(ctx, a, sessionID, cmd.InOrStdin(), out)

	if save, _ := cmd.Flags().GetBool("save"); save {
		if serr := a.saveSession(sessionID); serr != nil {
			a.warn("%v", serr)
		} else {
			fmt.Fprintf(out, "Session saved: %s\n", sessionID)
		}
	}
	return err
}

// runChat reads requests from in until EOF, exit or cancellation.
func runChat(ctx context.Context, a *app, sessionID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4*security.MaxQueryLength)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return nil
		case strings.HasPrefix(line, ":"):
			if err := chatCommand(a, sessionID, line, out); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
			continue
		}

		doc, err := a.agent.Run(ctx, sessionID, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, doc.JSON())
	}
}

func chatCommand(a *app, sessionID, line string, out io.Writer) error {
	buf := a.agent.Sessions().GetOrCreate(sessionID)
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "help":
		fmt.Fprintln(out, "Commands: :summary :window [tokens] :search <text> :clear :export [path] exit")
	case "summary":
		data, err := json.MarshalIndent(buf.Summary(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case "window":
		tokens := 0
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("invalid token budget %q", arg)
			}
			tokens = n
		}
		fmt.Fprintln(out, buf.ContextWindow(tokens))
	case "search":
		if arg == "" {
			return fmt.Errorf("usage: :search <text>")
		}
		printItems(out, buf.Search(arg, ""))
	case "clear":
		buf.Clear()
		fmt.Fprintln(out, "Context cleared.")
	case "export":
		if arg == "" {
			if err := a.saveSession(sessionID); err != nil {
				return err
			}
			fmt.Fprintln(out, "Session exported.")
			return nil
		}
		if err := security.ValidatePath(arg); err != nil {
			return err
		}
		if err := buf.SaveFile(arg); err != nil {
			return err
		}
		fmt.Fprintf(out, "Session exported to %s\n", arg)
	default:
		return fmt.Errorf("unknown command :%s", name)
	}
	return nil
}

func printItems(out io.Writer, items []memory.Item) {
	if len(items) == 0 {
		fmt.Fprintln(out, "No matching items.")
		return
	}
	for i, it := range items {
		fmt.Fprintf(out, "[%d] %s %s\n    %s\n", i+1, it.Timestamp.Format("15:04:05"), it.Role, it.Content)
	}
}
