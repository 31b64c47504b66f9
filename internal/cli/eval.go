package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andywolf/concierge/internal/eval"
	"github.com/spf13/cobra"
)

var evalCmd = &cobra.Command{
	Use:   "eval [request]",
	Short: "Grade the agent's answer with an LLM judge",
	Long: `Run one request through the agent and ask the configured LLM to grade
the answer on accuracy, completeness, relevance, tool use and formatting,
0-10 each, for a total out of 50. The verdict is printed as JSON.

Without a request the fixed Paris case is used. The judge always needs an
LLM, so llm.api_key must be set even with --offline.

Example:
  concierge eval
  concierge eval --min-score 35 "Rome next week with my BankSilver card"`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().Int("min-score", 0, "Fail when the total is below this score")
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := loadApp(ctx, appOptions{quiet: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.LLM.APIKey == "" {
		return errors.New("eval needs an LLM judge: set CONCIERGE_LLM_API_KEY or llm.api_key_secret")
	}

	judge := eval.NewJudge(a.provider(),
		eval.WithTracer(a.tracer),
		eval.WithModelName(a.cfg.LLM.Model),
	)
	res, err := judge.Evaluate(ctx, a.agent, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.JSON())

	minScore, _ := cmd.Flags().GetInt("min-score")
	if res.Scores.Total < minScore {
		return fmt.Errorf("score %d/%d is below --min-score %d", res.Scores.Total, eval.MaxTotalScore, minScore)
	}
	return nil
}
