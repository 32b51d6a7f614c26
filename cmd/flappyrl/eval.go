package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/flappy-rl/internal/registry"
	"github.com/vovakirdan/flappy-rl/internal/report"
)

var evalFlags runFlags

var evalCmd = &cobra.Command{
	Use:   "eval <strategy> [episodes]",
	Short: "Evaluate a saved model",
	Long: `Play episodes (default 10) with the saved model and no exploration.
Episode i uses seed training.seed+i, so results are reproducible.

Examples:
  flappyrl eval neural
  flappyrl eval qlearn 50 --model-file trained_model.dat`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runEval,
}

func init() {
	evalFlags.bind(evalCmd, "Model file to evaluate", "Write per-episode results to this CSV file")
}

func runEval(cmd *cobra.Command, args []string) {
	episodes, err := parseCount(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	strategy, env, err := setup(cmd, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	err = execute("eval", evalFlags, strategy, env, func(ctx context.Context, env registry.Env) (report.Summary, error) {
		return strategy.Eval(ctx, env, episodes)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
