package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/flappy-rl/internal/registry"
	"github.com/vovakirdan/flappy-rl/internal/report"
)

var (
	trainFlags  runFlags
	flagWorkers int
)

var trainCmd = &cobra.Command{
	Use:   "train <strategy> [count]",
	Short: "Train a strategy",
	Long: `Train a strategy for count generations (neural) or episodes (qlearn).
Without count, training.generations or training.episodes from the config is used.
Training resumes from the saved model when one exists and saves the result.

Examples:
  flappyrl train neural
  flappyrl train neural 200 --workers 4
  flappyrl train qlearn 20000 --model-file trained_model.dat
  flappyrl train qlearn --seed 7 --csv out/progress.csv`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runTrain,
}

func init() {
	trainFlags.bind(trainCmd, "Model file to resume from and save to", "Write per-iteration progress to this CSV file")
	trainCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Parallel evaluation workers (neural; overrides neural.workers)")
}

func runTrain(cmd *cobra.Command, args []string) {
	count, err := parseCount(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	strategy, env, err := setup(cmd, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cmd.Flags().Changed("workers") {
		env.Config.Neural.Workers = flagWorkers
	}

	err = execute("train", trainFlags, strategy, env, func(ctx context.Context, env registry.Env) (report.Summary, error) {
		return strategy.Train(ctx, env, count)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
