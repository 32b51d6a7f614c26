// flappyrl trains and evaluates agents that learn to play a Flappy Bird simulation.
//
// Usage:
//
//	flappyrl list                       - List available training strategies
//	flappyrl train <strategy> [count]   - Train for count generations/episodes
//	flappyrl eval <strategy> [episodes] - Play a saved model greedily
//	flappyrl runs [strategy]            - Show recent and best runs
//	flappyrl config                     - Print the effective configuration
//
// Global flags:
//
//	--config <path>      - Config file (default: search order, then embedded)
//	--seed <value>       - Override training.seed
//	--db <path>          - Runs database (default: ~/.flappyrl/runs.db, "" disables)
//	--difficulty <name>  - Curriculum preset: easy, normal, hard, fixed
//	--verbose            - Debug logging
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Import strategies to register them
	_ "github.com/vovakirdan/flappy-rl/internal/strategies/neural"
	_ "github.com/vovakirdan/flappy-rl/internal/strategies/qlearn"
)

var (
	// Global flags
	flagConfig     string
	flagSeed       int64
	flagDBPath     string
	flagDifficulty string
	flagVerbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "flappyrl",
	Short: "flappyrl - Teach agents to play Flappy Bird",
	Long: `flappyrl runs a deterministic Flappy Bird simulation and trains agents
to play it, either by evolving small neural networks or by tabular Q-learning.

Available commands:
  list     - Show all training strategies
  train    - Train a strategy and save its model
  eval     - Evaluate a saved model
  runs     - View past runs
  config   - Print the effective configuration

Examples:
  flappyrl list
  flappyrl train neural 100
  flappyrl train qlearn 5000 --model-file qtable.txt --csv progress.csv
  flappyrl eval qlearn 20
  flappyrl runs qlearn`,
	SilenceUsage: true,
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file")
	rootCmd.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "RNG seed (overrides training.seed)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "~/.flappyrl/runs.db", "Path to runs database (empty disables)")
	rootCmd.PersistentFlags().StringVar(&flagDifficulty, "difficulty", "", "Curriculum preset: easy, normal, hard, fixed")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
}
