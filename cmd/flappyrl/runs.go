package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/flappy-rl/internal/registry"
	"github.com/vovakirdan/flappy-rl/internal/storage"
)

var (
	flagLimit int
	flagTop   bool
)

var runsCmd = &cobra.Command{
	Use:   "runs [strategy]",
	Short: "Show past training and evaluation runs",
	Long: `Display recent runs from the runs database, optionally for one strategy.

Examples:
  flappyrl runs
  flappyrl runs qlearn --limit 20
  flappyrl runs neural --top`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&flagLimit, "limit", 10, "Number of runs to show")
	runsCmd.Flags().BoolVar(&flagTop, "top", false, "Order by best score instead of start time")
}

func runRuns(cmd *cobra.Command, args []string) {
	strategyID := ""
	if len(args) == 1 {
		strategyID = args[0]
		if !registry.Exists(strategyID) {
			fmt.Fprintf(os.Stderr, "Error: unknown strategy %q\n", strategyID)
			fmt.Fprintln(os.Stderr, "Run 'flappyrl list' to see available strategies.")
			os.Exit(1)
		}
	}
	if flagDBPath == "" {
		fmt.Fprintln(os.Stderr, "Error: runs database disabled (--db is empty)")
		os.Exit(1)
	}

	store, err := storage.Open(flagDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening runs database: %v\n", err)
		os.Exit(1)
	}

	var runs []storage.RunEntry
	if flagTop {
		runs, err = store.TopRuns(strategyID, flagLimit)
	} else {
		runs, err = store.RecentRuns(strategyID, flagLimit)
	}
	if err != nil {
		store.Close()
		fmt.Fprintf(os.Stderr, "Error retrieving runs: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if flagTop {
		fmt.Println("Best runs")
	} else {
		fmt.Println("Recent runs")
	}
	fmt.Println()

	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		fmt.Println()
		fmt.Println("Run 'flappyrl train <strategy>' to start one.")
		return
	}

	fmt.Printf("  %-5s  %-8s  %-5s  %-10s  %-10s  %-6s  %s\n", "ID", "Strategy", "Mode", "Status", "Iterations", "Best", "Started")
	fmt.Printf("  %-5s  %-8s  %-5s  %-10s  %-10s  %-6s  %s\n", "--", "--------", "----", "------", "----------", "----", "-------")
	for _, r := range runs {
		fmt.Printf("  %-5d  %-8s  %-5s  %-10s  %-10d  %-6d  %s\n",
			r.ID, r.Strategy, r.Mode, r.Status, r.Iterations, r.BestScore, r.StartedAt.Format("2006-01-02 15:04"))
	}

	if strategyID == "" {
		return
	}
	stats, err := store.GetStrategyStats(strategyID)
	if err == nil && stats.Runs > 0 {
		fmt.Println()
		fmt.Printf("Runs: %d  Best: %d  Avg best: %.1f\n", stats.Runs, stats.BestScore, stats.AvgBest)
	}
}
