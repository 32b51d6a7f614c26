package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/flappy-rl/internal/registry"
	"github.com/vovakirdan/flappy-rl/internal/report"
	"github.com/vovakirdan/flappy-rl/internal/storage"
)

// runFlags are the model and output flags of one run command.
type runFlags struct {
	model     string
	modelFile string
	csv       string
}

func (f *runFlags) bind(cmd *cobra.Command, modelFileUsage, csvUsage string) {
	cmd.Flags().StringVar(&f.model, "model", "default", "Model name in the runs database")
	cmd.Flags().StringVar(&f.modelFile, "model-file", "", modelFileUsage)
	cmd.Flags().StringVar(&f.csv, "csv", "", csvUsage)
}

type runFunc func(ctx context.Context, env registry.Env) (report.Summary, error)

// parseCount reads the optional positional count; 0 means the config default.
func parseCount(args []string) (int, error) {
	if len(args) < 2 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("count must be a positive integer, got %q", args[1])
	}
	return n, nil
}

// execute wires recorders and the run record around fn, then prints the summary.
// Interrupts cancel the context so the strategy can stop at an episode boundary.
func execute(mode string, flags runFlags, strategy registry.Strategy, env registry.Env, fn runFunc) error {
	if env.Store != nil {
		defer env.Store.Close()
	}
	env.Model = flags.model
	env.ModelFile = flags.modelFile

	csv, err := report.NewProgressWriter(flags.csv)
	if err != nil {
		return err
	}
	defer csv.Close()
	if csv != nil {
		env.Recorders = append(env.Recorders, csv)
	}

	if env.Store != nil {
		cfgYAML, err := env.Config.Marshal()
		if err != nil {
			return fmt.Errorf("cannot encode config: %w", err)
		}
		id, err := env.Store.StartRun(strategy.ID(), mode, env.Config.Training.Seed, string(cfgYAML))
		if err != nil {
			env.Logger.Warn("could not record run", "error", err)
		} else {
			env.RunID = id
			env.Recorders = append(env.Recorders, env.Store.Recorder(id))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env.Logger.Debug("run starting", "strategy", strategy.ID(), "mode", mode, "seed", env.Config.Training.Seed, "run", env.RunID)
	summary, runErr := fn(ctx, env)

	if env.RunID > 0 {
		status := storage.StatusCompleted
		switch {
		case runErr != nil:
			status = storage.StatusFailed
		case summary.Stopped == "cancelled":
			status = storage.StatusCancelled
		}
		if err := env.Store.FinishRun(env.RunID, status, summary.Iterations, summary.BestScore); err != nil {
			env.Logger.Warn("could not finish run record", "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	if csv != nil {
		summary.Add("csv", "%s", csv.Path())
	}
	fmt.Print(report.Render(summary, report.IsTerminal(os.Stdout)))
	return nil
}
