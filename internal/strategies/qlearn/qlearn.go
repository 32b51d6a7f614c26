// Package qlearn registers the tabular Q-learning strategy.
package qlearn

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/stat"

	"github.com/vovakirdan/flappy-rl/internal/agent"
	"github.com/vovakirdan/flappy-rl/internal/registry"
	"github.com/vovakirdan/flappy-rl/internal/report"
	"github.com/vovakirdan/flappy-rl/internal/storage"
	"github.com/vovakirdan/flappy-rl/internal/train"
)

// Strategy trains a TabularAgent with train.QLearning.
type Strategy struct{}

// New creates the strategy.
func New() *Strategy { return &Strategy{} }

func init() {
	registry.Register(train.StrategyQLearn, func() registry.Strategy {
		return New()
	})
}

// ID returns the strategy identifier.
func (s *Strategy) ID() string { return train.StrategyQLearn }

// Title returns the display name.
func (s *Strategy) Title() string { return "Tabular Q-learning" }

// Train learns for count episodes, resuming from the saved table when present.
// A missing or corrupt table is a cold start, never a failure.
func (s *Strategy) Train(ctx context.Context, env registry.Env, count int) (report.Summary, error) {
	cfg := env.Config
	if count <= 0 {
		count = cfg.Training.Episodes
	}

	a, err := train.NewTabularAgent(cfg.QLearning, rand.New(rand.NewSource(cfg.Training.Seed)))
	if err != nil {
		return report.Summary{}, err
	}
	switch err := restore(env, a); {
	case err == nil:
		env.Logger.Info("resuming from saved q-table", "model", modelRef(env), "states", a.Size(), "epsilon", a.Epsilon())
	case errors.Is(err, os.ErrNotExist) || errors.Is(err, storage.ErrNotFound):
		env.Logger.Info("no saved q-table, starting empty")
	default:
		env.Logger.Warn("cannot load q-table, starting empty", "error", err)
	}

	q, err := train.NewQLearning(env.Sim, cfg, a, env.Logger, env.Recorders...)
	if err != nil {
		return report.Summary{}, err
	}
	history, runErr := q.Run(ctx, count)

	summary := report.Summary{
		Strategy:   s.ID(),
		Mode:       "train",
		RunID:      env.RunID,
		Iterations: len(history),
		BestScore:  q.BestScore(),
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return summary, runErr
	}
	switch {
	case runErr != nil:
		summary.Stopped = "cancelled"
	case q.Converged():
		summary.Stopped = "converged"
	}
	if len(history) > 0 {
		scores := make([]float64, len(history))
		for i, h := range history {
			scores[i] = float64(h.Score)
		}
		summary.MeanScore = stat.Mean(scores, nil)
		summary.Add("recent avg", "%.2f", history[len(history)-1].RecentAvg)
	}
	summary.Add("epsilon", "%.4f", a.Epsilon())
	summary.Add("states", "%d", a.Size())

	if err := save(env, a); err != nil {
		return summary, err
	}
	if env.ModelFile != "" || env.Store != nil {
		summary.Add("model", "%s", modelRef(env))
	}
	return summary, nil
}

// Eval plays the saved table greedily (epsilon 0).
func (s *Strategy) Eval(ctx context.Context, env registry.Env, episodes int) (report.Summary, error) {
	if episodes <= 0 {
		episodes = 10
	}
	a, err := train.NewTabularAgent(env.Config.QLearning, rand.New(rand.NewSource(env.Config.Training.Seed)))
	if err != nil {
		return report.Summary{}, err
	}
	if err := restore(env, a); err != nil {
		return report.Summary{}, fmt.Errorf("qlearn: no usable q-table %s: %w", modelRef(env), err)
	}
	a.SetEpsilon(0)

	results, err := train.Evaluate(ctx, env.Sim, a, env.Config.QLearning.FeatureSet,
		env.Config.Training.Seed, episodes, env.Config.Training.StepCap)
	if err != nil && !errors.Is(err, context.Canceled) {
		return report.Summary{}, err
	}
	summary, recErr := registry.EvalSummary(s.ID(), env, results)
	if err != nil {
		summary.Stopped = "cancelled"
	}
	summary.Add("states", "%d", a.Size())
	return summary, recErr
}

func modelRef(env registry.Env) string {
	if env.ModelFile != "" {
		return env.ModelFile
	}
	return env.Model
}

// restore loads the model file when set, otherwise the named table in the store.
func restore(env registry.Env, a *agent.TabularAgent) error {
	switch {
	case env.ModelFile != "":
		return a.LoadFile(env.ModelFile)
	case env.Store != nil:
		eps, entries, err := env.Store.LoadQTable(env.Model)
		if err != nil {
			return err
		}
		return a.Restore(eps, entries)
	}
	return fmt.Errorf("qlearn: no model file or database: %w", os.ErrNotExist)
}

func save(env registry.Env, a *agent.TabularAgent) error {
	if env.ModelFile != "" {
		if err := a.SaveFile(env.ModelFile); err != nil {
			return err
		}
	}
	if env.Store != nil {
		if err := env.Store.SaveQTable(env.Model, a.Epsilon(), a.Entries()); err != nil {
			return err
		}
	}
	return nil
}
