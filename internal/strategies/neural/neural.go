// Package neural registers the evolutionary strategy: a population of
// feed-forward networks improved by elitist selection and mutation.
package neural

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat"

	"github.com/vovakirdan/flappy-rl/internal/agent"
	"github.com/vovakirdan/flappy-rl/internal/registry"
	"github.com/vovakirdan/flappy-rl/internal/report"
	"github.com/vovakirdan/flappy-rl/internal/sim"
	"github.com/vovakirdan/flappy-rl/internal/storage"
	"github.com/vovakirdan/flappy-rl/internal/train"
)

// Strategy trains NeuralAgents with train.Evolution.
type Strategy struct{}

// New creates the strategy.
func New() *Strategy { return &Strategy{} }

func init() {
	registry.Register(train.StrategyNeural, func() registry.Strategy {
		return New()
	})
}

// ID returns the strategy identifier.
func (s *Strategy) ID() string { return train.StrategyNeural }

// Title returns the display name.
func (s *Strategy) Title() string { return "Neuroevolution (feed-forward network + GA)" }

// Train runs the evolutionary loop and saves the fittest genome.
func (s *Strategy) Train(ctx context.Context, env registry.Env, count int) (report.Summary, error) {
	cfg := env.Config
	if count <= 0 {
		count = cfg.Training.Generations
	}

	rng := rand.New(rand.NewSource(cfg.Training.Seed))
	evo, err := train.NewEvolution(env.Sim, cfg, rng, env.Logger, env.Recorders...)
	if err != nil {
		return report.Summary{}, err
	}

	if base, err := loadGenome(env); err == nil {
		if err := evo.SeedFrom(base); err != nil {
			env.Logger.Warn("ignoring saved genome", "error", err)
		} else {
			env.Logger.Info("resuming from saved genome", "model", modelRef(env))
		}
	} else if errors.Is(err, os.ErrNotExist) || errors.Is(err, storage.ErrNotFound) {
		env.Logger.Info("no saved genome, starting from a random population")
	} else {
		env.Logger.Warn("cannot load saved genome, starting from a random population", "error", err)
	}

	history, runErr := evo.Run(ctx, count)
	summary := report.Summary{
		Strategy:   s.ID(),
		Mode:       "train",
		RunID:      env.RunID,
		Iterations: len(history),
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return summary, runErr
	}
	if runErr != nil {
		summary.Stopped = "cancelled"
	}

	best, fitness, score := evo.Best()
	summary.BestScore = score
	if len(history) > 0 {
		scores := make([]float64, len(history))
		for i, h := range history {
			scores[i] = float64(h.BestScore)
		}
		summary.MeanScore = stat.Mean(scores, nil)
		last := history[len(history)-1]
		summary.Add("best fitness", "%.1f", fitness)
		summary.Add("last mean fitness", "%.1f", last.Mean)
	}
	summary.Add("population", "%d", len(evo.Population().Agents))

	if best != nil {
		if err := saveGenome(env, best, fitness, score); err != nil {
			return summary, err
		}
		summary.Add("model", "%s", modelRef(env))
	}
	return summary, nil
}

// Eval plays the saved genome greedily.
func (s *Strategy) Eval(ctx context.Context, env registry.Env, episodes int) (report.Summary, error) {
	if episodes <= 0 {
		episodes = 10
	}
	net, err := loadGenome(env)
	if err != nil {
		return report.Summary{}, fmt.Errorf("neural: no usable genome %s: %w", modelRef(env), err)
	}
	results, err := train.Evaluate(ctx, env.Sim, net, env.Config.Neural.FeatureSet,
		env.Config.Training.Seed, episodes, env.Config.Training.StepCap)
	if err != nil && !errors.Is(err, context.Canceled) {
		return report.Summary{}, err
	}
	summary, recErr := registry.EvalSummary(s.ID(), env, results)
	if err != nil {
		summary.Stopped = "cancelled"
	}
	return summary, recErr
}

func modelRef(env registry.Env) string {
	if env.ModelFile != "" {
		return env.ModelFile
	}
	return env.Model
}

// loadGenome reads the model file when set, otherwise the named genome in the store.
func loadGenome(env registry.Env) (*agent.NeuralAgent, error) {
	var w agent.NetworkWeights
	switch {
	case env.ModelFile != "":
		data, err := os.ReadFile(env.ModelFile)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %v", agent.ErrCorruptModel, err)
		}
	case env.Store != nil:
		g, err := env.Store.LoadGenome(env.Model)
		if err != nil {
			return nil, err
		}
		w = g.Weights
	default:
		return nil, fmt.Errorf("neural: no model file or database: %w", os.ErrNotExist)
	}
	net, err := agent.NeuralFromWeights(w)
	if err != nil {
		return nil, err
	}
	names, err := sim.FeatureNames(env.Config.Neural.FeatureSet)
	if err != nil {
		return nil, err
	}
	if in := net.Sizes()[0]; in != len(names) {
		return nil, fmt.Errorf("%w: genome takes %d inputs, feature set %q has %d",
			agent.ErrCorruptModel, in, env.Config.Neural.FeatureSet, len(names))
	}
	return net, nil
}

func saveGenome(env registry.Env, net *agent.NeuralAgent, fitness float64, score int) error {
	w := net.MarshalWeights()
	if env.ModelFile != "" {
		data, err := json.MarshalIndent(w, "", "  ")
		if err != nil {
			return fmt.Errorf("neural: cannot encode genome: %w", err)
		}
		if dir := filepath.Dir(env.ModelFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("neural: cannot create model directory: %w", err)
			}
		}
		if err := os.WriteFile(env.ModelFile, data, 0o644); err != nil {
			return fmt.Errorf("neural: cannot write genome: %w", err)
		}
	}
	if env.Store != nil {
		if err := env.Store.SaveGenome(env.Model, fitness, score, w); err != nil {
			return err
		}
	}
	return nil
}
