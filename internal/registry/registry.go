// Package registry provides a global registry for training strategies.
// Strategies register themselves in init() functions, allowing the CLI
// to discover and run them without hardcoded dependencies.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/stat"

	"github.com/vovakirdan/flappy-rl/internal/config"
	"github.com/vovakirdan/flappy-rl/internal/report"
	"github.com/vovakirdan/flappy-rl/internal/sim"
	"github.com/vovakirdan/flappy-rl/internal/storage"
	"github.com/vovakirdan/flappy-rl/internal/train"
)

// Strategy is a way of producing an agent that plays the simulation.
type Strategy interface {
	// ID returns a unique identifier (e.g., "neural", "qlearn").
	// Used for CLI commands and run storage.
	ID() string

	// Title returns a human-readable name for display.
	Title() string

	// Train improves a model for count generations or episodes (0 = config default),
	// starting from the saved model when one exists, and saves the result.
	// Cancelling ctx stops training at the next episode boundary; the partial
	// model is still saved and Summary.Stopped is set.
	Train(ctx context.Context, env Env, count int) (report.Summary, error)

	// Eval plays episodes greedily with the saved model.
	Eval(ctx context.Context, env Env, episodes int) (report.Summary, error)
}

// Env carries everything a strategy needs for one run.
type Env struct {
	Config    config.Config
	Sim       *sim.Simulation
	Logger    *log.Logger
	Store     *storage.Store // nil when persistence is disabled
	RunID     int64
	Recorders []train.Recorder
	Model     string // model name in the store
	ModelFile string // optional model file, preferred over the store
}

// StrategyInfo contains metadata about a registered strategy.
type StrategyInfo struct {
	ID    string
	Title string
}

// Factory is a function that creates a new instance of a strategy.
type Factory func() Strategy

var (
	factories = make(map[string]Factory)
	titles    = make(map[string]string)
	mu        sync.RWMutex
)

// Register adds a strategy factory to the registry.
// Typically called from a strategy's init() function.
// Panics if a strategy with the same ID is already registered.
func Register(id string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[id]; exists {
		panic(fmt.Sprintf("registry: strategy %q already registered", id))
	}

	factories[id] = f
	titles[id] = f().Title()
}

// List returns information about all registered strategies, sorted by ID.
func List() []StrategyInfo {
	mu.RLock()
	defer mu.RUnlock()

	result := make([]StrategyInfo, 0, len(factories))
	for id := range factories {
		result = append(result, StrategyInfo{
			ID:    id,
			Title: titles[id],
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result
}

// Create instantiates a new strategy by its ID.
// Returns an error if the strategy ID is not registered.
func Create(id string) (Strategy, error) {
	mu.RLock()
	defer mu.RUnlock()

	f, ok := factories[id]
	if !ok {
		return nil, fmt.Errorf("registry: unknown strategy %q", id)
	}

	return f(), nil
}

// Exists checks if a strategy with the given ID is registered.
func Exists(id string) bool {
	mu.RLock()
	defer mu.RUnlock()

	_, ok := factories[id]
	return ok
}

// EvalSummary records evaluation episodes to env's recorders and summarizes them.
func EvalSummary(id string, env Env, results []train.EpisodeResult) (report.Summary, error) {
	summary := report.Summary{Strategy: id, Mode: "eval", RunID: env.RunID, Iterations: len(results)}
	if len(results) == 0 {
		return summary, nil
	}

	scores := make([]float64, len(results))
	frames := make([]float64, len(results))
	capped := 0
	for i, r := range results {
		scores[i], frames[i] = float64(r.Score), float64(r.Frames)
		if r.Score > summary.BestScore {
			summary.BestScore = r.Score
		}
		if r.Capped {
			capped++
		}
		p := train.Progress{
			Strategy:  id,
			Iteration: i + 1,
			Score:     r.Score,
			Frames:    r.Frames,
			BestScore: summary.BestScore,
			Capped:    r.Capped,
		}
		for _, rec := range env.Recorders {
			if err := rec.Record(p); err != nil {
				return summary, fmt.Errorf("registry: record eval episode %d: %w", i+1, err)
			}
		}
	}
	summary.MeanScore = stat.Mean(scores, nil)
	summary.Add("mean frames", "%.1f", stat.Mean(frames, nil))
	summary.Add("capped", "%d", capped)
	return summary, nil
}
