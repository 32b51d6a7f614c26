package train

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/stat"

	"github.com/vovakirdan/flappy-rl/internal/agent"
	"github.com/vovakirdan/flappy-rl/internal/config"
	"github.com/vovakirdan/flappy-rl/internal/sim"
)

// Population is one generation of networks. It is replaced wholesale by Step.
type Population struct {
	Agents     []*agent.NeuralAgent
	Generation int
}

// Individual is the evaluated outcome of one population member.
type Individual struct {
	Index     int
	Fitness   float64
	Score     int
	Frames    int
	Capped    bool
	Discarded bool
}

// GenerationStats summarizes one evaluated generation.
type GenerationStats struct {
	Generation  int
	Best        float64
	Mean        float64
	StdDev      float64
	BestScore   int
	BestFrames  int
	BestSoFar   int
	Discarded   int
	Capped      int
	Individuals []Individual
}

// Evolution improves a population of NeuralAgents by elitist selection and mutation.
// All individuals of a generation play the same pipe sequence.
type Evolution struct {
	sim       *sim.Simulation
	cfg       config.NeuralConfig
	training  config.TrainingConfig
	rng       *rand.Rand
	logger    *log.Logger
	recorders []Recorder

	pop         Population
	phase       Phase
	best        *agent.NeuralAgent
	bestFitness float64
	bestScore   int
}

// NewEvolution creates a trainer with a random initial population.
func NewEvolution(s *sim.Simulation, cfg config.Config, rng *rand.Rand, logger *log.Logger, recorders ...Recorder) (*Evolution, error) {
	names, err := sim.FeatureNames(cfg.Neural.FeatureSet)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	if cfg.Neural.PopulationSize < 1 {
		return nil, fmt.Errorf("train: population size must be positive, got %d", cfg.Neural.PopulationSize)
	}

	sizes := append([]int{len(names)}, cfg.Neural.Hidden...)
	sizes = append(sizes, 1)

	e := &Evolution{
		sim:       s,
		cfg:       cfg.Neural,
		training:  cfg.Training,
		rng:       rng,
		logger:    logger,
		recorders: recorders,
	}
	agents := make([]*agent.NeuralAgent, cfg.Neural.PopulationSize)
	for i := range agents {
		if agents[i], err = agent.NewNeural(rng, sizes...); err != nil {
			return nil, fmt.Errorf("train: %w", err)
		}
	}
	e.pop = Population{Agents: agents}
	return e, nil
}

// SeedFrom replaces the population with base followed by mutated copies of it,
// resuming from a previously saved genome.
func (e *Evolution) SeedFrom(base *agent.NeuralAgent) error {
	want := e.pop.Agents[0].Sizes()
	got := base.Sizes()
	if !slices.Equal(want, got) {
		return fmt.Errorf("train: genome topology %v does not match %v", got, want)
	}
	agents := make([]*agent.NeuralAgent, len(e.pop.Agents))
	agents[0] = base.Clone()
	for i := 1; i < len(agents); i++ {
		agents[i] = base.Clone()
		agents[i].Mutate(e.rng, e.cfg.MutationRate, e.cfg.MutationScale)
	}
	e.pop = Population{Agents: agents, Generation: e.pop.Generation}
	return nil
}

// Population returns the current generation.
func (e *Evolution) Population() Population { return e.pop }

// Phase returns the trainer's lifecycle position.
func (e *Evolution) Phase() Phase { return e.phase }

// Best returns the fittest network seen so far, its fitness and its score.
// The network is nil before the first generation completes.
func (e *Evolution) Best() (*agent.NeuralAgent, float64, int) {
	return e.best, e.bestFitness, e.bestScore
}

// generationSeed is shared by every individual of a generation.
func (e *Evolution) generationSeed() int64 {
	return e.training.Seed + int64(e.pop.Generation)
}

// Evaluate plays one episode per individual and returns results in population order.
func (e *Evolution) Evaluate(ctx context.Context) ([]Individual, error) {
	n := len(e.pop.Agents)
	results := make([]Individual, n)
	errs := make([]error, n)
	seed := e.generationSeed()

	eval := func(i int) {
		res, err := RunEpisode(e.sim, e.pop.Agents[i], e.cfg.FeatureSet, seed, e.training.StepCap, nil)
		results[i] = Individual{Index: i, Score: res.Score, Frames: res.Frames, Capped: res.Capped}
		if err != nil {
			if isInvariant(err) {
				results[i] = Individual{Index: i, Discarded: true}
			}
			errs[i] = err
			return
		}
		results[i].Fitness = Fitness(e.training.Fitness, res.Score, res.Frames)
	}

	workers := e.cfg.Workers
	if workers <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			eval(i)
		}
	} else {
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					eval(i)
				}
			}()
		}
	feed:
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				break feed
			case jobs <- i:
			}
		}
		close(jobs)
		wg.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	for i, err := range errs {
		if err == nil {
			continue
		}
		if results[i].Discarded {
			e.logger.Warn("discarding episode", "generation", e.pop.Generation+1, "individual", i, "error", err)
			continue
		}
		return nil, fmt.Errorf("train: generation %d individual %d: %w", e.pop.Generation+1, i, err)
	}
	return results, nil
}

// Step evaluates the current generation, records it, and replaces the
// population with the elites followed by their mutated offspring.
func (e *Evolution) Step(ctx context.Context) (GenerationStats, error) {
	e.phase = PhaseEpisodeRunning
	results, err := e.Evaluate(ctx)
	if err != nil {
		return GenerationStats{}, err
	}
	e.phase = evaluatedPhase(results)

	ranked := append([]Individual(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Discarded != ranked[j].Discarded {
			return !ranked[i].Discarded
		}
		return ranked[i].Fitness > ranked[j].Fitness
	})

	stats := e.summarize(ranked)
	top := ranked[0]
	if !top.Discarded && (e.best == nil || top.Fitness > e.bestFitness) {
		e.best = e.pop.Agents[top.Index].Clone()
		e.bestFitness = top.Fitness
	}
	if top.Score > e.bestScore {
		e.bestScore = top.Score
	}
	stats.BestSoFar = e.bestScore

	e.pop = Population{Agents: e.reproduce(ranked), Generation: e.pop.Generation + 1}
	e.phase = PhaseUpdated

	e.logger.Debug("generation complete",
		"generation", stats.Generation,
		"best", stats.Best,
		"mean", stats.Mean,
		"score", stats.BestScore,
	)
	p := Progress{
		Strategy:    StrategyNeural,
		Iteration:   stats.Generation,
		Score:       stats.BestScore,
		Frames:      stats.BestFrames,
		BestScore:   stats.BestSoFar,
		Fitness:     stats.Best,
		MeanFitness: stats.Mean,
		StdFitness:  stats.StdDev,
		Capped:      top.Capped,
		Discarded:   stats.Discarded == len(ranked),
	}
	for _, r := range e.recorders {
		if err := r.Record(p); err != nil {
			return stats, fmt.Errorf("train: record generation %d: %w", stats.Generation, err)
		}
	}
	return stats, nil
}

// evaluatedPhase is PhaseStepCapReached when any individual hit the step cap.
func evaluatedPhase(results []Individual) Phase {
	for _, r := range results {
		if r.Capped {
			return PhaseStepCapReached
		}
	}
	return PhaseTerminated
}

func (e *Evolution) summarize(ranked []Individual) GenerationStats {
	stats := GenerationStats{
		Generation:  e.pop.Generation + 1,
		Individuals: ranked,
	}
	fits := make([]float64, 0, len(ranked))
	for _, r := range ranked {
		if r.Capped {
			stats.Capped++
		}
		if r.Discarded {
			stats.Discarded++
			continue
		}
		fits = append(fits, r.Fitness)
	}
	if len(fits) > 0 {
		stats.Mean, stats.StdDev = stat.PopMeanStdDev(fits, nil)
		stats.Best = fits[0]
		stats.BestScore = ranked[0].Score
		stats.BestFrames = ranked[0].Frames
	}
	return stats
}

// reproduce keeps the top-K unmutated and fills the rest with mutated copies,
// an equal share per elite with the remainder going to the best one.
func (e *Evolution) reproduce(ranked []Individual) []*agent.NeuralAgent {
	size := len(e.pop.Agents)
	k := e.cfg.Elites
	if k < 1 {
		k = 1
	}
	if k > size {
		k = size
	}

	next := make([]*agent.NeuralAgent, 0, size)
	for i := 0; i < k; i++ {
		next = append(next, e.pop.Agents[ranked[i].Index].Clone())
	}

	share := (size - k) / k
	extra := (size - k) % k
	for i := 0; i < k; i++ {
		n := share
		if i == 0 {
			n += extra
		}
		parent := e.pop.Agents[ranked[i].Index]
		for j := 0; j < n; j++ {
			child := parent.Clone()
			child.Mutate(e.rng, e.cfg.MutationRate, e.cfg.MutationScale)
			next = append(next, child)
		}
	}
	return next
}

// Run executes up to generations steps, stopping early on cancellation.
// A cancelled run returns the stats gathered so far together with ctx.Err().
func (e *Evolution) Run(ctx context.Context, generations int) ([]GenerationStats, error) {
	e.logger.Info("starting evolution",
		"generations", generations,
		"population", len(e.pop.Agents),
		"elites", e.cfg.Elites,
		"workers", e.cfg.Workers,
	)
	history := make([]GenerationStats, 0, generations)
	for g := 0; g < generations; g++ {
		if err := ctx.Err(); err != nil {
			e.phase = PhaseDone
			return history, err
		}
		stats, err := e.Step(ctx)
		if err != nil {
			e.phase = PhaseDone
			return history, err
		}
		history = append(history, stats)
		if every := e.training.LogEvery; every > 0 && stats.Generation%every == 0 || g == generations-1 {
			e.logger.Info("generation",
				"n", stats.Generation,
				"best_fitness", stats.Best,
				"mean_fitness", stats.Mean,
				"score", stats.BestScore,
				"best_score", stats.BestSoFar,
			)
		}
	}
	e.phase = PhaseDone
	e.logger.Info("evolution finished", "best_score", e.bestScore, "best_fitness", e.bestFitness)
	return history, nil
}
