package train

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/vovakirdan/flappy-rl/internal/agent"
	"github.com/vovakirdan/flappy-rl/internal/config"
	"github.com/vovakirdan/flappy-rl/internal/sim"
)

// NewDiscretizer builds the state encoder for the qlearning config, resolving
// feature names against the configured feature set.
func NewDiscretizer(cfg config.QLearningConfig) (*agent.Discretizer, error) {
	dims := make([]agent.Dim, 0, len(cfg.Bins))
	for _, b := range cfg.Bins {
		idx, err := sim.FeatureIndex(cfg.FeatureSet, b.Feature)
		if err != nil {
			return nil, fmt.Errorf("train: %w", err)
		}
		dims = append(dims, agent.Dim{Name: b.Feature, Index: idx, Min: b.Min, Max: b.Max, Bins: b.Bins})
	}
	d, err := agent.NewDiscretizer(dims...)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	return d, nil
}

// NewTabularAgent builds an empty TabularAgent from the qlearning config.
func NewTabularAgent(cfg config.QLearningConfig, rng *rand.Rand) (*agent.TabularAgent, error) {
	d, err := NewDiscretizer(cfg)
	if err != nil {
		return nil, err
	}
	return agent.NewTabular(d, rng, agent.OptionsFromConfig(cfg)), nil
}

// EpisodeStats summarizes one Q-learning episode.
type EpisodeStats struct {
	Episode   int
	Score     int
	Frames    int
	Reward    float64
	Capped    bool
	Discarded bool
	BestScore int
	RecentAvg float64
	Epsilon   float64
	TableSize int
}

// QLearning trains a TabularAgent one episode at a time.
type QLearning struct {
	sim        *sim.Simulation
	featureSet string
	training   config.TrainingConfig
	agent      *agent.TabularAgent
	logger     *log.Logger
	recorders  []Recorder

	phase     Phase
	episode   int
	bestScore int
	recent    []float64
	streak    int
}

// NewQLearning creates a trainer for a.
func NewQLearning(s *sim.Simulation, cfg config.Config, a *agent.TabularAgent, logger *log.Logger, recorders ...Recorder) (*QLearning, error) {
	names, err := sim.FeatureNames(cfg.QLearning.FeatureSet)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	if w := a.Discretizer().Width(); w > len(names) {
		return nil, fmt.Errorf("train: discretizer reads %d features, feature set %q has %d", w, cfg.QLearning.FeatureSet, len(names))
	}
	return &QLearning{
		sim:        s,
		featureSet: cfg.QLearning.FeatureSet,
		training:   cfg.Training,
		agent:      a,
		logger:     logger,
		recorders:  recorders,
	}, nil
}

// Agent returns the agent being trained.
func (q *QLearning) Agent() *agent.TabularAgent { return q.agent }

// Phase returns the trainer's lifecycle position.
func (q *QLearning) Phase() Phase { return q.phase }

// BestScore returns the best episode score so far.
func (q *QLearning) BestScore() int { return q.bestScore }

// Episode plays and learns from one episode. An invariant violation discards
// the episode and is not returned as an error.
func (q *QLearning) Episode(ctx context.Context) (EpisodeStats, error) {
	if err := ctx.Err(); err != nil {
		return EpisodeStats{}, err
	}
	q.episode++
	q.phase = PhaseEpisodeRunning

	seed := q.training.Seed + int64(q.episode-1)
	var total float64
	res, err := RunEpisode(q.sim, q.agent, q.featureSet, seed, q.training.StepCap, func(st Step) {
		r := Reward(q.training.Reward, q.sim, st.Result)
		total += r
		q.agent.Learn(agent.Transition{
			State:    st.Features,
			Action:   st.Action,
			Reward:   r,
			Next:     st.Next,
			Terminal: st.Result.Terminated,
		})
	})

	stats := EpisodeStats{Episode: q.episode}
	switch {
	case err != nil && isInvariant(err):
		q.logger.Warn("discarding episode", "episode", q.episode, "error", err)
		stats.Discarded = true
		q.phase = PhaseTerminated
	case err != nil:
		q.phase = PhaseDone
		return stats, fmt.Errorf("train: episode %d: %w", q.episode, err)
	case res.Capped:
		q.phase = PhaseStepCapReached
	default:
		q.phase = PhaseTerminated
	}

	if !stats.Discarded {
		stats.Score, stats.Frames, stats.Reward, stats.Capped = res.Score, res.Frames, total, res.Capped
		if res.Score > q.bestScore {
			q.bestScore = res.Score
			q.logger.Info("new best score", "score", res.Score, "episode", q.episode, "frames", res.Frames)
		}
		q.pushRecent(float64(res.Score))
		if res.Score > 0 {
			q.streak++
		} else {
			q.streak = 0
		}
	}

	stats.BestScore = q.bestScore
	stats.RecentAvg = q.recentAvg()
	stats.Epsilon = q.agent.Epsilon()
	stats.TableSize = q.agent.Size()
	q.phase = PhaseUpdated

	p := Progress{
		Strategy:  StrategyQLearn,
		Iteration: stats.Episode,
		Score:     stats.Score,
		Frames:    stats.Frames,
		BestScore: stats.BestScore,
		Reward:    stats.Reward,
		RecentAvg: stats.RecentAvg,
		Epsilon:   stats.Epsilon,
		TableSize: stats.TableSize,
		Capped:    stats.Capped,
		Discarded: stats.Discarded,
	}
	for _, r := range q.recorders {
		if err := r.Record(p); err != nil {
			return stats, fmt.Errorf("train: record episode %d: %w", stats.Episode, err)
		}
	}
	return stats, nil
}

func (q *QLearning) pushRecent(v float64) {
	window := q.training.RecentWindow
	if window < 1 {
		window = 1
	}
	q.recent = append(q.recent, v)
	if len(q.recent) > window {
		q.recent = q.recent[len(q.recent)-window:]
	}
}

func (q *QLearning) recentAvg() float64 {
	if len(q.recent) == 0 {
		return 0
	}
	return stat.Mean(q.recent, nil)
}

// Converged reports whether the last ConvergeAfter episodes all scored.
func (q *QLearning) Converged() bool {
	return q.training.ConvergeAfter > 0 && q.streak >= q.training.ConvergeAfter
}

// Run trains for up to episodes episodes, stopping early on cancellation or
// convergence. A cancelled run returns the stats gathered so far with ctx.Err().
func (q *QLearning) Run(ctx context.Context, episodes int) ([]EpisodeStats, error) {
	q.logger.Info("starting q-learning",
		"episodes", episodes,
		"epsilon", q.agent.Epsilon(),
		"states", q.agent.Size(),
	)
	history := make([]EpisodeStats, 0, episodes)
	for i := 0; i < episodes; i++ {
		stats, err := q.Episode(ctx)
		if err != nil {
			q.phase = PhaseDone
			return history, err
		}
		history = append(history, stats)

		if every := q.training.LogEvery; every > 0 && stats.Episode%every == 0 {
			q.logger.Info("episode",
				"n", stats.Episode,
				"score", stats.Score,
				"best", stats.BestScore,
				"avg", stats.RecentAvg,
				"frames", stats.Frames,
				"epsilon", stats.Epsilon,
				"states", stats.TableSize,
			)
		}
		if q.Converged() {
			q.logger.Info("converged", "episode", stats.Episode, "streak", q.streak)
			break
		}
	}
	q.phase = PhaseDone

	scores := make([]float64, 0, len(history))
	for _, h := range history {
		scores = append(scores, float64(h.Score))
	}
	if len(scores) > 0 {
		q.logger.Info("q-learning finished",
			"best_score", q.bestScore,
			"run_best", floats.Max(scores),
			"states", q.agent.Size(),
		)
	}
	return history, nil
}
