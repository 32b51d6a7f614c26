package train

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/flappy-rl/internal/agent"
	"github.com/vovakirdan/flappy-rl/internal/core"
	"github.com/vovakirdan/flappy-rl/internal/sim"
)

// Step is one transition observed while running an episode.
type Step struct {
	Prev     sim.State
	Features []float64
	Action   core.Action
	Result   sim.StepResult
	Next     []float64
}

// EpisodeResult summarizes one finished episode.
type EpisodeResult struct {
	Score  int
	Frames int
	Reward float64
	Capped bool
	Final  sim.State
}

// RunEpisode plays one episode from Reset(seed) until termination or stepCap
// steps (0 means no cap). onStep, if non-nil, sees every transition.
func RunEpisode(s *sim.Simulation, a agent.Agent, featureSet string, seed int64, stepCap int, onStep func(Step)) (EpisodeResult, error) {
	st := s.Reset(seed)
	dt := s.Timestep()
	feats, err := s.Features(st, featureSet)
	if err != nil {
		return EpisodeResult{}, err
	}

	for steps := 0; ; steps++ {
		if stepCap > 0 && steps >= stepCap {
			return EpisodeResult{Score: st.Bird.Score, Frames: st.Frames, Capped: true, Final: st}, nil
		}

		action := a.Decide(feats)
		res, err := s.Step(st, action, dt)
		if err != nil {
			return EpisodeResult{Score: st.Bird.Score, Frames: st.Frames, Final: st}, err
		}
		next, err := s.Features(res.State, featureSet)
		if err != nil {
			return EpisodeResult{}, err
		}
		if onStep != nil {
			onStep(Step{Prev: st, Features: feats, Action: action, Result: res, Next: next})
		}

		st, feats = res.State, next
		if res.Terminated {
			return EpisodeResult{Score: st.Bird.Score, Frames: st.Frames, Final: st}, nil
		}
	}
}

// Evaluate runs episodes with consecutive seeds starting at seed and returns
// their results. Episodes that hit an invariant violation are skipped.
func Evaluate(ctx context.Context, s *sim.Simulation, a agent.Agent, featureSet string, seed int64, episodes, stepCap int) ([]EpisodeResult, error) {
	results := make([]EpisodeResult, 0, episodes)
	for i := 0; i < episodes; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := RunEpisode(s, a, featureSet, seed+int64(i), stepCap, nil)
		if err != nil {
			if isInvariant(err) {
				continue
			}
			return results, fmt.Errorf("train: evaluation episode %d: %w", i+1, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func isInvariant(err error) bool {
	var inv *sim.InvariantError
	return errors.As(err, &inv)
}
