package train

import (
	"math"

	"github.com/vovakirdan/flappy-rl/internal/config"
	"github.com/vovakirdan/flappy-rl/internal/sim"
)

// Reward shapes one transition for the Q-learner: death on termination,
// otherwise alive plus a bonus per pipe and an optional bonus for flying
// near the middle of the band.
func Reward(cfg config.RewardConfig, s *sim.Simulation, res sim.StepResult) float64 {
	if res.Terminated {
		return cfg.Death
	}
	r := cfg.Alive + float64(res.ScoreDelta)*cfg.Pipe
	if cfg.CenterBonus != 0 {
		ceiling, floor := s.Band()
		mid, half := (ceiling+floor)/2, (floor-ceiling)/2
		r += cfg.CenterBonus * (1 - math.Min(math.Abs(res.State.Bird.Y-mid)/half, 1))
	}
	return r
}

// Fitness scores one evolutionary episode.
func Fitness(cfg config.FitnessConfig, score, frames int) float64 {
	return float64(score)*cfg.ScoreWeight + float64(frames)*cfg.SurvivalWeight
}
