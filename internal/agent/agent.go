// Package agent implements the decision makers that control a bird:
// a feed-forward network improved by mutation, and a tabular Q-learner.
// Agents only see feature vectors; they never reference a simulation.
package agent

import (
	"errors"

	"github.com/vovakirdan/flappy-rl/internal/core"
)

// ErrCorruptModel is returned when a persisted model cannot be decoded.
var ErrCorruptModel = errors.New("agent: corrupt model")

// Agent chooses an action from a fixed-size feature vector.
type Agent interface {
	Decide(features []float64) core.Action
}

// Transition is one observed step used by learning agents.
type Transition struct {
	State    []float64
	Action   core.Action
	Reward   float64
	Next     []float64
	Terminal bool
}

// Learner is an agent that improves from per-step reward signals.
type Learner interface {
	Agent
	Learn(tr Transition)
}
