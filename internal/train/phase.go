// Package train drives agents through simulated episodes: an evolutionary
// loop for NeuralAgent populations and a Q-learning loop for a TabularAgent.
package train

// Phase is the lifecycle position of a trainer.
//
//	Idle -> EpisodeRunning -> (Terminated | StepCapReached) -> Updated -> EpisodeRunning ... -> Done
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseEpisodeRunning
	PhaseTerminated
	PhaseStepCapReached
	PhaseUpdated
	PhaseDone
)

var phaseNames = [...]string{
	PhaseIdle:           "idle",
	PhaseEpisodeRunning: "episode-running",
	PhaseTerminated:     "terminated",
	PhaseStepCapReached: "step-cap-reached",
	PhaseUpdated:        "updated",
	PhaseDone:           "done",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}
