package core

// Action is the single decision taken for a bird each simulation tick.
// A human "manual flap" event maps to Flap exactly like an agent decision.
type Action int

const (
	NoFlap Action = iota // let gravity act
	Flap                 // instantaneous upward impulse
)

// NumActions is the size of the action space.
const NumActions = 2

// String returns a human-readable name for the action.
func (a Action) String() string {
	switch a {
	case NoFlap:
		return "NoFlap"
	case Flap:
		return "Flap"
	default:
		return "Unknown"
	}
}

// Valid reports whether a is one of the defined actions.
func (a Action) Valid() bool {
	return a == NoFlap || a == Flap
}

// ActionFromBool maps a boolean flap decision to an Action.
func ActionFromBool(flap bool) Action {
	if flap {
		return Flap
	}
	return NoFlap
}
