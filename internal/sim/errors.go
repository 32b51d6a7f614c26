package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGeometry is returned by New when the world cannot hold a valid game.
	ErrInvalidGeometry = errors.New("sim: invalid geometry")
	// ErrInvalidTimestep is returned by Step for a non-positive or non-finite dt.
	ErrInvalidTimestep = errors.New("sim: invalid timestep")
	// ErrInvalidAction is returned by Step for an action outside the action space.
	ErrInvalidAction = errors.New("sim: invalid action")
)

// InvariantError reports a corrupted State. The episode that produced it must be discarded.
type InvariantError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("sim: invariant violated: %s=%v: %s", e.Field, e.Value, e.Reason)
}
