// Package sim implements the Flappy Bird simulation core.
// A Simulation is immutable configuration; all mutable data lives in State,
// and Step is a pure function of (State, Action, dt).
package sim

import (
	"fmt"
	"math"

	"github.com/vovakirdan/flappy-rl/internal/config"
	"github.com/vovakirdan/flappy-rl/internal/core"
)

// StepResult is returned by Step after each simulation tick.
type StepResult struct {
	State      State
	Terminated bool
	ScoreDelta int
}

// Simulation holds the validated world geometry. It is safe for concurrent
// use because Step never mutates it.
type Simulation struct {
	cfg        config.World
	difficulty *config.DifficultyManager
	ceiling    float64 // bird center at or above this terminates
	floor      float64 // bird center at or below this terminates
}

// New validates the world configuration and creates a simulation.
func New(cfg config.World) (*Simulation, error) {
	if cfg.Pipes.MinGapHeight <= 0 || cfg.Pipes.MinGapHeight > cfg.Pipes.GapHeight {
		cfg.Pipes.MinGapHeight = cfg.Pipes.GapHeight
	}
	if err := validateGeometry(cfg); err != nil {
		return nil, err
	}
	return &Simulation{
		cfg:        cfg,
		difficulty: config.NewDifficultyManager(cfg.Difficulty),
		ceiling:    cfg.Screen.CeilingMargin,
		floor:      cfg.Screen.Height - cfg.Screen.FloorMargin,
	}, nil
}

func validateGeometry(cfg config.World) error {
	s, p, b := cfg.Screen, cfg.Pipes, cfg.Bird
	band := s.Height - s.CeilingMargin - s.FloorMargin

	switch {
	case s.Width <= 0 || s.Height <= 0:
		return fmt.Errorf("%w: screen %vx%v must be positive", ErrInvalidGeometry, s.Width, s.Height)
	case s.CeilingMargin < 0 || s.FloorMargin < 0:
		return fmt.Errorf("%w: margins must not be negative", ErrInvalidGeometry)
	case band <= 0:
		return fmt.Errorf("%w: margins leave no playable band", ErrInvalidGeometry)
	case cfg.Physics.Timestep <= 0:
		return fmt.Errorf("%w: timestep must be positive", ErrInvalidGeometry)
	case b.Size <= 0 || b.Size >= band:
		return fmt.Errorf("%w: bird size %v must fit the band %v", ErrInvalidGeometry, b.Size, band)
	case b.X <= 0 || b.X >= s.Width:
		return fmt.Errorf("%w: bird x %v must be on screen", ErrInvalidGeometry, b.X)
	case b.StartY <= s.CeilingMargin || b.StartY >= s.Height-s.FloorMargin:
		return fmt.Errorf("%w: bird start_y %v must be inside the band", ErrInvalidGeometry, b.StartY)
	case p.Width <= 0 || p.Speed <= 0 || p.SpawnInterval <= 0:
		return fmt.Errorf("%w: pipe width, speed and spawn interval must be positive", ErrInvalidGeometry)
	case p.GapMargin < 0:
		return fmt.Errorf("%w: gap margin must not be negative", ErrInvalidGeometry)
	case p.MinGapHeight <= b.Size:
		return fmt.Errorf("%w: gap height %v cannot fit bird size %v", ErrInvalidGeometry, p.MinGapHeight, b.Size)
	case p.GapHeight+2*p.GapMargin > band:
		return fmt.Errorf("%w: gap height %v plus margins %v exceeds playable band %v",
			ErrInvalidGeometry, p.GapHeight, 2*p.GapMargin, band)
	}
	return nil
}

// Config returns the validated world configuration.
func (s *Simulation) Config() config.World {
	return s.cfg
}

// Timestep returns the configured fixed timestep.
func (s *Simulation) Timestep() float64 {
	return s.cfg.Physics.Timestep
}

// Band returns the vertical termination bounds for the bird center.
func (s *Simulation) Band() (ceiling, floor float64) {
	return s.ceiling, s.floor
}

// Reset returns the initial state for an episode seeded with seed.
func (s *Simulation) Reset(seed int64) State {
	st := State{
		Bird: Bird{
			Y:     s.cfg.Bird.StartY,
			Alive: true,
		},
		Pipes: make([]Pipe, 0, 4),
		Seed:  seed,
	}
	if s.cfg.Pipes.SpawnFirst {
		st.Pipes = append(st.Pipes, s.spawnPipe(&st, s.cfg.Pipes.FirstPipeX))
	}
	return st
}

// Step advances state by one tick of length dt. The input is never modified.
// Termination is reported in the result and is not an error; errors signal
// misuse or a corrupted state.
func (s *Simulation) Step(state State, action core.Action, dt float64) (StepResult, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return StepResult{}, fmt.Errorf("%w: %v", ErrInvalidTimestep, dt)
	}
	if !action.Valid() {
		return StepResult{}, fmt.Errorf("%w: %d", ErrInvalidAction, action)
	}
	if err := s.checkState(state); err != nil {
		return StepResult{}, err
	}

	next := state.Clone()
	if !next.Bird.Alive {
		return StepResult{State: next, Terminated: true}, nil
	}

	bird := &next.Bird
	next.Elapsed += dt

	// A bird placed on or beyond a margin dies before it moves
	if s.outOfBand(bird.Y) {
		bird.Alive = false
		return StepResult{State: next, Terminated: true}, nil
	}

	s.moveBird(bird, action, dt)
	if math.IsNaN(bird.Y) || math.IsInf(bird.Y, 0) {
		return StepResult{}, &InvariantError{Field: "bird.y", Value: bird.Y, Reason: "non-finite after integration"}
	}
	if s.outOfBand(bird.Y) {
		bird.Alive = false
		return StepResult{State: next, Terminated: true}, nil
	}

	s.advancePipes(&next, dt)

	if s.collides(next) {
		bird.Alive = false
		return StepResult{State: next, Terminated: true}, nil
	}

	delta := s.scorePipes(&next)
	bird.Score += delta
	s.collectPipes(&next)
	next.Frames++

	return StepResult{State: next, ScoreDelta: delta}, nil
}

// moveBird applies gravity or the flap impulse and integrates position.
// Position uses the average of old and new velocity, which is exact for
// constant acceleration: y += v0*dt + g*dt²/2.
func (s *Simulation) moveBird(b *Bird, action core.Action, dt float64) {
	v0 := b.Velocity
	accel := s.cfg.Physics.Gravity
	if action == core.Flap {
		v0 = s.cfg.Physics.JumpImpulse
		accel = 0
	}

	v1 := v0 + accel*dt
	if maxFall := s.cfg.Physics.MaxFallSpeed; maxFall > 0 && v1 > maxFall {
		v1 = maxFall
	}

	b.Y += 0.5 * (v0 + v1) * dt
	b.Velocity = v1
}

// outOfBand reports whether a bird center at y touches the ceiling or floor margin.
func (s *Simulation) outOfBand(y float64) bool {
	return y <= s.ceiling || y >= s.floor
}

// BirdRect returns the bird's collision rectangle for a state.
func (s *Simulation) BirdRect(b Bird) core.Rect {
	return core.CenteredRect(s.cfg.Bird.X, b.Y, s.cfg.Bird.Size)
}

// collides tests the bird against every pipe. Each pipe is checked
// independently; the nearest one is always among them.
func (s *Simulation) collides(st State) bool {
	birdRect := s.BirdRect(st.Bird)
	w, h := s.cfg.Pipes.Width, s.cfg.Screen.Height
	for _, p := range st.Pipes {
		if birdRect.Intersects(p.TopRect(w)) || birdRect.Intersects(p.BottomRect(w, h)) {
			return true
		}
	}
	return false
}

// checkState validates the invariants a State must hold before stepping.
func (s *Simulation) checkState(st State) error {
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"bird.y", st.Bird.Y},
		{"bird.velocity", st.Bird.Velocity},
		{"spawn_timer", st.SpawnTimer},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return &InvariantError{Field: v.name, Value: v.val, Reason: "must be finite"}
		}
	}

	const eps = 1e-9
	for i, p := range st.Pipes {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) {
			return &InvariantError{Field: fmt.Sprintf("pipes[%d].x", i), Value: p.X, Reason: "must be finite"}
		}
		if !(p.GapHeight > 0) {
			return &InvariantError{Field: fmt.Sprintf("pipes[%d].gap_height", i), Value: p.GapHeight, Reason: "must be positive"}
		}
		if p.GapTop() < s.ceiling-eps || p.GapBottom() > s.floor+eps {
			return &InvariantError{Field: fmt.Sprintf("pipes[%d].gap_center", i), Value: p.GapCenter, Reason: "gap leaves the playable band"}
		}
	}
	return nil
}
