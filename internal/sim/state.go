package sim

import (
	"github.com/vovakirdan/flappy-rl/internal/core"
)

// Bird is the agent-controlled body. Its horizontal position is fixed by the world config.
type Bird struct {
	Y        float64 // Vertical center position (grows downward)
	Velocity float64 // Vertical velocity (negative = up)
	Alive    bool    // False once the bird has terminated
	Score    int     // Pipes passed
}

// Pipe represents a vertical obstacle with a gap for the bird to pass through.
type Pipe struct {
	X         float64 // Horizontal position (left edge)
	GapCenter float64 // Vertical center of the gap
	GapHeight float64 // Height of the passable gap
	Scored    bool    // Whether this pipe has already awarded a point
}

// Right returns the x-coordinate of the pipe's trailing edge.
func (p Pipe) Right(width float64) float64 {
	return p.X + width
}

// GapTop returns the y-coordinate where the gap starts.
func (p Pipe) GapTop() float64 {
	return p.GapCenter - p.GapHeight/2
}

// GapBottom returns the y-coordinate where the gap ends.
func (p Pipe) GapBottom() float64 {
	return p.GapCenter + p.GapHeight/2
}

// TopRect returns the collision rectangle for the top portion of the pipe.
func (p Pipe) TopRect(width float64) core.Rect {
	return core.NewRect(p.X, 0, width, p.GapTop())
}

// BottomRect returns the collision rectangle for the bottom portion of the pipe.
func (p Pipe) BottomRect(width, screenH float64) core.Rect {
	bottomY := p.GapBottom()
	return core.NewRect(p.X, bottomY, width, screenH-bottomY)
}

// State is the complete, value-semantic simulation state.
// Pipes are ordered by spawn time; index 0 is the leftmost.
type State struct {
	Bird       Bird
	Pipes      []Pipe
	SpawnTimer float64 // Seconds accumulated toward the next spawn
	Spawned    uint64  // Number of pipes spawned so far; indexes gap generation
	Frames     int     // Frames survived
	Elapsed    float64 // Simulated seconds
	Seed       int64   // Seed for pipe gap generation
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	if s.Pipes != nil {
		out.Pipes = make([]Pipe, len(s.Pipes))
		copy(out.Pipes, s.Pipes)
	}
	return out
}

// Nearest returns the index of the first pipe whose trailing edge is at or
// ahead of birdX, or -1 when there is none. The index is only valid for this state.
func (s State) Nearest(birdX, pipeWidth float64) int {
	for i, p := range s.Pipes {
		if p.Right(pipeWidth) >= birdX {
			return i
		}
	}
	return -1
}
