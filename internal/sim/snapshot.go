package sim

import "github.com/vovakirdan/flappy-rl/internal/core"

// PipeRects is the drawable geometry of one pipe.
type PipeRects struct {
	Top    core.Rect
	Bottom core.Rect
	Scored bool
}

// Snapshot is a read-only view of a State for presentation adapters.
type Snapshot struct {
	Bird   core.Rect
	Pipes  []PipeRects
	Score  int
	Alive  bool
	Frames int
}

// Snapshot captures the drawable geometry of st.
func (s *Simulation) Snapshot(st State) Snapshot {
	w, h := s.cfg.Pipes.Width, s.cfg.Screen.Height
	snap := Snapshot{
		Bird:   s.BirdRect(st.Bird),
		Pipes:  make([]PipeRects, 0, len(st.Pipes)),
		Score:  st.Bird.Score,
		Alive:  st.Bird.Alive,
		Frames: st.Frames,
	}
	for _, p := range st.Pipes {
		snap.Pipes = append(snap.Pipes, PipeRects{
			Top:    p.TopRect(w),
			Bottom: p.BottomRect(w, h),
			Scored: p.Scored,
		})
	}
	return snap
}
