package sim

import (
	"math/rand"
)

// advancePipes moves pipes left and spawns a new one when the spawn timer fills.
func (s *Simulation) advancePipes(st *State, dt float64) {
	speed := s.difficulty.Speed(s.cfg.Pipes.Speed, st.Bird.Score, st.Frames)
	for i := range st.Pipes {
		st.Pipes[i].X -= speed * dt
	}

	st.SpawnTimer += dt
	if st.SpawnTimer >= s.cfg.Pipes.SpawnInterval {
		st.Pipes = append(st.Pipes, s.spawnPipe(st, s.cfg.Screen.Width))
		st.SpawnTimer = 0
	}
}

// scorePipes marks pipes whose trailing edge has passed strictly behind the
// bird. Returns the number of pipes scored this tick.
func (s *Simulation) scorePipes(st *State) int {
	passed := 0
	birdX, w := s.cfg.Bird.X, s.cfg.Pipes.Width
	for i := range st.Pipes {
		if !st.Pipes[i].Scored && st.Pipes[i].Right(w) < birdX {
			st.Pipes[i].Scored = true
			passed++
		}
	}
	return passed
}

// collectPipes removes pipes that have moved off the left side.
func (s *Simulation) collectPipes(st *State) {
	w := s.cfg.Pipes.Width
	valid := st.Pipes[:0]
	for _, p := range st.Pipes {
		if p.Right(w) >= 0 {
			valid = append(valid, p)
		}
	}
	st.Pipes = valid
}

// spawnPipe creates the next pipe at x. The gap for the n-th spawn depends
// only on (seed, n), so replaying a state replays its pipes.
func (s *Simulation) spawnPipe(st *State, x float64) Pipe {
	gapHeight := s.difficulty.GapSize(s.cfg.Pipes.GapHeight, s.cfg.Pipes.MinGapHeight, st.Bird.Score, st.Frames)

	// Valid center range keeps the whole gap inside the band plus margin
	minCenter := s.ceiling + s.cfg.Pipes.GapMargin + gapHeight/2
	maxCenter := s.floor - s.cfg.Pipes.GapMargin - gapHeight/2

	center := minCenter
	if maxCenter > minCenter {
		rng := rand.New(rand.NewSource(spawnSeed(st.Seed, st.Spawned)))
		center = minCenter + rng.Float64()*(maxCenter-minCenter)
	}
	st.Spawned++

	return Pipe{
		X:         x,
		GapCenter: center,
		GapHeight: gapHeight,
	}
}

// spawnSeed mixes the episode seed with a spawn index (splitmix64 finalizer).
func spawnSeed(seed int64, index uint64) int64 {
	z := uint64(seed) + (index+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64(z ^ (z >> 31))
}
