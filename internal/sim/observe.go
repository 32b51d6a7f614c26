package sim

import (
	"fmt"

	"github.com/vovakirdan/flappy-rl/internal/config"
	"github.com/vovakirdan/flappy-rl/internal/core"
)

// Feature names, usable in qlearning.bins[].feature.
const (
	FeatureBirdY    = "bird_y"
	FeatureVelocity = "velocity"
	FeaturePipeDX   = "pipe_dx"
	FeatureGapY     = "gap_y"
	FeatureGapDY    = "gap_dy"
)

var featureNames = map[string][]string{
	config.FeatureSetRaw:      {FeatureBirdY, FeatureGapY, FeaturePipeDX},
	config.FeatureSetBasic:    {FeatureBirdY, FeatureGapY, FeaturePipeDX},
	config.FeatureSetExtended: {FeatureBirdY, FeatureVelocity, FeaturePipeDX, FeatureGapY, FeatureGapDY},
}

// Observation holds the derived, read-only features an agent may see.
type Observation struct {
	BirdY     float64
	Velocity  float64
	HasPipe   bool    // false when the sentinels below are in use
	GapCenter float64 // mid-band sentinel when there is no pipe
	DistanceX float64 // nearest pipe left edge minus bird x; max distance sentinel when there is no pipe
	GapOffset float64 // GapCenter - BirdY
}

// Observe derives features from the nearest pipe in st.
func (s *Simulation) Observe(st State) Observation {
	obs := Observation{
		BirdY:    st.Bird.Y,
		Velocity: st.Bird.Velocity,
	}

	if i := st.Nearest(s.cfg.Bird.X, s.cfg.Pipes.Width); i >= 0 {
		p := st.Pipes[i]
		obs.HasPipe = true
		obs.GapCenter = p.GapCenter
		obs.DistanceX = p.X - s.cfg.Bird.X
	} else {
		obs.GapCenter = (s.ceiling + s.floor) / 2
		obs.DistanceX = s.maxDistance()
	}
	obs.GapOffset = obs.GapCenter - obs.BirdY
	return obs
}

// maxDistance is the farthest a pipe's left edge can be from the bird.
func (s *Simulation) maxDistance() float64 {
	return s.cfg.Screen.Width - s.cfg.Bird.X
}

// Vector encodes an observation for the named feature set. The layout matches FeatureNames(set).
func (s *Simulation) Vector(obs Observation, set string) ([]float64, error) {
	h := s.cfg.Screen.Height
	switch set {
	case config.FeatureSetRaw:
		return []float64{obs.BirdY, obs.GapCenter, obs.DistanceX}, nil
	case config.FeatureSetBasic:
		return []float64{
			core.ClampF(obs.BirdY/h, 0, 1),
			core.ClampF(obs.GapCenter/h, 0, 1),
			core.ClampF(obs.DistanceX/s.maxDistance(), 0, 1),
		}, nil
	case config.FeatureSetExtended:
		velScale := 1.5 * abs(s.cfg.Physics.JumpImpulse)
		if velScale == 0 {
			velScale = 1
		}
		return []float64{
			core.ClampF(obs.BirdY/h, 0, 1),
			core.ClampF(obs.Velocity/velScale, -1, 1),
			core.ClampF(obs.DistanceX/(s.cfg.Screen.Width/2), 0, 1),
			core.ClampF(obs.GapCenter/h, 0, 1),
			core.ClampF(obs.GapOffset/(h/2), -1, 1),
		}, nil
	}
	return nil, fmt.Errorf("sim: unknown feature set %q", set)
}

// Features is Observe followed by Vector.
func (s *Simulation) Features(st State, set string) ([]float64, error) {
	return s.Vector(s.Observe(st), set)
}

// FeatureNames returns the vector layout of a feature set.
func FeatureNames(set string) ([]string, error) {
	names, ok := featureNames[set]
	if !ok {
		return nil, fmt.Errorf("sim: unknown feature set %q", set)
	}
	return append([]string(nil), names...), nil
}

// FeatureIndex returns the position of a named feature within a feature set.
func FeatureIndex(set, name string) (int, error) {
	names, err := FeatureNames(set)
	if err != nil {
		return 0, err
	}
	for i, n := range names {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("sim: feature %q not in set %q", name, set)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
