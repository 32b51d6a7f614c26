package config

import (
	_ "embed"
)

//go:embed defaults/flappy.yaml
var defaultFlappyYAML []byte

// Default returns the hardcoded default configuration.
// It mirrors defaults/flappy.yaml and is used if the embedded file is unreadable.
func Default() Config {
	return Config{
		World: World{
			Screen: Screen{
				Width:         800,
				Height:        600,
				CeilingMargin: 20,
				FloorMargin:   20,
			},
			Physics: Physics{
				Gravity:      800,
				JumpImpulse:  -400,
				MaxFallSpeed: 0,
				Timestep:     1.0 / 60.0,
			},
			Bird: Bird{
				X:      100,
				StartY: 300,
				Size:   20,
			},
			Pipes: Pipes{
				Width:         60,
				GapHeight:     180,
				MinGapHeight:  120,
				GapMargin:     70,
				Speed:         200,
				SpawnInterval: 2.8,
				SpawnFirst:    true,
				FirstPipeX:    500,
			},
			Difficulty: DifficultyConfig{
				Enabled:      false,
				InitialLevel: 0.0,
				Progression: ProgressionConfig{
					Type:  "score",
					MaxAt: 50,
				},
				Scaling: ScalingConfig{
					SpeedMultiplier: 0.5,
					GapReduction:    40,
				},
			},
		},
		Neural: NeuralConfig{
			FeatureSet:     FeatureSetBasic,
			Hidden:         []int{4},
			PopulationSize: 15,
			Elites:         3,
			MutationRate:   0.05,
			MutationScale:  1.0,
			Workers:        1,
		},
		QLearning: QLearningConfig{
			FeatureSet: FeatureSetExtended,
			Bins: []BinConfig{
				{Feature: "bird_y", Min: 0, Max: 1, Bins: 12},
				{Feature: "velocity", Min: -1, Max: 1, Bins: 8},
				{Feature: "pipe_dx", Min: 0, Max: 1, Bins: 10},
				{Feature: "gap_dy", Min: -1, Max: 1, Bins: 8},
			},
			Alpha:        0.1,
			Gamma:        0.95,
			Epsilon:      1.0,
			EpsilonDecay: 0.9997,
			EpsilonMin:   0.05,
			TieThreshold: 1e-4,
			TieBreak:     TieBreakRandom,
			Prior:        0,
		},
		Training: TrainingConfig{
			Seed:          1,
			Generations:   50,
			Episodes:      2000,
			StepCap:       20000,
			LogEvery:      50,
			RecentWindow:  500,
			ConvergeAfter: 0,
			Reward: RewardConfig{
				Alive:       1,
				Pipe:        1000,
				Death:       -1000,
				CenterBonus: 0.1,
			},
			Fitness: FitnessConfig{
				ScoreWeight:    1000,
				SurvivalWeight: 1,
			},
		},
	}
}
