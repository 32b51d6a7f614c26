package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Load loads the configuration.
// Search order: customPath -> ~/.flappyrl/config.yaml -> ./configs/flappy.yaml -> embedded default.
// Files are decoded on top of Default(), so partial documents only override what they name.
func Load(customPath string) (Config, error) {
	// Try custom path first
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", customPath, err)
		}
		cfg, err := Parse(data)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", customPath, err)
		}
		return cfg, nil
	}

	// Try user config directory
	if userCfgPath := userConfigPath("config.yaml"); userCfgPath != "" {
		if data, err := os.ReadFile(userCfgPath); err == nil {
			if cfg, err := Parse(data); err == nil {
				return cfg, nil
			}
		}
	}

	// Try local configs directory
	if data, err := os.ReadFile("configs/flappy.yaml"); err == nil {
		if cfg, err := Parse(data); err == nil {
			return cfg, nil
		}
	}

	// Use embedded default YAML
	cfg, err := Parse(defaultFlappyYAML)
	if err != nil {
		return Default(), nil // Fallback to hardcoded if embed fails
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteYAML saves the configuration to path, creating parent directories.
func (c Config) WriteYAML(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// userConfigPath returns the path to user config file, or empty if home is unavailable.
func userConfigPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".flappyrl", filename)
}

// ApplyPreset modifies the world curriculum based on a difficulty preset.
// An empty preset leaves the config untouched.
func ApplyPreset(cfg *Config, preset DifficultyPreset) {
	switch preset {
	case "":
		return
	case DifficultyFixed:
		cfg.World.Difficulty.Enabled = false
	default:
		cfg.World.Difficulty.Enabled = true
		cfg.World.Difficulty.InitialLevel = InitialLevelForPreset(preset)
	}
}

// Validate checks the agent and trainer sections. World geometry is checked
// by the simulation when it is constructed.
func (c Config) Validate() error {
	n := c.Neural
	switch {
	case !validFeatureSet(n.FeatureSet):
		return fmt.Errorf("%w: neural.feature_set %q", ErrInvalidConfig, n.FeatureSet)
	case n.PopulationSize < 1:
		return fmt.Errorf("%w: neural.population_size must be positive", ErrInvalidConfig)
	case n.Elites < 1 || n.Elites > n.PopulationSize:
		return fmt.Errorf("%w: neural.elites must be in [1, population_size]", ErrInvalidConfig)
	case n.MutationRate < 0 || n.MutationRate > 1:
		return fmt.Errorf("%w: neural.mutation_rate must be in [0, 1]", ErrInvalidConfig)
	case n.MutationScale < 0:
		return fmt.Errorf("%w: neural.mutation_scale must not be negative", ErrInvalidConfig)
	}
	for _, h := range n.Hidden {
		if h < 1 {
			return fmt.Errorf("%w: neural.hidden layer sizes must be positive", ErrInvalidConfig)
		}
	}

	q := c.QLearning
	switch {
	case !validFeatureSet(q.FeatureSet):
		return fmt.Errorf("%w: qlearning.feature_set %q", ErrInvalidConfig, q.FeatureSet)
	case len(q.Bins) == 0:
		return fmt.Errorf("%w: qlearning.bins must not be empty", ErrInvalidConfig)
	case q.Alpha <= 0 || q.Alpha > 1:
		return fmt.Errorf("%w: qlearning.alpha must be in (0, 1]", ErrInvalidConfig)
	case q.Gamma < 0 || q.Gamma > 1:
		return fmt.Errorf("%w: qlearning.gamma must be in [0, 1]", ErrInvalidConfig)
	case q.EpsilonMin < 0 || q.EpsilonMin > 1 || q.Epsilon < 0 || q.Epsilon > 1:
		return fmt.Errorf("%w: qlearning epsilon values must be in [0, 1]", ErrInvalidConfig)
	case q.EpsilonDecay <= 0 || q.EpsilonDecay > 1:
		return fmt.Errorf("%w: qlearning.epsilon_decay must be in (0, 1]", ErrInvalidConfig)
	case q.TieBreak != TieBreakRandom && q.TieBreak != TieBreakNoFlap:
		return fmt.Errorf("%w: qlearning.tie_break %q", ErrInvalidConfig, q.TieBreak)
	}
	for _, b := range q.Bins {
		if b.Bins < 1 || b.Max <= b.Min {
			return fmt.Errorf("%w: qlearning bin %q needs bins >= 1 and max > min", ErrInvalidConfig, b.Feature)
		}
	}

	t := c.Training
	switch {
	case t.StepCap < 1:
		return fmt.Errorf("%w: training.step_cap must be positive", ErrInvalidConfig)
	case t.Generations < 0 || t.Episodes < 0:
		return fmt.Errorf("%w: training budgets must not be negative", ErrInvalidConfig)
	case t.Reward.Death >= 0:
		return fmt.Errorf("%w: training.reward.death must be negative", ErrInvalidConfig)
	case t.Reward.Alive <= 0:
		return fmt.Errorf("%w: training.reward.alive must be positive", ErrInvalidConfig)
	case t.Reward.Pipe <= t.Reward.Alive:
		return fmt.Errorf("%w: training.reward.pipe must exceed training.reward.alive", ErrInvalidConfig)
	case t.Fitness.ScoreWeight < 0 || t.Fitness.SurvivalWeight < 0:
		return fmt.Errorf("%w: training.fitness weights must not be negative", ErrInvalidConfig)
	}
	return nil
}

func validFeatureSet(s string) bool {
	switch s {
	case FeatureSetRaw, FeatureSetBasic, FeatureSetExtended:
		return true
	}
	return false
}
