// Package config provides YAML-based configuration loading for the
// simulation, the learning agents and the trainers, plus curriculum
// (difficulty) management for the world.
package config

// Config is the root configuration document.
type Config struct {
	World     World           `yaml:"world"`
	Neural    NeuralConfig    `yaml:"neural"`
	QLearning QLearningConfig `yaml:"qlearning"`
	Training  TrainingConfig  `yaml:"training"`
}

// World contains everything the simulation needs to build a deterministic game.
type World struct {
	Screen     Screen           `yaml:"screen"`
	Physics    Physics          `yaml:"physics"`
	Bird       Bird             `yaml:"bird"`
	Pipes      Pipes            `yaml:"pipes"`
	Difficulty DifficultyConfig `yaml:"difficulty"`
}

// Screen defines the playfield and the vertical playable band.
// The band spans (CeilingMargin, Height-FloorMargin).
type Screen struct {
	Width         float64 `yaml:"width"`
	Height        float64 `yaml:"height"`
	CeilingMargin float64 `yaml:"ceiling_margin"`
	FloorMargin   float64 `yaml:"floor_margin"`
}

// Physics defines bird dynamics. Units are pixels and seconds.
type Physics struct {
	Gravity      float64 `yaml:"gravity"`
	JumpImpulse  float64 `yaml:"jump_impulse"`   // negative = up
	MaxFallSpeed float64 `yaml:"max_fall_speed"` // 0 disables the clamp
	Timestep     float64 `yaml:"timestep"`
}

// Bird defines the bird's fixed column, spawn height and hitbox.
type Bird struct {
	X      float64 `yaml:"x"`
	StartY float64 `yaml:"start_y"`
	Size   float64 `yaml:"size"`
}

// Pipes defines obstacle geometry and spawning.
type Pipes struct {
	Width         float64 `yaml:"width"`
	GapHeight     float64 `yaml:"gap_height"`
	MinGapHeight  float64 `yaml:"min_gap_height"` // floor for curriculum shrinking
	GapMargin     float64 `yaml:"gap_margin"`     // min distance between gap and band edges
	Speed         float64 `yaml:"speed"`
	SpawnInterval float64 `yaml:"spawn_interval"`
	SpawnFirst    bool    `yaml:"spawn_first"`
	FirstPipeX    float64 `yaml:"first_pipe_x"`
}

// DifficultyConfig contains curriculum settings shared by all strategies.
type DifficultyConfig struct {
	Enabled      bool              `yaml:"enabled"`
	InitialLevel float64           `yaml:"initial_level"` // 0.0 = easy, 1.0 = hard
	Progression  ProgressionConfig `yaml:"progression"`
	Scaling      ScalingConfig     `yaml:"scaling"`
}

// ProgressionConfig defines how difficulty increases.
type ProgressionConfig struct {
	Type  string `yaml:"type"`   // "score", "time", or "none"
	MaxAt int    `yaml:"max_at"` // Score/frames at which max difficulty is reached
}

// ScalingConfig defines how difficulty affects the world.
type ScalingConfig struct {
	SpeedMultiplier float64 `yaml:"speed_multiplier"` // Multiplier added to pipe speed at max difficulty
	GapReduction    float64 `yaml:"gap_reduction"`    // Gap height reduction at max difficulty
}

// DifficultyPreset represents a named difficulty level.
type DifficultyPreset string

const (
	DifficultyEasy   DifficultyPreset = "easy"
	DifficultyNormal DifficultyPreset = "normal"
	DifficultyHard   DifficultyPreset = "hard"
	DifficultyFixed  DifficultyPreset = "fixed"
)

// InitialLevelForPreset returns the initial_level for a difficulty preset.
func InitialLevelForPreset(preset DifficultyPreset) float64 {
	switch preset {
	case DifficultyEasy:
		return 0.0
	case DifficultyNormal:
		return 0.3
	case DifficultyHard:
		return 0.7
	default:
		return 0.0
	}
}

// Feature sets understood by the simulation's observation encoder.
const (
	FeatureSetRaw      = "raw"
	FeatureSetBasic    = "basic"
	FeatureSetExtended = "extended"
)

// NeuralConfig configures the evolutionary (feed-forward network) strategy.
type NeuralConfig struct {
	FeatureSet     string  `yaml:"feature_set"`
	Hidden         []int   `yaml:"hidden"`
	PopulationSize int     `yaml:"population_size"`
	Elites         int     `yaml:"elites"`
	MutationRate   float64 `yaml:"mutation_rate"`
	MutationScale  float64 `yaml:"mutation_scale"`
	Workers        int     `yaml:"workers"` // >1 evaluates individuals in parallel
}

// Tie-break policies for the tabular agent.
const (
	TieBreakRandom = "random"
	TieBreakNoFlap = "noflap"
)

// QLearningConfig configures the tabular Q-learning strategy.
type QLearningConfig struct {
	FeatureSet   string      `yaml:"feature_set"`
	Bins         []BinConfig `yaml:"bins"`
	Alpha        float64     `yaml:"alpha"`
	Gamma        float64     `yaml:"gamma"`
	Epsilon      float64     `yaml:"epsilon"`
	EpsilonDecay float64     `yaml:"epsilon_decay"`
	EpsilonMin   float64     `yaml:"epsilon_min"`
	TieThreshold float64     `yaml:"tie_threshold"`
	TieBreak     string      `yaml:"tie_break"`
	Prior        float64     `yaml:"prior"` // initial value for unseen states
}

// BinConfig discretizes one named feature into Bins equal-width buckets over [Min, Max].
type BinConfig struct {
	Feature string  `yaml:"feature"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Bins    int     `yaml:"bins"`
}

// TrainingConfig holds the trainer budget and the reward/fitness policy.
type TrainingConfig struct {
	Seed          int64         `yaml:"seed"`
	Generations   int           `yaml:"generations"`
	Episodes      int           `yaml:"episodes"`
	StepCap       int           `yaml:"step_cap"`
	LogEvery      int           `yaml:"log_every"`
	RecentWindow  int           `yaml:"recent_window"`
	ConvergeAfter int           `yaml:"converge_after"` // consecutive scoring episodes; 0 disables
	Reward        RewardConfig  `yaml:"reward"`
	Fitness       FitnessConfig `yaml:"fitness"`
}

// RewardConfig shapes the Q-learning reward. Death must dwarf Alive and
// Pipe must dwarf Alive for learning to converge.
type RewardConfig struct {
	Alive       float64 `yaml:"alive"`
	Pipe        float64 `yaml:"pipe"`
	Death       float64 `yaml:"death"`
	CenterBonus float64 `yaml:"center_bonus"`
}

// FitnessConfig weights pipes passed against frames survived.
type FitnessConfig struct {
	ScoreWeight    float64 `yaml:"score_weight"`
	SurvivalWeight float64 `yaml:"survival_weight"`
}
