package train

// Strategy names, shared with the registry and storage.
const (
	StrategyNeural = "neural"
	StrategyQLearn = "qlearn"
)

// Progress is one row of training bookkeeping: a generation for the
// evolutionary trainer, an episode for the Q-learning trainer.
type Progress struct {
	Strategy    string
	Iteration   int // 1-based generation or episode number
	Score       int // score of this generation's best / this episode
	Frames      int
	BestScore   int // best score so far, never decreases
	Fitness     float64
	MeanFitness float64
	StdFitness  float64
	Reward      float64
	RecentAvg   float64
	Epsilon     float64
	TableSize   int
	Capped      bool // episode hit the step cap
	Discarded   bool // episode dropped after an invariant violation
}

// Recorder receives Progress rows as training proceeds.
type Recorder interface {
	Record(p Progress) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(p Progress) error

func (f RecorderFunc) Record(p Progress) error { return f(p) }
