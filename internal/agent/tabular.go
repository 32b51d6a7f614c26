package agent

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/vovakirdan/flappy-rl/internal/config"
	"github.com/vovakirdan/flappy-rl/internal/core"
)

// QValues holds one estimate per action, indexed by core.Action.
type QValues [core.NumActions]float64

// Best returns the larger of the two estimates.
func (q QValues) Best() float64 {
	return math.Max(q[core.NoFlap], q[core.Flap])
}

// TabularOptions are the hyperparameters of a TabularAgent.
type TabularOptions struct {
	Alpha        float64
	Gamma        float64
	Epsilon      float64
	EpsilonDecay float64
	EpsilonMin   float64
	TieThreshold float64
	TieNoFlap    bool    // resolve ties with NoFlap instead of a coin flip
	Prior        float64 // initial value of unseen entries
}

// OptionsFromConfig converts the qlearning config section.
func OptionsFromConfig(cfg config.QLearningConfig) TabularOptions {
	return TabularOptions{
		Alpha:        cfg.Alpha,
		Gamma:        cfg.Gamma,
		Epsilon:      cfg.Epsilon,
		EpsilonDecay: cfg.EpsilonDecay,
		EpsilonMin:   cfg.EpsilonMin,
		TieThreshold: cfg.TieThreshold,
		TieNoFlap:    cfg.TieBreak == config.TieBreakNoFlap,
		Prior:        cfg.Prior,
	}
}

// TabularAgent is an epsilon-greedy Q-learner over discretized states.
// The table grows lazily; it is not safe for concurrent use.
type TabularAgent struct {
	opts    TabularOptions
	disc    *Discretizer
	rng     *rand.Rand
	table   map[StateKey]QValues
	epsilon float64
	updates int
}

// NewTabular creates an empty agent.
func NewTabular(disc *Discretizer, rng *rand.Rand, opts TabularOptions) *TabularAgent {
	return &TabularAgent{
		opts:    opts,
		disc:    disc,
		rng:     rng,
		table:   make(map[StateKey]QValues),
		epsilon: opts.Epsilon,
	}
}

// Discretizer returns the state encoder.
func (t *TabularAgent) Discretizer() *Discretizer { return t.disc }

// Epsilon returns the current exploration rate.
func (t *TabularAgent) Epsilon() float64 { return t.epsilon }

// SetEpsilon overrides the exploration rate. Use 0 for greedy evaluation.
func (t *TabularAgent) SetEpsilon(eps float64) { t.epsilon = eps }

// Size returns the number of visited states.
func (t *TabularAgent) Size() int { return len(t.table) }

// Updates returns how many transitions have been learned.
func (t *TabularAgent) Updates() int { return t.updates }

// Q returns the estimates for key and whether the state has been visited.
func (t *TabularAgent) Q(key StateKey) (QValues, bool) {
	q, ok := t.table[key]
	return q, ok
}

// lookup returns the entry for key, inserting the prior on first touch.
func (t *TabularAgent) lookup(key StateKey) QValues {
	q, ok := t.table[key]
	if !ok {
		q = QValues{t.opts.Prior, t.opts.Prior}
		t.table[key] = q
	}
	return q
}

// Decide explores with probability epsilon, otherwise picks the higher estimate.
func (t *TabularAgent) Decide(features []float64) core.Action {
	if t.rng.Float64() < t.epsilon {
		return core.Action(t.rng.Intn(core.NumActions))
	}
	q := t.lookup(t.disc.Key(features))
	if math.Abs(q[core.Flap]-q[core.NoFlap]) < t.opts.TieThreshold {
		return t.tie()
	}
	return core.ActionFromBool(q[core.Flap] > q[core.NoFlap])
}

func (t *TabularAgent) tie() core.Action {
	if t.opts.TieNoFlap {
		return core.NoFlap
	}
	return core.Action(t.rng.Intn(core.NumActions))
}

// Learn applies Q(s,a) += alpha·(r + gamma·max Q(s',·) − Q(s,a)); terminal
// transitions drop the future term. Epsilon then decays toward its floor.
func (t *TabularAgent) Learn(tr Transition) {
	key := t.disc.Key(tr.State)
	q := t.lookup(key)

	target := tr.Reward
	if !tr.Terminal {
		target += t.opts.Gamma * t.lookup(t.disc.Key(tr.Next)).Best()
	}
	q[tr.Action] += t.opts.Alpha * (target - q[tr.Action])
	t.table[key] = q
	t.updates++

	t.epsilon = math.Max(t.epsilon*t.opts.EpsilonDecay, t.opts.EpsilonMin)
}

// Entry is one row of the table.
type Entry struct {
	Key    StateKey
	Values QValues
}

// Entries returns the table sorted by key.
func (t *TabularAgent) Entries() []Entry {
	out := make([]Entry, 0, len(t.table))
	for k, v := range t.table {
		out = append(out, Entry{Key: k, Values: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Restore replaces the table and the exploration rate.
func (t *TabularAgent) Restore(epsilon float64, entries []Entry) error {
	if math.IsNaN(epsilon) || epsilon < 0 || epsilon > 1 {
		return fmt.Errorf("%w: epsilon %v outside [0, 1]", ErrCorruptModel, epsilon)
	}
	table := make(map[StateKey]QValues, len(entries))
	for _, e := range entries {
		if e.Key == "" {
			return fmt.Errorf("%w: empty state key", ErrCorruptModel)
		}
		for _, v := range e.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite value for %q", ErrCorruptModel, e.Key)
			}
		}
		table[e.Key] = e.Values
	}
	t.table = table
	t.epsilon = epsilon
	return nil
}
