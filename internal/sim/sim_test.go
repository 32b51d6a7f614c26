package sim

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/vovakirdan/flappy-rl/internal/config"
	"github.com/vovakirdan/flappy-rl/internal/core"
)

const dt = 1.0 / 60.0

func newTestSim(t *testing.T) *Simulation {
	t.Helper()
	s, err := New(config.Default().World)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return s
}

// emptyState returns a live bird at y with no pipes on screen.
func emptyState(y float64) State {
	return State{Bird: Bird{Y: y, Alive: true}, Seed: 1}
}

func TestFreeFallMatchesClosedForm(t *testing.T) {
	s := newTestSim(t)
	st := emptyState(300)

	const g = 800.0
	prevY, prevV := st.Bird.Y, st.Bird.Velocity
	for n := 1; n <= 10; n++ {
		res, err := s.Step(st, core.NoFlap, dt)
		if err != nil {
			t.Fatalf("step %d: %v", n, err)
		}
		if res.Terminated {
			t.Fatalf("step %d: unexpected termination", n)
		}
		st = res.State

		tm := float64(n) * dt
		wantV := g * tm
		wantY := 300 + 0.5*g*tm*tm
		if math.Abs(st.Bird.Velocity-wantV) > 1e-9 {
			t.Errorf("step %d: velocity = %v, want %v", n, st.Bird.Velocity, wantV)
		}
		if math.Abs(st.Bird.Y-wantY) > 1e-9 {
			t.Errorf("step %d: y = %v, want %v", n, st.Bird.Y, wantY)
		}
		if st.Bird.Y <= prevY {
			t.Errorf("step %d: bird should keep falling, y %v -> %v", n, prevY, st.Bird.Y)
		}
		if st.Bird.Velocity <= prevV {
			t.Errorf("step %d: velocity magnitude should grow, %v -> %v", n, prevV, st.Bird.Velocity)
		}
		prevY, prevV = st.Bird.Y, st.Bird.Velocity
	}
}

func TestFlapOverridesVelocity(t *testing.T) {
	s := newTestSim(t)
	st := emptyState(300)
	st.Bird.Velocity = 250 // falling fast

	res, err := s.Step(st, core.Flap, dt)
	if err != nil {
		t.Fatal(err)
	}
	if res.State.Bird.Velocity != -400 {
		t.Errorf("velocity after flap = %v, want -400", res.State.Bird.Velocity)
	}
	if want := 300 - 400*dt; math.Abs(res.State.Bird.Y-want) > 1e-9 {
		t.Errorf("y after flap = %v, want %v", res.State.Bird.Y, want)
	}
}

func runSequence(t *testing.T, s *Simulation, seed int64, steps int) []State {
	t.Helper()
	st := s.Reset(seed)
	out := make([]State, 0, steps)
	for i := 0; i < steps; i++ {
		action := core.NoFlap
		if i%15 == 0 {
			action = core.Flap
		}
		res, err := s.Step(st, action, dt)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		st = res.State
		out = append(out, st)
		if res.Terminated {
			break
		}
	}
	return out
}

func TestStepDeterminism(t *testing.T) {
	s := newTestSim(t)

	run1 := runSequence(t, s, 12345, 1200)
	run2 := runSequence(t, s, 12345, 1200)

	if len(run1) != len(run2) {
		t.Fatalf("Determinism failed: run lengths differ. Run1=%d, Run2=%d", len(run1), len(run2))
	}
	for i := range run1 {
		if !reflect.DeepEqual(run1[i], run2[i]) {
			t.Fatalf("Determinism failed at step %d:\n%+v\n%+v", i, run1[i], run2[i])
		}
	}
}

func TestSeedChangesPipes(t *testing.T) {
	s := newTestSim(t)
	a := s.Reset(1)
	b := s.Reset(2)
	if a.Pipes[0].GapCenter == b.Pipes[0].GapCenter {
		t.Errorf("different seeds produced the same first gap %v", a.Pipes[0].GapCenter)
	}
	if c := s.Reset(1); c.Pipes[0].GapCenter != a.Pipes[0].GapCenter {
		t.Error("same seed produced different first gaps")
	}
}

func TestTerminationBoundary(t *testing.T) {
	s := newTestSim(t)
	ceiling, floor := s.Band()

	tests := []struct {
		name string
		y    float64
		want bool
	}{
		{"exactly at ceiling", ceiling, true},
		{"one unit below ceiling", ceiling + 1, false},
		{"exactly at floor", floor, true},
		{"one unit above floor", floor - 1, false},
		{"beyond floor", floor + 50, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := s.Step(emptyState(tc.y), core.NoFlap, dt)
			if err != nil {
				t.Fatal(err)
			}
			if res.Terminated != tc.want {
				t.Errorf("Terminated = %v, want %v (y=%v)", res.Terminated, tc.want, tc.y)
			}
			if res.State.Bird.Alive == tc.want {
				t.Errorf("Alive = %v inconsistent with Terminated", res.State.Bird.Alive)
			}
		})
	}
}

func TestScoringAtMostOnce(t *testing.T) {
	s := newTestSim(t)
	st := emptyState(300)
	// Trailing edge exactly at the bird: nearest, but not yet passed
	st.Pipes = []Pipe{{X: 40, GapCenter: 300, GapHeight: 180}}

	if i := st.Nearest(100, 60); i != 0 {
		t.Fatalf("Nearest() = %d, want 0", i)
	}

	total := 0
	for i := 0; i < 25; i++ {
		res, err := s.Step(st, core.NoFlap, dt)
		if err != nil {
			t.Fatal(err)
		}
		if res.Terminated {
			t.Fatalf("step %d: unexpected termination", i)
		}
		if i == 0 && res.ScoreDelta != 1 {
			t.Errorf("first step should score the passed pipe, delta = %d", res.ScoreDelta)
		}
		if i > 0 && res.ScoreDelta != 0 {
			t.Errorf("step %d scored again, delta = %d", i, res.ScoreDelta)
		}
		total += res.ScoreDelta
		st = res.State
	}

	if total != 1 || st.Bird.Score != 1 {
		t.Errorf("total score = %d (bird %d), want 1", total, st.Bird.Score)
	}
	if len(st.Pipes) != 1 || !st.Pipes[0].Scored {
		t.Errorf("pipe should remain on screen with Scored set: %+v", st.Pipes)
	}
}

func TestPipeCollision(t *testing.T) {
	s := newTestSim(t)

	tests := []struct {
		name  string
		birdY float64
		pipes []Pipe
		want  bool
	}{
		{
			name:  "inside the gap",
			birdY: 300,
			pipes: []Pipe{{X: 95, GapCenter: 300, GapHeight: 180}},
			want:  false,
		},
		{
			name:  "below the gap",
			birdY: 400,
			pipes: []Pipe{{X: 95, GapCenter: 150, GapHeight: 180}},
			want:  true,
		},
		{
			name:  "above the gap",
			birdY: 100,
			pipes: []Pipe{{X: 95, GapCenter: 400, GapHeight: 180}},
			want:  true,
		},
		{
			name:  "second overlapping pipe also checked",
			birdY: 400,
			pipes: []Pipe{
				{X: 50, GapCenter: 400, GapHeight: 180},
				{X: 105, GapCenter: 150, GapHeight: 180},
			},
			want: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := emptyState(tc.birdY)
			st.Pipes = tc.pipes
			res, err := s.Step(st, core.NoFlap, dt)
			if err != nil {
				t.Fatal(err)
			}
			if res.Terminated != tc.want {
				t.Errorf("Terminated = %v, want %v", res.Terminated, tc.want)
			}
		})
	}
}

func TestCollisionSymmetry(t *testing.T) {
	s := newTestSim(t)
	bird := s.BirdRect(Bird{Y: 95})
	p := Pipe{X: 90, GapCenter: 200, GapHeight: 180}
	for _, r := range []core.Rect{p.TopRect(60), p.BottomRect(60, 600)} {
		if bird.Intersects(r) != r.Intersects(bird) {
			t.Errorf("AABB overlap not symmetric for %+v", r)
		}
	}
}

func TestSpawnTimer(t *testing.T) {
	s := newTestSim(t)
	st := emptyState(300)
	st.SpawnTimer = 2.8 - dt/2

	res, err := s.Step(st, core.NoFlap, dt)
	if err != nil {
		t.Fatal(err)
	}
	next := res.State
	if len(next.Pipes) != 1 {
		t.Fatalf("expected one spawned pipe, got %d", len(next.Pipes))
	}
	if next.SpawnTimer != 0 {
		t.Errorf("SpawnTimer = %v, want reset to 0", next.SpawnTimer)
	}
	if next.Spawned != 1 {
		t.Errorf("Spawned = %d, want 1", next.Spawned)
	}
	p := next.Pipes[0]
	if p.X != 800 {
		t.Errorf("spawned pipe X = %v, want screen width", p.X)
	}
	if p.GapTop() < 20+70 || p.GapBottom() > 580-70 {
		t.Errorf("gap [%v, %v] leaves the band plus margin", p.GapTop(), p.GapBottom())
	}
}

func TestOffscreenPipesCollected(t *testing.T) {
	s := newTestSim(t)
	st := emptyState(300)
	st.Pipes = []Pipe{
		{X: -59, GapCenter: 300, GapHeight: 180, Scored: true},
		{X: 400, GapCenter: 300, GapHeight: 180},
	}

	res, err := s.Step(st, core.NoFlap, dt)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.State.Pipes) != 1 {
		t.Fatalf("expected offscreen pipe removed, got %+v", res.State.Pipes)
	}
	if res.State.Pipes[0].X >= 400 {
		t.Errorf("remaining pipe did not move: %v", res.State.Pipes[0].X)
	}
}

func TestStepDoesNotMutateInput(t *testing.T) {
	s := newTestSim(t)
	st := s.Reset(7)
	before := st.Clone()

	if _, err := s.Step(st, core.Flap, dt); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(st, before) {
		t.Errorf("Step mutated its input:\n%+v\n%+v", st, before)
	}
}

func TestDeadBirdStaysDead(t *testing.T) {
	s := newTestSim(t)
	st := emptyState(300)
	st.Bird.Alive = false

	res, err := s.Step(st, core.Flap, dt)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Terminated || res.State.Bird.Y != 300 {
		t.Errorf("dead bird should not move: %+v", res)
	}
}

func TestInvalidGeometry(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.World)
	}{
		{"gap exceeds band", func(w *config.World) { w.Pipes.GapHeight = 500 }},
		{"margins swallow band", func(w *config.World) { w.Screen.CeilingMargin = 400; w.Screen.FloorMargin = 300 }},
		{"zero timestep", func(w *config.World) { w.Physics.Timestep = 0 }},
		{"bird larger than gap", func(w *config.World) { w.Bird.Size = 200 }},
		{"bird starts on ceiling", func(w *config.World) { w.Bird.StartY = 20 }},
		{"zero spawn interval", func(w *config.World) { w.Pipes.SpawnInterval = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := config.Default().World
			tc.mutate(&w)
			_, err := New(w)
			if !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("New() = %v, want ErrInvalidGeometry", err)
			}
		})
	}
}

func TestInvariantViolations(t *testing.T) {
	s := newTestSim(t)

	nanBird := emptyState(math.NaN())
	outsideGap := emptyState(300)
	outsideGap.Pipes = []Pipe{{X: 400, GapCenter: 5, GapHeight: 180}}

	for name, st := range map[string]State{"nan bird": nanBird, "gap outside band": outsideGap} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Step(st, core.NoFlap, dt)
			var inv *InvariantError
			if !errors.As(err, &inv) {
				t.Errorf("Step() = %v, want *InvariantError", err)
			}
		})
	}

	if _, err := s.Step(emptyState(300), core.NoFlap, 0); !errors.Is(err, ErrInvalidTimestep) {
		t.Errorf("dt=0 should fail with ErrInvalidTimestep, got %v", err)
	}
	if _, err := s.Step(emptyState(300), core.Action(9), dt); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("unknown action should fail with ErrInvalidAction, got %v", err)
	}
}

func TestObserveSentinels(t *testing.T) {
	s := newTestSim(t)
	obs := s.Observe(emptyState(300))

	if obs.HasPipe {
		t.Error("HasPipe should be false without pipes")
	}
	if obs.DistanceX != 700 {
		t.Errorf("DistanceX sentinel = %v, want 700", obs.DistanceX)
	}
	if obs.GapCenter != 300 {
		t.Errorf("GapCenter sentinel = %v, want mid-band 300", obs.GapCenter)
	}

	vec, err := s.Vector(obs, config.FeatureSetBasic)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{0.5, 0.5, 1}; !reflect.DeepEqual(vec, want) {
		t.Errorf("basic vector = %v, want %v", vec, want)
	}
}

func TestObserveNearestPipe(t *testing.T) {
	s := newTestSim(t)
	st := emptyState(300)
	st.Pipes = []Pipe{
		{X: 0, GapCenter: 200, GapHeight: 180, Scored: true}, // behind the bird
		{X: 300, GapCenter: 250, GapHeight: 180},
	}

	obs := s.Observe(st)
	if !obs.HasPipe || obs.DistanceX != 200 || obs.GapCenter != 250 || obs.GapOffset != -50 {
		t.Errorf("Observe() = %+v", obs)
	}

	vec, err := s.Vector(obs, config.FeatureSetExtended)
	if err != nil {
		t.Fatal(err)
	}
	names, _ := FeatureNames(config.FeatureSetExtended)
	if len(vec) != len(names) {
		t.Fatalf("vector length %d does not match names %v", len(vec), names)
	}
	for i, v := range vec {
		if v < -1 || v > 1 {
			t.Errorf("feature %s = %v outside [-1, 1]", names[i], v)
		}
	}
}

func TestFeatureIndex(t *testing.T) {
	i, err := FeatureIndex(config.FeatureSetExtended, FeatureGapDY)
	if err != nil || i != 4 {
		t.Errorf("FeatureIndex(gap_dy) = %d, %v", i, err)
	}
	if _, err := FeatureIndex(config.FeatureSetBasic, FeatureVelocity); err == nil {
		t.Error("velocity is not part of the basic set")
	}
}

func TestSnapshot(t *testing.T) {
	s := newTestSim(t)
	st := s.Reset(3)
	snap := s.Snapshot(st)

	if len(snap.Pipes) != 1 || !snap.Alive {
		t.Fatalf("Snapshot() = %+v", snap)
	}
	if snap.Bird.X != 90 || snap.Bird.W != 20 {
		t.Errorf("bird rect = %+v", snap.Bird)
	}
	p := snap.Pipes[0]
	if p.Top.Bottom() >= p.Bottom.Y {
		t.Errorf("top rect %+v should end above bottom rect %+v", p.Top, p.Bottom)
	}
}
