package qlearn

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/flappy-rl/internal/config"
	"github.com/vovakirdan/flappy-rl/internal/registry"
	"github.com/vovakirdan/flappy-rl/internal/sim"
	"github.com/vovakirdan/flappy-rl/internal/storage"
	"github.com/vovakirdan/flappy-rl/internal/train"
)

func testEnv(t *testing.T) registry.Env {
	t.Helper()
	cfg := config.Default()
	cfg.Training.StepCap = 300
	cfg.Training.LogEvery = 0

	s, err := sim.New(cfg.World)
	if err != nil {
		t.Fatalf("sim.New() failed: %v", err)
	}
	store, err := storage.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("storage.Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return registry.Env{
		Config: cfg,
		Sim:    s,
		Logger: log.New(io.Discard),
		Store:  store,
		Model:  "test",
	}
}

func TestRegistered(t *testing.T) {
	if !registry.Exists(train.StrategyQLearn) {
		t.Fatal("qlearn strategy should register itself")
	}
}

func TestTrainSavesTableThenEval(t *testing.T) {
	env := testEnv(t)

	summary, err := New().Train(context.Background(), env, 20)
	if err != nil {
		t.Fatalf("Train() failed: %v", err)
	}
	if summary.Iterations != 20 {
		t.Errorf("expected 20 episodes, got %d", summary.Iterations)
	}

	eps, entries, err := env.Store.LoadQTable("test")
	if err != nil {
		t.Fatalf("q-table not saved: %v", err)
	}
	if len(entries) == 0 || eps >= 1 {
		t.Errorf("unexpected saved table: epsilon=%f states=%d", eps, len(entries))
	}

	eval, err := New().Eval(context.Background(), env, 3)
	if err != nil {
		t.Fatalf("Eval() failed: %v", err)
	}
	if eval.Iterations != 3 {
		t.Errorf("expected 3 eval episodes, got %d", eval.Iterations)
	}
}

func TestTrainResumesEpsilon(t *testing.T) {
	env := testEnv(t)
	if _, err := New().Train(context.Background(), env, 10); err != nil {
		t.Fatal(err)
	}
	first, _, _ := env.Store.LoadQTable("test")

	if _, err := New().Train(context.Background(), env, 10); err != nil {
		t.Fatal(err)
	}
	second, _, _ := env.Store.LoadQTable("test")
	if second >= first {
		t.Errorf("epsilon should keep decaying across runs: %f -> %f", first, second)
	}
}

func TestModelFileRoundTrip(t *testing.T) {
	env := testEnv(t)
	env.Store = nil
	env.ModelFile = filepath.Join(t.TempDir(), "q.txt")

	if _, err := New().Train(context.Background(), env, 5); err != nil {
		t.Fatalf("Train() failed: %v", err)
	}
	if _, err := New().Eval(context.Background(), env, 1); err != nil {
		t.Fatalf("Eval() failed: %v", err)
	}
}

func TestCorruptModelFileIsColdStart(t *testing.T) {
	env := testEnv(t)
	env.ModelFile = filepath.Join(t.TempDir(), "q.txt")
	if err := os.WriteFile(env.ModelFile, []byte("garbage\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New().Train(context.Background(), env, 2); err != nil {
		t.Fatalf("Train() with corrupt model should cold start, got %v", err)
	}
}

func TestEvalWithoutModel(t *testing.T) {
	env := testEnv(t)
	_, err := New().Eval(context.Background(), env, 1)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTrainCancelled(t *testing.T) {
	env := testEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := New().Train(ctx, env, 5)
	if err != nil {
		t.Fatalf("cancelled Train() should not fail: %v", err)
	}
	if summary.Stopped != "cancelled" {
		t.Errorf("expected cancelled summary, got %+v", summary)
	}
}

func TestDefaultFeatureSetMatchesBins(t *testing.T) {
	cfg := config.Default().QLearning
	if _, err := train.NewDiscretizer(cfg); err != nil {
		t.Fatalf("default qlearning config is not usable: %v", err)
	}
}
