package neural

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/flappy-rl/internal/agent"
	"github.com/vovakirdan/flappy-rl/internal/config"
	"github.com/vovakirdan/flappy-rl/internal/registry"
	"github.com/vovakirdan/flappy-rl/internal/sim"
	"github.com/vovakirdan/flappy-rl/internal/storage"
	"github.com/vovakirdan/flappy-rl/internal/train"
)

func testEnv(t *testing.T) registry.Env {
	t.Helper()
	cfg := config.Default()
	cfg.Neural.PopulationSize = 6
	cfg.Neural.Elites = 2
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
	if !registry.Exists(train.StrategyNeural) {
		t.Fatal("neural strategy should register itself")
	}
	st, err := registry.Create(train.StrategyNeural)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if st.ID() != train.StrategyNeural {
		t.Errorf("ID() = %q", st.ID())
	}
}

func TestTrainSavesGenomeThenEval(t *testing.T) {
	env := testEnv(t)
	var rows int
	env.Recorders = []train.Recorder{train.RecorderFunc(func(train.Progress) error {
		rows++
		return nil
	})}

	summary, err := New().Train(context.Background(), env, 3)
	if err != nil {
		t.Fatalf("Train() failed: %v", err)
	}
	if summary.Iterations != 3 || rows != 3 {
		t.Errorf("expected 3 generations and rows, got %d and %d", summary.Iterations, rows)
	}
	if _, err := env.Store.LoadGenome("test"); err != nil {
		t.Fatalf("genome not saved: %v", err)
	}

	// Resuming from the saved genome works
	if _, err := New().Train(context.Background(), env, 1); err != nil {
		t.Fatalf("resumed Train() failed: %v", err)
	}

	eval, err := New().Eval(context.Background(), env, 2)
	if err != nil {
		t.Fatalf("Eval() failed: %v", err)
	}
	if eval.Iterations != 2 || eval.Mode != "eval" {
		t.Errorf("unexpected eval summary: %+v", eval)
	}
}

func TestTrainWithModelFile(t *testing.T) {
	env := testEnv(t)
	env.Store = nil
	env.ModelFile = filepath.Join(t.TempDir(), "models", "genome.json")

	if _, err := New().Train(context.Background(), env, 2); err != nil {
		t.Fatalf("Train() failed: %v", err)
	}
	if _, err := os.Stat(env.ModelFile); err != nil {
		t.Fatalf("model file not written: %v", err)
	}
	if _, err := loadGenome(env); err != nil {
		t.Errorf("loadGenome() failed: %v", err)
	}
}

func TestCorruptModelFileIsColdStart(t *testing.T) {
	env := testEnv(t)
	env.ModelFile = filepath.Join(t.TempDir(), "genome.json")
	if err := os.WriteFile(env.ModelFile, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New().Train(context.Background(), env, 1); err != nil {
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

func TestEvalRejectsFeatureSetMismatch(t *testing.T) {
	env := testEnv(t)
	env.Config.Neural.FeatureSet = config.FeatureSetBasic
	if _, err := New().Train(context.Background(), env, 1); err != nil {
		t.Fatalf("Train() failed: %v", err)
	}

	env.Config.Neural.FeatureSet = config.FeatureSetExtended
	_, err := New().Eval(context.Background(), env, 1)
	if !errors.Is(err, agent.ErrCorruptModel) {
		t.Errorf("Expected ErrCorruptModel, got %v", err)
	}

	// Training with the new feature set starts over instead of failing.
	summary, err := New().Train(context.Background(), env, 1)
	if err != nil {
		t.Fatalf("Train() after feature set change failed: %v", err)
	}
	if summary.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", summary.Iterations)
	}
	if _, err := New().Eval(context.Background(), env, 1); err != nil {
		t.Errorf("Eval() with retrained genome failed: %v", err)
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
	if summary.Stopped != "cancelled" || summary.Iterations != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}
