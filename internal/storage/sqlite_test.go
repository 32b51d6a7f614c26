package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vovakirdan/flappy-rl/internal/agent"
	"github.com/vovakirdan/flappy-rl/internal/train"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreOpenClose(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	// Check that the file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestStoreNestedPath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "deep", "test.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() with nested path failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created in nested directory")
	}
}

func TestStoreRunLifecycle(t *testing.T) {
	store := openTestStore(t)

	id, err := store.StartRun(train.StrategyQLearn, "train", 7, "training:\n  seed: 7\n")
	if err != nil {
		t.Fatalf("StartRun() failed: %v", err)
	}

	run, err := store.Run(id)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if run.Status != StatusRunning || run.Seed != 7 || run.Strategy != train.StrategyQLearn {
		t.Errorf("unexpected run: %+v", run)
	}

	if err := store.FinishRun(id, StatusCompleted, 120, 14); err != nil {
		t.Fatalf("FinishRun() failed: %v", err)
	}
	run, _ = store.Run(id)
	if run.Status != StatusCompleted || run.Iterations != 120 || run.BestScore != 14 {
		t.Errorf("run not finished: %+v", run)
	}
	if run.FinishedAt.IsZero() {
		t.Error("finished_at should be set")
	}
}

func TestStoreRunNotFound(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Run(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.FinishRun(99, StatusFailed, 0, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStoreRecentAndTopRuns(t *testing.T) {
	store := openTestStore(t)

	for i, score := range []int{5, 50, 20} {
		id, err := store.StartRun(train.StrategyNeural, "train", int64(i), "")
		if err != nil {
			t.Fatalf("StartRun() failed: %v", err)
		}
		store.FinishRun(id, StatusCompleted, 10, score)
	}
	id, _ := store.StartRun(train.StrategyQLearn, "train", 0, "")
	store.FinishRun(id, StatusCompleted, 10, 500)

	top, err := store.TopRuns(train.StrategyNeural, 2)
	if err != nil {
		t.Fatalf("TopRuns() failed: %v", err)
	}
	if len(top) != 2 || top[0].BestScore != 50 || top[1].BestScore != 20 {
		t.Errorf("Scores not in expected order: %v", top)
	}

	recent, err := store.RecentRuns("", 10)
	if err != nil {
		t.Fatalf("RecentRuns() failed: %v", err)
	}
	if len(recent) != 4 || recent[0].Strategy != train.StrategyQLearn {
		t.Errorf("Expected 4 runs newest first, got %v", recent)
	}

	stats, err := store.GetStrategyStats(train.StrategyNeural)
	if err != nil {
		t.Fatalf("GetStrategyStats() failed: %v", err)
	}
	if stats.Runs != 3 || stats.BestScore != 50 || stats.AvgBest != 25 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestStoreProgressRecorder(t *testing.T) {
	store := openTestStore(t)
	id, _ := store.StartRun(train.StrategyQLearn, "train", 1, "")

	var rec train.Recorder = store.Recorder(id)
	for i := 1; i <= 3; i++ {
		err := rec.Record(train.Progress{
			Strategy:  train.StrategyQLearn,
			Iteration: i,
			Score:     i,
			Frames:    100 * i,
			BestScore: i,
			Epsilon:   0.5,
			Capped:    i == 3,
		})
		if err != nil {
			t.Fatalf("Record() failed: %v", err)
		}
	}

	rows, err := store.Progress(id)
	if err != nil {
		t.Fatalf("Progress() failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	last := rows[2]
	if last.Iteration != 3 || last.Frames != 300 || !last.Capped || rows[0].Capped {
		t.Errorf("unexpected last row: %+v", last)
	}
	if last.Strategy != train.StrategyQLearn || last.Epsilon != 0.5 {
		t.Errorf("unexpected last row: %+v", last)
	}
}

func TestStoreQTableRoundTrip(t *testing.T) {
	store := openTestStore(t)

	if _, _, err := store.LoadQTable("default"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	entries := []agent.Entry{
		{Key: "0_1_2_3", Values: agent.QValues{-3.5, 7}},
		{Key: "1_1_1_1", Values: agent.QValues{0, 0.25}},
	}
	if err := store.SaveQTable("default", 0.3, entries); err != nil {
		t.Fatalf("SaveQTable() failed: %v", err)
	}

	// Saving again replaces the previous table
	if err := store.SaveQTable("default", 0.2, entries[:1]); err != nil {
		t.Fatalf("SaveQTable() failed: %v", err)
	}

	eps, got, err := store.LoadQTable("default")
	if err != nil {
		t.Fatalf("LoadQTable() failed: %v", err)
	}
	if eps != 0.2 {
		t.Errorf("Expected epsilon 0.2, got %f", eps)
	}
	if len(got) != 1 || got[0] != entries[0] {
		t.Errorf("Unexpected entries: %v", got)
	}
}

func TestStoreGenomeRoundTrip(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.LoadGenome("best"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	w := agent.NetworkWeights{
		Sizes: []int{1, 1},
		Layers: []agent.LayerWeights{
			{Rows: 1, Cols: 1, W: []float64{0.5}, B: []float64{-0.25}},
		},
	}
	if err := store.SaveGenome("best", 1234, 12, w); err != nil {
		t.Fatalf("SaveGenome() failed: %v", err)
	}

	g, err := store.LoadGenome("best")
	if err != nil {
		t.Fatalf("LoadGenome() failed: %v", err)
	}
	if g.Fitness != 1234 || g.Score != 12 {
		t.Errorf("unexpected genome: %+v", g)
	}
	n, err := agent.NeuralFromWeights(g.Weights)
	if err != nil {
		t.Fatalf("NeuralFromWeights() failed: %v", err)
	}
	if p := n.Params(); p[0] != 0.5 || p[1] != -0.25 {
		t.Errorf("unexpected params: %v", p)
	}
}
