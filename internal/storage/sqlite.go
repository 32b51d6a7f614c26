// Package storage provides SQLite-based persistence for training runs,
// their progress rows, Q-tables and evolved genomes.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/flappy-rl/internal/agent"
	"github.com/vovakirdan/flappy-rl/internal/train"
)

// ErrNotFound is returned when a run, Q-table or genome does not exist.
var ErrNotFound = errors.New("storage: not found")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Store manages the SQLite database connection.
type Store struct {
	db *sql.DB
}

// RunEntry is one training or evaluation run.
type RunEntry struct {
	ID         int64
	Strategy   string
	Mode       string // "train" or "eval"
	Seed       int64
	Config     string // effective YAML config
	Status     string
	Iterations int
	BestScore  int
	StartedAt  time.Time
	FinishedAt time.Time
}

// ProgressEntry is one stored train.Progress row.
type ProgressEntry struct {
	RunID int64
	train.Progress
}

// GenomeEntry is a stored network with its evaluation.
type GenomeEntry struct {
	Name      string
	Fitness   float64
	Score     int
	Weights   agent.NetworkWeights
	UpdatedAt time.Time
}

// StrategyStats contains aggregated statistics for a strategy.
type StrategyStats struct {
	Strategy  string
	Runs      int
	BestScore int
	AvgBest   float64
	LastRun   time.Time
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}
	// One writer keeps transactions from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			strategy TEXT NOT NULL,
			mode TEXT NOT NULL DEFAULT 'train',
			seed INTEGER NOT NULL,
			config TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			iterations INTEGER NOT NULL DEFAULT 0,
			best_score INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			finished_at DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_runs_strategy ON runs(strategy);
		CREATE INDEX IF NOT EXISTS idx_runs_top ON runs(strategy, best_score DESC);

		CREATE TABLE IF NOT EXISTS progress (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			iteration INTEGER NOT NULL,
			score INTEGER NOT NULL,
			frames INTEGER NOT NULL,
			best_score INTEGER NOT NULL,
			fitness REAL NOT NULL DEFAULT 0,
			mean_fitness REAL NOT NULL DEFAULT 0,
			std_fitness REAL NOT NULL DEFAULT 0,
			reward REAL NOT NULL DEFAULT 0,
			recent_avg REAL NOT NULL DEFAULT 0,
			epsilon REAL NOT NULL DEFAULT 0,
			table_size INTEGER NOT NULL DEFAULT 0,
			capped INTEGER NOT NULL DEFAULT 0,
			discarded INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_progress_run ON progress(run_id, iteration);

		CREATE TABLE IF NOT EXISTS qtables (
			name TEXT PRIMARY KEY,
			epsilon REAL NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS qvalues (
			table_name TEXT NOT NULL REFERENCES qtables(name) ON DELETE CASCADE,
			state_key TEXT NOT NULL,
			q_noflap REAL NOT NULL,
			q_flap REAL NOT NULL,
			PRIMARY KEY (table_name, state_key)
		);

		CREATE TABLE IF NOT EXISTS genomes (
			name TEXT PRIMARY KEY,
			fitness REAL NOT NULL,
			score INTEGER NOT NULL,
			weights TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// parseTime handles both time.Time and the string form SQLite returns for DATETIME.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse("2006-01-02 15:04:05", t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// StartRun records a new run in the running state.
// Returns the ID of the inserted record.
func (s *Store) StartRun(strategy, mode string, seed int64, config string) (int64, error) {
	result, err := s.db.Exec(
		"INSERT INTO runs (strategy, mode, seed, config, status) VALUES (?, ?, ?, ?, ?)",
		strategy, mode, seed, config, StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: cannot start run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: cannot get inserted ID: %w", err)
	}

	return id, nil
}

// FinishRun stores the final status and totals of a run.
func (s *Store) FinishRun(id int64, status string, iterations, bestScore int) error {
	res, err := s.db.Exec(
		`UPDATE runs
		 SET status = ?, iterations = ?, best_score = ?, finished_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		status, iterations, bestScore, id,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: run %d", ErrNotFound, id)
	}
	return nil
}

const runColumns = `id, strategy, mode, seed, config, status, iterations, best_score, started_at, finished_at`

func scanRun(sc interface{ Scan(...any) error }) (RunEntry, error) {
	var e RunEntry
	var startedAt, finishedAt any
	err := sc.Scan(&e.ID, &e.Strategy, &e.Mode, &e.Seed, &e.Config, &e.Status,
		&e.Iterations, &e.BestScore, &startedAt, &finishedAt)
	if err != nil {
		return e, err
	}
	e.StartedAt = parseTime(startedAt)
	e.FinishedAt = parseTime(finishedAt)
	return e, nil
}

// Run retrieves a run by ID.
func (s *Store) Run(id int64) (*RunEntry, error) {
	e, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query run: %w", err)
	}
	return &e, nil
}

func (s *Store) queryRuns(query string, args ...any) ([]RunEntry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query runs: %w", err)
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		e, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return entries, nil
}

// RecentRuns retrieves the most recent runs, newest first.
// An empty strategy matches every strategy.
func (s *Store) RecentRuns(strategy string, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryRuns(
		`SELECT `+runColumns+`
		 FROM runs
		 WHERE ? = '' OR strategy = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		strategy, strategy, limit,
	)
}

// TopRuns retrieves the runs with the highest best score.
func (s *Store) TopRuns(strategy string, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.queryRuns(
		`SELECT `+runColumns+`
		 FROM runs
		 WHERE ? = '' OR strategy = ?
		 ORDER BY best_score DESC, id ASC
		 LIMIT ?`,
		strategy, strategy, limit,
	)
}

// SaveProgress appends one progress row to a run.
func (s *Store) SaveProgress(runID int64, p train.Progress) error {
	_, err := s.db.Exec(
		`INSERT INTO progress
		 (run_id, iteration, score, frames, best_score, fitness, mean_fitness, std_fitness,
		  reward, recent_avg, epsilon, table_size, capped, discarded)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, p.Iteration, p.Score, p.Frames, p.BestScore, p.Fitness, p.MeanFitness, p.StdFitness,
		p.Reward, p.RecentAvg, p.Epsilon, p.TableSize, p.Capped, p.Discarded,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save progress: %w", err)
	}
	return nil
}

// Progress retrieves the progress rows of a run in iteration order.
func (s *Store) Progress(runID int64) ([]ProgressEntry, error) {
	rows, err := s.db.Query(
		`SELECT p.run_id, r.strategy, p.iteration, p.score, p.frames, p.best_score,
		        p.fitness, p.mean_fitness, p.std_fitness, p.reward, p.recent_avg,
		        p.epsilon, p.table_size, p.capped, p.discarded
		 FROM progress p JOIN runs r ON r.id = p.run_id
		 WHERE p.run_id = ?
		 ORDER BY p.iteration`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query progress: %w", err)
	}
	defer rows.Close()

	var entries []ProgressEntry
	for rows.Next() {
		var e ProgressEntry
		if err := rows.Scan(&e.RunID, &e.Strategy, &e.Iteration, &e.Score, &e.Frames, &e.BestScore,
			&e.Fitness, &e.MeanFitness, &e.StdFitness, &e.Reward, &e.RecentAvg,
			&e.Epsilon, &e.TableSize, &e.Capped, &e.Discarded); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return entries, nil
}

// RunRecorder stores progress rows for one run.
type RunRecorder struct {
	store *Store
	runID int64
}

// Recorder returns a train.Recorder writing to run runID.
func (s *Store) Recorder(runID int64) *RunRecorder {
	return &RunRecorder{store: s, runID: runID}
}

// Record implements train.Recorder.
func (r *RunRecorder) Record(p train.Progress) error {
	return r.store.SaveProgress(r.runID, p)
}

// Ensure RunRecorder implements train.Recorder
var _ train.Recorder = (*RunRecorder)(nil)

// SaveQTable replaces the named Q-table.
func (s *Store) SaveQTable(name string, epsilon float64, entries []agent.Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: cannot begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM qvalues WHERE table_name = ?", name); err != nil {
		return fmt.Errorf("storage: cannot clear q-table: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO qtables (name, epsilon) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET epsilon = excluded.epsilon, updated_at = CURRENT_TIMESTAMP`,
		name, epsilon,
	); err != nil {
		return fmt.Errorf("storage: cannot save q-table: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO qvalues (table_name, state_key, q_noflap, q_flap) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("storage: cannot prepare q-values: %w", err)
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.Exec(name, string(e.Key), e.Values[0], e.Values[1]); err != nil {
			return fmt.Errorf("storage: cannot save q-value %q: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: cannot commit q-table: %w", err)
	}
	return nil
}

// LoadQTable retrieves the named Q-table, entries sorted by state key.
func (s *Store) LoadQTable(name string) (float64, []agent.Entry, error) {
	var epsilon float64
	err := s.db.QueryRow("SELECT epsilon FROM qtables WHERE name = ?", name).Scan(&epsilon)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("%w: q-table %q", ErrNotFound, name)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("storage: cannot query q-table: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT state_key, q_noflap, q_flap FROM qvalues WHERE table_name = ? ORDER BY state_key`,
		name,
	)
	if err != nil {
		return 0, nil, fmt.Errorf("storage: cannot query q-values: %w", err)
	}
	defer rows.Close()

	var entries []agent.Entry
	for rows.Next() {
		var key string
		var e agent.Entry
		if err := rows.Scan(&key, &e.Values[0], &e.Values[1]); err != nil {
			return 0, nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		e.Key = agent.StateKey(key)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return epsilon, entries, nil
}

// SaveGenome stores or replaces the named network.
func (s *Store) SaveGenome(name string, fitness float64, score int, w agent.NetworkWeights) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("storage: cannot encode genome: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO genomes (name, fitness, score, weights) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   fitness = excluded.fitness, score = excluded.score,
		   weights = excluded.weights, updated_at = CURRENT_TIMESTAMP`,
		name, fitness, score, string(data),
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save genome: %w", err)
	}
	return nil
}

// LoadGenome retrieves the named network.
func (s *Store) LoadGenome(name string) (*GenomeEntry, error) {
	g := GenomeEntry{Name: name}
	var data string
	var updatedAt any
	err := s.db.QueryRow(
		"SELECT fitness, score, weights, updated_at FROM genomes WHERE name = ?",
		name,
	).Scan(&g.Fitness, &g.Score, &data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: genome %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query genome: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &g.Weights); err != nil {
		return nil, fmt.Errorf("storage: cannot decode genome %q: %w", name, agent.ErrCorruptModel)
	}
	g.UpdatedAt = parseTime(updatedAt)
	return &g, nil
}

// GetStrategyStats retrieves aggregated statistics for a specific strategy.
func (s *Store) GetStrategyStats(strategy string) (*StrategyStats, error) {
	stats := &StrategyStats{Strategy: strategy}

	var lastRun any
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(MAX(best_score), 0), COALESCE(AVG(best_score), 0), MAX(started_at)
		 FROM runs WHERE strategy = ?`,
		strategy,
	).Scan(&stats.Runs, &stats.BestScore, &stats.AvgBest, &lastRun)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot get strategy stats: %w", err)
	}
	stats.LastRun = parseTime(lastRun)

	return stats, nil
}
