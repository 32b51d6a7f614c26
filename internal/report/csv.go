// Package report writes training progress to CSV and renders run summaries.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/vovakirdan/flappy-rl/internal/train"
)

// ProgressRow is the CSV layout of one train.Progress.
type ProgressRow struct {
	Strategy    string  `csv:"strategy"`
	Iteration   int     `csv:"iteration"`
	Score       int     `csv:"score"`
	Frames      int     `csv:"frames"`
	BestScore   int     `csv:"best_score"`
	Fitness     float64 `csv:"fitness"`
	MeanFitness float64 `csv:"mean_fitness"`
	StdFitness  float64 `csv:"std_fitness"`
	Reward      float64 `csv:"reward"`
	RecentAvg   float64 `csv:"recent_avg"`
	Epsilon     float64 `csv:"epsilon"`
	TableSize   int     `csv:"table_size"`
	Capped      bool    `csv:"capped"`
	Discarded   bool    `csv:"discarded"`
}

// RowFromProgress converts a progress update to its CSV row.
func RowFromProgress(p train.Progress) ProgressRow {
	return ProgressRow{
		Strategy:    p.Strategy,
		Iteration:   p.Iteration,
		Score:       p.Score,
		Frames:      p.Frames,
		BestScore:   p.BestScore,
		Fitness:     p.Fitness,
		MeanFitness: p.MeanFitness,
		StdFitness:  p.StdFitness,
		Reward:      p.Reward,
		RecentAvg:   p.RecentAvg,
		Epsilon:     p.Epsilon,
		TableSize:   p.TableSize,
		Capped:      p.Capped,
		Discarded:   p.Discarded,
	}
}

// ProgressWriter appends progress rows to a CSV file.
// A nil *ProgressWriter is valid and discards everything.
type ProgressWriter struct {
	path          string
	file          *os.File
	headerWritten bool
}

// NewProgressWriter creates path (and its directory) for writing.
// Returns nil if path is empty (output disabled).
func NewProgressWriter(path string) (*ProgressWriter, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("report: creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("report: creating %s: %w", path, err)
	}
	return &ProgressWriter{path: path, file: f}, nil
}

// Record implements train.Recorder.
func (w *ProgressWriter) Record(p train.Progress) error {
	if w == nil {
		return nil
	}

	records := []ProgressRow{RowFromProgress(p)}

	if !w.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, w.file); err != nil {
			return fmt.Errorf("report: writing progress: %w", err)
		}
		w.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, w.file); err != nil {
		return fmt.Errorf("report: writing progress: %w", err)
	}
	return nil
}

// Path returns the output file path.
func (w *ProgressWriter) Path() string {
	if w == nil {
		return ""
	}
	return w.path
}

// Close flushes and closes the output file.
func (w *ProgressWriter) Close() error {
	if w == nil || w.file == nil {
		return nil
	}
	return w.file.Close()
}

// ReadProgress loads a CSV written by ProgressWriter.
func ReadProgress(path string) ([]ProgressRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("report: opening %s: %w", path, err)
	}
	defer f.Close()

	var rows []ProgressRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("report: reading %s: %w", path, err)
	}
	return rows, nil
}

var _ train.Recorder = (*ProgressWriter)(nil)
