package agent

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Save writes the table in the plain text model format:
//
//	<epsilon>
//	<count>
//	<key> <q_noflap> <q_flap>   (count lines)
func (t *TabularAgent) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	entries := t.Entries()
	fmt.Fprintf(bw, "%s\n%d\n", formatFloat(t.epsilon), len(entries))
	for _, e := range entries {
		fmt.Fprintf(bw, "%s %s %s\n", e.Key, formatFloat(e.Values[0]), formatFloat(e.Values[1]))
	}
	return bw.Flush()
}

// Load replaces the table from the plain text model format. On any error
// the agent is left unchanged and the error wraps ErrCorruptModel.
func (t *TabularAgent) Load(r io.Reader) error {
	sc := bufio.NewScanner(r)
	line := 0
	next := func() (string, bool) {
		for sc.Scan() {
			line++
			if s := strings.TrimSpace(sc.Text()); s != "" {
				return s, true
			}
		}
		return "", false
	}

	s, ok := next()
	if !ok {
		return fmt.Errorf("%w: missing epsilon", ErrCorruptModel)
	}
	eps, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%w: line %d: epsilon: %v", ErrCorruptModel, line, err)
	}

	s, ok = next()
	if !ok {
		return fmt.Errorf("%w: missing entry count", ErrCorruptModel)
	}
	count, err := strconv.Atoi(s)
	if err != nil || count < 0 {
		return fmt.Errorf("%w: line %d: bad entry count %q", ErrCorruptModel, line, s)
	}

	entries := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		s, ok = next()
		if !ok {
			return fmt.Errorf("%w: expected %d entries, found %d", ErrCorruptModel, count, i)
		}
		fields := strings.Fields(s)
		if len(fields) != 3 {
			return fmt.Errorf("%w: line %d: expected 3 fields, got %d", ErrCorruptModel, line, len(fields))
		}
		var q QValues
		for a := range q {
			v, err := strconv.ParseFloat(fields[a+1], 64)
			if err != nil {
				return fmt.Errorf("%w: line %d: %v", ErrCorruptModel, line, err)
			}
			q[a] = v
		}
		entries = append(entries, Entry{Key: StateKey(fields[0]), Values: q})
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("agent: cannot read model: %w", err)
	}
	return t.Restore(eps, entries)
}

// SaveFile writes the model atomically to path.
func (t *TabularAgent) SaveFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("agent: cannot create model directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("agent: cannot create model file: %w", err)
	}
	if err := t.Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("agent: cannot write model: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("agent: cannot write model: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("agent: cannot replace model file: %w", err)
	}
	return nil
}

// LoadFile reads a model from path. A missing file yields an error that
// satisfies errors.Is(err, os.ErrNotExist).
func (t *TabularAgent) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("agent: cannot open model: %w", err)
	}
	defer f.Close()
	return t.Load(f)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
