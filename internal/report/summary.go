package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Field is one labelled line of a summary.
type Field struct {
	Key   string
	Value string
}

// Summary describes a finished train or eval run.
type Summary struct {
	Strategy   string
	Mode       string // "train" or "eval"
	RunID      int64  // 0 when no database was used
	Iterations int
	BestScore  int
	MeanScore  float64
	Stopped    string // empty, "cancelled" or "converged"
	Fields     []Field
}

// Add appends a formatted field.
func (s *Summary) Add(key string, format string, args ...any) {
	s.Fields = append(s.Fields, Field{Key: key, Value: fmt.Sprintf(format, args...)})
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFD700"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	valueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF88"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#555555")).
			Padding(0, 1)
)

// lines returns the key/value pairs shown for s.
func (s Summary) lines() []Field {
	out := []Field{
		{"strategy", s.Strategy},
		{"iterations", fmt.Sprint(s.Iterations)},
		{"best score", fmt.Sprint(s.BestScore)},
		{"mean score", fmt.Sprintf("%.2f", s.MeanScore)},
	}
	if s.RunID > 0 {
		out = append(out, Field{"run", fmt.Sprint(s.RunID)})
	}
	if s.Stopped != "" {
		out = append(out, Field{"stopped", s.Stopped})
	}
	return append(out, s.Fields...)
}

// Render formats s as plain aligned text, or as a styled box when styled is set.
func Render(s Summary, styled bool) string {
	lines := s.lines()
	width := 0
	for _, f := range lines {
		if len(f.Key) > width {
			width = len(f.Key)
		}
	}

	title := fmt.Sprintf("%s %s", s.Strategy, s.Mode)
	var b strings.Builder
	if !styled {
		b.WriteString(title + "\n")
		for _, f := range lines {
			fmt.Fprintf(&b, "  %-*s  %s\n", width, f.Key, f.Value)
		}
		return b.String()
	}

	b.WriteString(titleStyle.Render(title))
	for _, f := range lines {
		b.WriteString("\n")
		b.WriteString(keyStyle.Render(fmt.Sprintf("%-*s", width, f.Key)))
		b.WriteString("  ")
		b.WriteString(valueStyle.Render(f.Value))
	}
	return boxStyle.Render(b.String()) + "\n"
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
