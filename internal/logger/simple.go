package logger

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// simpleLogger prints one line per state transition. It also serves the
// GitHub Actions mode, where the engine brackets child output with
// ::group:: markers and this logger stays plain.
type simpleLogger struct {
	mu     sync.Mutex
	out    io.Writer
	labels map[string]string

	styleRun  lipgloss.Style
	styleDone lipgloss.Style
	styleFail lipgloss.Style
	styleDim  lipgloss.Style
}

func newSimpleLogger(out io.Writer, opts Options) *simpleLogger {
	l := &simpleLogger{
		out:       out,
		labels:    make(map[string]string),
		styleRun:  lipgloss.NewStyle(),
		styleDone: lipgloss.NewStyle(),
		styleFail: lipgloss.NewStyle(),
		styleDim:  lipgloss.NewStyle(),
	}

	if !opts.NoColor && !opts.GithubActions {
		l.styleRun = l.styleRun.Foreground(lipgloss.Color("6"))
		l.styleDone = l.styleDone.Foreground(lipgloss.Color("2"))
		l.styleFail = l.styleFail.Foreground(lipgloss.Color("1")).Bold(true)
		l.styleDim = l.styleDim.Faint(true)
	}
	return l
}

func (l *simpleLogger) RunStarted(runID string, nodes []NodeInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range nodes {
		l.labels[n.Key] = n.Label
	}
	fmt.Fprintf(l.out, "%s %s\n", l.styleDim.Render("run"), runID)
}

func (l *simpleLogger) NodeStarted(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s\n", l.styleRun.Render("▶"), l.label(key))
}

func (l *simpleLogger) NodeFinished(key string, status Status, seconds float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch status {
	case StatusDone:
		fmt.Fprintf(l.out, "%s %s %s\n", l.styleDone.Render("✓"), l.label(key), l.styleDim.Render(fmt.Sprintf("(%.1fs)", seconds)))
	case StatusRestored:
		fmt.Fprintf(l.out, "%s %s %s\n", l.styleDone.Render("↻"), l.label(key), l.styleDim.Render("restored from previous run"))
	case StatusFailed:
		fmt.Fprintf(l.out, "%s %s %s\n", l.styleFail.Render("✗"), l.label(key), l.styleDim.Render(fmt.Sprintf("(%.1fs)", seconds)))
	case StatusSkipped:
		fmt.Fprintf(l.out, "%s %s\n", l.styleDim.Render("- skipped"), l.label(key))
	case StatusCancelled:
		fmt.Fprintf(l.out, "%s %s\n", l.styleDim.Render("- cancelled"), l.label(key))
	}
}

func (l *simpleLogger) Close() {}

func (l *simpleLogger) label(key string) string {
	if label, ok := l.labels[key]; ok {
		return label
	}
	return key
}
