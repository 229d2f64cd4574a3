// Package logger presents run progress. Three backends exist: a plain
// line-oriented logger, a GitHub-Actions flavored one, and a live table
// drawn with bubbletea when stdout is an interactive terminal.
package logger

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Status is the terminal state of a node, as presented to the user.
type Status int

const (
	StatusDone Status = iota
	StatusFailed
	StatusRestored
	StatusSkipped
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusRestored:
		return "restored"
	case StatusSkipped:
		return "skipped"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Logger observes scheduler state transitions.
type Logger interface {
	// RunStarted announces the run and its planned nodes, in dispatch
	// order.
	RunStarted(runID string, nodes []NodeInfo)
	// NodeStarted marks a node as running.
	NodeStarted(key string)
	// NodeFinished records a node's terminal state.
	NodeFinished(key string, status Status, seconds float64)
	// Close flushes and tears the presentation down.
	Close()
}

// NodeInfo is the display identity of a planned node.
type NodeInfo struct {
	Key   string
	Label string
}

// Options select and configure a backend.
type Options struct {
	Simple        bool
	GithubActions bool
	Verbose       bool
	NoColor       bool
}

// New picks the backend: raw line output for simple/CI/verbose modes or
// when stdout is not a terminal, the live table otherwise.
func New(out io.Writer, opts Options) Logger {
	raw := opts.Simple || opts.GithubActions || opts.Verbose
	if f, ok := out.(*os.File); !raw && ok && isatty.IsTerminal(f.Fd()) {
		return newTableLogger(out, opts.NoColor)
	}
	return newSimpleLogger(out, opts)
}
