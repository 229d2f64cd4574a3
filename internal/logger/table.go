package logger

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// tableLogger renders the run as a live table, one row per planned node,
// redrawn as states change. It follows the Elm-style bubbletea model:
// scheduler events arrive as messages via Program.Send.
type tableLogger struct {
	program *tea.Program
	done    chan struct{}
	once    sync.Once
}

type rowState int

const (
	rowPending rowState = iota
	rowRunning
	rowDone
	rowFailed
	rowRestored
	rowSkipped
	rowCancelled
)

type tableRow struct {
	key     string
	label   string
	state   rowState
	seconds float64
}

type runStartedMsg struct {
	runID string
	nodes []NodeInfo
}

type nodeStartedMsg struct{ key string }

type nodeFinishedMsg struct {
	key     string
	status  Status
	seconds float64
}

type closeMsg struct{}

type tableModel struct {
	runID   string
	rows    []tableRow
	index   map[string]int
	spin    spinner.Model
	noColor bool
	closing bool

	styleHeader lipgloss.Style
	styleDone   lipgloss.Style
	styleFail   lipgloss.Style
	styleDim    lipgloss.Style
}

func newTableModel(noColor bool) tableModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := tableModel{
		index:       make(map[string]int),
		spin:        sp,
		noColor:     noColor,
		styleHeader: lipgloss.NewStyle(),
		styleDone:   lipgloss.NewStyle(),
		styleFail:   lipgloss.NewStyle(),
		styleDim:    lipgloss.NewStyle(),
	}
	if !noColor {
		m.styleHeader = m.styleHeader.Bold(true)
		m.styleDone = m.styleDone.Foreground(lipgloss.Color("2"))
		m.styleFail = m.styleFail.Foreground(lipgloss.Color("1")).Bold(true)
		m.styleDim = m.styleDim.Faint(true)
	}
	return m
}

func (m tableModel) Init() tea.Cmd {
	return m.spin.Tick
}

func (m tableModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runStartedMsg:
		m.runID = msg.runID
		m.rows = make([]tableRow, len(msg.nodes))
		for i, n := range msg.nodes {
			m.rows[i] = tableRow{key: n.Key, label: n.Label}
			m.index[n.Key] = i
		}
		return m, nil
	case nodeStartedMsg:
		if i, ok := m.index[msg.key]; ok {
			m.rows[i].state = rowRunning
		}
		return m, nil
	case nodeFinishedMsg:
		if i, ok := m.index[msg.key]; ok {
			m.rows[i].seconds = msg.seconds
			switch msg.status {
			case StatusDone:
				m.rows[i].state = rowDone
			case StatusFailed:
				m.rows[i].state = rowFailed
			case StatusRestored:
				m.rows[i].state = rowRestored
			case StatusSkipped:
				m.rows[i].state = rowSkipped
			case StatusCancelled:
				m.rows[i].state = rowCancelled
			}
		}
		return m, nil
	case closeMsg:
		m.closing = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			// The scheduler owns cancellation; the table just keeps
			// rendering until it is closed.
			return m, nil
		}
	}
	return m, nil
}

func (m tableModel) View() string {
	if m.runID == "" {
		return ""
	}

	var b []byte
	b = append(b, m.styleHeader.Render("run "+m.runID)...)
	b = append(b, '\n')

	width := 0
	for _, row := range m.rows {
		if len(row.label) > width {
			width = len(row.label)
		}
	}

	for _, row := range m.rows {
		marker, suffix := m.decorate(row)
		line := fmt.Sprintf("  %s %-*s %s", marker, width, row.label, suffix)
		b = append(b, line...)
		b = append(b, '\n')
	}
	return string(b)
}

func (m tableModel) decorate(row tableRow) (marker, suffix string) {
	switch row.state {
	case rowPending:
		return m.styleDim.Render("·"), m.styleDim.Render("pending")
	case rowRunning:
		return m.spin.View(), "running"
	case rowDone:
		return m.styleDone.Render("✓"), m.styleDim.Render(fmt.Sprintf("%.1fs", row.seconds))
	case rowRestored:
		return m.styleDone.Render("↻"), m.styleDim.Render("restored")
	case rowFailed:
		return m.styleFail.Render("✗"), m.styleFail.Render(fmt.Sprintf("failed (%.1fs)", row.seconds))
	case rowSkipped:
		return m.styleDim.Render("-"), m.styleDim.Render("skipped")
	case rowCancelled:
		return m.styleDim.Render("-"), m.styleDim.Render("cancelled")
	}
	return " ", ""
}

func newTableLogger(out io.Writer, noColor bool) *tableLogger {
	program := tea.NewProgram(
		newTableModel(noColor),
		tea.WithOutput(out),
		tea.WithInput(nil),
	)

	l := &tableLogger{program: program, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		_, _ = program.Run()
	}()
	return l
}

func (l *tableLogger) RunStarted(runID string, nodes []NodeInfo) {
	// Nodes arrive in plan order already.
	l.program.Send(runStartedMsg{runID: runID, nodes: append([]NodeInfo{}, nodes...)})
}

func (l *tableLogger) NodeStarted(key string) {
	l.program.Send(nodeStartedMsg{key: key})
}

func (l *tableLogger) NodeFinished(key string, status Status, seconds float64) {
	l.program.Send(nodeFinishedMsg{key: key, status: status, seconds: seconds})
}

func (l *tableLogger) Close() {
	l.once.Do(func() {
		l.program.Send(closeMsg{})
		<-l.done
	})
}
