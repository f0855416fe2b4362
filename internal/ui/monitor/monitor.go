// Package monitor provides the live queue monitor TUI. It combines the
// element count, add/remove rates and a rolling table of recent
// activity published by the queue watcher.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/courier-mq/courier/internal/log"
	"github.com/courier-mq/courier/internal/pubsub"
	"github.com/courier-mq/courier/queue"
)

const (
	countInterval = 2 * time.Second
	maxRows       = 50
	maxLogLines   = 3
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// countMsg carries a fresh element count.
type countMsg struct {
	count int
	err   error
}

// tickMsg schedules the next count refresh.
type tickMsg time.Time

// logLineMsg carries one debug log entry for the tail.
type logLineMsg string

// Model is the monitor TUI model.
type Model struct {
	q           queue.Queue
	path        string
	listener    *pubsub.ContinuousListener[string]
	logListener *log.LogListener
	cancel      context.CancelFunc

	spinner spinner.Model
	table   table.Model
	rows    []table.Row

	count    int
	added    int
	locked   int
	removed  int
	started  time.Time
	err      error
	logLines []string

	width  int
	height int
}

// New creates a monitor over the given queue. The events broker is the
// watcher's element activity feed.
func New(q queue.Queue, path string, events *pubsub.Broker[string]) Model {
	ctx, cancel := context.WithCancel(context.Background())

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	tbl := table.New(
		table.WithColumns([]table.Column{
			{Title: "Time", Width: 8},
			{Title: "Event", Width: 8},
			{Title: "Element", Width: 40},
		}),
		table.WithHeight(12),
		table.WithFocused(true),
	)

	return Model{
		q:           q,
		path:        path,
		listener:    pubsub.NewContinuousListener(ctx, events),
		logListener: log.NewListener(ctx),
		cancel:      cancel,
		spinner:     sp,
		table:       tbl,
		started:     time.Now(),
	}
}

// Close releases the event subscription.
func (m Model) Close() {
	m.cancel()
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		m.refreshCount(),
		m.listener.Listen(),
	}
	// Tail the debug log when logging is initialized.
	if m.logListener != nil {
		cmds = append(cmds, m.listenLog())
	}
	return tea.Batch(cmds...)
}

// listenLog waits for the next log entry, wrapped in a distinct message
// type so it cannot be mistaken for queue activity.
func (m Model) listenLog() tea.Cmd {
	inner := m.logListener.Listen()
	return func() tea.Msg {
		if event, ok := inner().(log.LogEvent); ok {
			return logLineMsg(event.Payload)
		}
		return nil
	}
}

func (m Model) refreshCount() tea.Cmd {
	return func() tea.Msg {
		n, err := m.q.Count(context.Background())
		return countMsg{count: n, err: err}
	}
}

func scheduleTick() tea.Cmd {
	return tea.Tick(countInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Close()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case countMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.count = msg.count
			m.err = nil
		}
		return m, scheduleTick()

	case tickMsg:
		return m, m.refreshCount()

	case pubsub.Event[string]:
		m.recordActivity(msg)
		// Keep listening for the next event.
		return m, m.listener.Listen()

	case logLineMsg:
		m.logLines = append(m.logLines, strings.TrimRight(string(msg), "\n"))
		if len(m.logLines) > maxLogLines {
			m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
		}
		return m, m.listenLog()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// recordActivity prepends the event to the table, trimming old rows.
func (m *Model) recordActivity(event pubsub.Event[string]) {
	verb := string(event.Type)
	switch event.Type {
	case pubsub.ElementAddedEvent:
		verb = "added"
		m.added++
	case pubsub.ElementRemovedEvent:
		verb = "removed"
		m.removed++
	case pubsub.ElementLockedEvent:
		verb = "locked"
		m.locked++
	}

	row := table.Row{event.Timestamp.Format("15:04:05"), verb, event.Payload}
	m.rows = append([]table.Row{row}, m.rows...)
	if len(m.rows) > maxRows {
		m.rows = m.rows[:maxRows]
	}
	m.table.SetRows(m.rows)
}

// rate formats a per-minute rate since the monitor started.
func (m Model) rate(n int) string {
	mins := time.Since(m.started).Minutes()
	if mins < 1.0/60 {
		return "-"
	}
	return fmt.Sprintf("%.1f/min", float64(n)/mins)
}

func (m Model) View() string {
	header := titleStyle.Render(fmt.Sprintf("%s courier monitor", m.spinner.View())) +
		statStyle.Render("  "+m.path)

	stats := fmt.Sprintf("elements %d  added %d (%s)  locked %d (%s)  removed %d (%s)",
		m.count, m.added, m.rate(m.added), m.locked, m.rate(m.locked),
		m.removed, m.rate(m.removed))
	if m.err != nil {
		stats = errStyle.Render("count error: " + m.err.Error())
	}

	help := statStyle.Render("q to quit")

	sections := []string{
		header,
		statStyle.Render(stats),
		boxStyle.Render(m.table.View()),
	}
	if len(m.logLines) > 0 {
		sections = append(sections, statStyle.Render(strings.Join(m.logLines, "\n")))
	}
	sections = append(sections, help)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
