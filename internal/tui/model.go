// Package tui provides the BubbleTea-based live watch view.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/audioduck/internal/dbus"
	"github.com/jmylchreest/audioduck/internal/model"
	"github.com/jmylchreest/audioduck/internal/store"
)

// statusPollInterval is how often the daemon status line refreshes.
const statusPollInterval = 500 * time.Millisecond

// Controller is the daemon control surface the watch view needs.
// Implemented by the D-Bus client.
type Controller interface {
	Status() (dbus.Status, error)
	Toggle() (bool, error)
	ForceRestore() error
}

// Styles for the watch view.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	enabledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	disabledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	duckedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("11"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// Model is the watch view model.
type Model struct {
	controller Controller
	journal    *store.Journal

	// Components
	viewport viewport.Model
	help     help.Model

	// State
	status    dbus.Status
	statusErr error
	events    []model.Event
	width     int
	height    int
	ready     bool
	showHelp  bool

	// Key bindings
	keys KeyMap

	// Journal change subscription
	changeCh <-chan struct{}
}

// New creates a watch view. changeCh carries journal change signals; it
// may be nil, in which case only manual refresh reloads events.
func New(controller Controller, journal *store.Journal, changeCh <-chan struct{}) Model {
	return Model{
		controller: controller,
		journal:    journal,
		help:       help.New(),
		keys:       DefaultKeyMap(),
		changeCh:   changeCh,
	}
}

type statusMsg struct {
	status dbus.Status
	err    error
}

type eventsMsg struct {
	events []model.Event
}

type journalChangedMsg struct{}

type tickMsg struct{}

// Init initializes the watch view.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.pollStatus,
		m.loadEvents,
		m.watchJournal,
		tick(),
	)
}

func tick() tea.Cmd {
	return tea.Tick(statusPollInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// pollStatus fetches daemon status over D-Bus.
func (m Model) pollStatus() tea.Msg {
	status, err := m.controller.Status()
	return statusMsg{status: status, err: err}
}

// loadEvents reloads the journal.
func (m Model) loadEvents() tea.Msg {
	if m.journal == nil {
		return eventsMsg{}
	}
	events, err := m.journal.Load()
	if err != nil {
		return eventsMsg{}
	}
	return eventsMsg{events: events}
}

// watchJournal blocks until the journal changes.
func (m Model) watchJournal() tea.Msg {
	if m.changeCh == nil {
		return nil
	}
	if _, ok := <-m.changeCh; !ok {
		return nil
	}
	return journalChangedMsg{}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.viewport = viewport.New(msg.Width, msg.Height-4)
		m.viewport.SetContent(m.renderEvents())
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.pollStatus, tick())

	case statusMsg:
		m.status = msg.status
		m.statusErr = msg.err
		return m, nil

	case eventsMsg:
		m.events = msg.events
		if m.ready {
			atBottom := m.viewport.AtBottom()
			m.viewport.SetContent(m.renderEvents())
			if atBottom {
				m.viewport.GotoBottom()
			}
		}
		return m, nil

	case journalChangedMsg:
		return m, tea.Batch(m.loadEvents, m.watchJournal)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		return m, func() tea.Msg {
			_, _ = m.controller.Toggle()
			return m.pollStatus()
		}

	case key.Matches(msg, m.keys.Restore):
		return m, func() tea.Msg {
			_ = m.controller.ForceRestore()
			return m.pollStatus()
		}

	case key.Matches(msg, m.keys.Refresh):
		return m, tea.Batch(m.loadEvents, m.pollStatus)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the watch view.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	}

	return b.String()
}

// renderHeader renders the title and daemon status line.
func (m Model) renderHeader() string {
	title := titleStyle.Render("audioduck")

	var status string
	switch {
	case m.statusErr != nil:
		status = errorStyle.Render("daemon unreachable")
	case !m.status.Enabled:
		status = disabledStyle.Render("ducking disabled")
	case m.status.Ducked:
		status = duckedStyle.Render("DUCKED")
	default:
		status = enabledStyle.Render("idle")
	}

	return fmt.Sprintf("%s  %s\n", title, status)
}

// renderEvents renders the journal events, oldest first.
func (m Model) renderEvents() string {
	if len(m.events) == 0 {
		return timeStyle.Render("No events yet")
	}

	var b strings.Builder
	for _, e := range m.events {
		b.WriteString(timeStyle.Render(fmt.Sprintf("%-14s", humanize.Time(e.Time))))
		b.WriteString(" ")
		b.WriteString(e.Describe())
		if e.Detail != "" {
			b.WriteString(timeStyle.Render(" (" + e.Detail + ")"))
		}
		b.WriteString("\n")
	}
	return b.String()
}
