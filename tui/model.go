// Package tui renders the offline sync indicator in the terminal.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rescuehub/offline"
)

const maxLogs = 8

// Retrier runs a manual replay pass.
type Retrier func() (offline.Result, bool)

// StatusUpdate carries a monitor status and the pending items behind it.
type StatusUpdate struct {
	Status offline.Status
	Items  []offline.QueueItem
}

type LogMessage struct {
	Message string
}

type retryDone struct {
	result offline.Result
	ran    bool
}

type Model struct {
	status  offline.Status
	items   []offline.QueueItem
	logs    []string
	spinner spinner.Model
	retry   Retrier
	width   int
	quit    bool
}

func NewModel(initial StatusUpdate, retry Retrier) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		status:  initial.Status,
		items:   initial.Items,
		spinner: sp,
		retry:   retry,
		width:   80,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		case "r":
			if m.retry == nil || m.status.State == offline.StateSyncing {
				return m, nil
			}
			m = m.log("manual retry requested")
			return m, m.retryCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case StatusUpdate:
		m = m.handleStatus(msg)

	case LogMessage:
		m = m.log(msg.Message)

	case retryDone:
		if !msg.ran {
			m = m.log("replay already running")
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) retryCmd() tea.Cmd {
	retry := m.retry
	return func() tea.Msg {
		res, ran := retry()
		return retryDone{result: res, ran: ran}
	}
}

func (m Model) handleStatus(msg StatusUpdate) Model {
	prev := m.status
	m.status = msg.Status
	m.items = msg.Items

	if prev.Online != msg.Status.Online {
		if msg.Status.Online {
			m = m.log("connection restored")
		} else {
			m = m.log("connection lost, actions will be queued")
		}
	}
	if prev.State != msg.Status.State && msg.Status.Last != nil {
		r := msg.Status.Last
		switch msg.Status.State {
		case offline.StateDone:
			m = m.log(fmt.Sprintf("synced %d action(s)", r.Succeeded))
		case offline.StateError:
			line := fmt.Sprintf("%d synced, %d failed", r.Succeeded, r.Failed)
			if r.Dropped > 0 {
				line += fmt.Sprintf(", %d dropped after too many attempts", r.Dropped)
			}
			m = m.log(line)
		}
	}
	return m
}

func (m Model) log(message string) Model {
	m.logs = append(m.logs, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), message))
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
	return m
}

func (m Model) View() string {
	if m.quit {
		return "Bye.\n"
	}

	var s strings.Builder

	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	s.WriteString(header.Render("RescueHub sync"))
	s.WriteString("\n\n")

	s.WriteString(m.indicator())
	s.WriteString("\n\n")

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Width(m.width - 2)

	var pending strings.Builder
	pending.WriteString(fmt.Sprintf("Pending actions: %d\n", len(m.items)))
	for _, it := range m.items {
		pending.WriteString(fmt.Sprintf("  %-14s %s  retries %d  %s\n",
			it.Type, it.CreatedAt.Local().Format("Jan 02 15:04"), it.Retries, truncate(it.ID, 8)))
	}
	s.WriteString(box.Render(strings.TrimRight(pending.String(), "\n")))
	s.WriteString("\n")

	if len(m.logs) > 0 {
		logs := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
		s.WriteString(logs.Render(strings.Join(m.logs, "\n")))
		s.WriteString("\n")
	}

	footer := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	s.WriteString("\n")
	s.WriteString(footer.Render("r: retry now | q: quit"))
	return s.String()
}

func (m Model) indicator() string {
	conn := lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("online")
	if !m.status.Online {
		conn = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("offline")
	}

	var state string
	switch m.status.State {
	case offline.StateSyncing:
		state = m.spinner.View() + " syncing"
	case offline.StateDone:
		state = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("all changes synced")
	case offline.StateError:
		state = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("some changes failed to sync")
	default:
		state = "idle"
		if len(m.items) > 0 {
			state = fmt.Sprintf("%d waiting", len(m.items))
		}
	}
	return fmt.Sprintf("%s | %s", conn, state)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
