// ABOUTME: Bubbletea model for the trigger pad TUI
// ABOUTME: Routes key presses to the dispatcher and renders per-voice state
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const ctrlC = 0x03

// refreshInterval is how often voice state is re-read
const refreshInterval = 100 * time.Millisecond

// Controls receives key presses. Update runs on the event loop, so
// TryHandleKey must not block.
type Controls interface {
	TryHandleKey(r rune) (quit bool, err error)
}

// VoiceStatus is one row of the pad
type VoiceStatus struct {
	ID         int
	Key        rune
	Name       string
	State      string
	Sessions   int64
	Retriggers int64
	Aborts     int64
}

// StatusMsg replaces the header information
type StatusMsg struct {
	Remote string
	Bounce bool
}

type tickMsg time.Time

// Model represents the TUI state
type Model struct {
	controls Controls
	snapshot func() []VoiceStatus

	voices  []VoiceStatus
	exitKey rune
	remote  string
	bounce  bool
	lastErr string
	presses int

	quitting bool
	width    int
	height   int
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.refresh()
		return m, tickEvery()
	case StatusMsg:
		m.remote = msg.Remote
		m.bounce = msg.Bounce
	}

	return m, nil
}

func (m *Model) refresh() {
	if m.snapshot != nil {
		m.voices = m.snapshot()
	}
}

// handleKey forwards single characters to the controls
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var r rune
	switch {
	case msg.Type == tea.KeyCtrlC:
		r = ctrlC
	case msg.Type == tea.KeyRunes && len(msg.Runes) == 1:
		r = msg.Runes[0]
	default:
		return m, nil
	}

	if m.controls == nil {
		return m, nil
	}
	quit, err := m.controls.TryHandleKey(r)
	if err != nil {
		m.lastErr = err.Error()
	} else {
		m.lastErr = ""
		m.presses++
	}
	if quit {
		m.quitting = true
		return m, tea.Quit
	}
	m.refresh()
	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	keyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stateStyles = map[string]lipgloss.Style{
		"streaming":     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46")),
		"idle":          lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		"init":          lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		"shutting down": lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"terminated":    lipgloss.NewStyle().Faint(true),
	}
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping voices...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Sample Trigger"))
	b.WriteString("\n\n")

	if m.remote != "" {
		b.WriteString(headerStyle.Render("Remote: "))
		b.WriteString(valueStyle.Render(m.remote))
		b.WriteString("\n")
	}
	b.WriteString(headerStyle.Render("Bounce: "))
	b.WriteString(valueStyle.Render(onOff(m.bounce)))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("Voices (%d)", len(m.voices))))
	b.WriteString("\n\n")

	if len(m.voices) == 0 {
		b.WriteString(valueStyle.Render("  No voices loaded"))
		b.WriteString("\n")
	}
	for _, v := range m.voices {
		b.WriteString(m.renderVoice(v))
		b.WriteString("\n")
	}

	if m.lastErr != "" {
		b.WriteString("\n")
		b.WriteString(errStyle.Render(m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render(m.help()))

	return b.String()
}

func (m Model) renderVoice(v VoiceStatus) string {
	style, ok := stateStyles[v.State]
	if !ok {
		style = valueStyle
	}
	return fmt.Sprintf("  [%s] %-24s %s%s",
		keyStyle.Render(string(v.Key)),
		truncate(v.Name, 24),
		style.Render(fmt.Sprintf("%-13s", v.State)),
		valueStyle.Render(fmt.Sprintf(" plays:%d retrig:%d aborts:%d", v.Sessions, v.Retriggers, v.Aborts)))
}

func (m Model) help() string {
	keys := make([]string, 0, len(m.voices))
	for _, v := range m.voices {
		keys = append(keys, string(v.Key))
	}
	return fmt.Sprintf("Press %s to trigger, '%c' or Ctrl+C to quit", strings.Join(keys, " "), m.exitKey)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
