// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the trigger pad
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Config holds what the pad needs from the application
type Config struct {
	Controls Controls
	// Snapshot is polled on every refresh
	Snapshot func() []VoiceStatus
	ExitKey  rune
	Remote   string
	Bounce   bool
}

// NewModel creates a new TUI model
func NewModel(cfg Config) Model {
	m := Model{
		controls: cfg.Controls,
		snapshot: cfg.Snapshot,
		exitKey:  cfg.ExitKey,
		remote:   cfg.Remote,
		bounce:   cfg.Bounce,
	}
	if m.exitKey == 0 {
		m.exitKey = 'x'
	}
	m.refresh()
	return m
}

// NewProgram creates the bubbletea program; the caller runs it
func NewProgram(cfg Config, opts ...tea.ProgramOption) *tea.Program {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return tea.NewProgram(NewModel(cfg), opts...)
}
