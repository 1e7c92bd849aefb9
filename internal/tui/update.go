package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles Bubbletea messages and updates model state.
func (m PromptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.done || m.aborted {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Abort):
		m.aborted = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Continue):
		m.answer = m.proposed
		m.done = true
		return m, tea.Quit
	case m.confirm && key.Matches(keyMsg, m.keys.Yes):
		m.answer = true
		m.done = true
		return m, tea.Quit
	case m.confirm && key.Matches(keyMsg, m.keys.No):
		m.answer = false
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}
