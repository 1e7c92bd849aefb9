// Package tui holds the terminal views of flowcheck: the operator prompt and
// the end-of-run summary.
package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap binds the prompt keys.
type KeyMap struct {
	Continue key.Binding
	Yes      key.Binding
	No       key.Binding
	Abort    key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Continue: key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "continue")),
		Yes:      key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "completed")),
		No:       key.NewBinding(key.WithKeys("n", "N"), key.WithHelp("n", "not completed")),
		Abort:    key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("ctrl+c", "abort")),
	}
}

// PromptModel waits for the operator. In confirm mode it also collects a
// yes/no verdict, with enter keeping the proposed one.
type PromptModel struct {
	prompt   string
	confirm  bool
	proposed bool
	answer   bool
	done     bool
	aborted  bool
	keys     KeyMap
}

// NewAwait returns a model that finishes when the operator continues.
func NewAwait(prompt string) PromptModel {
	return PromptModel{prompt: prompt, keys: DefaultKeyMap()}
}

// NewConfirm returns a model that asks the operator to accept or override
// proposed.
func NewConfirm(prompt string, proposed bool) PromptModel {
	return PromptModel{prompt: prompt, confirm: true, proposed: proposed, answer: proposed, keys: DefaultKeyMap()}
}

// Init implements tea.Model.
func (m PromptModel) Init() tea.Cmd {
	return nil
}

// Answer is the verdict once the prompt is done.
func (m PromptModel) Answer() bool {
	return m.answer
}

// Done reports whether the operator responded.
func (m PromptModel) Done() bool {
	return m.done
}

// Aborted reports whether the operator aborted the run.
func (m PromptModel) Aborted() bool {
	return m.aborted
}
