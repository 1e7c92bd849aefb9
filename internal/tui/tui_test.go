package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestAwaitFinishesOnContinue(t *testing.T) {
	t.Parallel()

	m := NewAwait("Align phone screen, then continue.")
	require.Nil(t, m.Init())
	require.Contains(t, m.View(), "Align phone screen, then continue.")
	require.Contains(t, m.View(), "enter continue")

	updated, cmd := m.Update(runes("y"))
	require.Nil(t, cmd)
	require.False(t, updated.(PromptModel).Done())

	updated, cmd = updated.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m = updated.(PromptModel)
	require.True(t, m.Done())
	require.False(t, m.Aborted())
	require.Empty(t, m.View())
}

func TestConfirmAnswers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		proposed bool
		msg      tea.KeyMsg
		want     bool
	}{
		{name: "enter keeps completed", proposed: true, msg: tea.KeyMsg{Type: tea.KeyEnter}, want: true},
		{name: "enter keeps not completed", proposed: false, msg: tea.KeyMsg{Type: tea.KeyEnter}, want: false},
		{name: "yes overrides", proposed: false, msg: runes("y"), want: true},
		{name: "no overrides", proposed: true, msg: runes("n"), want: false},
		{name: "upper case", proposed: true, msg: runes("N"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			updated, cmd := NewConfirm("Attempt 1 completed?", tt.proposed).Update(tt.msg)
			require.NotNil(t, cmd)
			m := updated.(PromptModel)
			require.True(t, m.Done())
			require.Equal(t, tt.want, m.Answer())
		})
	}
}

func TestPromptAbort(t *testing.T) {
	t.Parallel()

	updated, cmd := NewConfirm("Attempt 1 completed?", true).Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	m := updated.(PromptModel)
	require.True(t, m.Aborted())
	require.False(t, m.Done())

	updated, cmd = m.Update(runes("y"))
	require.Nil(t, cmd)
	require.False(t, updated.(PromptModel).Done())
}

func TestConfirmViewShowsProposal(t *testing.T) {
	t.Parallel()

	view := NewConfirm("Attempt 2 completed?", false).View()
	require.Contains(t, view, "Attempt 2 completed?")
	require.Contains(t, view, "enter keep (not completed)")
	require.Contains(t, view, "y completed")
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	out := RenderSummary("flowcheck • flow",
		SummarySection{Title: "Rows", Lines: []SummaryLine{
			{Label: "written", Value: "12", Status: StatusGood},
			{Label: "skipped", Value: "1", Status: StatusBad},
		}},
		SummarySection{Lines: []SummaryLine{{Label: "results", Value: "runs/rq2/results.csv"}}},
	)
	require.Contains(t, out, "flowcheck • flow")
	require.Contains(t, out, "Rows")
	require.Contains(t, out, "written")
	require.Contains(t, out, "12")
	require.Contains(t, out, "runs/rq2/results.csv")
}
