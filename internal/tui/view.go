package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the current state of the model.
func (m PromptModel) View() string {
	if m.done || m.aborted {
		return ""
	}

	var help []string
	if m.confirm {
		verdict := "not completed"
		if m.proposed {
			verdict = "completed"
		}
		help = append(help,
			fmt.Sprintf("enter keep (%s)", verdict),
			m.keys.Yes.Help().Key+" "+m.keys.Yes.Help().Desc,
			m.keys.No.Help().Key+" "+m.keys.No.Help().Desc,
		)
	} else {
		help = append(help, m.keys.Continue.Help().Key+" "+m.keys.Continue.Help().Desc)
	}
	help = append(help, m.keys.Abort.Help().Key+" "+m.keys.Abort.Help().Desc)

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("flowcheck • operator"),
		promptStyle.Render(m.prompt),
		helpStyle.Render(strings.Join(help, " • ")),
	) + "\n"
}

// Status classifies a summary line.
type Status int

const (
	StatusNeutral Status = iota
	StatusGood
	StatusBad
)

// SummaryLine is one labelled value of a run summary.
type SummaryLine struct {
	Label  string
	Value  string
	Status Status
}

// SummarySection groups lines under a heading.
type SummarySection struct {
	Title string
	Lines []SummaryLine
}

// RenderSummary renders an end-of-run summary.
func RenderSummary(title string, sections ...SummarySection) string {
	parts := []string{titleStyle.Render(title)}
	for _, section := range sections {
		if section.Title != "" {
			parts = append(parts, sectionStyle.Render(section.Title))
		}
		var lines []string
		for _, line := range section.Lines {
			lines = append(lines, labelStyle.Render(line.Label)+StatusStyle(line.Status).Render(line.Value))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	return summaryStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)) + "\n"
}

// StatusStyle returns the style of a summary status.
func StatusStyle(status Status) lipgloss.Style {
	switch status {
	case StatusGood:
		return successStyle
	case StatusBad:
		return failureStyle
	default:
		return skippedStyle
	}
}
