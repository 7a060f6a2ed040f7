package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	activeTabStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	tabStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	assistantStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	contextStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render(m.title) + "  " + m.renderTabs()
	return header + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(m.status)
}

func (m Model) renderTabs() string {
	threads := m.session.Threads()
	tabs := make([]string, 0, len(threads))
	for i, t := range threads {
		label := fmt.Sprintf("%d:%s", i+1, t.Name)
		if t.Active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return strings.Join(tabs, " ")
}

func (m Model) renderTranscript() string {
	thread := m.session.Active()
	if len(thread.Messages) == 0 {
		return "No messages in " + thread.Name + " yet."
	}

	var b strings.Builder
	for i, msg := range thread.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch msg.Role {
		case domain.RoleUser:
			b.WriteString(userStyle.Render("You") + "\n")
		default:
			b.WriteString(assistantStyle.Render("Pulse") + "\n")
		}
		b.WriteString(msg.Content)
	}

	if m.showContext && m.lastTurn != nil && m.lastTurn.ThreadID == thread.ID && len(m.lastTurn.Contexts) > 0 {
		b.WriteString("\n\n" + contextStyle.Render("Retrieved context"))
		for i, passage := range m.lastTurn.Contexts {
			b.WriteString("\n" + contextStyle.Render(fmt.Sprintf("%d. [%s] %s", i+1, passage.ID, passage.Text)))
		}
	}
	return b.String()
}
