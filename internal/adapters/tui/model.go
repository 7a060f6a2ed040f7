package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/core/ports"
	"github.com/kirillkom/pulse-assistant/internal/core/usecase"
)

// answerMsg carries a finished turn back into the update loop.
type answerMsg struct {
	turn *domain.Turn
	err  error
}

// Model is the Bubble Tea model of the interactive chat. It owns one conversation session.
type Model struct {
	ctx      context.Context
	chat     ports.ChatService
	session  *usecase.ConversationRegistry
	title    string
	input    textinput.Model
	viewport viewport.Model

	showContext bool
	lastTurn    *domain.Turn
	status      string
	busy        bool
	ready       bool
}

func New(ctx context.Context, chat ports.ChatService, session *usecase.ConversationRegistry, title string, showContext bool) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about VicRoads (type 'exit' to clear this thread)"
	ti.Focus()
	ti.CharLimit = 0

	return Model{
		ctx:         ctx,
		chat:        chat,
		session:     session,
		title:       title,
		input:       ti,
		viewport:    viewport.New(0, 0),
		showContext: showContext,
		status:      helpText,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frame := transcriptStyle.GetFrameSize()
		_, inputFrame := inputStyle.GetFrameSize()
		reserved := 3 + inputFrame + 1
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-frame)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.lastTurn = msg.turn
			m.status = fmt.Sprintf("%s · %d passages · %s", msg.turn.Mode, len(msg.turn.Hits), msg.turn.Answer.Outcome)
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if _, ok := msg.(tea.KeyMsg); !ok {
		var vpCmd tea.Cmd
		m.viewport, vpCmd = m.viewport.Update(msg)
		cmd = tea.Batch(cmd, vpCmd)
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := m.input.Value()
	if m.busy || line == "" {
		return m, nil
	}
	m.input.Reset()

	c := parseCommand(line)
	switch c.kind {
	case cmdAsk:
		if c.text == "" {
			return m, nil
		}
		m.busy = true
		m.status = "Thinking..."
		m.refresh()
		return m, m.ask(c.text)
	case cmdNew:
		thread := m.session.CreateThread()
		m.status = "Started " + thread.Name
	case cmdSwitch:
		threads := m.session.Threads()
		if c.index > len(threads) {
			m.status = fmt.Sprintf("No thread %d (have %d)", c.index, len(threads))
			break
		}
		if err := m.session.SwitchThread(threads[c.index-1].ID); err != nil {
			m.status = "Error: " + err.Error()
			break
		}
		m.status = "Switched to " + threads[c.index-1].Name
	case cmdClear:
		if err := m.session.ClearThread(m.session.ActiveID()); err != nil {
			m.status = "Error: " + err.Error()
			break
		}
		m.lastTurn = nil
		m.status = "Cleared " + m.session.Active().Name
	case cmdDelete:
		deleted := m.session.Active()
		if err := m.session.DeleteThread(deleted.ID); err != nil {
			m.status = "Error: " + err.Error()
			break
		}
		m.status = fmt.Sprintf("Deleted %s, now in %s", deleted.Name, m.session.Active().Name)
	case cmdContext:
		m.showContext = !m.showContext
		m.status = fmt.Sprintf("Show retrieved context: %t", m.showContext)
	case cmdHelp:
		m.status = helpText
	case cmdQuit:
		return m, tea.Quit
	default:
		m.status = c.reason
	}
	m.refresh()
	return m, nil
}

func (m Model) ask(question string) tea.Cmd {
	ctx, chat, session := m.ctx, m.chat, m.session
	return func() tea.Msg {
		turn, err := chat.Ask(ctx, session, question)
		return answerMsg{turn: turn, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}
