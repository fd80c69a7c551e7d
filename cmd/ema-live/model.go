package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	live "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/events"
)

const releaseTimeout = 2 * time.Second

type (
	openedMsg       string
	statusMsg       string
	speakingMsg     bool
	errorMsg        string
	turnCompleteMsg struct{}
	startedMsg      struct{ err error }
	releasedMsg     struct{}
)

type transcriptMsg struct {
	speaker events.Speaker
	text    string
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	speakingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	modelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type model struct {
	ctx       context.Context
	manager   *live.Manager
	modelName string

	spinner spinner.Model
	width   int

	status     string
	sessionID  string
	speaking   bool
	user       string
	assistant  string
	turns      int
	errMessage string
	quitting   bool
}

func newModel(ctx context.Context, manager *live.Manager, modelName string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return model{
		ctx:       ctx,
		manager:   manager,
		modelName: modelName,
		spinner:   s,
		width:     80,
		status:    manager.Status().Text(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start(m.manager.Start))
}

func (m model) start(start func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return startedMsg{err: start(ctx)}
	}
}

func (m model) release() tea.Cmd {
	manager := m.manager
	return func() tea.Msg {
		manager.Stop()
		select {
		case <-manager.Released():
		case <-time.After(releaseTimeout):
		}
		return releasedMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.quitting {
				return m, nil
			}
			m.quitting = true
			return m, m.release()
		case "r":
			if m.manager.Status().State == live.StateErrored {
				m.errMessage = ""
				m.user, m.assistant = "", ""
				return m, m.start(m.manager.Retry)
			}
		case "s":
			if state := m.manager.Status().State; state == live.StateClosed || state == live.StateIdle {
				m.user, m.assistant = "", ""
				return m, m.start(m.manager.Start)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case startedMsg:
		// Start failures reach the error callback already; only surface the
		// ones that do not change the session state.
		if msg.err != nil && errors.Is(msg.err, live.ErrSessionActive) {
			m.errMessage = live.UserMessage(msg.err)
		}

	case releasedMsg:
		return m, tea.Quit

	case openedMsg:
		m.sessionID = string(msg)
	case statusMsg:
		m.status = string(msg)
	case speakingMsg:
		m.speaking = bool(msg)
	case errorMsg:
		m.errMessage = string(msg)
	case turnCompleteMsg:
		m.turns++
	case transcriptMsg:
		switch msg.speaker {
		case events.SpeakerUser:
			m.user = msg.text
		case events.SpeakerModel:
			m.assistant = msg.text
		}
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Expronix Voice Assistant"))
	b.WriteString(statusStyle.Render("  " + m.modelName))
	b.WriteString("\n\n")

	status := m.status
	if m.manager.Status().State == live.StateConnecting {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(statusStyle.Render(status))
	if m.speaking {
		b.WriteString("  " + speakingStyle.Render("● speaking"))
	}
	b.WriteString("\n\n")

	width := max(m.width-4, 20)
	if m.user != "" {
		b.WriteString(userStyle.Render(wordwrap.String("You: "+m.user, width)))
		b.WriteString("\n")
	}
	if m.assistant != "" {
		b.WriteString(modelStyle.Render(wordwrap.String("Assistant: "+m.assistant, width)))
		b.WriteString("\n")
	}
	if m.user == "" && m.assistant == "" {
		b.WriteString(statusStyle.Render("Ask me about your kitchen inventory..."))
		b.WriteString("\n")
	}

	if m.errMessage != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(wordwrap.String(m.errMessage, width)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help()))
	b.WriteString("\n")
	return b.String()
}

func (m model) help() string {
	if m.quitting {
		return "closing session..."
	}
	switch m.manager.Status().State {
	case live.StateErrored:
		return "r retry • q quit"
	case live.StateClosed, live.StateIdle:
		return "s start • q quit"
	default:
		return "q quit"
	}
}
