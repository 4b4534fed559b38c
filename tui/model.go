// Package tui is the terminal frontend: a chat viewport over the agent
// with slash commands for memory and monitoring.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/martz/miniagent/agent"
	"github.com/martz/miniagent/history"
	"github.com/martz/miniagent/memory"
	"github.com/martz/miniagent/monitor"
	"github.com/martz/miniagent/ui"
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	findingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Model is the main application state
type Model struct {
	orchestrator *agent.Orchestrator
	session      *memory.Session
	store        *memory.Store
	monitor      *monitor.Agent
	sessions     *history.Logger
	notify       *ui.Queue
	maxRecent    int

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	messages     []chatMessage
	isProcessing bool
	width        int
	height       int
	ready        bool
}

type chatMessage struct {
	role    string
	content string
}

// Deps bundles everything the frontend talks to
type Deps struct {
	Orchestrator *agent.Orchestrator
	Session      *memory.Session
	Store        *memory.Store
	Monitor      *monitor.Agent
	Sessions     *history.Logger
	Notify       *ui.Queue
	MaxRecent    int
}

// New creates the chat frontend
func New(deps Deps) *Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message, or /help..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	s := spinner.New(spinner.WithSpinner(spinner.Line))
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

	return &Model{
		orchestrator: deps.Orchestrator,
		session:      deps.Session,
		store:        deps.Store,
		monitor:      deps.Monitor,
		sessions:     deps.Sessions,
		notify:       deps.Notify,
		maxRecent:    deps.MaxRecent,
		textarea:     ta,
		spinner:      s,
	}
}

// Update loop messages
type (
	turnDoneMsg struct {
		resp *agent.Response
		err  error
	}
	notifyTickMsg time.Time
)

func notifyTick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return notifyTickMsg(t)
	})
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textarea.Blink, notifyTick())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-6)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 6
		}
		m.textarea.SetWidth(msg.Width - 4)
		m.textarea.SetHeight(2)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, m.quit()

		case tea.KeyEnter:
			if !m.isProcessing {
				value := strings.TrimSpace(m.textarea.Value())
				if value != "" {
					m.textarea.Reset()
					if cmd := m.handleInput(value); cmd != nil {
						cmds = append(cmds, cmd)
					}
				}
			}
			return m, tea.Batch(cmds...)
		}

	case turnDoneMsg:
		m.isProcessing = false
		switch {
		case msg.err == agent.ErrBusy:
			m.addMessage("system", "Still working on the previous message.")
		case msg.err != nil:
			m.addMessage("system", fmt.Sprintf("Error: %v", msg.err))
		default:
			m.addMessage("assistant", msg.resp.Content)
			if len(msg.resp.ToolsUsed) > 0 {
				m.addMessage("system", "Tools used: "+strings.Join(msg.resp.ToolsUsed, ", "))
			}
		}
		m.updateView()

	case notifyTickMsg:
		for _, n := range m.notify.Drain() {
			role := "system"
			if n.Style == ui.StyleFinding {
				role = "finding"
			}
			m.addMessage(role, n.Text)
		}
		m.updateView()
		cmds = append(cmds, notifyTick())

	case spinner.TickMsg:
		if m.isProcessing {
			s, cmd := m.spinner.Update(msg)
			m.spinner = s
			cmds = append(cmds, cmd)
		}
	}

	if !m.isProcessing {
		ta, cmd := m.textarea.Update(msg)
		m.textarea = ta
		cmds = append(cmds, cmd)
	}

	vp, cmd := m.viewport.Update(msg)
	m.viewport = vp
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	if !m.ready {
		return "\nStarting up..."
	}

	var b strings.Builder
	stats := m.session.Stats()
	header := fmt.Sprintf("miniagent | session %s | %d facts | %d in working memory | /help",
		stats.SessionID, stats.TotalFacts, stats.WorkingMemorySize)
	b.WriteString(systemStyle.Render(header) + "\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", m.width)) + "\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.isProcessing {
		status := m.notify.Status()
		if status == "" {
			status = "thinking"
		}
		b.WriteString(fmt.Sprintf("%s %s...\n", m.spinner.View(), status))
	} else {
		b.WriteString(m.textarea.View())
	}
	return b.String()
}

// handleInput routes a line: slash commands run locally, everything else
// becomes a conversation turn.
func (m *Model) handleInput(input string) tea.Cmd {
	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	m.addMessage("user", input)
	m.updateView()
	m.isProcessing = true
	return m.runTurn(input)
}

func (m *Model) handleCommand(input string) tea.Cmd {
	fields := strings.Fields(input)
	command := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(input, command))

	switch command {
	case "/help":
		m.addMessage("system", helpText)

	case "/new", "/reset":
		if path := m.sessions.Save(m.session.WorkingMemory(), m.maxRecent); path != "" {
			m.addMessage("system", "Session saved to "+path)
		}
		m.orchestrator.Reset(context.Background())
		m.messages = nil
		m.viewport.SetContent("")
		m.addMessage("system", "Started a new session.")

	case "/search":
		if rest == "" {
			m.addMessage("system", "Usage: /search <query>")
			break
		}
		results := m.store.SearchMemories(rest, 10)
		m.addMessage("system", m.store.FormatSearchResults(rest, results))

	case "/stats":
		stats := m.session.Stats()
		m.addMessage("system", fmt.Sprintf(
			"Working memory: %d | Facts: %d | Summaries: %d | Preferences: %d | Session: %s",
			stats.WorkingMemorySize, stats.TotalFacts, stats.TotalSummaries,
			stats.PreferencesCount, stats.SessionID))

	case "/compress":
		n := m.session.Compress(context.Background(), 5)
		m.addMessage("system", fmt.Sprintf("Compressed %d messages into long-term memory.", n))

	case "/watch":
		if rest == "" {
			m.addMessage("system", "Usage: /watch <topic> [interval-minutes]")
			break
		}
		interval := 0
		topic := rest
		if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil && len(fields) > 2 {
			interval = n
			topic = strings.TrimSpace(strings.TrimSuffix(rest, fields[len(fields)-1]))
		}
		task := m.monitor.AddTask(topic, interval)
		m.addMessage("system", fmt.Sprintf("Watching %q every %d minutes (id %s).",
			task.Description, task.IntervalMin, task.ID))

	case "/unwatch":
		if rest == "" || !m.monitor.RemoveTask(rest) {
			m.addMessage("system", "Usage: /unwatch <id> (see /tasks)")
		} else {
			m.addMessage("system", "Stopped watching "+rest+".")
		}

	case "/tasks":
		tasks := m.monitor.Tasks()
		if len(tasks) == 0 {
			m.addMessage("system", "No active watches.")
			break
		}
		var lines []string
		for _, t := range tasks {
			lines = append(lines, fmt.Sprintf("%s  every %dm  %s", t.ID, t.IntervalMin, t.Description))
		}
		m.addMessage("system", strings.Join(lines, "\n"))

	case "/exit", "/quit":
		return m.quit()

	default:
		m.addMessage("system", "Unknown command. Try /help.")
	}

	m.updateView()
	return nil
}

func (m *Model) runTurn(input string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.orchestrator.RunTurn(context.Background(), input)
		return turnDoneMsg{resp: resp, err: err}
	}
}

// quit saves the session transcript before exiting
func (m *Model) quit() tea.Cmd {
	m.sessions.Save(m.session.WorkingMemory(), m.maxRecent)
	return tea.Quit
}

func (m *Model) addMessage(role, content string) {
	m.messages = append(m.messages, chatMessage{role: role, content: content})
}

func (m *Model) updateView() {
	if !m.ready {
		return
	}
	var content strings.Builder
	for _, msg := range m.messages {
		switch msg.role {
		case "user":
			content.WriteString("\n" + userStyle.Render("> "+msg.content) + "\n")
		case "assistant":
			content.WriteString("\n" + msg.content + "\n")
		case "finding":
			content.WriteString("\n" + findingStyle.Render("◆ "+msg.content) + "\n")
		case "warning":
			content.WriteString("\n" + warningStyle.Render(msg.content) + "\n")
		default:
			content.WriteString("\n" + systemStyle.Render("["+msg.content+"]") + "\n")
		}
	}
	m.viewport.SetContent(content.String())
	m.viewport.GotoBottom()
}

const helpText = `Commands:
/help             Show this help
/new              Save and start a new session
/search <query>   Search long-term memory
/stats            Memory statistics
/compress         Compress working memory now
/watch <topic>    Monitor a topic in the background
/unwatch <id>     Stop monitoring
/tasks            List active watches
/exit             Quit`
