// Package tui provides the interactive terminal dashboard for drover.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	itemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// App is the main TUI application model.
type App struct {
	client        *Client
	commands      []CommandItem
	selectedIdx   int
	input         textinput.Model
	width         int
	height        int
	mode          string // "list", "detail"
	currentCmd    *CommandDetail
	events        []EventDetail
	message       string
	filter        string
	filterIdx     int
	loading       bool
	daemonOnline  bool
}

var filters = []string{"", "pending", "running", "completed", "failed"}
var filterNames = []string{"ALL", "PENDING", "RUNNING", "DONE", "FAILED"}

// New creates a new TUI application.
func New(apiAddr string) *App {
	ti := textinput.New()
	ti.Placeholder = `Type: delay <ms> | get <url> | submit <type> <payload>`
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 80

	return &App{
		client: NewClient(apiAddr),
		input:  ti,
		mode:   "list",
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.fetchCommands(),
		a.checkDaemon(),
		a.tickCmd(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit

		case "esc":
			if a.mode == "detail" {
				a.mode = "list"
				a.currentCmd = nil
				return a, a.fetchCommands()
			}

		case "up", "k":
			if a.mode == "list" && a.selectedIdx > 0 {
				a.selectedIdx--
			}

		case "down", "j":
			if a.mode == "list" && a.selectedIdx < len(a.commands)-1 {
				a.selectedIdx++
			}

		case "tab":
			if a.mode == "list" {
				a.filterIdx = (a.filterIdx + 1) % len(filters)
				a.filter = filters[a.filterIdx]
				return a, a.fetchCommands()
			}

		case "enter":
			cmd := strings.TrimSpace(a.input.Value())
			if cmd != "" {
				a.input.SetValue("")
				return a, a.executeInput(cmd)
			} else if a.mode == "list" && len(a.commands) > 0 {
				selected := a.commands[a.selectedIdx]
				a.mode = "detail"
				return a, a.fetchCommandDetail(selected.ID)
			}

		case "r":
			if a.mode == "list" {
				return a, a.fetchCommands()
			} else if a.currentCmd != nil {
				return a, a.fetchCommandDetail(a.currentCmd.ID)
			}
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4

	case commandsLoadedMsg:
		a.loading = false
		a.commands = msg.commands
		if a.selectedIdx >= len(a.commands) {
			a.selectedIdx = max(0, len(a.commands)-1)
		}

	case commandDetailLoadedMsg:
		a.currentCmd = msg.command
		a.events = msg.events

	case daemonStatusMsg:
		a.daemonOnline = msg.online

	case tickMsg:
		if a.mode == "list" {
			cmds = append(cmds, a.fetchCommands())
		}
		cmds = append(cmds, a.tickCmd())

	case inputResultMsg:
		a.message = msg.message
		return a, a.fetchCommands()

	case errMsg:
		a.message = "Error: " + msg.err.Error()
	}

	// Update input
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	// Header with coordinator status
	daemonStatus := onlineStyle.Render("● COORDINATOR")
	if !a.daemonOnline {
		daemonStatus = offlineStyle.Render("○ COORDINATOR")
	}

	header := titleStyle.Render("DROVER Command Board")
	header += "  " + daemonStatus

	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 1)) + "\n")

	// Main content area
	contentHeight := a.height - 8
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch a.mode {
	case "list":
		filterLabel := fmt.Sprintf(" Filter: [%s]", filterNames[a.filterIdx])
		b.WriteString(lipgloss.NewStyle().Foreground(mutedColor).Render(filterLabel) + "\n")
		b.WriteString(a.renderCommandList(contentHeight - 1))
	case "detail":
		b.WriteString(a.renderCommandDetail())
	}

	// Message bar
	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	// Input box
	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))
	b.WriteString("\n")

	// Status bar
	var status string
	switch a.mode {
	case "list":
		status = fmt.Sprintf(" Commands: %d | ↑↓:nav | Tab:filter | Enter:detail | r:refresh | Ctrl+C:quit", len(a.commands))
	default:
		status = " Esc:back | r:refresh | Ctrl+C:quit"
	}
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}

func (a *App) renderCommandList(height int) string {
	if a.loading && len(a.commands) == 0 {
		return "\n  Loading commands...\n"
	}
	if len(a.commands) == 0 {
		return "\n  No commands found. Type: delay <ms> to submit one.\n"
	}

	var lines []string
	for i, cm := range a.commands {
		label := fmt.Sprintf("%s  %-14s %s", a.formatStatusPlain(cm.Status), cm.Type, truncateID(cm.ID))
		if cm.AgentID != "" {
			label += "  " + lipgloss.NewStyle().Foreground(mutedColor).Render(cm.AgentID)
		}

		if i == a.selectedIdx {
			lines = append(lines, selectedStyle.Render("▶ "+label))
		} else {
			lines = append(lines, itemStyle.Render("  "+a.formatStatus(cm.Status)+"  "+fmt.Sprintf("%-14s %s", cm.Type, truncateID(cm.ID))))
		}
	}

	// Limit visible lines
	if len(lines) > height {
		start := a.selectedIdx - height/2
		if start < 0 {
			start = 0
		}
		end := start + height
		if end > len(lines) {
			end = len(lines)
			start = max(0, end-height)
		}
		lines = lines[start:end]
	}

	return strings.Join(lines, "\n")
}

func (a *App) renderCommandDetail() string {
	if a.currentCmd == nil {
		return "\n  Loading...\n"
	}

	var b strings.Builder
	c := a.currentCmd

	b.WriteString(fmt.Sprintf("\n  %s\n", lipgloss.NewStyle().Bold(true).Render(c.Type)))
	b.WriteString(fmt.Sprintf("  ID: %s\n", c.ID))
	b.WriteString(fmt.Sprintf("  Status: %s\n", a.formatStatus(c.Status)))
	b.WriteString(fmt.Sprintf("  Payload: %s\n", c.Payload))
	if c.Result != "" {
		b.WriteString(fmt.Sprintf("  Result: %s\n", c.Result))
	}
	if c.AgentID != "" {
		b.WriteString(fmt.Sprintf("  Agent: %s\n", c.AgentID))
	}
	b.WriteString(fmt.Sprintf("  Created: %s\n", c.CreatedAt))
	b.WriteString(fmt.Sprintf("  Updated: %s\n", c.UpdatedAt))
	if c.AssignedAt != "" {
		b.WriteString(fmt.Sprintf("  Assigned: %s\n", c.AssignedAt))
	}

	if len(a.events) > 0 {
		b.WriteString("\n  Audit Trail:\n")
		for i, ev := range a.events {
			if i >= 5 {
				b.WriteString(fmt.Sprintf("    ... and %d more events\n", len(a.events)-5))
				break
			}
			outcomeStyle := lipgloss.NewStyle().Foreground(successColor)
			if ev.Outcome != "success" {
				outcomeStyle = lipgloss.NewStyle().Foreground(errorColor)
			}
			b.WriteString(fmt.Sprintf("    • %s %s", ev.Action, outcomeStyle.Render(ev.Outcome)))
			if ev.Details != "" {
				b.WriteString(" " + lipgloss.NewStyle().Foreground(mutedColor).Render(ev.Details))
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (a *App) formatStatus(status string) string {
	switch status {
	case "pending":
		return lipgloss.NewStyle().Foreground(warningColor).Render("○ PENDING")
	case "running":
		return lipgloss.NewStyle().Foreground(secondaryColor).Render("◑ RUNNING")
	case "completed":
		return lipgloss.NewStyle().Foreground(successColor).Render("● DONE")
	case "failed":
		return lipgloss.NewStyle().Foreground(errorColor).Render("✗ FAILED")
	default:
		return status
	}
}

func (a *App) formatStatusPlain(status string) string {
	switch status {
	case "pending":
		return "○"
	case "running":
		return "◑"
	case "completed":
		return "●"
	case "failed":
		return "✗"
	default:
		return "?"
	}
}

func (a *App) fetchCommands() tea.Cmd {
	a.loading = true
	return func() tea.Msg {
		commands, err := a.client.ListCommands(a.filter)
		if err != nil {
			return errMsg{err}
		}
		return commandsLoadedMsg{commands}
	}
}

func (a *App) fetchCommandDetail(commandID string) tea.Cmd {
	return func() tea.Msg {
		command, err := a.client.GetCommand(commandID)
		if err != nil {
			return errMsg{err}
		}
		events, _ := a.client.GetCommandEvents(commandID)
		return commandDetailLoadedMsg{command, events}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		ok, err := a.client.CheckHealth()
		return daemonStatusMsg{online: err == nil && ok}
	}
}

func (a *App) executeInput(input string) tea.Cmd {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	args := parts[1:]

	return func() tea.Msg {
		switch cmd {
		case "delay":
			if len(args) < 1 {
				return inputResultMsg{"Usage: delay <ms>"}
			}
			id, err := a.client.SubmitCommand("DELAY", fmt.Sprintf(`{"ms":%s}`, args[0]))
			if err != nil {
				return inputResultMsg{"Error: " + err.Error()}
			}
			return inputResultMsg{fmt.Sprintf("✓ Submitted DELAY command: %s", truncateID(id))}

		case "get":
			if len(args) < 1 {
				return inputResultMsg{"Usage: get <url>"}
			}
			id, err := a.client.SubmitCommand("HTTP_GET_JSON", fmt.Sprintf(`{"url":%q}`, args[0]))
			if err != nil {
				return inputResultMsg{"Error: " + err.Error()}
			}
			return inputResultMsg{fmt.Sprintf("✓ Submitted HTTP_GET_JSON command: %s", truncateID(id))}

		case "submit":
			if len(args) < 2 {
				return inputResultMsg{"Usage: submit <type> <payload>"}
			}
			payload := strings.Join(args[1:], " ")
			id, err := a.client.SubmitCommand(args[0], payload)
			if err != nil {
				return inputResultMsg{"Error: " + err.Error()}
			}
			return inputResultMsg{fmt.Sprintf("✓ Submitted %s command: %s", args[0], truncateID(id))}

		case "q", "quit", "exit":
			return tea.Quit()

		default:
			return inputResultMsg{fmt.Sprintf("Unknown: %s (try: delay, get, submit)", cmd)}
		}
	}
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type inputResultMsg struct {
	message string
}

type errMsg struct {
	err error
}

type commandsLoadedMsg struct {
	commands []CommandItem
}

type commandDetailLoadedMsg struct {
	command *CommandDetail
	events  []EventDetail
}

type daemonStatusMsg struct {
	online bool
}

type tickMsg time.Time

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
