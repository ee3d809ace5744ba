package command

import (
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/nhle/mailterm/internal/theme"
)

// Command names understood by the application.
const (
	Refresh = "refresh"
	Stats   = "stats"
	Login   = "login"
	Unread  = "unread"
	All     = "all"
	Top     = "top"
	Search  = "search"
	Help    = "help"
	Quit    = "quit"
)

// Info describes one palette command.
type Info struct {
	Name        string
	Description string
}

// Commands lists every command the palette can run.
var Commands = []Info{
	{Refresh, "sync the mailbox now"},
	{Unread, "show unread messages only"},
	{All, "show all messages"},
	{Search, "search the server, e.g. search invoice"},
	{Stats, "show render statistics"},
	{Top, "jump to the newest message"},
	{Login, "set up the mail account"},
	{Help, "show keyboard shortcuts"},
	{Quit, "exit mailterm"},
}

// CommandMsg is emitted when the user executes a command. Args holds the
// words after the command name.
type CommandMsg struct {
	Name string
	Args []string
}

// UnknownCommandMsg is emitted when the input matches no command.
type UnknownCommandMsg struct {
	Input string
}

// Resolve maps user input to a command name. An exact name wins, then the
// closest fuzzy match.
func Resolve(input string) (string, bool) {
	word := strings.ToLower(strings.TrimSpace(input))
	if word == "" {
		return "", false
	}
	matches := Suggest(word)
	if len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// Suggest returns command names matching input, best first.
func Suggest(input string) []string {
	names := make([]string, len(Commands))
	for i, c := range Commands {
		names[i] = c.Name
	}
	if input == "" {
		return names
	}

	for _, n := range names {
		if n == input {
			return []string{n}
		}
	}

	ranks := fuzzy.RankFindNormalizedFold(input, names)
	sort.Stable(ranks)
	out := make([]string, len(ranks))
	for i, r := range ranks {
		out[i] = r.Target
	}
	return out
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			raw := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if raw == "" {
				return m, nil
			}
			fields := strings.Fields(raw)
			name, ok := Resolve(fields[0])
			if !ok {
				return m, func() tea.Msg { return UnknownCommandMsg{Input: raw} }
			}
			args := fields[1:]
			return m, func() tea.Msg {
				return CommandMsg{Name: name, Args: args}
			}
		case "tab":
			fields := strings.Fields(m.input.Value())
			if len(fields) == 1 {
				if s := Suggest(strings.ToLower(fields[0])); len(s) > 0 {
					m.input.SetValue(s[0])
					m.input.CursorEnd()
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	var first string
	if fields := strings.Fields(m.input.Value()); len(fields) > 0 {
		first = strings.ToLower(fields[0])
	}

	lines := []string{title, input, ""}
	for _, name := range Suggest(first) {
		for _, c := range Commands {
			if c.Name == name {
				lines = append(lines, theme.ButtonStyle.Render(lipglossPad(c.Name, 10))+theme.MetaStyle.Render(c.Description))
			}
		}
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func lipglossPad(s string, w int) string {
	if n := lipgloss.Width(s); n < w {
		return s + strings.Repeat(" ", w-n)
	}
	return s + " "
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

// Reset clears the input.
func (m *Model) Reset() {
	m.input.Reset()
}
