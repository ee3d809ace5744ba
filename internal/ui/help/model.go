package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailterm/internal/keys"
	"github.com/nhle/mailterm/internal/theme"
	"github.com/nhle/mailterm/internal/ui/command"
)

// Context is the view the overlay was opened from. Its section is listed
// first and marked.
type Context int

const (
	ContextList Context = iota
	ContextMessage
	contextNone
)

const (
	// twoColumnWidth is the narrowest panel that fits two sections side
	// by side.
	twoColumnWidth = 72
	columnGap      = 4
)

type section struct {
	title    string
	context  Context
	bindings []key.Binding
}

// Model is the help overlay view.
type Model struct {
	sections []section
	context  Context
	help     help.Model
	width    int
	height   int
}

// New creates a new help view model listing the bindings of km per view.
func New(km *keys.KeyMap, width, height int) Model {
	return Model{
		sections: sections(km),
		context:  ContextList,
		help:     help.New(),
		width:    width,
		height:   height,
	}
}

func binding(k, desc string) key.Binding {
	return key.NewBinding(key.WithKeys(k), key.WithHelp(k, desc))
}

// sections describes what each view does with its keys. The filter,
// composer and palette own their keys while focused, so their bindings
// are listed apart from the list.
func sections(km *keys.KeyMap) []section {
	palette := []key.Binding{
		km.Command,
		binding("tab", "complete"),
		binding("enter", "run"),
		binding("esc", "close"),
	}
	for _, c := range command.Commands {
		palette = append(palette, binding(":"+c.Name, c.Description))
	}

	return []section{
		{
			title:   "Message list",
			context: ContextList,
			bindings: []key.Binding{
				km.Up, km.Down, km.PageUp, km.PageDown, km.Top, km.Bottom,
				km.Select, km.Reply, km.ToggleRead, km.Flag, km.Archive,
				km.Refresh, km.Login, km.Quit,
			},
		},
		{
			title:   "Message",
			context: ContextMessage,
			bindings: []key.Binding{
				binding("j/k", "scroll"),
				km.Reply, km.ToggleRead, km.Flag, km.Archive,
				binding("esc", "back to list"),
			},
		},
		{
			title:   "Filter",
			context: contextNone,
			bindings: []key.Binding{
				km.Filter,
				binding("type", "fuzzy match sender and subject"),
				binding("enter", "keep filter"),
				binding("esc", "clear filter"),
			},
		},
		{
			title:   "Reply",
			context: contextNone,
			bindings: []key.Binding{
				km.Send,
				binding("tab", "next field"),
				binding("shift+tab", "previous field"),
				binding("esc", "save draft and close"),
			},
		},
		{
			title:    "Command palette",
			context:  contextNone,
			bindings: palette,
		},
		{
			title:   "Anywhere",
			context: contextNone,
			bindings: []key.Binding{
				km.Help,
				binding("ctrl+c", "quit"),
			},
		},
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// SetContext marks the section of the view the overlay was opened from.
func (m *Model) SetContext(c Context) {
	m.context = c
}

// ordered returns the sections with the active one first.
func (m Model) ordered() []section {
	out := make([]section, 0, len(m.sections))
	for _, s := range m.sections {
		if s.context == m.context {
			out = append(out, s)
		}
	}
	for _, s := range m.sections {
		if s.context != m.context {
			out = append(out, s)
		}
	}
	return out
}

func (m Model) renderSection(s section, width int) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	title := s.title
	if s.context == m.context {
		titleStyle = titleStyle.Foreground(theme.ColorBlue)
		title = "▸ " + title
	}

	// A single column is never truncated; the section style wraps it.
	body := m.help.FullHelpView([][]key.Binding{s.bindings})

	return lipgloss.NewStyle().
		Width(width).
		MarginBottom(1).
		Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), body))
}

// View renders the help overlay.
func (m Model) View() string {
	inner := max(m.width-4, 20)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Keyboard Shortcuts")

	ordered := m.ordered()

	var body string
	if inner < twoColumnWidth {
		blocks := make([]string, len(ordered))
		for i, s := range ordered {
			blocks[i] = m.renderSection(s, inner)
		}
		body = lipgloss.JoinVertical(lipgloss.Left, blocks...)
	} else {
		colWidth := (inner - columnGap) / 2
		var left, right []string
		for i, s := range ordered {
			if i%2 == 0 {
				left = append(left, m.renderSection(s, colWidth))
			} else {
				right = append(right, m.renderSection(s, colWidth))
			}
		}
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.JoinVertical(lipgloss.Left, left...),
			strings.Repeat(" ", columnGap),
			lipgloss.JoinVertical(lipgloss.Left, right...),
		)
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
