package viewer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailterm/internal/keys"
	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/source/email"
	"github.com/nhle/mailterm/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// BodyLoadedMsg carries the body of the message being viewed.
type BodyLoadedMsg struct {
	MessageID string
	Body      *model.MessageBody
	Err       error
}

// ActionMsg asks the parent to run an action on the open message.
type ActionMsg struct {
	Action  string
	Message model.Message
}

const (
	ActionReply      = "reply"
	ActionToggleRead = "read"
	ActionFlag       = "flag"
	ActionArchive    = "archive"
)

// Model is the message reading view.
type Model struct {
	msg      *model.Message
	body     *model.MessageBody
	err      error
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new viewer model.
func New(km *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     km,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the viewer.
func (m Model) Init() tea.Cmd {
	return nil
}

// Open shows msg and marks its body as loading.
func (m *Model) Open(msg model.Message) {
	m.msg = &msg
	m.body = nil
	m.err = nil
	m.loading = true
	m.viewport.SetContent("")
	m.viewport.GotoTop()
}

// SetMessage refreshes the header fields of the open message, for example
// after its flags changed.
func (m *Model) SetMessage(msg model.Message) {
	if m.msg == nil || m.msg.ID != msg.ID {
		return
	}
	m.msg = &msg
	m.viewport.SetContent(m.renderContent())
}

// Message returns the open message.
func (m Model) Message() (model.Message, bool) {
	if m.msg == nil {
		return model.Message{}, false
	}
	return *m.msg, true
}

// Body returns the loaded body of the open message.
func (m Model) Body() *model.MessageBody {
	return m.body
}

// Loading reports whether the body is still being fetched.
func (m Model) Loading() bool {
	return m.loading
}

// Update handles messages for the viewer.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case BodyLoadedMsg:
		if m.msg == nil || msg.MessageID != m.msg.ID {
			return m, nil
		}
		m.loading = false
		m.body = msg.Body
		m.err = msg.Err
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }
		case key.Matches(msg, m.keys.Reply):
			return m, m.action(ActionReply)
		case key.Matches(msg, m.keys.ToggleRead):
			return m, m.action(ActionToggleRead)
		case key.Matches(msg, m.keys.Flag):
			return m, m.action(ActionFlag)
		case key.Matches(msg, m.keys.Archive):
			return m, m.action(ActionArchive)
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn).
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) action(name string) tea.Cmd {
	if m.msg == nil {
		return nil
	}
	msg := *m.msg
	return func() tea.Msg {
		return ActionMsg{Action: name, Message: msg}
	}
}

// View renders the viewer.
func (m Model) View() string {
	placeholder := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.msg == nil {
		return placeholder.Render("No message selected")
	}
	if m.loading {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.renderHeaders(),
			placeholder.Height(max(m.height-6, 1)).Render("Loading message..."),
		)
	}

	return m.viewport.View()
}

func (m Model) renderHeaders() string {
	msg := m.msg
	labelStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	field := func(label, value string) string {
		return fmt.Sprintf("%s %s", labelStyle.Render(fmt.Sprintf("%-8s", label+":")), valStyle.Render(value))
	}

	subject := msg.Subject
	if subject == "" {
		subject = "(no subject)"
	}

	var flags []string
	if !msg.Seen {
		flags = append(flags, "unread")
	}
	if msg.Flagged {
		flags = append(flags, "starred")
	}
	if msg.Answered {
		flags = append(flags, "answered")
	}

	lines := []string{
		theme.TitleStyle.UnsetMarginBottom().Render(subject),
		field("From", formatFrom(*msg)),
	}
	if len(msg.To) > 0 {
		lines = append(lines, field("To", strings.Join(msg.To, ", ")))
	}
	if !msg.Date.IsZero() {
		lines = append(lines, field("Date", msg.Date.Local().Format("Mon, 2 Jan 2006 15:04")))
	}
	if len(flags) > 0 {
		lines = append(lines, field("Flags", strings.Join(flags, ", ")))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderContent builds the full content string for the viewport.
func (m Model) renderContent() string {
	if m.msg == nil {
		return ""
	}

	sections := []string{m.renderHeaders()}

	if m.body != nil && len(m.body.Attachments) > 0 {
		var parts []string
		for _, att := range m.body.Attachments {
			parts = append(parts, fmt.Sprintf("%s (%s)", att.Filename, email.FormatSize(att.Size)))
		}
		sections = append(sections, lipgloss.NewStyle().Foreground(theme.ColorGray).
			Render("Attach:  "+strings.Join(parts, ", ")))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	sections = append(sections, sepStyle.Render(strings.Repeat("─", max(min(m.width, 80), 1))), "")

	switch {
	case m.err != nil:
		sections = append(sections, theme.ErrorStyle.Render("Could not load message: "+m.err.Error()))
	case m.body == nil || strings.TrimSpace(m.body.TextBody) == "":
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("(empty message)"))
	default:
		sections = append(sections, lipgloss.NewStyle().Width(m.width).Render(m.body.TextBody))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the viewer dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	if m.msg != nil && !m.loading {
		m.viewport.SetContent(m.renderContent())
	}
}

func formatFrom(msg model.Message) string {
	if msg.FromName == "" {
		return msg.FromAddr
	}
	return fmt.Sprintf("%s <%s>", msg.FromName, msg.FromAddr)
}
