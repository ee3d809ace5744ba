package composer

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailterm/internal/keys"
	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/source/email"
	"github.com/nhle/mailterm/internal/theme"
)

// SendMsg asks the parent to send the reply.
type SendMsg struct {
	Original     model.Message
	OriginalBody string
	Draft        model.Draft
}

// CancelMsg signals the composer was closed without sending. Draft is set
// when there is unsent text worth keeping.
type CancelMsg struct {
	Original model.Message
	Draft    *model.Draft
}

const (
	fieldTo = iota
	fieldSubject
	fieldBody
	fieldCount
)

// maxQuoteLines bounds the quoted preview under the editor.
const maxQuoteLines = 8

// Model is the reply composer.
type Model struct {
	to      textinput.Model
	subject textinput.Model
	body    textarea.Model
	focus   int

	original     model.Message
	originalBody string
	draft        model.Draft
	errMsg       string

	keys          *keys.KeyMap
	width, height int
}

// New creates an empty composer.
func New(km *keys.KeyMap, width, height int) Model {
	to := textinput.New()
	to.Prompt = "To:      "
	to.Placeholder = "recipient@example.com"

	subject := textinput.New()
	subject.Prompt = "Subject: "

	ta := textarea.New()
	ta.Placeholder = "Write your reply..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	m := Model{
		to:      to,
		subject: subject,
		body:    ta,
		keys:    km,
	}
	m.SetSize(width, height)
	return m
}

// Open starts a reply to orig. A saved draft, when present, restores the
// previous text.
func (m *Model) Open(orig model.Message, body *model.MessageBody, draft *model.Draft) tea.Cmd {
	m.original = orig
	m.originalBody = ""
	if body != nil {
		m.originalBody = body.TextBody
	}
	m.errMsg = ""

	if draft != nil {
		m.draft = *draft
	} else {
		m.draft = model.Draft{
			ReplyTo: orig.ID,
			To:      email.FormatRecipient(orig),
			Subject: orig.ReplySubject(),
		}
	}

	m.to.SetValue(m.draft.To)
	m.subject.SetValue(m.draft.Subject)
	m.body.SetValue(m.draft.Body)
	return m.setFocus(fieldBody)
}

// Original returns the message being answered.
func (m Model) Original() model.Message {
	return m.original
}

// Draft returns the current contents as a draft.
func (m Model) Draft() model.Draft {
	d := m.draft
	d.ReplyTo = m.original.ID
	d.To = strings.TrimSpace(m.to.Value())
	d.Subject = strings.TrimSpace(m.subject.Value())
	d.Body = m.body.Value()
	return d
}

// SetError shows a send failure above the editor.
func (m *Model) SetError(err error) {
	if err == nil {
		m.errMsg = ""
		return
	}
	m.errMsg = err.Error()
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages for the composer.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Send):
			d := m.Draft()
			if d.To == "" {
				m.errMsg = "recipient is required"
				return m, nil
			}
			if strings.TrimSpace(d.Body) == "" {
				m.errMsg = "reply is empty"
				return m, nil
			}
			send := SendMsg{Original: m.original, OriginalBody: m.originalBody, Draft: d}
			return m, func() tea.Msg { return send }

		case key.Matches(msg, m.keys.Back):
			cancel := CancelMsg{Original: m.original}
			if d := m.Draft(); strings.TrimSpace(d.Body) != "" {
				cancel.Draft = &d
			}
			return m, func() tea.Msg { return cancel }
		}

		switch msg.String() {
		case "tab":
			return m, m.setFocus((m.focus + 1) % fieldCount)
		case "shift+tab":
			return m, m.setFocus((m.focus + fieldCount - 1) % fieldCount)
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case fieldTo:
		m.to, cmd = m.to.Update(msg)
	case fieldSubject:
		m.subject, cmd = m.subject.Update(msg)
	default:
		m.body, cmd = m.body.Update(msg)
	}
	return m, cmd
}

func (m *Model) setFocus(field int) tea.Cmd {
	m.focus = field
	m.to.Blur()
	m.subject.Blur()
	m.body.Blur()
	switch field {
	case fieldTo:
		return m.to.Focus()
	case fieldSubject:
		return m.subject.Focus()
	default:
		return m.body.Focus()
	}
}

// View renders the composer.
func (m Model) View() string {
	sections := []string{
		theme.TitleStyle.Render("Reply"),
		m.to.View(),
		m.subject.View(),
	}
	if m.errMsg != "" {
		sections = append(sections, theme.ErrorStyle.Render(m.errMsg))
	}
	sections = append(sections, "", m.body.View())

	if quote := m.quotePreview(); quote != "" {
		sections = append(sections, "", theme.MetaStyle.Render(quote))
	}

	sections = append(sections, theme.HelpStyle.Render("ctrl+s send • tab next field • esc save draft and close"))
	return lipgloss.NewStyle().Padding(0, 1).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// quotePreview shows the start of the quoted original that is appended
// when sending.
func (m Model) quotePreview() string {
	if m.originalBody == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(email.Quote(m.originalBody), "\n"), "\n")
	if len(lines) > maxQuoteLines {
		lines = append(lines[:maxQuoteLines], "> …")
	}
	return email.QuoteHeader(m.original) + "\n" + strings.Join(lines, "\n")
}

// SetSize updates the composer dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.to.Width = max(width-14, 10)
	m.subject.Width = max(width-14, 10)
	m.body.SetWidth(max(width-4, 10))
	// title, two fields, blanks, quote preview and help
	m.body.SetHeight(max(height-maxQuoteLines-10, 3))
}
