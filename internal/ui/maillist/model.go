package maillist

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/nhle/mailterm/internal/keys"
	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/theme"
	"github.com/nhle/mailterm/internal/virtuallist"
)

// frameInterval caps list recomputation at roughly 60 passes per second.
const frameInterval = 16 * time.Millisecond

// wheelStep is how many terminal rows one wheel notch scrolls.
const wheelStep = 3

// SelectedMsg is emitted when a message is opened.
type SelectedMsg struct {
	Message model.Message
}

// ActionMsg is emitted when a row action runs on a message.
type ActionMsg struct {
	Action  string
	Message model.Message
}

// FrameMsg asks the list to run its pending render pass.
type FrameMsg struct{}

// Model is the message list view. It keeps only the visible window of
// rows rendered, however many messages are loaded.
type Model struct {
	list   *virtuallist.List[model.Message]
	keys   *keys.KeyMap
	outbox *[]tea.Msg

	all    []model.Message
	cursor int

	cfg    model.ListConfig
	width  int
	height int
	top    int

	filter    textinput.Model
	filtering bool
	query     string

	framePending bool
	now          func() time.Time
}

// New creates a list model sized to zero; call SetSize before rendering.
func New(cfg model.ListConfig, km *keys.KeyMap) (Model, error) {
	outbox := &[]tea.Msg{}

	vcfg := virtuallist.DefaultConfig(cfg.ItemHeight, 1)
	vcfg.Overscan = cfg.Overscan
	vcfg.Threshold = cfg.Threshold

	list, err := virtuallist.New(vcfg,
		virtuallist.WithOnSelect(func(m model.Message) {
			*outbox = append(*outbox, SelectedMsg{Message: m})
		}),
		virtuallist.WithAction(ActionToggleRead, func(m model.Message) {
			*outbox = append(*outbox, ActionMsg{Action: ActionToggleRead, Message: m})
		}),
		virtuallist.WithAction(ActionArchive, func(m model.Message) {
			*outbox = append(*outbox, ActionMsg{Action: ActionArchive, Message: m})
		}),
	)
	if err != nil {
		return Model{}, fmt.Errorf("creating message list: %w", err)
	}

	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter messages"

	return Model{
		list:   list,
		keys:   km,
		outbox: outbox,
		cfg:    cfg,
		filter: ti,
		now:    time.Now,
	}, nil
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetSize sets the list dimensions and the terminal row of its first line.
func (m *Model) SetSize(width, height, top int) {
	m.width = width
	m.height = height
	m.top = top
	m.applyContainer()
}

// SetMessages replaces the message collection, keeping the cursor on the
// same message when it is still present.
func (m *Model) SetMessages(msgs []model.Message) {
	var current string
	if msg, ok := m.Selected(); ok {
		current = msg.ID
	}

	m.all = msgs
	m.applyFilter()

	if i, ok := m.list.IndexOf(current); ok {
		m.cursor = i
	}
	m.clampCursor()
	m.list.ScrollIndexIntoView(m.cursor)
}

// Messages returns the unfiltered collection.
func (m Model) Messages() []model.Message {
	return m.all
}

// Visible returns the messages currently listed, after filtering.
func (m Model) Visible() []model.Message {
	return m.list.Items()
}

// Selected returns the message under the cursor.
func (m Model) Selected() (model.Message, bool) {
	return m.list.Item(m.cursor)
}

// Cursor returns the cursor index within the visible messages.
func (m Model) Cursor() int {
	return m.cursor
}

// Filtering reports whether the filter input has focus.
func (m Model) Filtering() bool {
	return m.filtering
}

// Query returns the active filter query.
func (m Model) Query() string {
	return m.query
}

// Metrics reports how much of the collection the last frame rendered.
func (m Model) Metrics() virtuallist.Metrics {
	return m.list.Metrics()
}

// Frame returns the last completed render pass.
func (m Model) Frame() virtuallist.Frame[model.Message] {
	return m.list.Frame()
}

// Reconfigure applies new list tuning values.
func (m *Model) Reconfigure(cfg model.ListConfig) error {
	vcfg := m.list.Config()
	vcfg.ItemHeight = cfg.ItemHeight
	vcfg.Overscan = cfg.Overscan
	vcfg.Threshold = cfg.Threshold
	if err := m.list.Reconfigure(vcfg); err != nil {
		return err
	}
	m.cfg = cfg
	m.list.ScrollIndexIntoView(m.cursor)
	return nil
}

// ScrollToMessage moves the cursor to the message with id and scrolls it
// to the top of the viewport.
func (m *Model) ScrollToMessage(id string) bool {
	i, ok := m.list.IndexOf(id)
	if !ok {
		return false
	}
	m.cursor = i
	return m.list.ScrollToItem(id)
}

// Close releases the list's subscription.
func (m Model) Close() {
	m.list.Close()
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case FrameMsg:
		m.framePending = false
		m.list.Render()
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			cmds = append(cmds, m.updateFilter(msg))
		} else {
			m.handleKey(msg)
		}

	case tea.MouseMsg:
		m.handleMouse(msg)
	}

	cmds = append(cmds, m.drain(), m.scheduleFrame())
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) {
	page := max(1, m.list.Tracker().Viewport().ContainerHeight/m.cfg.ItemHeight)

	switch {
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(page)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-page)
	case key.Matches(msg, m.keys.Top):
		m.moveCursor(-m.list.Len())
	case key.Matches(msg, m.keys.Bottom):
		m.moveCursor(m.list.Len())
	case key.Matches(msg, m.keys.Select):
		m.list.Select(m.cursor)
	case key.Matches(msg, m.keys.ToggleRead):
		_ = m.list.Invoke(ActionToggleRead, m.cursor)
	case key.Matches(msg, m.keys.Archive):
		_ = m.list.Invoke(ActionArchive, m.cursor)
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		m.filter.SetValue(m.query)
		m.filter.CursorEnd()
		m.filter.Focus()
		m.applyContainer()
	}
}

func (m *Model) updateFilter(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.Reset()
		m.setQuery("")
		m.applyContainer()
		return nil
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		m.applyContainer()
		return nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != m.query {
		m.setQuery(m.filter.Value())
	}
	return cmd
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.list.Tracker().ScrollBy(-wheelStep)
		return
	case tea.MouseButtonWheelDown:
		m.list.Tracker().ScrollBy(wheelStep)
		return
	case tea.MouseButtonLeft:
		if msg.Action != tea.MouseActionPress {
			return
		}
	default:
		return
	}

	index, line, ok := m.list.HitTest(msg.Y - m.top)
	if !ok {
		return
	}

	if line == 0 {
		if action, ok := actionAt(m.contentWidth(), msg.X); ok {
			_ = m.list.Invoke(action, index)
			return
		}
	}

	m.cursor = index
	m.list.ScrollIndexIntoView(index)
	m.list.Select(index)
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
	m.list.ScrollIndexIntoView(m.cursor)
}

func (m *Model) clampCursor() {
	if m.cursor >= m.list.Len() {
		m.cursor = m.list.Len() - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) setQuery(q string) {
	m.query = q
	m.applyFilter()
	m.cursor = 0
	m.list.Tracker().ScrollTo(0)
}

// applyFilter rebuilds the visible collection from the full set.
func (m *Model) applyFilter() {
	if m.query == "" {
		m.list.SetItems(m.all)
		return
	}

	matches := fuzzy.FindFrom(strings.ToLower(m.query), searchSource(m.all))
	filtered := make([]model.Message, len(matches))
	for i, match := range matches {
		filtered[i] = m.all[match.Index]
	}
	m.list.SetItems(filtered)
}

// applyContainer sizes the viewport to the rows left for the list.
func (m *Model) applyContainer() {
	h := m.height
	if m.filtering || m.query != "" {
		h--
	}
	if h < 1 {
		h = 1
	}

	cfg := m.list.Config()
	if cfg.ContainerHeight == h {
		return
	}
	cfg.ContainerHeight = h
	_ = m.list.Reconfigure(cfg)
	m.list.ScrollIndexIntoView(m.cursor)
}

// scheduleFrame requests one render pass for however many viewport or
// collection changes arrive before it fires.
func (m *Model) scheduleFrame() tea.Cmd {
	if !m.list.Dirty() || m.framePending {
		return nil
	}
	m.framePending = true
	return tea.Tick(frameInterval, func(time.Time) tea.Msg {
		return FrameMsg{}
	})
}

// RequestFrame schedules a render pass if the list changed outside Update,
// for example after SetSize or SetMessages.
func (m *Model) RequestFrame() tea.Cmd {
	return m.scheduleFrame()
}

// drain turns callbacks collected during this update into commands.
func (m *Model) drain() tea.Cmd {
	if len(*m.outbox) == 0 {
		return nil
	}
	pending := *m.outbox
	*m.outbox = nil

	cmds := make([]tea.Cmd, 0, len(pending))
	for _, msg := range pending {
		cmds = append(cmds, func() tea.Msg { return msg })
	}
	return tea.Batch(cmds...)
}

func (m Model) contentWidth() int {
	return max(m.width-1, 0)
}

// View renders the last completed frame.
func (m Model) View() string {
	frame := m.list.Frame()
	vp := frame.Viewport
	cw := m.contentWidth()

	lines := make([]string, vp.ContainerHeight)
	for i := range lines {
		lines[i] = strings.Repeat(" ", cw)
	}

	if frame.Total == 0 {
		empty := "No messages"
		if m.query != "" {
			empty = "No messages match " + fmt.Sprintf("%q", m.query)
		}
		if len(lines) > 0 {
			lines[0] = pad(theme.HelpStyle.Render("  "+empty), cw)
		}
	}

	now := m.now()
	for _, row := range frame.Rows {
		y := row.Top - vp.ScrollOffset
		if y+row.Height <= 0 || y >= len(lines) {
			continue
		}
		rendered := renderRow(row.Item, cw, row.Height, row.Index == m.cursor, now)
		for k, text := range rendered {
			if y+k >= 0 && y+k < len(lines) {
				lines[y+k] = text
			}
		}
	}

	bar := scrollbar(len(lines), frame.SpacerHeight, vp.ContainerHeight, vp.ScrollOffset)
	for i := range lines {
		lines[i] += bar[i]
	}

	if m.filtering {
		lines = append(lines, m.filter.View())
	} else if m.query != "" {
		lines = append(lines, theme.HelpStyle.Render(fmt.Sprintf("/%s  (%d of %d)", m.query, frame.Total, len(m.all))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// searchSource adapts messages to fuzzy.Source over subject and sender.
type searchSource []model.Message

func (s searchSource) String(i int) string {
	return strings.ToLower(s[i].Subject + " " + s[i].FromName + " " + s[i].FromAddr)
}

func (s searchSource) Len() int { return len(s) }
