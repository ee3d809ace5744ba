package maillist

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailterm/internal/keys"
	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/virtuallist"
	"github.com/nhle/mailterm/tests/testutil"
)

// collect runs cmd and flattens batches into the messages they produce.
// Ticks are skipped so tests stay synchronous.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func newTestList(t *testing.T, n int) Model {
	t.Helper()

	m, err := New(model.ListConfig{ItemHeight: 2, Overscan: 2, Threshold: 50}, keys.DefaultKeyMap())
	require.NoError(t, err)
	t.Cleanup(m.Close)

	m.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	m.SetSize(80, 20, 1)
	m.SetMessages(testutil.MakeMessages("acct", n))
	m, _ = m.Update(FrameMsg{})
	return m
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestLargeListRendersWindowOnly(t *testing.T) {
	m := newTestList(t, 10000)

	frame := m.Frame()
	assert.Equal(t, virtuallist.ModeWindowed, frame.Mode)
	assert.Equal(t, 20000, frame.SpacerHeight)

	metrics := m.Metrics()
	assert.Equal(t, 10000, metrics.TotalItems)
	assert.Less(t, metrics.RenderedItems, 50)
	assert.Less(t, metrics.RenderRatio, 0.01)

	view := m.View()
	assert.Equal(t, 20, strings.Count(view, "\n")+1)
	assert.Contains(t, view, "Message 1")
	assert.NotContains(t, view, "Message 100 ")
}

func TestSmallListRendersDirect(t *testing.T) {
	m := newTestList(t, 5)
	assert.Equal(t, virtuallist.ModeDirect, m.Frame().Mode)
	assert.Equal(t, 5, m.Metrics().RenderedItems)
}

func TestEnterSelectsCursorMessage(t *testing.T) {
	m := newTestList(t, 10)

	m, _ = m.Update(keyMsg("j"))
	m, _ = m.Update(keyMsg("j"))
	assert.Equal(t, 2, m.Cursor())

	m, cmd := m.Update(keyMsg("enter"))
	msgs := collect(cmd)
	require.Len(t, msgs, 1)
	sel, ok := msgs[0].(SelectedMsg)
	require.True(t, ok)
	assert.Equal(t, "acct:INBOX:3", sel.Message.ID)
}

func TestActionKeysDoNotSelect(t *testing.T) {
	m := newTestList(t, 10)

	_, cmd := m.Update(keyMsg("a"))
	msgs := collect(cmd)
	require.Len(t, msgs, 1)
	act, ok := msgs[0].(ActionMsg)
	require.True(t, ok)
	assert.Equal(t, ActionArchive, act.Action)
	assert.Equal(t, "acct:INBOX:1", act.Message.ID)
}

func TestClickButtonFiresOnlyAction(t *testing.T) {
	m := newTestList(t, 10)

	spans := buttonSpans(m.contentWidth())
	require.Len(t, spans, 2)

	// Third message's first line sits at terminal row top + 4.
	click := tea.MouseMsg{X: spans[0].x0, Y: 1 + 4, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress}
	m, cmd := m.Update(click)
	msgs := collect(cmd)
	require.Len(t, msgs, 1)
	act, ok := msgs[0].(ActionMsg)
	require.True(t, ok)
	assert.Equal(t, ActionToggleRead, act.Action)
	assert.Equal(t, "acct:INBOX:3", act.Message.ID)
	assert.Equal(t, 0, m.Cursor())

	// Clicking elsewhere on the row selects it.
	click.X = 10
	m, cmd = m.Update(click)
	msgs = collect(cmd)
	require.Len(t, msgs, 1)
	sel, ok := msgs[0].(SelectedMsg)
	require.True(t, ok)
	assert.Equal(t, "acct:INBOX:3", sel.Message.ID)
	assert.Equal(t, 2, m.Cursor())
}

func TestWheelScrollIsCoalesced(t *testing.T) {
	m := newTestList(t, 1000)
	before := m.Frame()

	wheel := tea.MouseMsg{Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress}
	m, cmd := m.Update(wheel)
	assert.NotNil(t, cmd, "first change schedules a frame")
	m, cmd = m.Update(wheel)
	assert.Nil(t, cmd, "frame already pending")
	m, _ = m.Update(wheel)

	// Nothing is recomputed until the frame fires.
	assert.Equal(t, before.Range, m.Frame().Range)

	m, _ = m.Update(FrameMsg{})
	frame := m.Frame()
	assert.Equal(t, 9, frame.Viewport.ScrollOffset)
	assert.Equal(t, 2, frame.Range.Start, "row 4 is first visible, minus overscan")
}

func TestClickBeforeFrameHitsDrawnRow(t *testing.T) {
	m := newTestList(t, 1000)

	wheel := tea.MouseMsg{Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress}
	m, _ = m.Update(wheel)
	m, _ = m.Update(wheel)

	// The scroll is not drawn yet, so the top row still shows message 1.
	click := tea.MouseMsg{X: 10, Y: 1, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress}
	m, cmd := m.Update(click)
	msgs := collect(cmd)
	require.Len(t, msgs, 1)
	sel, ok := msgs[0].(SelectedMsg)
	require.True(t, ok)
	assert.Equal(t, "acct:INBOX:1", sel.Message.ID)
	assert.Equal(t, 0, m.Cursor())
}

func TestFilter(t *testing.T) {
	m := newTestList(t, 30)

	m, _ = m.Update(keyMsg("/"))
	assert.True(t, m.Filtering())
	for _, r := range "message 2" {
		m, _ = m.Update(keyMsg(string(r)))
	}
	m, _ = m.Update(FrameMsg{})

	visible := m.Visible()
	require.NotEmpty(t, visible)
	for _, msg := range visible {
		assert.Contains(t, msg.Subject, "2")
	}
	assert.Len(t, m.Messages(), 30)

	m, _ = m.Update(keyMsg("enter"))
	assert.False(t, m.Filtering())
	assert.Equal(t, "message 2", m.Query())

	m, _ = m.Update(keyMsg("/"))
	m, _ = m.Update(keyMsg("esc"))
	assert.Equal(t, "", m.Query())
	assert.Len(t, m.Visible(), 30)
}

func TestSetMessagesKeepsCursorOnMessage(t *testing.T) {
	m := newTestList(t, 10)
	m, _ = m.Update(keyMsg("G"))
	selected, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "acct:INBOX:10", selected.ID)

	// A sync prepends newer messages.
	msgs := testutil.MakeMessages("acct", 12)
	reversed := make([]model.Message, len(msgs))
	for i, msg := range msgs {
		reversed[len(msgs)-1-i] = msg
	}
	m.SetMessages(reversed)

	selected, ok = m.Selected()
	require.True(t, ok)
	assert.Equal(t, "acct:INBOX:10", selected.ID)
	assert.Equal(t, 2, m.Cursor())
}

func TestScrollToMessage(t *testing.T) {
	m := newTestList(t, 500)

	assert.True(t, m.ScrollToMessage("acct:INBOX:200"))
	m, _ = m.Update(FrameMsg{})
	assert.Equal(t, 199, m.Cursor())
	assert.Equal(t, 398, m.Frame().Viewport.ScrollOffset)

	assert.False(t, m.ScrollToMessage("nope"))
	assert.Equal(t, 199, m.Cursor())
}

func TestRenderRowWidth(t *testing.T) {
	msg := model.Message{Subject: strings.Repeat("long subject ", 20), FromAddr: "a@example.com"}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, width := range []int{20, 60, 120} {
		lines := renderRow(msg, width, 2, true, now)
		require.Len(t, lines, 2)
		for _, line := range lines {
			assert.Equal(t, width, ansi.StringWidth(line))
		}
	}

	assert.Len(t, renderRow(msg, 60, 3, false, now), 3)
}

func TestThumbBounds(t *testing.T) {
	_, size := thumbBounds(10, 5, 10, 0)
	assert.Equal(t, 0, size)

	pos, size := thumbBounds(10, 100, 10, 0)
	assert.Equal(t, 0, pos)
	assert.Equal(t, 1, size)

	pos, _ = thumbBounds(10, 100, 10, 90)
	assert.Equal(t, 9, pos)
}
