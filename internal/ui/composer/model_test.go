package composer

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailterm/internal/keys"
	"github.com/nhle/mailterm/internal/model"
)

func original() model.Message {
	return model.Message{
		ID:       "acct:INBOX:4",
		Subject:  "Lunch?",
		FromName: "Bob",
		FromAddr: "bob@example.com",
		Date:     time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC),
	}
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestOpenPrefillsReply(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 30)
	m.Open(original(), &model.MessageBody{TextBody: "Noon works?"}, nil)

	d := m.Draft()
	assert.Equal(t, "Bob <bob@example.com>", d.To)
	assert.Equal(t, "Re: Lunch?", d.Subject)
	assert.Equal(t, "acct:INBOX:4", d.ReplyTo)
	assert.Empty(t, d.Body)

	view := m.View()
	assert.Contains(t, view, "Bob <bob@example.com> wrote:")
	assert.Contains(t, view, "> Noon works?")
}

func TestOpenRestoresDraft(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 30)
	m.Open(original(), nil, &model.Draft{ID: "d1", To: "bob@example.com", Subject: "Re: Lunch?", Body: "Sure"})

	d := m.Draft()
	assert.Equal(t, "d1", d.ID)
	assert.Equal(t, "Sure", d.Body)
}

func TestSendRequiresBody(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 30)
	m.Open(original(), nil, nil)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "reply is empty")

	m = typeText(m, "Yes")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)

	send, ok := cmd().(SendMsg)
	require.True(t, ok)
	assert.Equal(t, "Yes", send.Draft.Body)
	assert.Equal(t, "acct:INBOX:4", send.Original.ID)
}

func TestCancelKeepsDraft(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 30)
	m.Open(original(), nil, nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Nil(t, cmd().(CancelMsg).Draft)

	m = typeText(m, "Maybe")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	cancel := cmd().(CancelMsg)
	require.NotNil(t, cancel.Draft)
	assert.Equal(t, "Maybe", cancel.Draft.Body)
}

func TestTabCyclesFocus(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 30)
	m.Open(original(), nil, nil)
	assert.Equal(t, fieldBody, m.focus)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, fieldTo, m.focus)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, fieldBody, m.focus)
}
