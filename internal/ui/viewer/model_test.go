package viewer

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailterm/internal/keys"
	"github.com/nhle/mailterm/internal/model"
)

func openViewer(t *testing.T) Model {
	t.Helper()
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.Open(model.Message{
		ID:       "acct:INBOX:1",
		Subject:  "Quarterly numbers",
		FromName: "Alice",
		FromAddr: "alice@example.com",
		To:       []string{"me@example.com"},
	})
	return m
}

func TestViewerShowsLoadingThenBody(t *testing.T) {
	m := openViewer(t)
	assert.True(t, m.Loading())
	assert.Contains(t, m.View(), "Loading message...")

	// A body for another message is ignored.
	m, _ = m.Update(BodyLoadedMsg{MessageID: "other", Body: &model.MessageBody{TextBody: "nope"}})
	assert.True(t, m.Loading())

	m, _ = m.Update(BodyLoadedMsg{
		MessageID: "acct:INBOX:1",
		Body: &model.MessageBody{
			TextBody:    "Numbers attached.",
			Attachments: []model.Attachment{{Filename: "q3.xlsx", Size: 2048}},
		},
	})
	assert.False(t, m.Loading())

	view := m.View()
	assert.Contains(t, view, "Quarterly numbers")
	assert.Contains(t, view, "Alice <alice@example.com>")
	assert.Contains(t, view, "Numbers attached.")
	assert.Contains(t, view, "q3.xlsx (2.0 KB)")
}

func TestViewerShowsLoadError(t *testing.T) {
	m := openViewer(t)
	m, _ = m.Update(BodyLoadedMsg{MessageID: "acct:INBOX:1", Err: errors.New("connection reset")})
	assert.Contains(t, m.View(), "connection reset")
}

func TestViewerActions(t *testing.T) {
	m := openViewer(t)

	tests := []struct {
		key    string
		action string
	}{
		{"R", ActionReply},
		{"u", ActionToggleRead},
		{"s", ActionFlag},
		{"a", ActionArchive},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(tt.key)})
			require.NotNil(t, cmd)
			msg, ok := cmd().(ActionMsg)
			require.True(t, ok)
			assert.Equal(t, tt.action, msg.Action)
			assert.Equal(t, "acct:INBOX:1", msg.Message.ID)
		})
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, BackMsg{}, cmd())
}

func TestViewerWithoutMessage(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 40, 10)
	assert.Contains(t, m.View(), "No message selected")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("R")})
	assert.Nil(t, cmd)
}
