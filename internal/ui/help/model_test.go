package help

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"

	"github.com/nhle/mailterm/internal/keys"
)

func TestHelpListsSectionsPerView(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 120, 60)
	view := ansi.Strip(m.View())

	assert.Contains(t, view, "Keyboard Shortcuts")
	for _, title := range []string{"Message list", "Message", "Filter", "Reply", "Command palette", "Anywhere"} {
		assert.Contains(t, view, title)
	}

	assert.Contains(t, view, "ctrl+s")
	assert.Contains(t, view, "save draft and close")
	assert.Contains(t, view, "clear filter")
	assert.Contains(t, view, "keep filter")
	assert.Contains(t, view, ":search")
	assert.Contains(t, view, "archive")
}

func TestHelpMarksActiveContext(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 120, 60)
	view := ansi.Strip(m.View())
	assert.Contains(t, view, "▸ Message list")

	m.SetContext(ContextMessage)
	view = ansi.Strip(m.View())
	assert.Contains(t, view, "▸ Message")
	assert.NotContains(t, view, "▸ Message list")
	assert.Contains(t, view, "back to list")
}

func TestHelpNarrowStacksSections(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 50, 80)
	view := ansi.Strip(m.View())

	list := strings.Index(view, "Message list")
	palette := strings.Index(view, "Command palette")
	assert.Greater(t, list, -1)
	assert.Greater(t, palette, list)
}
