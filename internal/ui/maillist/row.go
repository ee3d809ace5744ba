package maillist

import (
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/theme"
)

const (
	ActionToggleRead = "read"
	ActionArchive    = "archive"
)

// rowPrefixWidth is the cursor marker, unread dot and star plus spacing.
const rowPrefixWidth = 5

// minButtonWidth is the narrowest content width that still shows buttons.
const minButtonWidth = 40

type button struct {
	action string
	label  string
}

var rowButtons = []button{
	{action: ActionToggleRead, label: "[read]"},
	{action: ActionArchive, label: "[arch]"},
}

// buttonSpan is the column range [x0, x1) of a button on a row's first line.
type buttonSpan struct {
	action string
	x0, x1 int
}

// buttonsWidth is the width of the button group including separators.
func buttonsWidth() int {
	w := 0
	for _, b := range rowButtons {
		w += 1 + len(b.label)
	}
	return w
}

// buttonSpans lays the buttons out flush right within width columns.
func buttonSpans(width int) []buttonSpan {
	if width < minButtonWidth {
		return nil
	}
	spans := make([]buttonSpan, 0, len(rowButtons))
	x := width - buttonsWidth()
	for _, b := range rowButtons {
		x++ // separator
		spans = append(spans, buttonSpan{action: b.action, x0: x, x1: x + len(b.label)})
		x += len(b.label)
	}
	return spans
}

// actionAt returns the button action under column x, if any.
func actionAt(width, x int) (string, bool) {
	for _, s := range buttonSpans(width) {
		if x >= s.x0 && x < s.x1 {
			return s.action, true
		}
	}
	return "", false
}

// renderRow returns exactly height lines, each width columns wide.
func renderRow(msg model.Message, width, height int, selected bool, now time.Time) []string {
	marker := " "
	if selected {
		marker = theme.CursorStyle.Render("▌")
	}
	dot := " "
	if !msg.Seen {
		dot = theme.CursorStyle.Render("●")
	}
	star := " "
	if msg.Flagged {
		star = theme.FlagStyle.Render("★")
	}

	buttons := ""
	bw := 0
	if width >= minButtonWidth {
		labels := make([]string, 0, len(rowButtons))
		for _, b := range rowButtons {
			labels = append(labels, theme.ButtonStyle.Render(b.label))
		}
		buttons = " " + strings.Join(labels, " ")
		bw = buttonsWidth()
	}

	subject := msg.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	meta := msg.From() + " · " + formatDate(msg.Date, now)

	subjectStyle := theme.ReadStyle
	if !msg.Seen {
		subjectStyle = theme.UnreadStyle
	}

	avail := width - rowPrefixWidth - bw
	if height == 1 {
		subject = subject + " · " + meta
	}
	first := marker + " " + dot + star + " " +
		pad(subjectStyle.Render(truncate(subject, avail)), avail) + buttons

	lines := []string{pad(first, width)}
	if height > 1 {
		second := marker + strings.Repeat(" ", rowPrefixWidth-1) +
			theme.MetaStyle.Render(truncate(meta, width-rowPrefixWidth))
		lines = append(lines, pad(second, width))
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", max(width, 0)))
	}
	return lines
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}

// pad right-fills s with spaces to width visible columns.
func pad(s string, width int) string {
	if gap := width - ansi.StringWidth(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func formatDate(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	switch {
	case y1 == y2 && m1 == m2 && d1 == d2:
		return t.Format("15:04")
	case y1 == y2:
		return t.Format("Jan 2")
	default:
		return t.Format("2006-01-02")
	}
}
