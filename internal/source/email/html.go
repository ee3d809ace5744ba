package email

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy()

	// blockBreaks matches tags that end a visual line.
	blockBreaks = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|tr|h[1-6])>`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText renders an HTML body as plain text for the terminal. Block
// boundaries become newlines; everything else is stripped.
func HTMLToText(body string) string {
	if body == "" {
		return ""
	}

	text := blockBreaks.ReplaceAllString(body, "$0\n")
	text = stripPolicy.Sanitize(text)
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\u00a0", " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	text = blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")

	return strings.TrimSpace(text)
}
