package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps overlay and detail content.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// UnreadStyle marks the subject line of unseen messages.
var UnreadStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// ReadStyle is the subject line of seen messages.
var ReadStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// MetaStyle renders the sender and date row.
var MetaStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// CursorStyle marks the row under the cursor.
var CursorStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true)

// FlagStyle renders the star of flagged messages.
var FlagStyle = lipgloss.NewStyle().
	Foreground(ColorYellow).
	Bold(true)

// ButtonStyle renders inline row action buttons.
var ButtonStyle = lipgloss.NewStyle().
	Foreground(ColorBlue)

// ScrollTrackStyle and ScrollThumbStyle draw the list scrollbar.
var (
	ScrollTrackStyle = lipgloss.NewStyle().Foreground(ColorSubtle)
	ScrollThumbStyle = lipgloss.NewStyle().Foreground(ColorBlue)
)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle renders error text in the status bar and forms.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed).
	Bold(true)

// SuccessStyle renders confirmations in the status bar.
var SuccessStyle = lipgloss.NewStyle().
	Foreground(ColorGreen)

// TitleStyle is the bold heading used inside panels.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	MarginBottom(1)
