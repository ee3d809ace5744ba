package maillist

import "github.com/nhle/mailterm/internal/theme"

const (
	scrollTrack = "│"
	scrollThumb = "┃"
)

// thumbBounds returns the thumb position and size for a vertical
// scrollbar of height rows. Size is zero when the content fits.
func thumbBounds(height, contentSize, viewportSize, offset int) (pos, size int) {
	if height <= 0 || contentSize <= viewportSize {
		return 0, 0
	}
	size = max(1, height*viewportSize/contentSize)
	if trackSpace := height - size; trackSpace > 0 {
		pos = min(trackSpace, offset*trackSpace/(contentSize-viewportSize))
	}
	return pos, size
}

// scrollbar returns one cell per row. Every cell is blank when the
// content fits the viewport.
func scrollbar(height, contentSize, viewportSize, offset int) []string {
	cells := make([]string, max(height, 0))
	pos, size := thumbBounds(height, contentSize, viewportSize, offset)

	for i := range cells {
		switch {
		case size == 0:
			cells[i] = " "
		case i >= pos && i < pos+size:
			cells[i] = theme.ScrollThumbStyle.Render(scrollThumb)
		default:
			cells[i] = theme.ScrollTrackStyle.Render(scrollTrack)
		}
	}
	return cells
}
