package reviewpane

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/taskreview/internal/ui/styles"
)

const (
	scrollbarThumbChar = "█"
	scrollbarTrackChar = "░"
)

// scrollbar describes the row space the bar represents.
type scrollbar struct {
	totalRows int
	height    int
	offset    int
}

// thumb returns the start row and height of the scroll thumb.
// Height is max(1, height²/totalRows); start is proportional to offset.
func (s scrollbar) thumb() (start, height int) {
	if s.totalRows <= 0 || s.height <= 0 {
		return 0, 0
	}
	if s.totalRows <= s.height {
		return 0, s.height
	}

	height = max(1, s.height*s.height/s.totalRows)
	maxOffset := s.totalRows - s.height
	track := s.height - height
	if track <= 0 {
		return 0, height
	}
	start = track * max(0, min(s.offset, maxOffset)) / maxOffset
	return max(0, min(start, s.height-height)), height
}

// render draws the bar as height lines joined by \n. When everything fits the
// bar is blank.
func (s scrollbar) render() string {
	if s.height <= 0 || s.totalRows <= 0 {
		return ""
	}
	lines := make([]string, s.height)
	if s.totalRows <= s.height {
		for i := range lines {
			lines[i] = " "
		}
		return strings.Join(lines, "\n")
	}

	start, size := s.thumb()
	trackStyle := lipgloss.NewStyle().Foreground(styles.TextMutedColor)
	thumbStyle := lipgloss.NewStyle().Foreground(styles.TextSecondaryColor)
	for row := range s.height {
		if row >= start && row < start+size {
			lines[row] = thumbStyle.Render(scrollbarThumbChar)
		} else {
			lines[row] = trackStyle.Render(scrollbarTrackChar)
		}
	}
	return strings.Join(lines, "\n")
}
