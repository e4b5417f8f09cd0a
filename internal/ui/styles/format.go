package styles

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/rivo/uniseg"
)

// TruncateString truncates a string to fit within maxWidth, adding an ellipsis if needed.
func TruncateString(s string, maxWidth int) string {
	if maxWidth < 1 {
		return ""
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return truncate.StringWithTail(s, uint(maxWidth), "…")
}

// TruncatePath keeps the end of a path, which carries the file name, and
// drops leading grapheme clusters behind an ellipsis.
func TruncatePath(path string, maxWidth int) string {
	if maxWidth < 1 {
		return ""
	}
	if runewidth.StringWidth(path) <= maxWidth {
		return path
	}
	if maxWidth == 1 {
		return "…"
	}

	var clusters []string
	g := uniseg.NewGraphemes(path)
	for g.Next() {
		clusters = append(clusters, g.Str())
	}

	width := 1 // ellipsis
	start := len(clusters)
	for start > 0 {
		w := runewidth.StringWidth(clusters[start-1])
		if width+w > maxWidth {
			break
		}
		width += w
		start--
	}
	return "…" + strings.Join(clusters[start:], "")
}

// FormatCounts returns "+a -d", omitting zero sides. Both zero yields "".
func FormatCounts(additions, deletions int) string {
	switch {
	case additions > 0 && deletions > 0:
		return "+" + strconv.Itoa(additions) + " -" + strconv.Itoa(deletions)
	case additions > 0:
		return "+" + strconv.Itoa(additions)
	case deletions > 0:
		return "-" + strconv.Itoa(deletions)
	default:
		return ""
	}
}
