package reviewpane

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/taskreview/internal/render"
	"github.com/zjrosen/taskreview/internal/review/catalog"
	"github.com/zjrosen/taskreview/internal/ui/styles"
)

// bodyRow is one row of a rendered file: a hunk header or a diff line.
type bodyRow struct {
	header string
	line   render.Line
}

// flatten lays a rendered file out as rows.
func flatten(file *render.DiffFile) []bodyRow {
	if file == nil {
		return nil
	}
	rows := make([]bodyRow, 0, file.LineCount()+len(file.Hunks))
	for _, h := range file.Hunks {
		rows = append(rows, bodyRow{header: h.Header()})
		for _, l := range h.Lines {
			rows = append(rows, bodyRow{line: l})
		}
	}
	return rows
}

// estimateRows guesses an unrendered body's height from its line counts.
func estimateRows(item catalog.DiffItem) int {
	return max(1, item.ChangedLines()+1)
}

func kindGlyph(kind catalog.ChangeKind) string {
	switch kind {
	case catalog.ChangeAdded:
		return "A"
	case catalog.ChangeDeleted:
		return "D"
	case catalog.ChangeRenamed:
		return "R"
	case catalog.ChangeCopied:
		return "C"
	case catalog.ChangePermissionChange:
		return "P"
	default:
		return "M"
	}
}

func kindStyle(kind catalog.ChangeKind) lipgloss.Style {
	switch kind {
	case catalog.ChangeAdded:
		return styles.DiffAdditionStyle
	case catalog.ChangeDeleted:
		return styles.DiffDeletionStyle
	case catalog.ChangePermissionChange:
		return lipgloss.NewStyle().Foreground(styles.StatusWarningColor)
	default:
		return styles.DiffHunkStyle
	}
}

func renderHeader(item catalog.DiffItem, expanded bool) string {
	arrow := "▶"
	if expanded {
		arrow = "▼"
	}
	name := item.Key
	if item.OldPath != "" && item.OldPath != item.Key {
		name = item.OldPath + " → " + item.Key
	}
	parts := []string{
		arrow,
		kindStyle(item.ChangeKind).Render(kindGlyph(item.ChangeKind)),
		styles.FileHeaderStyle.Render(name),
	}
	if counts := styles.FormatCounts(item.Additions, item.Deletions); counts != "" {
		parts = append(parts, styles.LineNumberStyle.Render(counts))
	}
	return strings.Join(parts, " ")
}

func renderPlaceholder(msg string) string {
	return "  " + styles.PlaceholderStyle.Render(msg)
}

func lineNumber(n int) string {
	if n <= 0 {
		return "    "
	}
	s := strconv.Itoa(n)
	if len(s) < 4 {
		s = strings.Repeat(" ", 4-len(s)) + s
	}
	return s
}

func renderRow(row bodyRow, highlight bool) string {
	if row.header != "" {
		return styles.DiffHunkStyle.Render(row.header)
	}

	l := row.line
	style := styles.DiffContextStyle
	switch l.Kind {
	case render.LineAddition:
		style = styles.DiffAdditionStyle
	case render.LineDeletion:
		style = styles.DiffDeletionStyle
	}
	if highlight {
		style = style.Background(styles.SelectionBgColor)
	}

	var text string
	if len(l.Segments) > 0 {
		var b strings.Builder
		for _, seg := range l.Segments {
			if seg.Kind == render.SegmentUnchanged {
				b.WriteString(style.Render(seg.Text))
			} else {
				b.WriteString(style.Inherit(styles.DiffWordStyle).Render(seg.Text))
			}
		}
		text = b.String()
	} else {
		text = style.Render(l.Text)
	}

	nums := styles.LineNumberStyle.Render(lineNumber(l.OldNum) + " " + lineNumber(l.NewNum))
	return nums + " " + style.Render(l.Kind.String()) + text
}
