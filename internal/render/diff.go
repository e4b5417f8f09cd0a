package render

import (
	"context"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineChangeCounts returns the number of added and deleted lines between
// oldText and newText.
func LineChangeCounts(oldText, newText string) (additions, deletions int) {
	if oldText == newText {
		return 0, 0
	}
	for _, d := range lineDiff(oldText, newText) {
		n := len(splitLines(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += n
		case diffmatchpatch.DiffDelete:
			deletions += n
		}
	}
	return additions, deletions
}

// Compute diffs p synchronously.
func Compute(ctx context.Context, p Params) (*DiffFile, error) {
	if p.ContentOmitted {
		return nil, ErrContentOmitted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lines := diffLines(p.OldContent, p.NewContent)
	file := &DiffFile{Path: p.Path}
	for _, l := range lines {
		switch l.Kind {
		case LineAddition:
			file.Additions++
		case LineDeletion:
			file.Deletions++
		}
	}
	file.Hunks = buildHunks(lines, max(0, p.ContextLines))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file.WordDiffTimedOut = highlightWords(ctx, file.Hunks)
	return file, nil
}

func lineDiff(oldText, newText string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	return dmp.DiffCharsToLines(diffs, lines)
}

// splitLines splits text into lines without their terminators.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.SplitAfter(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(strings.TrimSuffix(p, "\n"), "\r")
	}
	return parts
}

// diffLines flattens the line diff into numbered lines.
func diffLines(oldText, newText string) []Line {
	var out []Line
	oldNum, newNum := 0, 0
	for _, d := range lineDiff(oldText, newText) {
		for _, text := range splitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				oldNum++
				newNum++
				out = append(out, Line{Kind: LineContext, OldNum: oldNum, NewNum: newNum, Text: text})
			case diffmatchpatch.DiffDelete:
				oldNum++
				out = append(out, Line{Kind: LineDeletion, OldNum: oldNum, Text: text})
			case diffmatchpatch.DiffInsert:
				newNum++
				out = append(out, Line{Kind: LineAddition, NewNum: newNum, Text: text})
			}
		}
	}
	return out
}

// buildHunks groups changed lines with up to ctxLines unchanged lines around
// them. Changes separated by at most 2*ctxLines unchanged lines share a hunk.
func buildHunks(lines []Line, ctxLines int) []Hunk {
	var hunks []Hunk
	n := len(lines)
	for i := 0; i < n; {
		if lines[i].Kind == LineContext {
			i++
			continue
		}
		start := max(0, i-ctxLines)
		last := i
		for j := i + 1; j < n; j++ {
			if lines[j].Kind != LineContext {
				last = j
				continue
			}
			if j-last > 2*ctxLines {
				break
			}
		}
		stop := min(n, last+ctxLines+1)
		hunks = append(hunks, newHunk(lines, start, stop))
		i = stop
	}
	return hunks
}

func newHunk(all []Line, start, stop int) Hunk {
	h := Hunk{Lines: append([]Line(nil), all[start:stop]...)}
	oldBefore, newBefore := positionsBefore(all, start)
	for _, l := range h.Lines {
		if l.Kind != LineAddition {
			h.OldCount++
		}
		if l.Kind != LineDeletion {
			h.NewCount++
		}
	}
	h.OldStart = oldBefore
	if h.OldCount > 0 {
		h.OldStart++
	}
	h.NewStart = newBefore
	if h.NewCount > 0 {
		h.NewStart++
	}
	return h
}

// positionsBefore returns how many old and new lines precede index i.
func positionsBefore(all []Line, i int) (oldN, newN int) {
	for k := i - 1; k >= 0; k-- {
		l := all[k]
		if oldN == 0 && l.OldNum > 0 {
			oldN = l.OldNum
		}
		if newN == 0 && l.NewNum > 0 {
			newN = l.NewNum
		}
		if oldN > 0 && newN > 0 {
			break
		}
	}
	return oldN, newN
}
