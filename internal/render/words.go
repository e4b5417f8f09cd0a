package render

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Word highlighting bounds.
const (
	WordDiffMaxLineLength = 500
	WordDiffMaxPairs      = 100
	WordDiffTimeout       = 50 * time.Millisecond
)

// tokenize splits a line into words, single punctuation runes and single
// whitespace runes.
func tokenize(line string) []string {
	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range line {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			flush()
			tokens = append(tokens, string(r))
			continue
		}
		word.WriteRune(r)
	}
	flush()
	return tokens
}

// tokenBase is the first private-use rune used to encode tokens.
const tokenBase = 0xE000

// encodeTokens maps each distinct token to one rune so the diff runs over
// whole tokens rather than characters.
func encodeTokens(table map[string]rune, tokens *[]string, line string) string {
	var b strings.Builder
	for _, tok := range tokenize(line) {
		r, ok := table[tok]
		if !ok {
			r = rune(tokenBase + len(*tokens))
			table[tok] = r
			*tokens = append(*tokens, tok)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func decodeTokens(tokens []string, encoded string) string {
	var b strings.Builder
	for _, r := range encoded {
		b.WriteString(tokens[r-tokenBase])
	}
	return b.String()
}

// wordSegments diffs two lines token by token.
func wordSegments(oldLine, newLine string) (oldSegs, newSegs []Segment) {
	if oldLine == "" || newLine == "" {
		return nil, nil
	}

	table := make(map[string]rune)
	var tokens []string
	a := encodeTokens(table, &tokens, oldLine)
	b := encodeTokens(table, &tokens, newLine)

	dmp := diffmatchpatch.New()
	for _, d := range dmp.DiffCleanupSemantic(dmp.DiffMain(a, b, false)) {
		text := decodeTokens(tokens, d.Text)
		if text == "" {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			oldSegs = append(oldSegs, Segment{Kind: SegmentUnchanged, Text: text})
			newSegs = append(newSegs, Segment{Kind: SegmentUnchanged, Text: text})
		case diffmatchpatch.DiffDelete:
			oldSegs = append(oldSegs, Segment{Kind: SegmentDeleted, Text: text})
		case diffmatchpatch.DiffInsert:
			newSegs = append(newSegs, Segment{Kind: SegmentAdded, Text: text})
		}
	}
	return oldSegs, newSegs
}

// highlightWords fills Segments for adjacent deletion/addition pairs.
// Reports whether it stopped at the timeout.
func highlightWords(ctx context.Context, hunks []Hunk) bool {
	ctx, cancel := context.WithTimeout(ctx, WordDiffTimeout)
	defer cancel()

	for hi := range hunks {
		lines := hunks[hi].Lines
		pairs := 0
		for i := 0; i+1 < len(lines) && pairs < WordDiffMaxPairs; i++ {
			if lines[i].Kind != LineDeletion || lines[i+1].Kind != LineAddition {
				continue
			}
			if ctx.Err() != nil {
				return true
			}
			pairs++
			del, add := &lines[i], &lines[i+1]
			i++
			if len(del.Text) > WordDiffMaxLineLength || len(add.Text) > WordDiffMaxLineLength {
				continue
			}
			del.Segments, add.Segments = wordSegments(del.Text, add.Text)
		}
	}
	return false
}
