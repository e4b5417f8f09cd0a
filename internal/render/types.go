// Package render computes displayable line diffs for a file's old and new
// contents and memoizes them by content identity.
package render

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
)

// ErrContentOmitted is returned when a record's contents were dropped by the
// diff source and only line counts are available.
var ErrContentOmitted = errors.New("diff content omitted")

// LineKind classifies a diff line.
type LineKind int

const (
	LineContext LineKind = iota
	LineAddition
	LineDeletion
)

// String returns the unified-diff prefix of the kind.
func (k LineKind) String() string {
	switch k {
	case LineAddition:
		return "+"
	case LineDeletion:
		return "-"
	default:
		return " "
	}
}

// SegmentKind classifies part of a changed line for word highlighting.
type SegmentKind int

const (
	SegmentUnchanged SegmentKind = iota
	SegmentAdded
	SegmentDeleted
)

// Segment is a run of text within a line.
type Segment struct {
	Kind SegmentKind
	Text string
}

// Line is one line of a hunk. OldNum is 0 for additions, NewNum is 0 for deletions.
type Line struct {
	Kind     LineKind
	OldNum   int
	NewNum   int
	Text     string
	Segments []Segment
}

// Hunk is a contiguous run of changes with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Header returns the "@@ -a,b +c,d @@" marker.
func (h Hunk) Header() string {
	return "@@ -" + strconv.Itoa(h.OldStart) + "," + strconv.Itoa(h.OldCount) +
		" +" + strconv.Itoa(h.NewStart) + "," + strconv.Itoa(h.NewCount) + " @@"
}

// DiffFile is the rendered diff of one file.
type DiffFile struct {
	Path      string
	Additions int
	Deletions int
	Hunks     []Hunk
	// WordDiffTimedOut is set when word highlighting stopped early.
	WordDiffTimedOut bool
}

// LineCount returns the number of display lines including one header per hunk.
func (f *DiffFile) LineCount() int {
	if f == nil {
		return 0
	}
	n := 0
	for _, h := range f.Hunks {
		n += 1 + len(h.Lines)
	}
	return n
}

// Params identifies one render request.
type Params struct {
	Path           string
	OldContent     string
	NewContent     string
	ContextLines   int
	ContentOmitted bool
}

// Key is the content identity of p. Equal contents share a key regardless of path.
func (p Params) Key() string {
	oldSum := sha256.Sum256([]byte(p.OldContent))
	newSum := sha256.Sum256([]byte(p.NewContent))
	return hex.EncodeToString(oldSum[:12]) + ":" + hex.EncodeToString(newSum[:12]) + ":" + strconv.Itoa(p.ContextLines)
}

// Result is the answer to a render request.
type Result struct {
	File      *DiffFile
	Additions int
	Deletions int
	IsLoading bool
	Err       error
}
