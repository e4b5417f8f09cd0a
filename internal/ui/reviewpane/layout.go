package reviewpane

import "sort"

// slot is one item's placement in the row space: a header row followed by
// its body rows.
type slot struct {
	path string
	top  int
	rows int
}

func (s slot) bottom() int { return s.top + s.rows }

// layout places items one after another without gaps.
type layout struct {
	slots []slot
	total int
}

func buildLayout(paths []string, rows func(i int) int) layout {
	l := layout{slots: make([]slot, len(paths))}
	top := 0
	for i, p := range paths {
		n := max(1, rows(i))
		l.slots[i] = slot{path: p, top: top, rows: n}
		top += n
	}
	l.total = top
	return l
}

// indexAt returns the item occupying row, clamped to the layout.
func (l layout) indexAt(row int) int {
	if len(l.slots) == 0 {
		return -1
	}
	i := sort.Search(len(l.slots), func(i int) bool { return l.slots[i].bottom() > row })
	return min(i, len(l.slots)-1)
}

// visible returns the first and last item intersecting [offset, offset+height).
func (l layout) visible(offset, height int) (first, last int, ok bool) {
	if len(l.slots) == 0 || height <= 0 {
		return 0, 0, false
	}
	first = l.indexAt(offset)
	last = l.indexAt(offset + height - 1)
	return first, last, true
}

// bottomOffset is the largest scroll offset that still fills the viewport.
func (l layout) bottomOffset(height int) int {
	return max(0, l.total-height)
}

// maxOffset is the scroll limit. Rows past the end render blank so that the
// last item's header can reach the top of the viewport.
func (l layout) maxOffset(height int) int {
	if len(l.slots) == 0 {
		return 0
	}
	return max(l.bottomOffset(height), l.slots[len(l.slots)-1].top)
}
