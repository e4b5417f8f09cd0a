package viewport

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/taskreview/internal/review/catalog"
)

type staticGeometry struct {
	height float64
	rects  map[string]Rect
}

func (g staticGeometry) ViewportHeight() (float64, bool) { return g.height, g.height > 0 }

func (g staticGeometry) Measure(path string) (Rect, bool) {
	r, ok := g.rects[path]
	return r, ok
}

func (g staticGeometry) Mounted() []string {
	out := make([]string, 0, len(g.rects))
	for p := range g.rects {
		out = append(out, p)
	}
	return out
}

func testCatalog(n int) *catalog.Catalog {
	records := make([]catalog.DiffRecord, n)
	for i := range records {
		records[i] = catalog.DiffRecord{
			NewPath:    fmt.Sprintf("f%03d.go", i),
			ChangeKind: catalog.ChangeModified,
			NewContent: "x",
		}
	}
	return catalog.Build(records, nil, catalog.PathOrdering)
}

func TestResolveCandidate_EmptyCatalog(t *testing.T) {
	require.Equal(t, "", ResolveCandidate(Range{}, catalog.Empty(), nil, 24))
	require.Equal(t, "", ResolveCandidate(Range{}, nil, nil, 24))
}

func TestResolveCandidate_SmallestNonNegativeOffset(t *testing.T) {
	cat := testCatalog(5)
	geom := staticGeometry{height: 600, rects: map[string]Rect{
		"f001.go": {Top: -400, Bottom: -50},
		"f002.go": {Top: -50, Bottom: 120},
		"f003.go": {Top: 120, Bottom: 400},
		"f004.go": {Top: 400, Bottom: 900},
	}}

	require.Equal(t, "f003.go", ResolveCandidate(Range{StartIndex: 1, EndIndex: 4}, cat, geom, 0))
}

func TestResolveCandidate_EpsilonAdmitsSlightlyAbove(t *testing.T) {
	cat := testCatalog(3)
	geom := staticGeometry{height: 600, rects: map[string]Rect{
		"f000.go": {Top: -10, Bottom: 200},
		"f001.go": {Top: 200, Bottom: 500},
	}}

	require.Equal(t, "f000.go", ResolveCandidate(Range{}, cat, geom, 24))
	require.Equal(t, "f001.go", ResolveCandidate(Range{}, cat, geom, 5))
}

func TestResolveCandidate_InsideTallItemUsesAbsoluteOffset(t *testing.T) {
	cat := testCatalog(3)
	geom := staticGeometry{height: 600, rects: map[string]Rect{
		"f001.go": {Top: -3000, Bottom: 2000},
	}}

	require.Equal(t, "f001.go", ResolveCandidate(Range{StartIndex: 2}, cat, geom, 24))
}

func TestResolveCandidate_IgnoresInvisibleUnknownAndZeroHeight(t *testing.T) {
	cat := testCatalog(4)
	geom := staticGeometry{height: 600, rects: map[string]Rect{
		"ghost.go": {Top: 0, Bottom: 100},
		"f000.go":  {Top: 10, Bottom: 10},
		"f001.go":  {Top: 700, Bottom: 900},
		"f002.go":  {Top: 50, Bottom: 300},
	}}

	require.Equal(t, "f002.go", ResolveCandidate(Range{}, cat, geom, 24))
}

func TestResolveCandidate_FallsBackToRangeStart(t *testing.T) {
	cat := testCatalog(4)

	require.Equal(t, "f002.go", ResolveCandidate(Range{StartIndex: 2, EndIndex: 3}, cat, nil, 24))
	require.Equal(t, "f003.go", ResolveCandidate(Range{StartIndex: 99, EndIndex: 120}, cat, nil, 24))
	require.Equal(t, "f000.go", ResolveCandidate(Range{StartIndex: -4}, cat, nil, 24))

	unmeasured := staticGeometry{rects: map[string]Rect{"f003.go": {Top: 0, Bottom: 100}}}
	require.Equal(t, "f001.go", ResolveCandidate(Range{StartIndex: 1}, cat, unmeasured, 24))
}

func TestResolveCandidate_InvertedRangeKeepsReportedStart(t *testing.T) {
	cat := testCatalog(5)

	require.Equal(t, "f003.go", ResolveCandidate(Range{StartIndex: 3, EndIndex: 1}, cat, nil, 24))
	require.Equal(t, "f004.go", ResolveCandidate(Range{StartIndex: 9, EndIndex: 0}, cat, nil, 24))
}

func TestResolveCandidate_Deterministic(t *testing.T) {
	cat := testCatalog(6)
	geom := staticGeometry{height: 800, rects: map[string]Rect{
		"f002.go": {Top: 100, Bottom: 300},
		"f004.go": {Top: 100, Bottom: 300},
		"f001.go": {Top: 5, Bottom: 99},
	}}

	first := ResolveCandidate(Range{}, cat, geom, 24)
	for range 20 {
		require.Equal(t, first, ResolveCandidate(Range{}, cat, geom, 24))
	}
	require.Equal(t, "f001.go", first)
}

func TestResolveCandidate_ClosestToTopProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(rt, "n")
		cat := testCatalog(n)
		height := float64(rapid.IntRange(100, 1200).Draw(rt, "height"))

		rects := make(map[string]Rect)
		for i := range n {
			if !rapid.Bool().Draw(rt, fmt.Sprintf("mounted%d", i)) {
				continue
			}
			top := float64(rapid.IntRange(-2000, 2000).Draw(rt, fmt.Sprintf("top%d", i)))
			h := float64(rapid.IntRange(1, 1500).Draw(rt, fmt.Sprintf("h%d", i)))
			rects[fmt.Sprintf("f%03d.go", i)] = Rect{Top: top, Bottom: top + h}
		}
		geom := staticGeometry{height: height, rects: rects}

		got := ResolveCandidate(Range{}, cat, geom, 0)
		require.NotEmpty(rt, got)

		bestNonNeg, bestAbs := math.Inf(1), math.Inf(1)
		visible := 0
		for _, r := range rects {
			if r.Bottom <= 0 || r.Top >= height {
				continue
			}
			visible++
			if r.Top >= 0 {
				bestNonNeg = math.Min(bestNonNeg, r.Top)
			}
			bestAbs = math.Min(bestAbs, math.Abs(r.Top))
		}

		if visible == 0 {
			require.Equal(rt, "f000.go", got)
			return
		}
		chosen, ok := rects[got]
		require.True(rt, ok)
		if !math.IsInf(bestNonNeg, 1) {
			require.Equal(rt, bestNonNeg, chosen.Top)
		} else {
			require.Equal(rt, bestAbs, math.Abs(chosen.Top))
		}
	})
}

func TestTracker_MeasuresRelativeToContainer(t *testing.T) {
	tr := NewTracker()
	_, ok := tr.ViewportHeight()
	require.False(t, ok)

	tr.SetContainer(ElementFunc(func() (Rect, bool) { return Rect{Top: 100, Bottom: 700}, true }))
	tr.OnItemMounted("a.go", ElementFunc(func() (Rect, bool) { return Rect{Top: 150, Bottom: 400}, true }))
	tr.OnItemMounted("b.go", ElementFunc(func() (Rect, bool) { return Rect{}, false }))

	h, ok := tr.ViewportHeight()
	require.True(t, ok)
	require.Equal(t, 600.0, h)

	r, ok := tr.Measure("a.go")
	require.True(t, ok)
	require.Equal(t, Rect{Top: 50, Bottom: 300}, r)

	_, ok = tr.Measure("b.go")
	require.False(t, ok)
	require.Equal(t, []string{"a.go", "b.go"}, tr.Mounted())

	off, ok := Offset(tr, "a.go")
	require.True(t, ok)
	require.Equal(t, 50.0, off)
}

func TestTracker_UnmountForgetsElement(t *testing.T) {
	tr := NewTracker()
	tr.OnItemMounted("a.go", ElementFunc(func() (Rect, bool) { return Rect{Top: 0, Bottom: 1}, true }))
	tr.OnItemMounted("", ElementFunc(func() (Rect, bool) { return Rect{}, true }))
	require.Equal(t, []string{"a.go"}, tr.Mounted())

	tr.OnItemMounted("a.go", nil)
	require.Empty(t, tr.Mounted())

	tr.OnItemMounted("b.go", ElementFunc(func() (Rect, bool) { return Rect{Top: 0, Bottom: 1}, true }))
	tr.Reset()
	require.Empty(t, tr.Mounted())
}
