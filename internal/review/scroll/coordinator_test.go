package scroll

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/taskreview/internal/clock"
	"github.com/zjrosen/taskreview/internal/review/catalog"
	"github.com/zjrosen/taskreview/internal/review/viewport"
)

type fakeGeometry struct {
	mu     sync.Mutex
	height float64
	rects  map[string]viewport.Rect
}

func newGeometry() *fakeGeometry {
	return &fakeGeometry{height: 600, rects: make(map[string]viewport.Rect)}
}

func (g *fakeGeometry) ViewportHeight() (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.height, g.height > 0
}

func (g *fakeGeometry) Measure(path string) (viewport.Rect, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rects[path]
	return r, ok
}

func (g *fakeGeometry) Mounted() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.rects))
	for p := range g.rects {
		out = append(out, p)
	}
	return out
}

// show mounts a run of 200px items starting at index first whose top edge is at top.
func (g *fakeGeometry) show(first int, top float64, count int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rects = make(map[string]viewport.Rect)
	for i := range count {
		t := top + float64(i)*200
		g.rects[name(first+i)] = viewport.Rect{Top: t, Bottom: t + 200}
	}
}

func name(i int) string { return fmt.Sprintf("f%03d.go", i) }

func testCatalog(n int) *catalog.Catalog {
	records := make([]catalog.DiffRecord, n)
	for i := range records {
		records[i] = catalog.DiffRecord{NewPath: name(i), ChangeKind: catalog.ChangeModified, NewContent: "x"}
	}
	return catalog.Build(records, nil, catalog.PathOrdering)
}

type harness struct {
	c         *Coordinator
	clk       *clock.Fake
	geom      *fakeGeometry
	mu        sync.Mutex
	published []string
	scrolled  []int
}

func newHarness(t *testing.T, n int) *harness {
	t.Helper()
	h := &harness{clk: clock.NewFake(), geom: newGeometry()}
	h.c = New(DefaultConfig(), testCatalog(n), Deps{
		Geometry: h.geom,
		Clock:    h.clk,
		Scroller: ScrollerFunc(func(i int) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.scrolled = append(h.scrolled, i)
		}),
		Publish: func(path string) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.published = append(h.published, path)
		},
	})
	t.Cleanup(h.c.Close)
	return h
}

func (h *harness) events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.published...)
}

// at shows item index at the top edge and feeds one range event.
func (h *harness) at(index int) {
	h.geom.show(index, 0, 3)
	h.c.HandleRange(viewport.Range{StartIndex: index, EndIndex: index + 2})
}

func TestCoordinator_FirstPublicationIsImmediate(t *testing.T) {
	h := newHarness(t, 10)

	h.at(3)

	require.Equal(t, name(3), h.c.Published())
	require.Equal(t, []string{name(3)}, h.events())
	require.Equal(t, 0, h.clk.Pending())
}

func TestCoordinator_DebounceBurstPublishesLastStable(t *testing.T) {
	h := newHarness(t, 10)
	h.at(9)
	require.Equal(t, []string{name(9)}, h.events())

	for _, i := range []int{0, 1, 0, 2, 2} {
		h.at(i)
		h.clk.Advance(10 * time.Millisecond)
	}
	require.Equal(t, name(9), h.c.Published(), "nothing publishes inside the stability window")
	require.Equal(t, name(2), h.c.Candidate())

	h.clk.Advance(80 * time.Millisecond)
	require.Equal(t, []string{name(9), name(2)}, h.events())
}

func TestCoordinator_DebounceBurstWithNoPriorPublication(t *testing.T) {
	h := newHarness(t, 10)

	for _, i := range []int{0, 1, 0, 2, 2} {
		h.at(i)
		h.clk.Advance(10 * time.Millisecond)
	}
	require.Equal(t, []string{name(0)}, h.events())

	h.clk.Advance(80 * time.Millisecond)
	require.Equal(t, []string{name(0), name(2)}, h.events())
}

func TestCoordinator_ReturningToPublishedCancelsTimer(t *testing.T) {
	h := newHarness(t, 10)
	h.at(4)
	h.at(5)
	require.Equal(t, 1, h.clk.Pending())

	h.at(4)
	require.Equal(t, 0, h.clk.Pending())

	h.clk.Advance(time.Second)
	require.Equal(t, []string{name(4)}, h.events())
}

func TestCoordinator_RepeatedCandidateDoesNotExtendWindow(t *testing.T) {
	h := newHarness(t, 10)
	h.at(1)
	h.at(2)
	h.clk.Advance(60 * time.Millisecond)
	h.at(2)
	h.clk.Advance(20 * time.Millisecond)

	require.Equal(t, name(2), h.c.Published())
}

func TestCoordinator_IdempotentAlignment(t *testing.T) {
	h := newHarness(t, 20)

	require.True(t, h.c.SetTarget(name(12), 7))
	target, ok := h.c.PendingTarget()
	require.True(t, ok)
	require.Equal(t, name(12), target.Path)
	require.Equal(t, 7, target.Line)
	require.NotEmpty(t, target.Session)
	require.Equal(t, StateTargetPending, h.c.State())
	require.Equal(t, []int{12}, h.scrolled)

	h.geom.show(12, 8, 3)
	h.c.HandleRange(viewport.Range{StartIndex: 12, EndIndex: 14})

	require.Equal(t, []string{name(12)}, h.events())
	_, ok = h.c.PendingTarget()
	require.False(t, ok)
	require.Equal(t, StateFrozen, h.c.State())
	require.Equal(t, name(12), h.c.Frozen())

	h.c.HandleRange(viewport.Range{StartIndex: 12, EndIndex: 14})
	h.clk.Advance(time.Second)
	require.Equal(t, []string{name(12)}, h.events())
	require.Equal(t, StateFrozen, h.c.State())
	require.Equal(t, []int{12}, h.scrolled)
}

func TestCoordinator_UserInputAfterOverrideWindowClearsTarget(t *testing.T) {
	h := newHarness(t, 50)
	require.True(t, h.c.SetTarget(name(30), 0))

	h.clk.Advance(100 * time.Millisecond)
	h.c.NoteUserInput(InputWheel)
	h.geom.show(25, 0, 3)
	h.c.HandleRange(viewport.Range{StartIndex: 25, EndIndex: 27})
	require.Equal(t, StateTargetPending, h.c.State(), "input inside the override window is momentum")

	h.clk.Advance(400 * time.Millisecond)
	h.c.NoteUserInput(InputWheel)
	h.c.HandleRange(viewport.Range{StartIndex: 25, EndIndex: 27})

	require.Equal(t, StateIdle, h.c.State())
	require.Empty(t, h.events(), "an overridden target is never published")

	h.geom.show(10, 0, 3)
	h.c.HandleRange(viewport.Range{StartIndex: 10, EndIndex: 12})
	require.Equal(t, []string{name(10)}, h.events())
}

func TestCoordinator_UserInputWithoutRangeEventKeepsTarget(t *testing.T) {
	h := newHarness(t, 10)
	require.True(t, h.c.SetTarget(name(5), 0))
	h.clk.Advance(time.Second)
	h.c.NoteUserInput(InputKey)

	_, ok := h.c.PendingTarget()
	require.True(t, ok)
}

func TestCoordinator_NewTargetReplacesPending(t *testing.T) {
	h := newHarness(t, 10)
	require.True(t, h.c.SetTarget(name(2), 0))
	require.True(t, h.c.SetTarget(name(7), 3))
	require.False(t, h.c.SetTarget("missing.go", 0))

	h.geom.show(2, 0, 2)
	h.c.HandleRange(viewport.Range{StartIndex: 2, EndIndex: 3})
	require.Empty(t, h.events())

	target, ok := h.c.PendingTarget()
	require.True(t, ok)
	require.Equal(t, name(7), target.Path)
	require.Equal(t, []int{2, 7}, h.scrolled)
}

func TestCoordinator_SetTargetCancelsStabilityTimer(t *testing.T) {
	h := newHarness(t, 10)
	h.at(1)
	h.at(2)
	require.Equal(t, 1, h.clk.Pending())

	require.True(t, h.c.SetTarget(name(8), 0))
	require.Equal(t, 0, h.clk.Pending())
	h.clk.Advance(time.Second)
	require.Equal(t, []string{name(1)}, h.events())
}

// Fifty items, jump to item 40 and converge its offset 300 → 10 over four events.
func TestCoordinator_NavigationScenario(t *testing.T) {
	h := newHarness(t, 50)

	require.True(t, h.c.SetTarget(name(40), 0))
	require.Equal(t, []int{40}, h.scrolled)

	for _, off := range []float64{300, 160, 60} {
		h.geom.show(39, off-200, 3)
		h.c.HandleRange(viewport.Range{StartIndex: 39, EndIndex: 41})
		h.clk.Advance(16 * time.Millisecond)
		require.Empty(t, h.events(), "no publish before alignment at offset %v", off)
	}

	h.geom.show(39, 10-200, 3)
	h.c.HandleRange(viewport.Range{StartIndex: 39, EndIndex: 41})
	require.Equal(t, []string{name(40)}, h.events())
	require.Equal(t, StateFrozen, h.c.State())

	h.geom.show(39, 5-200, 3)
	h.c.HandleRange(viewport.Range{StartIndex: 39, EndIndex: 41})
	require.Equal(t, name(40), h.c.Published())
	require.Equal(t, StateFrozen, h.c.State())

	h.geom.show(39, 40-200, 3)
	h.c.HandleRange(viewport.Range{StartIndex: 39, EndIndex: 41})
	require.Equal(t, StateIdle, h.c.State())
	require.Empty(t, h.c.Frozen())
	require.Equal(t, name(40), h.c.Candidate())
	require.Equal(t, name(40), h.c.Published())

	h.geom.show(40, -190, 3)
	h.c.HandleRange(viewport.Range{StartIndex: 40, EndIndex: 42})
	require.Equal(t, name(40), h.c.Published(), "organic change waits for the stability window")
	h.clk.Advance(80 * time.Millisecond)
	require.Equal(t, []string{name(40), name(41)}, h.events())
}

func TestCoordinator_SetCatalogDropsVanishedPaths(t *testing.T) {
	h := newHarness(t, 10)
	h.at(3)
	require.True(t, h.c.SetTarget(name(8), 0))

	records := []catalog.DiffRecord{
		{NewPath: name(0), ChangeKind: catalog.ChangeModified},
		{NewPath: name(1), ChangeKind: catalog.ChangeModified},
	}
	h.c.SetCatalog(catalog.Build(records, nil, catalog.PathOrdering))

	require.Equal(t, "", h.c.Published())
	require.Equal(t, []string{name(3), ""}, h.events())
	_, ok := h.c.PendingTarget()
	require.False(t, ok)
	require.Equal(t, StateIdle, h.c.State())

	h.geom.show(1, 0, 1)
	h.c.HandleRange(viewport.Range{StartIndex: 1, EndIndex: 1})
	h.clk.Advance(80 * time.Millisecond)
	require.Equal(t, name(1), h.c.Published())
}

func TestCoordinator_SetCatalogKeepsSurvivingState(t *testing.T) {
	h := newHarness(t, 10)
	h.at(3)

	h.c.SetCatalog(testCatalog(12))
	require.Equal(t, name(3), h.c.Published())
	require.Equal(t, []string{name(3)}, h.events())
}

func TestCoordinator_CloseCancelsTimers(t *testing.T) {
	h := newHarness(t, 10)
	h.at(1)
	h.at(2)
	require.True(t, h.c.SetTarget(name(5), 0))
	h.at(6)

	h.c.Close()
	h.c.Close()
	require.Equal(t, 0, h.clk.Pending())

	h.clk.Advance(time.Second)
	h.at(7)
	require.False(t, h.c.SetTarget(name(4), 0))
	require.Equal(t, []string{name(1)}, h.events())
}

func TestCoordinator_EmptyCatalogPublishesNothing(t *testing.T) {
	h := &harness{clk: clock.NewFake(), geom: newGeometry()}
	c := New(Config{}, nil, Deps{Geometry: h.geom, Clock: h.clk, Publish: func(p string) { h.published = append(h.published, p) }})
	defer c.Close()

	c.HandleRange(viewport.Range{})
	require.Empty(t, h.published)
	require.Equal(t, "", c.Published())
	require.False(t, c.SetTarget("a.go", 0))
}

func TestCoordinator_FallsBackToRangeStartWithoutGeometry(t *testing.T) {
	clk := clock.NewFake()
	var got []string
	c := New(DefaultConfig(), testCatalog(10), Deps{Clock: clk, Publish: func(p string) { got = append(got, p) }})
	defer c.Close()

	c.HandleRange(viewport.Range{StartIndex: 6, EndIndex: 9})
	require.Equal(t, []string{name(6)}, got)
	require.Equal(t, viewport.Range{StartIndex: 6, EndIndex: 9}, c.LastRange())
}

func TestState_String(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "target_pending", StateTargetPending.String())
	require.Equal(t, "frozen", StateFrozen.String())
	require.Equal(t, "unknown", State(9).String())
}

func TestCoordinator_CandidateTracksViewportWhileTargetPending(t *testing.T) {
	h := newHarness(t, 20)
	h.at(0)
	require.Equal(t, []string{name(0)}, h.events())

	require.True(t, h.c.SetTarget(name(15), 0))
	h.geom.show(6, 0, 3)
	h.c.HandleRange(viewport.Range{StartIndex: 6, EndIndex: 8})
	require.Equal(t, name(6), h.c.Candidate())

	h.geom.show(9, 0, 3)
	h.c.HandleRange(viewport.Range{StartIndex: 9, EndIndex: 11})
	require.Equal(t, name(9), h.c.Candidate())

	h.clk.Advance(time.Second)
	require.Equal(t, []string{name(0)}, h.events(), "candidates are not published while a target is pending")
	require.Equal(t, StateTargetPending, h.c.State())

	h.geom.show(15, 4, 3)
	h.c.HandleRange(viewport.Range{StartIndex: 15, EndIndex: 17})
	require.Equal(t, name(15), h.c.Candidate())
	require.Equal(t, []string{name(0), name(15)}, h.events())
}
