// Package viewport resolves which diff item sits closest to the top of the
// visible region, from live geometry of mounted items with an index-based
// fallback when no geometry is available.
package viewport

import (
	"sort"
	"sync"
)

// Rect is a vertical extent. Inside a GeometryProvider it is relative to the
// top edge of the scroll container; positive values are below the edge.
type Rect struct {
	Top    float64
	Bottom float64
}

// Height returns Bottom-Top.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Range is the approximate visible index range reported by the
// virtualization layer. EndIndex is inclusive.
type Range struct {
	StartIndex int
	EndIndex   int
}

// Normalize orders the bounds.
func (r Range) Normalize() Range {
	if r.EndIndex < r.StartIndex {
		r.StartIndex, r.EndIndex = r.EndIndex, r.StartIndex
	}
	return r
}

// GeometryProvider supplies on-demand geometry of currently mounted items.
type GeometryProvider interface {
	// ViewportHeight returns the visible height of the scroll container.
	// ok is false when the container has not been measured.
	ViewportHeight() (height float64, ok bool)
	// Measure returns the rect of a mounted item relative to the container top.
	Measure(path string) (Rect, bool)
	// Mounted lists the paths of mounted items, in no particular order.
	Mounted() []string
}

// Element is anything the host can measure in its own coordinate space.
type Element interface {
	Bounds() (Rect, bool)
}

// ElementFunc adapts a function to Element.
type ElementFunc func() (Rect, bool)

// Bounds calls f.
func (f ElementFunc) Bounds() (Rect, bool) { return f() }

// Tracker maintains the live path → element map as items mount and unmount
// under virtualization, and measures them relative to the container.
type Tracker struct {
	mu        sync.RWMutex
	container Element
	elements  map[string]Element
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{elements: make(map[string]Element)}
}

// SetContainer registers the scroll container element. nil clears it.
func (t *Tracker) SetContainer(el Element) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.container = el
}

// OnItemMounted registers el for path, or forgets path when el is nil.
func (t *Tracker) OnItemMounted(path string, el Element) {
	if path == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if el == nil {
		delete(t.elements, path)
		return
	}
	t.elements[path] = el
}

// Reset forgets every mounted element.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.elements = make(map[string]Element)
}

// ViewportHeight implements GeometryProvider.
func (t *Tracker) ViewportHeight() (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	box, ok := t.containerBounds()
	if !ok {
		return 0, false
	}
	return box.Height(), true
}

// Measure implements GeometryProvider.
func (t *Tracker) Measure(path string) (Rect, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	box, ok := t.containerBounds()
	if !ok {
		return Rect{}, false
	}
	el, ok := t.elements[path]
	if !ok {
		return Rect{}, false
	}
	r, ok := el.Bounds()
	if !ok || r.Height() <= 0 {
		return Rect{}, false
	}
	return Rect{Top: r.Top - box.Top, Bottom: r.Bottom - box.Top}, true
}

// Mounted implements GeometryProvider.
func (t *Tracker) Mounted() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	paths := make([]string, 0, len(t.elements))
	for p := range t.elements {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (t *Tracker) containerBounds() (Rect, bool) {
	if t.container == nil {
		return Rect{}, false
	}
	box, ok := t.container.Bounds()
	if !ok || box.Height() <= 0 {
		return Rect{}, false
	}
	return box, true
}
