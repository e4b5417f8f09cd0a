package viewport

import (
	"math"
	"sort"

	"github.com/zjrosen/taskreview/internal/log"
	"github.com/zjrosen/taskreview/internal/review/catalog"
)

// Offset returns the distance of path's top edge from the viewport top.
func Offset(geom GeometryProvider, path string) (float64, bool) {
	if geom == nil {
		return 0, false
	}
	r, ok := geom.Measure(path)
	if !ok {
		return 0, false
	}
	return r.Top, true
}

type measured struct {
	path  string
	index int
	top   float64
}

// ResolveCandidate returns the path of the item closest to the top of the viewport.
//
// Among mounted items intersecting the viewport it picks the smallest top
// offset that is >= -epsilon. When every visible item starts above that
// (the user is inside one very tall item) it picks the smallest absolute
// offset. Without usable geometry it falls back to the item at
// rng.StartIndex. Returns "" only for an empty catalog.
func ResolveCandidate(rng Range, cat *catalog.Catalog, geom GeometryProvider, epsilon float64) string {
	if cat.Len() == 0 {
		return ""
	}

	if visible := visibleItems(cat, geom); len(visible) > 0 {
		if path, ok := closestBelowTop(visible, epsilon); ok {
			return path
		}
		return closestAbsolute(visible)
	}

	return fallbackByIndex(rng, cat)
}

func visibleItems(cat *catalog.Catalog, geom GeometryProvider) []measured {
	if geom == nil {
		return nil
	}
	height, ok := geom.ViewportHeight()
	if !ok || height <= 0 {
		return nil
	}

	var out []measured
	for _, path := range geom.Mounted() {
		index, ok := cat.IndexOf(path)
		if !ok {
			continue
		}
		r, ok := geom.Measure(path)
		if !ok || r.Height() <= 0 {
			continue
		}
		if r.Bottom <= 0 || r.Top >= height {
			continue
		}
		out = append(out, measured{path: path, index: index, top: r.Top})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

func closestBelowTop(items []measured, epsilon float64) (string, bool) {
	best := -1
	for i, m := range items {
		if m.top < -epsilon {
			continue
		}
		if best < 0 || m.top < items[best].top {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return items[best].path, true
}

func closestAbsolute(items []measured) string {
	best := 0
	for i, m := range items {
		if math.Abs(m.top) < math.Abs(items[best].top) {
			best = i
		}
	}
	return items[best].path
}

func fallbackByIndex(rng Range, cat *catalog.Catalog) string {
	index := cat.Clamp(rng.StartIndex)
	item, _ := cat.At(index)
	log.Debug(log.CatViewport, "no geometry, using range start", "index", index, "path", item.Key)
	return item.Key
}
