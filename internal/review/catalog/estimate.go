package catalog

import "sort"

// Height model used before real measurement is available.
const (
	DefaultLineHeight       = 20.0
	DefaultChromeHeight     = 48.0 // file header and padding
	DefaultMinDefaultHeight = 240.0
)

// HeightEstimator derives placeholder heights from line-count statistics.
type HeightEstimator struct {
	LineHeight   float64
	ChromeHeight float64
	MinHeight    float64
}

// DefaultHeightEstimator returns the estimator with the default pixel model.
func DefaultHeightEstimator() HeightEstimator {
	return HeightEstimator{
		LineHeight:   DefaultLineHeight,
		ChromeHeight: DefaultChromeHeight,
		MinHeight:    DefaultMinDefaultHeight,
	}
}

// ItemHeight estimates one item's rendered height from its changed lines.
func (e HeightEstimator) ItemHeight(additions, deletions int) float64 {
	lines := max(0, additions) + max(0, deletions)
	return e.ChromeHeight + float64(lines)*e.LineHeight
}

// DefaultHeight returns the median of the per-item estimates, floored at
// MinHeight. An empty set returns MinHeight.
func (e HeightEstimator) DefaultHeight(records []DiffRecord) float64 {
	if len(records) == 0 {
		return e.MinHeight
	}

	heights := make([]float64, len(records))
	for i, r := range records {
		heights[i] = e.ItemHeight(r.Additions, r.Deletions)
	}
	sort.Float64s(heights)

	var median float64
	mid := len(heights) / 2
	if len(heights)%2 == 1 {
		median = heights[mid]
	} else {
		median = (heights[mid-1] + heights[mid]) / 2
	}
	return max(median, e.MinHeight)
}

// EstimateDefaultHeight is DefaultHeight with the default estimator.
func EstimateDefaultHeight(records []DiffRecord) float64 {
	return DefaultHeightEstimator().DefaultHeight(records)
}
