package visibility

import "math"

// Progress returns how far through the scrollable distance the viewport is,
// in [0,1]. A page that cannot scroll reports 1 so any threshold is met, and
// a NaN offset reads as the top.
func Progress(offset, contentHeight, viewportHeight float64) float64 {
	span := contentHeight - viewportHeight
	if span <= 0 || math.IsNaN(span) {
		return 1
	}
	p := offset / span
	switch {
	case math.IsNaN(p):
		return 0
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
