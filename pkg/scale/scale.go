// Package scale adapts a fixed-resolution dashboard design to arbitrary
// viewport sizes. The dashboard layout is authored against fixed design
// dimensions; at render time a single uniform factor maps design-space
// geometry onto the live viewport, fitting the smaller axis so content is
// never clipped (the larger axis letterboxes instead).
package scale

// Default design resolution the dashboard layout is authored against.
const (
	DefaultDesignWidth  = 1920
	DefaultDesignHeight = 1080
)

// State holds the fixed design dimensions and the scale derived from the
// most recent viewport measurement. One State per dashboard session.
type State struct {
	DesignWidth  int
	DesignHeight int

	current float64
	applied bool
}

// NewState returns a State for the given design dimensions. Non-positive
// dimensions fall back to the defaults so the ratio math stays defined.
func NewState(designWidth, designHeight int) *State {
	if designWidth <= 0 {
		designWidth = DefaultDesignWidth
	}
	if designHeight <= 0 {
		designHeight = DefaultDesignHeight
	}
	return &State{DesignWidth: designWidth, DesignHeight: designHeight}
}

// Compute returns the uniform scale factor fitting the design canvas
// inside a viewport of the given size: min(w/W, h/H). Pure and
// deterministic; does not modify the State. A non-positive viewport
// yields 0, which callers treat as "nothing to render yet".
func (s *State) Compute(viewportWidth, viewportHeight int) float64 {
	if viewportWidth <= 0 || viewportHeight <= 0 {
		return 0
	}
	wr := float64(viewportWidth) / float64(s.DesignWidth)
	hr := float64(viewportHeight) / float64(s.DesignHeight)
	if wr < hr {
		return wr
	}
	return hr
}

// Apply computes and records the scale for the given viewport. Returns
// the new factor. Callers invoke Apply once at load and again after each
// (debounced) resize.
func (s *State) Apply(viewportWidth, viewportHeight int) float64 {
	s.current = s.Compute(viewportWidth, viewportHeight)
	s.applied = true
	return s.current
}

// Current returns the most recently applied scale factor, or 0 when
// Apply has not run yet.
func (s *State) Current() float64 {
	if !s.applied {
		return 0
	}
	return s.current
}

// Project maps a length in design units onto the viewport using the
// current scale, rounding down so the result never exceeds the viewport
// extent the factor was computed against. Minimum 1 for positive inputs
// so scaled panels never collapse to zero cells.
func (s *State) Project(designUnits int) int {
	if designUnits <= 0 || s.current <= 0 {
		return 0
	}
	v := int(float64(designUnits) * s.current)
	if v < 1 {
		v = 1
	}
	return v
}

// Letterbox returns the top-left offset centering the scaled design
// canvas inside the viewport. One axis is always 0.
func (s *State) Letterbox(viewportWidth, viewportHeight int) (x, y int) {
	if s.current <= 0 {
		return 0, 0
	}
	scaledW := int(float64(s.DesignWidth) * s.current)
	scaledH := int(float64(s.DesignHeight) * s.current)
	if d := viewportWidth - scaledW; d > 0 {
		x = d / 2
	}
	if d := viewportHeight - scaledH; d > 0 {
		y = d / 2
	}
	return x, y
}
