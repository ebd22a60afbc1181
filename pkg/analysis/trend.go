// Package analysis computes lightweight statistics over panel series for
// dashboard footers and chart exports.
package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Trend summarizes the linear tendency of one metric series.
type Trend struct {
	Slope     float64 // change per step (month-over-month for monthly panels)
	Intercept float64
	Mean      float64
	Min       float64
	Max       float64
	N         int
}

// Direction classifies the trend for display.
type Direction int

const (
	Flat Direction = iota
	Rising
	Falling
)

// Direction buckets the slope, treating near-zero slopes as flat so noise
// does not flip the indicator arrow between refreshes.
func (t Trend) Direction() Direction {
	const eps = 1e-3
	switch {
	case t.Slope > eps:
		return Rising
	case t.Slope < -eps:
		return Falling
	default:
		return Flat
	}
}

// Arrow returns the footer glyph for the trend direction.
func (t Trend) Arrow() string {
	switch t.Direction() {
	case Rising:
		return "↑"
	case Falling:
		return "↓"
	default:
		return "→"
	}
}

// Fit computes the linear trend of values sampled at unit intervals.
// Fewer than two samples yield a flat trend over the available data.
func Fit(values []float64) Trend {
	t := Trend{N: len(values)}
	if len(values) == 0 {
		return t
	}

	t.Min = values[0]
	t.Max = values[0]
	for _, v := range values {
		t.Min = math.Min(t.Min, v)
		t.Max = math.Max(t.Max, v)
	}
	t.Mean = stat.Mean(values, nil)

	if len(values) < 2 {
		t.Intercept = values[0]
		return t
	}

	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	t.Intercept, t.Slope = stat.LinearRegression(xs, values, nil, false)
	return t
}

// At evaluates the fitted line at step x, used to draw the trend overlay
// in chart exports.
func (t Trend) At(x float64) float64 {
	return t.Intercept + t.Slope*x
}
