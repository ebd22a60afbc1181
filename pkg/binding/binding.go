// Package binding reshapes aggregate payload rows into the flattened
// per-series record format chart renderers consume. It is a pure data
// transform: no state, no I/O, deterministic output order.
package binding

import "github.com/stellenberg/opsglass/pkg/model"

// SeriesPoint is one (category, series) cell of a chart dataset.
type SeriesPoint struct {
	Category string
	Series   string
	Value    float64
}

// Expand flattens positionally encoded panel rows into one SeriesPoint per
// (row, series) pair. For N rows and K series names the output has exactly
// N*K points, grouped by input row first and by series order second.
//
// A row shorter than the series list contributes zero values for the
// missing positions; extra trailing values beyond the series list are
// ignored. Both cases come up in practice when a panel's schema gains or
// loses a tracked series between data imports.
func Expand(rows []model.PanelRow, series []string) []SeriesPoint {
	if len(rows) == 0 || len(series) == 0 {
		return nil
	}
	out := make([]SeriesPoint, 0, len(rows)*len(series))
	for _, row := range rows {
		for i, name := range series {
			var v float64
			if i < len(row.Values) {
				v = row.Values[i]
			}
			out = append(out, SeriesPoint{
				Category: row.Category,
				Series:   name,
				Value:    v,
			})
		}
	}
	return out
}

// SeriesValues extracts the values of a single named series across all
// rows, preserving row order. Used by trend analysis and chart export.
func SeriesValues(rows []model.PanelRow, series []string, name string) []float64 {
	idx := -1
	for i, s := range series {
		if s == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]float64, 0, len(rows))
	for _, row := range rows {
		if idx < len(row.Values) {
			out = append(out, row.Values[idx])
		} else {
			out = append(out, 0)
		}
	}
	return out
}

// Categories returns each row's category key in order.
func Categories(rows []model.PanelRow) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.Category
	}
	return out
}
