package datasource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stellenberg/opsglass/pkg/model"
)

// PayloadDiff captures what changed between two aggregate payloads.
// Computed on fixture reload so the debug log shows which panels a file
// edit actually touched.
type PayloadDiff struct {
	// PanelsAdded holds panels present in the new payload only.
	PanelsAdded []model.PanelID
	// PanelsRemoved holds panels present in the old payload only.
	PanelsRemoved []model.PanelID
	// RowCountChanges holds panels whose row count changed.
	RowCountChanges []RowCountChange
	// ValueChanges holds panels with the same row count but different
	// categories or series values.
	ValueChanges []model.PanelID
}

// RowCountChange records a per-panel row count difference.
type RowCountChange struct {
	Panel model.PanelID
	Old   int
	New   int
}

// HasChanges reports whether the two payloads differ at all.
func (d PayloadDiff) HasChanges() bool {
	return len(d.PanelsAdded) > 0 || len(d.PanelsRemoved) > 0 ||
		len(d.RowCountChanges) > 0 || len(d.ValueChanges) > 0
}

// Summary returns a one-line human-readable description of the diff.
func (d PayloadDiff) Summary() string {
	if !d.HasChanges() {
		return "no panel changes"
	}
	var parts []string
	if len(d.PanelsAdded) > 0 {
		parts = append(parts, fmt.Sprintf("added %v", d.PanelsAdded))
	}
	if len(d.PanelsRemoved) > 0 {
		parts = append(parts, fmt.Sprintf("removed %v", d.PanelsRemoved))
	}
	for _, c := range d.RowCountChanges {
		parts = append(parts, fmt.Sprintf("%s rows %d->%d", c.Panel, c.Old, c.New))
	}
	if len(d.ValueChanges) > 0 {
		parts = append(parts, fmt.Sprintf("values changed in %v", d.ValueChanges))
	}
	return strings.Join(parts, ", ")
}

// DiffPayloads compares two aggregate payloads panel by panel. Panel
// lists in the result are sorted for stable log output.
func DiffPayloads(prev, next model.AggregatePayload) PayloadDiff {
	var d PayloadDiff

	for id := range next {
		if _, ok := prev[id]; !ok {
			d.PanelsAdded = append(d.PanelsAdded, id)
		}
	}
	for id, oldRows := range prev {
		newRows, ok := next[id]
		if !ok {
			d.PanelsRemoved = append(d.PanelsRemoved, id)
			continue
		}
		if len(oldRows) != len(newRows) {
			d.RowCountChanges = append(d.RowCountChanges, RowCountChange{
				Panel: id, Old: len(oldRows), New: len(newRows),
			})
			continue
		}
		if !rowsEqual(oldRows, newRows) {
			d.ValueChanges = append(d.ValueChanges, id)
		}
	}

	sortPanels(d.PanelsAdded)
	sortPanels(d.PanelsRemoved)
	sortPanels(d.ValueChanges)
	sort.Slice(d.RowCountChanges, func(i, j int) bool {
		return d.RowCountChanges[i].Panel < d.RowCountChanges[j].Panel
	})
	return d
}

func sortPanels(ids []model.PanelID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func rowsEqual(a, b []model.PanelRow) bool {
	for i := range a {
		if a[i].Category != b[i].Category || len(a[i].Values) != len(b[i].Values) {
			return false
		}
		for j := range a[i].Values {
			if a[i].Values[j] != b[i].Values[j] {
				return false
			}
		}
	}
	return true
}
